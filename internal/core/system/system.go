package system

import (
	"fmt"
	"reflect"

	"github.com/jumpgo/server/internal/core/ecs"
)

// System is one unit of per-tick work. Run mutates the world directly or
// queues commands; a returned error aborts the rest of the tick.
type System interface {
	Name() string
	Access() Access
	Run(w *ecs.World) error
}

// Decl declares read or write access to a component or resource type.
type Decl struct {
	t     reflect.Type
	write bool
}

// Read declares shared access to T.
func Read[T any]() Decl {
	return Decl{t: reflect.TypeOf((*T)(nil)).Elem()}
}

// Write declares exclusive access to T. Systems that queue commands in a
// parallel stage declare Write[ecs.Commands]().
func Write[T any]() Decl {
	return Decl{t: reflect.TypeOf((*T)(nil)).Elem(), write: true}
}

// Access is the set of types a system touches.
type Access struct {
	reads  []reflect.Type
	writes []reflect.Type
}

// NewAccess builds an access set. Declaring write access to the same type
// twice is a wiring bug and panics: the store has no way to hand out two
// mutable views of one component type.
func NewAccess(decls ...Decl) Access {
	var a Access
	for _, d := range decls {
		if !d.write {
			a.reads = append(a.reads, d.t)
			continue
		}
		for _, w := range a.writes {
			if w == d.t {
				panic(fmt.Sprintf("system: duplicate mutable access to %s", d.t))
			}
		}
		a.writes = append(a.writes, d.t)
	}
	return a
}

// Conflicts reports the first type that a and b cannot touch concurrently:
// a write in one overlapping a read or write in the other.
func (a Access) Conflicts(b Access) (reflect.Type, bool) {
	for _, w := range a.writes {
		if containsType(b.writes, w) || containsType(b.reads, w) {
			return w, true
		}
	}
	for _, w := range b.writes {
		if containsType(a.reads, w) {
			return w, true
		}
	}
	return nil, false
}

func containsType(ts []reflect.Type, t reflect.Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

// Func adapts a plain function to System.
type Func struct {
	name   string
	access Access
	fn     func(w *ecs.World) error
}

// New wraps fn as a named system with the given access declarations.
func New(name string, fn func(w *ecs.World) error, decls ...Decl) *Func {
	return &Func{name: name, access: NewAccess(decls...), fn: fn}
}

func (f *Func) Name() string   { return f.name }
func (f *Func) Access() Access { return f.access }

func (f *Func) Run(w *ecs.World) error { return f.fn(w) }
