package ecs

import (
	"fmt"
	"reflect"
)

type resourceSlot struct {
	name     string
	rollback bool
	ptr      any
	save     func() any
	load     func(v any) bool
	accepts  func(v any) bool
}

type resources struct {
	byType map[reflect.Type]*resourceSlot
	order  []*resourceSlot
}

func newResources() *resources {
	return &resources{byType: make(map[reflect.Type]*resourceSlot, 16)}
}

func setResource[T any](w *World, v T, rollback bool) *T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if slot, ok := w.resources.byType[t]; ok {
		p := slot.ptr.(*T)
		*p = v
		return p
	}
	p := new(T)
	*p = v
	slot := &resourceSlot{
		name:     t.String(),
		rollback: rollback,
		ptr:      p,
		save:     func() any { return cloneValue(*p) },
		load: func(v any) bool {
			nv, ok := v.(T)
			if ok {
				*p = cloneValue(nv)
			}
			return ok
		},
		accepts: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
	w.resources.byType[t] = slot
	w.resources.order = append(w.resources.order, slot)
	return p
}

// SetResource installs a singleton that is not part of snapshots: content
// tables, event queues, per-tick inputs. Setting an existing resource
// overwrites it in place, so earlier pointers stay valid.
func SetResource[T any](w *World, v T) *T {
	return setResource(w, v, false)
}

// SetRollbackResource installs a singleton that snapshots capture and
// restores overwrite: tick counters, RNG state, scores.
func SetRollbackResource[T any](w *World, v T) *T {
	return setResource(w, v, true)
}

// Res returns the resource of type T. It panics when T was never set.
func Res[T any](w *World) *T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	slot, ok := w.resources.byType[t]
	if !ok {
		panic(fmt.Sprintf("ecs: resource %s is not set", t))
	}
	return slot.ptr.(*T)
}

// TryRes returns the resource of type T if it was set.
func TryRes[T any](w *World) (*T, bool) {
	slot, ok := w.resources.byType[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	return slot.ptr.(*T), true
}

func (r *resources) rollbackSlots() []*resourceSlot {
	out := make([]*resourceSlot, 0, len(r.order))
	for _, s := range r.order {
		if s.rollback {
			out = append(out, s)
		}
	}
	return out
}
