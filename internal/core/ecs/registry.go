package ecs

import (
	"fmt"
	"reflect"
)

// erasedStore is the type-erased view of a Store used for bulk removal and
// snapshotting.
type erasedStore interface {
	Removable
	Name() string
	Len() int
	save() any
	load(v any) bool
	accepts(v any) bool
}

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
// Registration order is fixed at setup and defines snapshot layout.
type Registry struct {
	stores []erasedStore
	byType map[reflect.Type]erasedStore
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]erasedStore, 0, 16),
		byType: make(map[reflect.Type]erasedStore, 16),
	}
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}

// Len returns the number of registered component types.
func (r *Registry) Len() int { return len(r.stores) }

// Register returns the store for T, creating it on first use.
func Register[T any](w *World) *Store[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if s, ok := w.registry.byType[t]; ok {
		return s.(*Store[T])
	}
	s := newStore[T](ComponentID(len(w.registry.stores)))
	w.registry.stores = append(w.registry.stores, s)
	w.registry.byType[t] = s
	return s
}

// Comp returns the registered store for T. It panics when T was never
// registered: systems are wired at setup, so a missing store is a wiring bug.
func Comp[T any](w *World) *Store[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	s, ok := w.registry.byType[t]
	if !ok {
		panic(fmt.Sprintf("ecs: component %s is not registered", t))
	}
	return s.(*Store[T])
}
