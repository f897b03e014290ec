package ecs

import "reflect"

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID) bool
}

// Cloner is implemented by component or resource types that own heap data
// (slices, maps, pointers). Snapshots call Clone so a captured value never
// shares memory with the live world. Plain-value types need not implement it.
type Cloner[T any] interface {
	Clone() T
}

// ComponentID is the registration index of a component type in a World.
type ComponentID int

// Store is a sparse-set component container. Values live contiguously in
// dense order; sparse maps an entity index to its dense slot. Iteration
// follows dense order, which depends only on the insert/remove history.
//
// Pointers returned by Get stay valid until the next Insert or Remove on the
// same store.
type Store[T any] struct {
	id     ComponentID
	name   string
	sparse []int32
	dense  []EntityID
	data   []T
}

func newStore[T any](id ComponentID) *Store[T] {
	return &Store[T]{
		id:    id,
		name:  reflect.TypeOf((*T)(nil)).Elem().String(),
		dense: make([]EntityID, 0, 64),
		data:  make([]T, 0, 64),
	}
}

func (s *Store[T]) ID() ComponentID { return s.id }
func (s *Store[T]) Name() string    { return s.name }

func (s *Store[T]) slot(id EntityID) (int, bool) {
	idx := int(id.Index())
	if idx >= len(s.sparse) {
		return 0, false
	}
	d := s.sparse[idx]
	if d < 0 || s.dense[d] != id {
		return 0, false
	}
	return int(d), true
}

// Insert sets the component for id, overwriting any existing value.
func (s *Store[T]) Insert(id EntityID, c T) {
	if d, ok := s.slot(id); ok {
		s.data[d] = c
		return
	}
	idx := int(id.Index())
	for len(s.sparse) <= idx {
		s.sparse = append(s.sparse, -1)
	}
	// A stale generation may still occupy the slot; evict it first.
	if old := s.sparse[idx]; old >= 0 {
		s.swapRemove(int(old))
	}
	s.sparse[idx] = int32(len(s.dense))
	s.dense = append(s.dense, id)
	s.data = append(s.data, c)
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	d, ok := s.slot(id)
	if !ok {
		return nil, false
	}
	return &s.data[d], true
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.slot(id)
	return ok
}

// Remove deletes the component for id and reports whether one existed.
func (s *Store[T]) Remove(id EntityID) bool {
	_, ok := s.Take(id)
	return ok
}

// Take deletes and returns the component for id.
func (s *Store[T]) Take(id EntityID) (T, bool) {
	var zero T
	d, ok := s.slot(id)
	if !ok {
		return zero, false
	}
	c := s.data[d]
	s.swapRemove(d)
	return c, true
}

func (s *Store[T]) swapRemove(d int) {
	last := len(s.dense) - 1
	removed := s.dense[d]
	if d != last {
		s.dense[d] = s.dense[last]
		s.data[d] = s.data[last]
		s.sparse[s.dense[d].Index()] = int32(d)
	}
	var zero T
	s.data[last] = zero
	s.dense = s.dense[:last]
	s.data = s.data[:last]
	s.sparse[removed.Index()] = -1
}

func (s *Store[T]) Len() int {
	return len(s.dense)
}

// Each visits every component in dense order. fn must not insert into or
// remove from this store; queue a command instead.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i := range s.dense {
		fn(s.dense[i], &s.data[i])
	}
}

// Entities returns a copy of the ids holding this component, in dense order.
func (s *Store[T]) Entities() []EntityID {
	return append([]EntityID(nil), s.dense...)
}

// storeState is the copyable form of a Store captured by snapshots.
type storeState[T any] struct {
	Sparse []int32
	Dense  []EntityID
	Data   []T
}

func (s *Store[T]) save() any {
	st := storeState[T]{
		Sparse: append([]int32(nil), s.sparse...),
		Dense:  append([]EntityID(nil), s.dense...),
		Data:   make([]T, len(s.data)),
	}
	for i := range s.data {
		st.Data[i] = cloneValue(s.data[i])
	}
	return st
}

func (s *Store[T]) load(v any) bool {
	st, ok := v.(storeState[T])
	if !ok {
		return false
	}
	s.sparse = append(s.sparse[:0], st.Sparse...)
	s.dense = append(s.dense[:0], st.Dense...)
	s.data = s.data[:0]
	for i := range st.Data {
		s.data = append(s.data, cloneValue(st.Data[i]))
	}
	return true
}

func (s *Store[T]) accepts(v any) bool {
	_, ok := v.(storeState[T])
	return ok
}

func cloneValue[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}
