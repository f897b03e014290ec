package ecs

import "iter"

// Each2 iterates over entities that have both component A and B.
// It walks the smaller store in dense order and looks each id up in the
// larger one, so the visiting order is a pure function of the stores' mutation history.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	for row := range Query2(sa, sb) {
		fn(row.ID, row.A, row.B)
	}
}

// Each3 iterates over entities that have components A, B, and C.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	for row := range Query3(sa, sb, sc) {
		fn(row.ID, row.A, row.B, row.C)
	}
}

// Each4 iterates over entities that have components A, B, C and D.
func Each4[A, B, C, D any](sa *Store[A], sb *Store[B], sc *Store[C], sd *Store[D], fn func(EntityID, *A, *B, *C, *D)) {
	for row := range Query3(sa, sb, sc) {
		d, ok := sd.Get(row.ID)
		if !ok {
			continue
		}
		fn(row.ID, row.A, row.B, row.C, d)
	}
}

// Row2 is one result of Query2.
type Row2[A, B any] struct {
	ID EntityID
	A  *A
	B  *B
}

// Row3 is one result of Query3.
type Row3[A, B, C any] struct {
	ID EntityID
	A  *A
	B  *B
	C  *C
}

// Query2 returns a lazy sequence over entities holding A and B. The sequence
// is finite and reflects the stores as they are while it runs; structural
// changes belong in Commands.
func Query2[A, B any](sa *Store[A], sb *Store[B]) iter.Seq[Row2[A, B]] {
	return func(yield func(Row2[A, B]) bool) {
		for _, id := range driver(sa.dense, sb.dense) {
			a, ok := sa.Get(id)
			if !ok {
				continue
			}
			b, ok := sb.Get(id)
			if !ok {
				continue
			}
			if !yield(Row2[A, B]{ID: id, A: a, B: b}) {
				return
			}
		}
	}
}

// Query3 returns a lazy sequence over entities holding A, B and C.
func Query3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C]) iter.Seq[Row3[A, B, C]] {
	return func(yield func(Row3[A, B, C]) bool) {
		for _, id := range driver(sa.dense, sb.dense, sc.dense) {
			a, ok := sa.Get(id)
			if !ok {
				continue
			}
			b, ok := sb.Get(id)
			if !ok {
				continue
			}
			c, ok := sc.Get(id)
			if !ok {
				continue
			}
			if !yield(Row3[A, B, C]{ID: id, A: a, B: b, C: c}) {
				return
			}
		}
	}
}

// driver picks the smallest dense list to walk, first one on ties. The list
// is copied so systems may mutate component values while iterating.
func driver(lists ...[]EntityID) []EntityID {
	best := lists[0]
	for _, l := range lists[1:] {
		if len(l) < len(best) {
			best = l
		}
	}
	return append([]EntityID(nil), best...)
}
