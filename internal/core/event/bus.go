package event

import (
	"reflect"
)

// Queue collects typed events emitted by systems during one tick. An
// external consumer drains it after the tick. Events are not part of
// snapshots; a muted queue drops emits, which the rollback driver uses while
// resimulating ticks whose effects were already delivered.
type Queue struct {
	muted  bool
	events map[reflect.Type][]any
	order  []reflect.Type
}

func NewQueue() *Queue {
	return &Queue{
		events: make(map[reflect.Type][]any),
	}
}

// Emit queues an event for the consumer of type T.
func Emit[T any](q *Queue, event T) {
	if q.muted {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, ok := q.events[t]; !ok {
		q.order = append(q.order, t)
	}
	q.events[t] = append(q.events[t], event)
}

// Drain returns and clears all queued events of type T in emit order.
func Drain[T any](q *Queue) []T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	raw := q.events[t]
	if len(raw) == 0 {
		return nil
	}
	out := make([]T, len(raw))
	for i, ev := range raw {
		out[i] = ev.(T)
	}
	q.events[t] = raw[:0]
	return out
}

// Len returns the number of queued events of every type.
func (q *Queue) Len() int {
	n := 0
	for _, t := range q.order {
		n += len(q.events[t])
	}
	return n
}

// SetMuted toggles dropping of emitted events.
func (q *Queue) SetMuted(muted bool) { q.muted = muted }

func (q *Queue) Muted() bool { return q.muted }

// Clear drops every queued event.
func (q *Queue) Clear() {
	for _, t := range q.order {
		q.events[t] = q.events[t][:0]
	}
}
