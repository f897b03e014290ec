package rollback

import (
	"math"

	"github.com/jumpgo/server/internal/input"
)

// inputQueue holds one player's contiguous confirmed controls starting at
// base. A frozen queue answers every later tick with the last control,
// edges cleared.
type inputQueue struct {
	base     uint32
	controls []input.PlayerControl
	last     input.PlayerControl
	frozen   bool
}

// next is the first tick with no confirmed control.
func (q *inputQueue) next() uint32 { return q.base + uint32(len(q.controls)) }

// confirmedUntil is the first tick whose control may still change.
func (q *inputQueue) confirmedUntil() uint32 {
	if q.frozen {
		return math.MaxUint32
	}
	return q.next()
}

func (q *inputQueue) get(t uint32) (input.PlayerControl, bool) {
	switch {
	case t >= q.base && t < q.next():
		return q.controls[t-q.base], true
	case q.frozen && t >= q.next():
		return input.Predict(q.last), true
	}
	return input.PlayerControl{}, false
}

// control returns the confirmed control for t or a prediction.
func (q *inputQueue) control(t uint32) input.PlayerControl {
	if c, ok := q.get(t); ok {
		return c
	}
	return input.Predict(q.last)
}

func (q *inputQueue) push(c input.PlayerControl) {
	q.controls = append(q.controls, c)
	q.last = c
}

// trim forgets controls before tick t.
func (q *inputQueue) trim(t uint32) {
	if t <= q.base {
		return
	}
	n := min(int(t-q.base), len(q.controls))
	q.controls = append(q.controls[:0:0], q.controls[n:]...)
	q.base += uint32(n)
}

// recent returns up to n of the newest controls and the tick of the first.
func (q *inputQueue) recent(n int) (uint32, []input.PlayerControl) {
	from := max(len(q.controls)-n, 0)
	out := append([]input.PlayerControl(nil), q.controls[from:]...)
	return q.base + uint32(from), out
}
