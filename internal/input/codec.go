package input

import (
	"github.com/jumpgo/server/internal/net/packet"
)

// ControlSize is the encoded size of a PlayerControl.
const ControlSize = 10

const justMovedBit = 1 << 15

// WriteControl appends c as [2B buttons: held | edge<<8 | justMoved<<15]
// [4B float32 x][4B float32 y].
func WriteControl(w *packet.Writer, c PlayerControl) {
	bits := uint16(c.Held&buttonMask) | uint16(c.Edge&buttonMask)<<8
	if c.JustMoved {
		bits |= justMovedBit
	}
	w.WriteH(bits)
	w.WriteF(float32(c.MoveDirection.X))
	w.WriteF(float32(c.MoveDirection.Y))
}

// ReadControl decodes a control written by WriteControl.
func ReadControl(r *packet.Reader) PlayerControl {
	bits := r.ReadH()
	var c PlayerControl
	c.Held = Button(bits) & buttonMask
	c.Edge = Button(bits>>8) & buttonMask
	c.JustMoved = bits&justMovedBit != 0
	c.MoveDirection.X = float64(r.ReadF())
	c.MoveDirection.Y = float64(r.ReadF())
	return c
}
