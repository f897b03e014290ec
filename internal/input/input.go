package input

import (
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
)

// MaxPlayers is the number of input slots in a match.
const MaxPlayers = 4

// Button is a bit set of digital controls.
type Button uint8

const (
	ButtonJump Button = 1 << iota
	ButtonShoot
	ButtonGrab
	ButtonSlide

	buttonMask = ButtonJump | ButtonShoot | ButtonGrab | ButtonSlide
)

// deadZone is the axis magnitude below which the stick counts as centered.
const deadZone = 0.1

// PlayerControl is one player's control state for one tick.
type PlayerControl struct {
	MoveDirection geom.Vec2
	Held          Button // down this tick
	Edge          Button // down this tick and up the previous tick
	JustMoved     bool   // horizontal axis left the dead zone this tick
}

// Pressed reports whether b is held.
func (c PlayerControl) Pressed(b Button) bool { return c.Held&b != 0 }

// JustPressed reports whether b went down this tick.
func (c PlayerControl) JustPressed(b Button) bool { return c.Edge&b != 0 }

// PlayerInput is one input slot of a match.
type PlayerInput struct {
	Active  bool
	Player  data.PlayerHandle
	Hat     data.HatHandle
	Control PlayerControl
}

// MatchInputs is the per-tick input resource. The driver replaces it
// wholesale before every tick; systems only read it.
type MatchInputs struct {
	Players [MaxPlayers]PlayerInput
}

// SetControls replaces every slot's control, keeping selections.
func (m *MatchInputs) SetControls(c [MaxPlayers]PlayerControl) {
	for i := range m.Players {
		m.Players[i].Control = c[i]
	}
}

// Raw is the sampled device state before edge detection.
type Raw struct {
	Move geom.Vec2
	Held Button
}

// Next derives this tick's control from the raw sample and the previous
// control. The result is already quantized to wire precision, so the local
// peer simulates exactly what remote peers decode.
func Next(prev PlayerControl, raw Raw) PlayerControl {
	c := PlayerControl{
		MoveDirection: geom.V2(geom.Clamp(raw.Move.X, -1, 1), geom.Clamp(raw.Move.Y, -1, 1)),
		Held:          raw.Held & buttonMask,
	}
	c.Edge = c.Held &^ prev.Held
	c.JustMoved = abs(c.MoveDirection.X) >= deadZone && abs(prev.MoveDirection.X) < deadZone
	return Quantize(c)
}

// Predict guesses the next control of a peer from its last known one: the
// same buttons and axes, without fresh edges.
func Predict(last PlayerControl) PlayerControl {
	last.Edge = 0
	last.JustMoved = false
	return last
}

// Quantize rounds the axes to float32, the precision used on the wire.
func Quantize(c PlayerControl) PlayerControl {
	c.MoveDirection = geom.V2(float64(float32(c.MoveDirection.X)), float64(float32(c.MoveDirection.Y)))
	c.Held &= buttonMask
	c.Edge &= c.Held
	return c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
