package input

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/geom"
)

// Bot produces a deterministic stream of raw samples from a seed, standing
// in for a device in headless matches and tests.
type Bot struct {
	rng  ecs.Rng
	move float64
	hold int
	prev PlayerControl
}

func NewBot(seed uint64) *Bot {
	return &Bot{rng: ecs.NewRng(seed)}
}

// Sample returns the next raw sample.
func (b *Bot) Sample() Raw {
	if b.hold <= 0 {
		b.move = float64(b.rng.Intn(3) - 1)
		b.hold = 10 + b.rng.Intn(30)
	}
	b.hold--
	var held Button
	if b.rng.Intn(12) == 0 {
		held |= ButtonJump
	}
	if b.rng.Intn(40) == 0 {
		held |= ButtonGrab
	}
	if b.rng.Intn(60) == 0 {
		held |= ButtonShoot
	}
	return Raw{Move: geom.V2(b.move, 0), Held: held}
}

// Control samples and derives the next control.
func (b *Bot) Control() PlayerControl {
	b.prev = Next(b.prev, b.Sample())
	return b.prev
}
