package input

import (
	"testing"

	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/net/packet"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDerivesEdges(t *testing.T) {
	c1 := Next(PlayerControl{}, Raw{Held: ButtonJump, Move: geom.V2(1, 0)})
	assert.True(t, c1.Pressed(ButtonJump))
	assert.True(t, c1.JustPressed(ButtonJump))
	assert.True(t, c1.JustMoved)

	c2 := Next(c1, Raw{Held: ButtonJump | ButtonGrab, Move: geom.V2(1, 0)})
	assert.True(t, c2.Pressed(ButtonJump))
	assert.False(t, c2.JustPressed(ButtonJump), "held jump has no edge")
	assert.True(t, c2.JustPressed(ButtonGrab))
	assert.False(t, c2.JustMoved)

	c3 := Next(c2, Raw{Move: geom.V2(3, -7)})
	assert.Equal(t, geom.V2(1, -1), c3.MoveDirection, "axes are clamped")
	assert.Zero(t, c3.Held)
}

func TestPredictClearsEdges(t *testing.T) {
	c := Next(PlayerControl{}, Raw{Held: ButtonJump | ButtonShoot, Move: geom.V2(-1, 0)})
	p := Predict(c)
	assert.Equal(t, c.Held, p.Held)
	assert.Equal(t, c.MoveDirection, p.MoveDirection)
	assert.Zero(t, p.Edge)
	assert.False(t, p.JustMoved)
}

func TestControlCodecPreservesEdges(t *testing.T) {
	controls := []PlayerControl{
		{},
		Next(PlayerControl{}, Raw{Held: ButtonJump, Move: geom.V2(0.3, -0.6)}),
		Predict(Next(PlayerControl{}, Raw{Held: ButtonSlide | ButtonGrab, Move: geom.V2(-1, 0)})),
	}
	w := packet.NewWriterWithOpcode(1)
	for _, c := range controls {
		WriteControl(w, c)
	}
	require.Equal(t, 1+len(controls)*ControlSize, w.Len())

	r := packet.NewReader(w.Bytes())
	for _, want := range controls {
		assert.Equal(t, want, ReadControl(r))
	}
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())
}

func TestReadControlShortPacket(t *testing.T) {
	r := packet.NewReader([]byte{1, 0x01})
	_ = ReadControl(r)
	assert.True(t, eris.Is(r.Err(), packet.ErrShortPacket))
}

func TestBotIsDeterministic(t *testing.T) {
	a, b := NewBot(11), NewBot(11)
	jumps := 0
	for i := 0; i < 500; i++ {
		ca, cb := a.Control(), b.Control()
		require.Equal(t, ca, cb)
		if ca.JustPressed(ButtonJump) {
			jumps++
		}
	}
	assert.Positive(t, jumps)
}
