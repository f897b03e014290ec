package net

import (
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/net/packet"
	"github.com/jumpgo/server/internal/rollback"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
)

// Opcodes, byte 0 of every frame.
const (
	OpHello      byte = 1
	OpInput      byte = 2
	OpChecksum   byte = 3
	OpDisconnect byte = 4
)

// ProtocolVersion is bumped whenever a frame layout changes.
const ProtocolVersion = 1

// maxControls bounds the controls in one input frame; the count is one byte.
const maxControls = 255

var (
	ErrVersionMismatch = eris.New("protocol version mismatch")
	ErrWrongMatch      = eris.New("peer is in a different match")
	ErrSpoofedPlayer   = eris.New("message names another player")
)

// Hello is the first frame on every connection.
type Hello struct {
	Version uint16
	Player  uint8
	Match   ulid.ULID
}

func EncodeHello(h Hello) []byte {
	w := packet.NewWriterWithOpcode(OpHello)
	w.WriteH(h.Version)
	w.WriteC(h.Player)
	w.WriteBytes(h.Match[:])
	return w.Bytes()
}

func decodeHello(r *packet.Reader) Hello {
	var h Hello
	h.Version = r.ReadH()
	h.Player = r.ReadC()
	copy(h.Match[:], r.ReadBytes(len(h.Match)))
	return h
}

// Encode serializes a rollback message into one frame payload.
func Encode(m rollback.Message) ([]byte, error) {
	switch m := m.(type) {
	case rollback.InputMessage:
		if len(m.Controls) > maxControls {
			return nil, eris.Errorf("input message carries %d controls, at most %d fit", len(m.Controls), maxControls)
		}
		w := packet.NewWriterWithOpcode(OpInput)
		w.WriteC(m.Player)
		w.WriteD(m.StartTick)
		w.WriteC(byte(len(m.Controls)))
		for _, c := range m.Controls {
			input.WriteControl(w, c)
		}
		return w.Bytes(), nil
	case rollback.ChecksumMessage:
		w := packet.NewWriterWithOpcode(OpChecksum)
		w.WriteC(m.Player)
		w.WriteD(m.Tick)
		w.WriteQ(m.Sum)
		return w.Bytes(), nil
	case rollback.DisconnectMessage:
		w := packet.NewWriterWithOpcode(OpDisconnect)
		w.WriteC(m.Player)
		return w.Bytes(), nil
	}
	return nil, eris.Errorf("unsupported message %T", m)
}

func decodeInput(r *packet.Reader) rollback.InputMessage {
	m := rollback.InputMessage{Player: r.ReadC(), StartTick: r.ReadD()}
	n := int(r.ReadC())
	if r.Remaining() < n*input.ControlSize {
		// Leave the reader short so the registry reports the frame.
		r.ReadBytes(n * input.ControlSize)
		return m
	}
	m.Controls = make([]input.PlayerControl, n)
	for i := range m.Controls {
		m.Controls[i] = input.ReadControl(r)
	}
	return m
}

func decodeChecksum(r *packet.Reader) rollback.ChecksumMessage {
	return rollback.ChecksumMessage{Player: r.ReadC(), Tick: r.ReadD(), Sum: r.ReadQ()}
}
