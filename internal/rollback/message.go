package rollback

import "github.com/jumpgo/server/internal/input"

// Message is anything exchanged between peers of a match.
type Message interface {
	message()
}

// InputMessage carries consecutive controls of one player: Controls[i] is
// the control for tick StartTick+i. Senders repeat recent controls in every
// message so one lost packet does not stall the receiver.
type InputMessage struct {
	Player    uint8
	StartTick uint32
	Controls  []input.PlayerControl
}

// ChecksumMessage carries a peer's state checksum after a confirmed tick.
type ChecksumMessage struct {
	Player uint8
	Tick   uint32
	Sum    uint64
}

// DisconnectMessage reports that a peer left the match.
type DisconnectMessage struct {
	Player uint8
}

func (InputMessage) message()      {}
func (ChecksumMessage) message()   {}
func (DisconnectMessage) message() {}

// Transport moves messages between peers. Send must not block on the
// network; Receive returns whatever arrived since the last call.
type Transport interface {
	Send(msg Message) error
	Receive() ([]Message, error)
}
