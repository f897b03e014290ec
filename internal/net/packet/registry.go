package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// PeerState is the protocol phase of a peer connection.
type PeerState int

const (
	StateHandshake PeerState = iota // awaiting hello
	StatePlaying                    // inputs and checksums flow
	StateClosing
)

func (s PeerState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StatePlaying:
		return "Playing"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one decoded frame. peer is passed as an opaque value
// to avoid import cycles.
type HandlerFunc func(peer any, r *Reader) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[PeerState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[byte]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[byte]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given peer states.
func (reg *Registry) Register(opcode byte, states []PeerState, fn HandlerFunc) {
	allowed := make(map[PeerState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for the opcode in data[0], validates the peer
// state, and calls the handler. Unknown opcodes are ignored so newer peers
// can add messages.
func (reg *Registry) Dispatch(peer any, state PeerState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}
	opcode := data[0]

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint8("opcode", opcode), zap.Stringer("state", state))
		return nil
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("opcode not allowed in state",
			zap.Uint8("opcode", opcode),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode %d not allowed in state %s", opcode, state)
	}
	return reg.safeCall(entry.fn, peer, NewReader(data), opcode)
}

// safeCall executes a handler with panic recovery so one malformed frame
// cannot take down the match loop.
func (reg *Registry) safeCall(fn HandlerFunc, peer any, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %d: %v", opcode, rec)
		}
	}()
	if err := fn(peer, r); err != nil {
		return err
	}
	return r.Err()
}
