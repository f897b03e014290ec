package net

import (
	"time"

	"github.com/jumpgo/server/internal/net/packet"
	"github.com/jumpgo/server/internal/rollback"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// goodbyeTimeout bounds how long Close waits for goodbyes to be written.
const goodbyeTimeout = 500 * time.Millisecond

// Transport implements rollback.Transport over a set of peers. It is used
// from the match goroutine only.
type Transport struct {
	local    Hello
	peers    []*Peer
	reported map[uint64]bool // peers whose loss was already turned into a DisconnectMessage
	reg      *packet.Registry
	pending  []rollback.Message
	log      *zap.Logger
}

var _ rollback.Transport = (*Transport)(nil)

// NewTransport creates a transport announcing local to every peer.
func NewTransport(local Hello, log *zap.Logger) *Transport {
	t := &Transport{
		local:    local,
		reported: make(map[uint64]bool),
		reg:      packet.NewRegistry(log),
		log:      log,
	}
	t.registerHandlers()
	return t
}

func (t *Transport) registerHandlers() {
	handshake := []packet.PeerState{packet.StateHandshake}
	playing := []packet.PeerState{packet.StatePlaying}

	t.reg.Register(OpHello, handshake, func(peer any, r *packet.Reader) error {
		p := peer.(*Peer)
		h := decodeHello(r)
		if err := r.Err(); err != nil {
			return err
		}
		if h.Version != t.local.Version {
			return eris.Wrapf(ErrVersionMismatch, "peer %d speaks %d, we speak %d", p.ID, h.Version, t.local.Version)
		}
		if h.Match != t.local.Match {
			return eris.Wrapf(ErrWrongMatch, "peer %d joined %s", p.ID, h.Match)
		}
		if h.Player == t.local.Player {
			return eris.Errorf("peer %d claims the local slot %d", p.ID, h.Player)
		}
		p.setPlayer(int(h.Player))
		p.SetState(packet.StatePlaying)
		t.log.Info("peer joined", zap.Uint64("peer", p.ID), zap.Uint8("player", h.Player), zap.String("addr", p.Addr))
		return nil
	})
	t.reg.Register(OpInput, playing, func(peer any, r *packet.Reader) error {
		m := decodeInput(r)
		if err := r.Err(); err != nil {
			return err
		}
		if err := checkSender(peer.(*Peer), m.Player); err != nil {
			return err
		}
		t.pending = append(t.pending, m)
		return nil
	})
	t.reg.Register(OpChecksum, playing, func(peer any, r *packet.Reader) error {
		m := decodeChecksum(r)
		if err := r.Err(); err != nil {
			return err
		}
		if err := checkSender(peer.(*Peer), m.Player); err != nil {
			return err
		}
		t.pending = append(t.pending, m)
		return nil
	})
	t.reg.Register(OpDisconnect, playing, func(peer any, r *packet.Reader) error {
		m := rollback.DisconnectMessage{Player: r.ReadC()}
		if err := r.Err(); err != nil {
			return err
		}
		if err := checkSender(peer.(*Peer), m.Player); err != nil {
			return err
		}
		t.markReported(peer.(*Peer))
		t.pending = append(t.pending, m)
		return nil
	})
}

func checkSender(p *Peer, player uint8) error {
	if int(player) != p.Player() {
		return eris.Wrapf(ErrSpoofedPlayer, "peer %d is player %d, message names %d", p.ID, p.Player(), player)
	}
	return nil
}

// AddPeer greets p and starts routing its frames.
func (t *Transport) AddPeer(p *Peer) {
	p.Send(EncodeHello(t.local))
	t.peers = append(t.peers, p)
}

// Ready reports whether every peer has completed its handshake.
func (t *Transport) Ready() bool {
	for _, p := range t.peers {
		if p.State() != packet.StatePlaying {
			return false
		}
	}
	return len(t.peers) > 0
}

// Peers returns the peers added so far.
func (t *Transport) Peers() []*Peer { return t.peers }

func (t *Transport) Send(m rollback.Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	for _, p := range t.peers {
		p.Send(data)
	}
	return nil
}

// Receive dispatches every queued frame. A peer that closed after its
// handshake is reported once as a DisconnectMessage. Malformed frames drop
// the peer that sent them.
func (t *Transport) Receive() ([]rollback.Message, error) {
	t.pending = t.pending[:0]
	for _, p := range t.peers {
		t.drain(p)
		if p.IsClosed() && p.Player() >= 0 && !t.reported[p.ID] {
			t.markReported(p)
			t.pending = append(t.pending, rollback.DisconnectMessage{Player: uint8(p.Player())})
		}
	}
	if len(t.pending) == 0 {
		return nil, nil
	}
	return append([]rollback.Message(nil), t.pending...), nil
}

func (t *Transport) markReported(p *Peer) { t.reported[p.ID] = true }

func (t *Transport) drain(p *Peer) {
	for {
		select {
		case data := <-p.InQueue:
			if err := t.reg.Dispatch(p, p.State(), data); err != nil {
				t.log.Warn("bad frame, dropping peer", zap.Uint64("peer", p.ID), zap.Error(err))
				p.Close()
				return
			}
		default:
			return
		}
	}
}

// Close sends a goodbye to every peer and closes them once it is written,
// waiting at most goodbyeTimeout in total. Peers that miss the goodbye
// still notice the closed connection.
func (t *Transport) Close() {
	bye, _ := Encode(rollback.DisconnectMessage{Player: t.local.Player})
	for _, p := range t.peers {
		p.Send(bye)
		p.Flush()
	}
	timer := time.NewTimer(goodbyeTimeout)
	defer timer.Stop()
	expired := false
	for _, p := range t.peers {
		if !expired {
			select {
			case <-p.Done():
			case <-timer.C:
				expired = true
				t.log.Debug("goodbye not flushed in time", zap.Uint64("peer", p.ID))
			}
		}
		p.Close()
	}
}
