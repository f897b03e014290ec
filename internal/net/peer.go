package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jumpgo/server/internal/net/packet"
	"go.uber.org/zap"
)

// PeerOptions sizes a peer's queues.
type PeerOptions struct {
	InQueue          int
	OutQueue         int
	PacketsPerSecond int // 0 = unlimited
}

// DefaultPeerOptions fits a 60 Hz match with redundant input messages.
func DefaultPeerOptions() PeerOptions {
	return PeerOptions{InQueue: 256, OutQueue: 256, PacketsPerSecond: 600}
}

// Peer is one remote match participant. Network I/O runs in dedicated
// goroutines; frames reach the match loop through InQueue.
type Peer struct {
	ID   uint64
	conn FrameConn

	state  atomic.Int32 // packet.PeerState
	player atomic.Int32 // input slot announced in hello, -1 before

	InQueue  chan []byte // match loop reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	Addr string

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	flushCh   chan struct{}
	flushOnce sync.Once

	// Per-second frame rate limiter (readLoop goroutine only)
	pktPerSec  int
	pktCount   int
	pktResetAt int64

	log *zap.Logger
}

func NewPeer(conn FrameConn, id uint64, opts PeerOptions, log *zap.Logger) *Peer {
	p := &Peer{
		ID:        id,
		conn:      conn,
		InQueue:   make(chan []byte, opts.InQueue),
		OutQueue:  make(chan []byte, opts.OutQueue),
		Addr:      conn.RemoteAddr(),
		closeCh:   make(chan struct{}),
		flushCh:   make(chan struct{}),
		pktPerSec: opts.PacketsPerSecond,
		log:       log.With(zap.Uint64("peer", id)),
	}
	p.state.Store(int32(packet.StateHandshake))
	p.player.Store(-1)
	return p
}

func (p *Peer) State() packet.PeerState {
	return packet.PeerState(p.state.Load())
}

func (p *Peer) SetState(st packet.PeerState) {
	p.state.Store(int32(st))
}

// Player returns the input slot the peer announced, or -1 before hello.
func (p *Peer) Player() int { return int(p.player.Load()) }

func (p *Peer) setPlayer(slot int) { p.player.Store(int32(slot)) }

// Start launches the reader and writer goroutines.
func (p *Peer) Start() {
	go p.readLoop()
	go p.writeLoop()
}

// Send queues a frame without blocking. A peer whose queue is full is too
// slow to keep up with the match and is dropped.
func (p *Peer) Send(data []byte) {
	if p.closed.Load() {
		return
	}
	select {
	case p.OutQueue <- data:
	default:
		p.log.Warn("output queue full, dropping slow peer")
		p.Close()
	}
}

// Close shuts the peer down. It is safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.SetState(packet.StateClosing)
		close(p.closeCh)
		p.conn.Close()
	})
}

func (p *Peer) IsClosed() bool {
	return p.closed.Load()
}

// Flush makes the writer send every queued frame and then close the peer.
// Frames sent after Flush may be lost.
func (p *Peer) Flush() {
	p.flushOnce.Do(func() { close(p.flushCh) })
}

// Done is closed once the peer has shut down.
func (p *Peer) Done() <-chan struct{} { return p.closeCh }

func (p *Peer) readLoop() {
	defer p.Close()

	for {
		data, err := p.conn.ReadFrame()
		if err != nil {
			if !p.closed.Load() {
				p.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if p.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != p.pktResetAt {
				p.pktCount = 0
				p.pktResetAt = now
			}
			p.pktCount++
			if p.pktCount > p.pktPerSec {
				p.log.Warn("frame rate exceeded, disconnecting", zap.Int("pps", p.pktCount))
				return
			}
		}

		// Block rather than drop: a dropped frame could hold a confirmed
		// input that no later message repeats.
		select {
		case p.InQueue <- data:
		case <-p.closeCh:
			return
		}
	}
}

func (p *Peer) writeLoop() {
	defer p.Close()

	for {
		select {
		case data := <-p.OutQueue:
			if err := p.conn.WriteFrame(data); err != nil {
				if !p.closed.Load() {
					p.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-p.flushCh:
			p.drainOut()
			return
		case <-p.closeCh:
			return
		}
	}
}

func (p *Peer) drainOut() {
	for {
		select {
		case data := <-p.OutQueue:
			if err := p.conn.WriteFrame(data); err != nil {
				p.log.Debug("write error while flushing", zap.Error(err))
				return
			}
		default:
			return
		}
	}
}
