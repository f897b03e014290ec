package net

import (
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server accepts peers over TCP and, through ServeHTTP, over WebSocket.
// New peers are handed to the match loop via a channel.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newPeers chan *Peer
	opts     PeerOptions
	upgrader websocket.Upgrader
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(bindAddr string, opts PeerOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		newPeers: make(chan *Peer, 16),
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		closeCh: make(chan struct{}),
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.admit(NewTCPConn(conn))
	}
}

// ServeWebSocket serves WebSocket peers on path instead of raw TCP. It runs
// in its own goroutine until Shutdown.
func (s *Server) ServeWebSocket(path string) {
	mux := http.NewServeMux()
	mux.Handle(path, s)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.Serve(s.listener); err != nil {
		select {
		case <-s.closeCh:
		default:
			s.log.Error("websocket server stopped", zap.Error(err))
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket peer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	s.admit(NewWSConn(conn))
}

func (s *Server) admit(conn FrameConn) {
	p := NewPeer(conn, s.nextID.Add(1), s.opts, s.log)
	p.Start()
	s.log.Info("peer connected", zap.Uint64("peer", p.ID), zap.String("addr", p.Addr))

	select {
	case s.newPeers <- p:
	default:
		s.log.Warn("peer queue full, rejecting connection")
		p.Close()
	}
}

// NewPeers returns the channel of newly connected peers.
func (s *Server) NewPeers() <-chan *Peer {
	return s.newPeers
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Dial connects to a TCP server.
func Dial(addr string, opts PeerOptions, log *zap.Logger) (*Peer, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	p := NewPeer(NewTCPConn(conn), 0, opts, log)
	p.Start()
	return p, nil
}

// DialWebSocket connects to a WebSocket endpoint such as ws://host/match.
func DialWebSocket(url string, opts PeerOptions, log *zap.Logger) (*Peer, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	p := NewPeer(NewWSConn(conn), 0, opts, log)
	p.Start()
	return p, nil
}
