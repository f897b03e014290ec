package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jumpgo/server/internal/config"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/jumpgo/server/internal/match"
	gonet "github.com/jumpgo/server/internal/net"
	"github.com/jumpgo/server/internal/persist"
	"github.com/jumpgo/server/internal/rollback"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// earlyTransport hands the driver messages that arrived while the
// handshake was still completing.
type earlyTransport struct {
	rollback.Transport
	early []rollback.Message
}

func (t *earlyTransport) Receive() ([]rollback.Message, error) {
	msgs, err := t.Transport.Receive()
	if t.early != nil {
		msgs = append(t.early, msgs...)
		t.early = nil
	}
	return msgs, err
}

func peerOptions(cfg config.NetworkConfig) gonet.PeerOptions {
	return gonet.PeerOptions{
		InQueue:          cfg.InQueueSize,
		OutQueue:         cfg.OutQueueSize,
		PacketsPerSecond: cfg.PacketsPerSecond,
	}
}

// connect adds the remote peer to t: by accepting it as host, or by dialing
// the host.
func connect(cfg *config.Config, t *gonet.Transport, id ulid.ULID, log *zap.Logger) (func(), error) {
	opts := peerOptions(cfg.Network)
	websocket := cfg.Network.Transport == "websocket"

	if cfg.Server.Mode == "join" {
		var (
			p   *gonet.Peer
			err error
		)
		if websocket {
			p, err = gonet.DialWebSocket(cfg.Server.PeerAddress, opts, log)
		} else {
			p, err = gonet.Dial(cfg.Server.PeerAddress, opts, log)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "dial %s", cfg.Server.PeerAddress)
		}
		t.AddPeer(p)
		printOK("connected to " + cfg.Server.PeerAddress)
		return func() {}, nil
	}

	srv, err := gonet.NewServer(cfg.Network.BindAddress, opts, log)
	if err != nil {
		return nil, eris.Wrapf(err, "listen %s", cfg.Network.BindAddress)
	}
	if websocket {
		go srv.ServeWebSocket(cfg.Network.WebSocketPath)
	} else {
		go srv.AcceptLoop()
	}
	printReady(fmt.Sprintf("hosting match %s on %s (%s)", id, srv.Addr(), cfg.Network.Transport))

	select {
	case p := <-srv.NewPeers():
		t.AddPeer(p)
	case <-time.After(cfg.Network.HandshakeTimeout):
		srv.Shutdown()
		return nil, eris.New("no peer connected before the handshake timeout")
	}
	return srv.Shutdown, nil
}

// handshake waits until every peer has greeted us, keeping any game
// messages that arrive in the meantime.
func handshake(t *gonet.Transport, timeout time.Duration) ([]rollback.Message, error) {
	deadline := time.Now().Add(timeout)
	var early []rollback.Message
	for !t.Ready() {
		if time.Now().After(deadline) {
			return nil, eris.New("handshake timed out")
		}
		msgs, err := t.Receive()
		if err != nil {
			return nil, err
		}
		early = append(early, msgs...)
		for _, p := range t.Peers() {
			if p.IsClosed() {
				return nil, eris.Errorf("peer %d closed during handshake", p.ID)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return early, nil
}

// runNetplay plays one slot against a remote peer through the rollback
// driver.
func runNetplay(cfg *config.Config, content *data.Content, effects *item.Effects, id ulid.ULID, repo *persist.ReplayRepo, log *zap.Logger) error {
	sess, err := match.New(content, sessionConfig(cfg, content, effects, id), log)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	transport := gonet.NewTransport(gonet.Hello{
		Version: gonet.ProtocolVersion,
		Player:  uint8(cfg.Server.LocalPlayer),
		Match:   id,
	}, log)
	stopServer, err := connect(cfg, transport, id, log)
	if err != nil {
		return err
	}
	defer stopServer()
	defer transport.Close()

	early, err := handshake(transport, cfg.Network.HandshakeTimeout)
	if err != nil {
		return err
	}

	var active [input.MaxPlayers]bool
	for i := 0; i < cfg.Server.Players; i++ {
		active[i] = true
	}
	driver, err := rollback.NewDriver(sess, &earlyTransport{Transport: transport, early: early}, rollback.Config{
		LocalPlayer:    cfg.Server.LocalPlayer,
		Active:         active,
		InputDelay:     cfg.Rollback.InputDelay,
		MaxPrediction:  cfg.Rollback.MaxPrediction,
		InputTimeout:   cfg.Rollback.InputTimeout,
		DesyncInterval: cfg.Rollback.DesyncInterval,
		Redundancy:     cfg.Rollback.Redundancy,
	}, log)
	if err != nil {
		return err
	}

	rec, err := startRecording(repo, id, cfg, log)
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	driver.SetConfirmedHook(rec.hook())

	var bot *input.Bot
	if cfg.Server.Bots {
		bot = input.NewBot(cfg.Server.Seed + uint64(cfg.Server.LocalPlayer) + 1)
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(cfg.Simulation.TickDuration())
	defer ticker.Stop()

	printReady(fmt.Sprintf("match %s started as player %d", id, cfg.Server.LocalPlayer))

	var matchErr error
loop:
	for {
		select {
		case <-ticker.C:
			err := driver.Update(localControl(bot))
			switch {
			case err == nil:
			case eris.Is(err, rollback.ErrPredictionThreshold):
				log.Debug("waiting for remote input", zap.Uint32("tick", driver.Tick()))
			default:
				matchErr = err
				break loop
			}
			logEvents(sess, log)
			if cfg.Simulation.MaxTicks > 0 && driver.ConfirmedTick() >= uint32(cfg.Simulation.MaxTicks) {
				break loop
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			break loop
		}
	}

	// The live state is only final when nothing is predicted.
	var sum *uint64
	if driver.State() == rollback.Running && driver.Tick() == driver.ConfirmedTick() {
		if sum, err = checksum(sess); err != nil {
			log.Error("final checksum failed", zap.Error(err))
		}
	}
	rec.finish(sum)

	log.Info("match ended",
		zap.Stringer("state", driver.State()),
		zap.Uint32("tick", driver.Tick()),
		zap.Uint32("confirmed", driver.ConfirmedTick()),
		zap.Int("rollbacks", driver.Rollbacks()),
		zap.Int("resimulated", driver.ResimulatedTicks()),
	)
	driver.Close()
	if matchErr != nil && !eris.Is(matchErr, rollback.ErrNetworkInputTimeout) {
		return matchErr
	}
	return nil
}
