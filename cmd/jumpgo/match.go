package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jumpgo/server/internal/config"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/jumpgo/server/internal/match"
	"github.com/jumpgo/server/internal/persist"
	"github.com/jumpgo/server/internal/rollback"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// slots fills the first n input slots, cycling through the roster.
func slots(content *data.Content, n int) [input.MaxPlayers]input.PlayerInput {
	var out [input.MaxPlayers]input.PlayerInput
	for i := 0; i < n && i < input.MaxPlayers; i++ {
		out[i] = input.PlayerInput{
			Active: true,
			Player: data.PlayerHandle(i % max(content.Players.Count(), 1)),
			Hat:    data.HatHandle(i),
		}
	}
	return out
}

func sessionConfig(cfg *config.Config, content *data.Content, effects *item.Effects, id ulid.ULID) match.Config {
	return match.Config{
		ID:             id,
		Map:            cfg.Server.Map,
		TickRate:       cfg.Simulation.TickRate,
		Seed:           cfg.Server.Seed,
		MaxStatePasses: cfg.Simulation.MaxStateIterations,
		Players:        slots(content, cfg.Server.Players),
		Effects:        effects,
	}
}

// logEvents drains the session's queue. Nothing here plays audio, so sounds
// only reach the debug log.
func logEvents(s *match.Session, log *zap.Logger) {
	for _, snd := range s.DrainSounds() {
		log.Debug("sound", zap.String("sound", string(snd.Sound)), zap.Float64("volume", snd.Volume))
	}
	for _, died := range event.Drain[event.PlayerDied](s.Events()) {
		log.Info("player died", zap.Int("player", died.Player), zap.Uint64("tick", s.Tick()))
	}
	for _, ex := range event.Drain[event.Explosion](s.Events()) {
		log.Debug("explosion", zap.Float64("x", ex.Center.X), zap.Float64("y", ex.Center.Y), zap.Float64("radius", ex.Radius))
	}
}

// localControl samples the local slot. Without bots there is no device
// attached, so the slot idles.
func localControl(bot *input.Bot) input.PlayerControl {
	if bot == nil {
		return input.PlayerControl{}
	}
	return bot.Control()
}

func checksum(s *match.Session) (*uint64, error) {
	sum, err := s.Snapshot().Checksum()
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// ── Recording ─────────────────────────────────────────────────────

// recorder journals confirmed ticks into the replay database. A nil
// recorder records nothing.
type recorder struct {
	repo    *persist.ReplayRepo
	journal *persist.Journal
	id      ulid.ULID
	log     *zap.Logger
}

func startRecording(repo *persist.ReplayRepo, id ulid.ULID, cfg *config.Config, log *zap.Logger) (*recorder, error) {
	if repo == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := repo.CreateMatch(ctx, persist.MatchRow{
		ID:       id,
		Map:      cfg.Server.Map,
		Seed:     cfg.Server.Seed,
		TickRate: cfg.Simulation.TickRate,
		Players:  cfg.Server.Players,
	})
	if err != nil {
		return nil, err
	}
	j := persist.NewJournal(repo, id, 2*cfg.Simulation.TickRate, log)
	j.Start(context.Background(), time.Second)
	printOK("recording match " + id.String())
	return &recorder{repo: repo, journal: j, id: id, log: log}, nil
}

func (r *recorder) hook() rollback.ConfirmedFunc {
	if r == nil {
		return nil
	}
	return r.journal.Record
}

func (r *recorder) record(tick uint32, controls [input.MaxPlayers]input.PlayerControl) {
	if r != nil {
		r.journal.Record(tick, controls)
	}
}

// finish flushes the journal and closes the match row. sum is the checksum
// of the state after the last recorded tick, nil when unknown.
func (r *recorder) finish(sum *uint64) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.journal.Close(ctx); err != nil {
		r.log.Error("journal close failed", zap.Error(err))
	}
	ticks := r.journal.Recorded()
	if err := r.repo.EndMatch(ctx, r.id, ticks, sum); err != nil {
		r.log.Error("end match failed", zap.Error(err))
		return
	}
	r.log.Info("match recorded", zap.Stringer("match", r.id), zap.Uint32("ticks", ticks), zap.Int64("written", r.journal.Written()))
}

// ── Modes ─────────────────────────────────────────────────────────

// runLocal plays every slot on this process with no rollback.
func runLocal(cfg *config.Config, content *data.Content, effects *item.Effects, id ulid.ULID, repo *persist.ReplayRepo, log *zap.Logger) error {
	sess, err := match.New(content, sessionConfig(cfg, content, effects, id), log)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}
	rec, err := startRecording(repo, id, cfg, log)
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	var bots [input.MaxPlayers]*input.Bot
	for i := 0; i < cfg.Server.Players; i++ {
		if cfg.Server.Bots || i != cfg.Server.LocalPlayer {
			bots[i] = input.NewBot(cfg.Server.Seed + uint64(i) + 1)
		}
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(cfg.Simulation.TickDuration())
	defer ticker.Stop()

	printReady(fmt.Sprintf("local match %s on %s, %d players", id, cfg.Server.Map, cfg.Server.Players))

	for {
		select {
		case <-ticker.C:
			var controls [input.MaxPlayers]input.PlayerControl
			for i := 0; i < cfg.Server.Players; i++ {
				controls[i] = localControl(bots[i])
			}
			tick := uint32(sess.Tick())
			if err := sess.Advance(controls, false); err != nil {
				rec.finish(nil)
				return fmt.Errorf("advance: %w", err)
			}
			rec.record(tick, controls)
			logEvents(sess, log)
			if cfg.Simulation.MaxTicks > 0 && sess.Tick() >= uint64(cfg.Simulation.MaxTicks) {
				return endLocal(sess, rec, log)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			return endLocal(sess, rec, log)
		}
	}
}

func endLocal(sess *match.Session, rec *recorder, log *zap.Logger) error {
	sum, err := checksum(sess)
	if err != nil {
		log.Error("final checksum failed", zap.Error(err))
	}
	rec.finish(sum)
	log.Info("match ended", zap.Uint64("tick", sess.Tick()))
	return nil
}

// runReplay re-simulates a recorded match and checks it lands on the
// recorded checksum.
func runReplay(cfg *config.Config, content *data.Content, effects *item.Effects, id ulid.ULID, repo *persist.ReplayRepo, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	row, err := repo.LoadMatch(ctx, id)
	if err != nil {
		return err
	}
	inputs, err := repo.LoadInputs(ctx, id)
	if err != nil {
		return err
	}

	sess, err := match.New(content, match.Config{
		ID:             id,
		Map:            row.Map,
		TickRate:       row.TickRate,
		Seed:           row.Seed,
		MaxStatePasses: cfg.Simulation.MaxStateIterations,
		Players:        slots(content, row.Players),
		Effects:        effects,
	}, log)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	start := time.Now()
	for i, in := range inputs {
		if in.Tick != uint32(i) {
			return eris.Errorf("replay %s: tick %d recorded at position %d", id, in.Tick, i)
		}
		controls, err := persist.DecodeControls(in.Controls)
		if err != nil {
			return eris.Wrapf(err, "replay %s: tick %d", id, in.Tick)
		}
		if err := sess.Advance(controls, true); err != nil {
			return err
		}
	}
	sum, err := checksum(sess)
	if err != nil {
		return err
	}
	log.Info("replay finished",
		zap.Stringer("match", id),
		zap.Int("ticks", len(inputs)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("checksum", *sum),
	)

	if row.Checksum == nil || row.FinalTick == nil || *row.FinalTick != uint32(len(inputs)) {
		printOK("replay complete, no checksum to compare")
		return nil
	}
	if *row.Checksum != *sum {
		return eris.Wrapf(rollback.ErrDesyncDetected, "replay %s: recorded %x, replayed %x", id, *row.Checksum, *sum)
	}
	printOK("replay matches the recorded checksum")
	return nil
}
