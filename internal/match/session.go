// Package match assembles one playable session: a world, its stage
// pipeline, the player state machine and the level. Sessions share only
// read-only content, so any number can run side by side.
package match

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/jumpgo/server/internal/physics"
	"github.com/jumpgo/server/internal/player"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var ErrUnknownMap = eris.New("unknown map")

// Config selects what a session plays.
type Config struct {
	ID             ulid.ULID
	Map            string
	TickRate       int
	Seed           uint64
	MaxStatePasses int // 0 derives the cap from the state count
	Players        [input.MaxPlayers]input.PlayerInput
	States         []player.State // content states, installed after the built-ins
	Effects        *item.Effects
}

// Session is one running match.
type Session struct {
	id       ulid.ULID
	world    *ecs.World
	pipeline *system.Pipeline
	stage    *player.StateStage
	env      *item.Env
	mapMeta  *data.MapMeta
	players  [input.MaxPlayers]input.PlayerInput
	log      *zap.Logger
}

// RegisterComponents registers every simulation component in a fixed
// order. The order is the snapshot layout, so peers must agree on it.
func RegisterComponents(w *ecs.World) {
	ecs.Register[component.Transform](w)
	ecs.Register[component.KinematicBody](w)
	ecs.Register[component.Solid](w)
	ecs.Register[component.PlayerState](w)
	ecs.Register[component.PlayerIdx](w)
	ecs.Register[component.PlayerHandles](w)
	ecs.Register[component.Inventory](w)
	ecs.Register[component.PlayerKilled](w)
	ecs.Register[component.Incapacitated](w)
	ecs.Register[component.Sprite](w)
	ecs.Register[component.Item](w)
	ecs.Register[component.Fuse](w)
}

// New builds a session and loads its map. Players spawn during the first
// tick.
func New(content *data.Content, cfg Config, log *zap.Logger) (*Session, error) {
	if cfg.TickRate <= 0 {
		return nil, eris.Errorf("tick rate must be positive, got %d", cfg.TickRate)
	}
	mapMeta, ok := content.Maps.Get(cfg.Map)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownMap, "%q", cfg.Map)
	}
	if len(mapMeta.PlayerSpawns) == 0 {
		return nil, eris.Wrapf(data.ErrNoPlayerSpawns, "map %q", cfg.Map)
	}
	if cfg.ID == (ulid.ULID{}) {
		cfg.ID = ulid.Make()
	}
	effects := cfg.Effects
	if effects == nil {
		effects = item.NewEffects()
	}

	s := &Session{
		id:      cfg.ID,
		world:   ecs.NewWorld(),
		env:     &item.Env{Content: content, Effects: effects},
		mapMeta: mapMeta,
		players: cfg.Players,
		log:     log.With(zap.Stringer("match", cfg.ID)),
	}

	w := s.world
	RegisterComponents(w)
	ecs.SetRollbackResource(w, component.Time{Delta: 1 / float64(cfg.TickRate)})
	ecs.SetRollbackResource(w, ecs.NewRng(cfg.Seed))
	ecs.SetResource(w, input.MatchInputs{Players: cfg.Players})
	ecs.SetResource(w, *event.NewQueue())

	if err := s.buildPipeline(cfg); err != nil {
		return nil, err
	}
	if err := s.loadMap(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) buildPipeline(cfg Config) error {
	p := system.NewPipeline()
	if err := p.ReplaceStage(system.Last, system.NewParallelStage()); err != nil {
		return err
	}

	states := player.NewRegistry()
	for _, st := range player.Builtins(s.env) {
		if err := states.Register(st); err != nil {
			return err
		}
	}
	for _, st := range cfg.States {
		if err := states.Register(st); err != nil {
			return eris.Wrap(err, "register content state")
		}
	}
	s.stage = player.NewStateStage(cfg.MaxStatePasses, s.log)
	if err := states.Install(p, s.stage, s.env); err != nil {
		return err
	}

	game := s.env.Content.Game
	adds := []struct {
		stage system.Label
		sys   system.System
	}{
		{system.First, s.respawnSystem()},
		{system.Update, physics.System(game)},
		{system.Update, s.env.FuseSystem()},
		{system.Update, s.env.ImpactSystem()},
		{system.PostUpdate, item.FollowHolderSystem()},
		{system.Last, clockSystem()},
	}
	for _, a := range adds {
		if err := p.AddSystemToStage(a.stage, a.sys); err != nil {
			return err
		}
	}
	if err := p.Validate(); err != nil {
		return eris.Wrap(err, "validate pipeline")
	}
	s.pipeline = p
	return nil
}

func clockSystem() system.System {
	return system.New("clock", func(w *ecs.World) error {
		ecs.Res[component.Time](w).Tick++
		return nil
	}, system.Write[component.Time]())
}

// ID returns the match id.
func (s *Session) ID() ulid.ULID { return s.id }

// World exposes the world for read-only inspection by renderers and tests.
func (s *Session) World() *ecs.World { return s.world }

// StateStage returns the player state stage.
func (s *Session) StateStage() *player.StateStage { return s.stage }

// Tick returns the number of ticks simulated.
func (s *Session) Tick() uint64 { return ecs.Res[component.Time](s.world).Tick }

// Advance runs one tick with the given controls. While replaying, events
// are dropped: their effects were already delivered when the tick first ran.
func (s *Session) Advance(controls [input.MaxPlayers]input.PlayerControl, replaying bool) error {
	inputs := ecs.Res[input.MatchInputs](s.world)
	*inputs = input.MatchInputs{Players: s.players}
	inputs.SetControls(controls)

	q := ecs.Res[event.Queue](s.world)
	q.SetMuted(replaying)
	defer q.SetMuted(false)

	if err := s.pipeline.Run(s.world); err != nil {
		return eris.Wrapf(err, "tick %d", s.Tick())
	}
	return nil
}

// Snapshot captures the session's world.
func (s *Session) Snapshot() *ecs.Snapshot { return s.world.Snapshot() }

// Restore replaces the session's world state with snap.
func (s *Session) Restore(snap *ecs.Snapshot) error { return s.world.Restore(snap) }

// DrainSounds returns the sounds queued since the last drain.
func (s *Session) DrainSounds() []event.PlaySound {
	return event.Drain[event.PlaySound](ecs.Res[event.Queue](s.world))
}

// Events returns the session's event queue for other event kinds.
func (s *Session) Events() *event.Queue { return ecs.Res[event.Queue](s.world) }
