// Package rollback drives a deterministic game over an unreliable network.
// Every peer simulates every player. Missing remote input is predicted; when
// the real input arrives and differs, the game is restored to the snapshot
// taken before the mispredicted tick and re-advanced to the present.
package rollback

import (
	"fmt"
	"math"
	"slices"

	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/input"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	ErrNetworkInputTimeout = eris.New("network input timeout")
	ErrPredictionThreshold = eris.New("prediction threshold reached")
	ErrDesyncDetected      = eris.New("desync detected")
	ErrDriverStopped       = eris.New("rollback driver stopped")
)

// checksumHistory is how many local checksums are kept for comparison with
// slower peers.
const checksumHistory = 64

// Game is the simulation the driver advances. Advance must be a pure
// function of the current state and controls.
type Game interface {
	Advance(controls [input.MaxPlayers]input.PlayerControl, replaying bool) error
	Snapshot() *ecs.Snapshot
	Restore(snap *ecs.Snapshot) error
}

// State is the driver's match state.
type State int

const (
	Running State = iota
	Disconnected
	Desynced
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Disconnected:
		return "disconnected"
	case Desynced:
		return "desynced"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config tunes one driver.
type Config struct {
	LocalPlayer    int
	Active         [input.MaxPlayers]bool
	InputDelay     int // ticks between sampling local input and simulating it
	MaxPrediction  int // speculative ticks allowed ahead of confirmed input
	InputTimeout   int // stalled updates tolerated before the match is dropped; 0 waits forever
	DesyncInterval int // confirmed ticks between checksum exchanges; 0 disables
	Redundancy     int // controls repeated in every input message
}

func (c Config) validate() error {
	if c.LocalPlayer < 0 || c.LocalPlayer >= input.MaxPlayers || !c.Active[c.LocalPlayer] {
		return eris.Errorf("local player %d is not an active slot", c.LocalPlayer)
	}
	if c.MaxPrediction < 1 {
		return eris.Errorf("max prediction must be at least 1, got %d", c.MaxPrediction)
	}
	if c.InputDelay < 0 || c.InputTimeout < 0 || c.DesyncInterval < 0 {
		return eris.New("input delay, input timeout and desync interval must not be negative")
	}
	return nil
}

// ConfirmedFunc receives the final controls of every tick once, in order.
type ConfirmedFunc func(tick uint32, controls [input.MaxPlayers]input.PlayerControl)

type frame struct {
	tick     uint32
	snapshot *ecs.Snapshot // state at the start of tick
	controls [input.MaxPlayers]input.PlayerControl
}

// Driver runs the rollback loop for one match. It is not safe for
// concurrent use; call Update once per frame from the match goroutine.
type Driver struct {
	game      Game
	transport Transport
	cfg       Config
	log       *zap.Logger

	queues [input.MaxPlayers]*inputQueue
	frames []frame

	tick       uint32 // next tick to simulate
	confirmed  uint32 // every tick below has final controls
	rollbackTo uint32
	mispredict bool
	stalled    int
	state      State

	sums       map[uint32]uint64
	remoteSums map[uint32]map[int]uint64

	onConfirmed ConfirmedFunc

	rollbacks   int
	resimulated int
}

func NewDriver(game Game, transport Transport, cfg Config, log *zap.Logger) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Redundancy = max(cfg.Redundancy, 1)

	d := &Driver{
		game:       game,
		transport:  transport,
		cfg:        cfg,
		log:        log.With(zap.Int("local_player", cfg.LocalPlayer)),
		frames:     make([]frame, cfg.MaxPrediction+2),
		sums:       make(map[uint32]uint64),
		remoteSums: make(map[uint32]map[int]uint64),
	}
	for p := range d.queues {
		d.queues[p] = &inputQueue{frozen: !cfg.Active[p]}
	}
	local := d.queues[cfg.LocalPlayer]
	for i := 0; i < cfg.InputDelay; i++ {
		local.push(input.PlayerControl{})
	}
	return d, nil
}

// SetConfirmedHook installs fn to receive confirmed controls.
func (d *Driver) SetConfirmedHook(fn ConfirmedFunc) { d.onConfirmed = fn }

// Tick returns the next tick to be simulated.
func (d *Driver) Tick() uint32 { return d.tick }

// ConfirmedTick returns the first tick whose controls are not yet final.
func (d *Driver) ConfirmedTick() uint32 { return d.confirmed }

func (d *Driver) State() State { return d.state }

// Rollbacks returns how many rollbacks were carried out.
func (d *Driver) Rollbacks() int { return d.rollbacks }

// ResimulatedTicks returns how many ticks were advanced again by rollbacks.
func (d *Driver) ResimulatedTicks() int { return d.resimulated }

// Update runs one frame: it reads the network, queues local for tick
// Tick()+InputDelay, repairs mispredictions and advances one tick.
// ErrPredictionThreshold means the frame stalled waiting for remote input and
// is not fatal. Every other error ends the match.
func (d *Driver) Update(local input.PlayerControl) error {
	if d.state != Running {
		return eris.Wrapf(ErrDriverStopped, "match is %s", d.state)
	}
	if err := d.poll(); err != nil {
		return d.fail(err)
	}
	if err := d.sendLocal(local); err != nil {
		return d.fail(err)
	}
	if err := d.repair(); err != nil {
		return d.fail(err)
	}

	advErr := d.advance()
	if advErr != nil && !eris.Is(advErr, ErrPredictionThreshold) {
		return advErr
	}
	if err := d.confirm(); err != nil {
		return err
	}
	return advErr
}

// DisconnectPlayer freezes player p's input at its last confirmed control
// with edges cleared. Frozen input counts as confirmed, and later messages
// from p are ignored.
func (d *Driver) DisconnectPlayer(p int) error {
	if p < 0 || p >= input.MaxPlayers {
		return eris.Errorf("player %d out of range", p)
	}
	if p == d.cfg.LocalPlayer {
		return eris.Errorf("cannot disconnect the local player %d", p)
	}
	q := d.queues[p]
	if q.frozen {
		return nil
	}
	q.frozen = true
	d.log.Info("player disconnected",
		zap.Int("player", p),
		zap.Uint32("tick", d.tick),
		zap.Uint32("last_input_tick", q.next()),
	)
	return nil
}

// Close drops every buffered snapshot and stops the driver.
func (d *Driver) Close() {
	d.frames = nil
	d.state = Closed
}

// fail marks the match failed unless an earlier error already ended it.
func (d *Driver) fail(err error) error {
	if d.state == Running {
		d.state = Failed
		d.log.Error("match failed", zap.Error(err), zap.Uint32("tick", d.tick))
	}
	return err
}

func (d *Driver) poll() error {
	msgs, err := d.transport.Receive()
	if err != nil {
		return eris.Wrap(err, "receive")
	}
	for _, m := range msgs {
		switch m := m.(type) {
		case InputMessage:
			d.onInput(m)
		case ChecksumMessage:
			if err := d.onChecksum(m); err != nil {
				return err
			}
		case DisconnectMessage:
			if p := int(m.Player); p != d.cfg.LocalPlayer {
				if err := d.DisconnectPlayer(p); err != nil {
					d.log.Warn("bad disconnect message", zap.Error(err))
				}
			}
		}
	}
	return nil
}

func (d *Driver) remote(p int) bool {
	return p >= 0 && p < input.MaxPlayers && p != d.cfg.LocalPlayer && d.cfg.Active[p]
}

func (d *Driver) onInput(m InputMessage) {
	p := int(m.Player)
	if !d.remote(p) || d.queues[p].frozen {
		return
	}
	q := d.queues[p]
	for i, c := range m.Controls {
		t := m.StartTick + uint32(i)
		if t < q.next() {
			continue
		}
		if t > q.next() {
			// A gap: a later redundant message will fill it.
			break
		}
		q.push(c)
		if t < d.tick && d.frames[t%uint32(len(d.frames))].controls[p] != c {
			d.markMisprediction(t)
		}
	}
}

func (d *Driver) markMisprediction(t uint32) {
	if !d.mispredict || t < d.rollbackTo {
		d.rollbackTo = t
	}
	d.mispredict = true
}

func (d *Driver) sendLocal(c input.PlayerControl) error {
	q := d.queues[d.cfg.LocalPlayer]
	if q.next() == d.tick+uint32(d.cfg.InputDelay) {
		q.push(c)
	}
	start, controls := q.recent(d.cfg.Redundancy)
	if len(controls) == 0 {
		return nil
	}
	msg := InputMessage{Player: uint8(d.cfg.LocalPlayer), StartTick: start, Controls: controls}
	if err := d.transport.Send(msg); err != nil {
		return eris.Wrap(err, "send input")
	}
	return nil
}

func (d *Driver) controls(t uint32) [input.MaxPlayers]input.PlayerControl {
	var out [input.MaxPlayers]input.PlayerControl
	for p, q := range d.queues {
		if d.cfg.Active[p] {
			out[p] = q.control(t)
		}
	}
	return out
}

// step snapshots the game, then advances tick t.
func (d *Driver) step(t uint32, replaying bool) error {
	f := &d.frames[t%uint32(len(d.frames))]
	f.tick = t
	f.snapshot = d.game.Snapshot()
	f.controls = d.controls(t)
	if err := d.game.Advance(f.controls, replaying); err != nil {
		return eris.Wrapf(err, "advance tick %d", t)
	}
	return nil
}

// repair rolls back to the earliest mispredicted tick and resimulates up to
// the present in increasing tick order.
func (d *Driver) repair() error {
	if !d.mispredict {
		return nil
	}
	d.mispredict = false
	from := d.rollbackTo
	f := d.frames[from%uint32(len(d.frames))]
	if f.tick != from || f.snapshot == nil {
		d.log.Error("rollback aborted", zap.Uint32("from", from), zap.String("reason", "snapshot evicted"))
		return nil
	}
	if err := d.game.Restore(f.snapshot); err != nil {
		d.log.Error("rollback aborted",
			zap.Error(eris.Wrapf(err, "restore tick %d", from)),
			zap.Uint32("from", from),
			zap.Uint32("tick", d.tick),
		)
		return nil
	}
	d.rollbacks++
	for t := from; t < d.tick; t++ {
		if err := d.step(t, true); err != nil {
			return err
		}
		d.resimulated++
	}
	d.log.Debug("rolled back", zap.Uint32("from", from), zap.Uint32("to", d.tick))
	return nil
}

// inputsUntil is the first tick for which some player's control may still
// change.
func (d *Driver) inputsUntil() uint32 {
	until := uint32(math.MaxUint32)
	for _, q := range d.queues {
		until = min(until, q.confirmedUntil())
	}
	return until
}

func (d *Driver) advance() error {
	until := d.inputsUntil()
	if uint64(d.tick) >= uint64(until)+uint64(d.cfg.MaxPrediction) {
		d.stalled++
		if d.cfg.InputTimeout > 0 && d.stalled > d.cfg.InputTimeout {
			var waiting []int
			for p, q := range d.queues {
				if q.confirmedUntil() == until {
					waiting = append(waiting, p)
				}
			}
			d.state = Disconnected
			err := eris.Wrapf(ErrNetworkInputTimeout, "tick %d: no input from players %v for %d updates",
				d.tick, waiting, d.stalled)
			d.log.Error("match dropped", zap.Error(err), zap.Ints("players", waiting))
			return err
		}
		return eris.Wrapf(ErrPredictionThreshold, "tick %d, confirmed input until %d", d.tick, until)
	}
	d.stalled = 0
	if err := d.step(d.tick, false); err != nil {
		return d.fail(err)
	}
	d.tick++
	return nil
}

// confirm walks the ticks whose controls just became final.
func (d *Driver) confirm() error {
	upTo := min(d.inputsUntil(), d.tick)
	for ; d.confirmed < upTo; d.confirmed++ {
		t := d.confirmed
		if d.onConfirmed != nil {
			d.onConfirmed(t, d.controls(t))
		}
		if d.cfg.DesyncInterval > 0 && t%uint32(d.cfg.DesyncInterval) == 0 {
			if err := d.exchangeChecksum(t); err != nil {
				return err
			}
		}
	}
	for p, q := range d.queues {
		keep := d.confirmed
		if p == d.cfg.LocalPlayer {
			keep = min(keep, q.next()-min(q.next(), uint32(d.cfg.Redundancy)))
		}
		q.trim(keep)
	}
	return nil
}

// stateAfter returns the snapshot of the game after tick t, t < d.tick.
func (d *Driver) stateAfter(t uint32) *ecs.Snapshot {
	if t+1 == d.tick {
		return d.game.Snapshot()
	}
	return d.frames[(t+1)%uint32(len(d.frames))].snapshot
}

func (d *Driver) exchangeChecksum(t uint32) error {
	sum, err := d.stateAfter(t).Checksum()
	if err != nil {
		return d.fail(eris.Wrapf(err, "checksum tick %d", t))
	}
	d.sums[t] = sum
	if window := checksumHistory * uint32(d.cfg.DesyncInterval); t >= window {
		delete(d.sums, t-window)
		for old := range d.remoteSums {
			if old < t-window {
				delete(d.remoteSums, old)
			}
		}
	}
	msg := ChecksumMessage{Player: uint8(d.cfg.LocalPlayer), Tick: t, Sum: sum}
	if err := d.transport.Send(msg); err != nil {
		return d.fail(eris.Wrap(err, "send checksum"))
	}
	return d.compareChecksums(t)
}

func (d *Driver) onChecksum(m ChecksumMessage) error {
	p := int(m.Player)
	if !d.remote(p) {
		return nil
	}
	if _, ok := d.remoteSums[m.Tick]; !ok {
		d.remoteSums[m.Tick] = make(map[int]uint64)
	}
	d.remoteSums[m.Tick][p] = m.Sum
	return d.compareChecksums(m.Tick)
}

func (d *Driver) compareChecksums(t uint32) error {
	local, ok := d.sums[t]
	remote := d.remoteSums[t]
	if !ok || len(remote) == 0 {
		return nil
	}
	delete(d.remoteSums, t)
	var bad []int
	for p, sum := range remote {
		if sum != local {
			bad = append(bad, p)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	slices.Sort(bad)
	d.state = Desynced
	err := eris.Wrapf(ErrDesyncDetected, "tick %d: players %v disagree", t, bad)
	d.log.Error("desync", zap.Error(err), zap.Uint64("local_sum", local))
	return err
}
