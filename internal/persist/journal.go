package persist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/net/packet"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// controlsFormat leads every encoded InputRow.Controls blob.
const controlsFormat = 1

// ErrControlsFormat is returned for blobs DecodeControls cannot read.
var ErrControlsFormat = eris.New("unknown controls format")

// InputStore is where the journal sends confirmed ticks. ReplayRepo
// implements it.
type InputStore interface {
	AppendInputs(ctx context.Context, match ulid.ULID, rows []InputRow) error
}

// EncodeControls packs the controls of every slot for one tick.
func EncodeControls(controls [input.MaxPlayers]input.PlayerControl) []byte {
	w := packet.NewWriterWithOpcode(controlsFormat)
	for _, c := range controls {
		input.WriteControl(w, c)
	}
	return w.Bytes()
}

func DecodeControls(b []byte) ([input.MaxPlayers]input.PlayerControl, error) {
	var out [input.MaxPlayers]input.PlayerControl
	r := packet.NewReader(b)
	if r.Opcode() != controlsFormat {
		return out, eris.Wrapf(ErrControlsFormat, "format %d", r.Opcode())
	}
	for i := range out {
		out[i] = input.ReadControl(r)
	}
	if err := r.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Journal buffers confirmed ticks off the simulation goroutine and writes
// them to an InputStore in batches. Record never blocks on the store.
type Journal struct {
	store InputStore
	match ulid.ULID
	batch int
	log   *zap.Logger

	mu      sync.Mutex
	pending []InputRow
	next    uint32 // first tick Record has not seen

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	written atomic.Int64
}

func NewJournal(store InputStore, match ulid.ULID, batch int, log *zap.Logger) *Journal {
	if batch <= 0 {
		batch = 120
	}
	return &Journal{
		store: store,
		match: match,
		batch: batch,
		log:   log,
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Record queues the confirmed controls of tick. Its signature matches
// rollback.ConfirmedFunc. Ticks must arrive in order without gaps; anything
// else is dropped with a warning.
func (j *Journal) Record(tick uint32, controls [input.MaxPlayers]input.PlayerControl) {
	j.mu.Lock()
	if tick != j.next {
		j.mu.Unlock()
		j.log.Warn("journal: out of order tick dropped",
			zap.Uint32("tick", tick), zap.Uint32("expected", j.next))
		return
	}
	j.next++
	j.pending = append(j.pending, InputRow{Tick: tick, Controls: EncodeControls(controls)})
	full := len(j.pending) >= j.batch
	j.mu.Unlock()

	if full {
		select {
		case j.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of ticks not yet written.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Recorded returns the number of ticks accepted by Record.
func (j *Journal) Recorded() uint32 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Written returns the number of ticks the store accepted.
func (j *Journal) Written() int64 { return j.written.Load() }

// Flush writes everything pending. On failure the rows stay queued ahead of
// anything recorded since, so the next flush retries them.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	rows := j.pending
	j.pending = nil
	j.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}

	if err := j.store.AppendInputs(ctx, j.match, rows); err != nil {
		j.mu.Lock()
		j.pending = append(rows, j.pending...)
		j.mu.Unlock()
		return eris.Wrapf(err, "journal flush of %d ticks", len(rows))
	}
	j.written.Add(int64(len(rows)))
	return nil
}

// Start runs the flush loop until Close or ctx is done.
func (j *Journal) Start(ctx context.Context, interval time.Duration) {
	j.running.Store(true)
	go j.run(ctx, interval)
}

func (j *Journal) run(ctx context.Context, interval time.Duration) {
	defer close(j.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
		case <-j.kick:
		}
		if err := j.Flush(ctx); err != nil {
			j.log.Error("journal flush failed", zap.Error(err), zap.Int("pending", j.Pending()))
		}
	}
}

// Close stops the flush loop and writes what is left.
func (j *Journal) Close(ctx context.Context) error {
	j.stopOnce.Do(func() { close(j.stop) })
	if j.running.Load() {
		<-j.done
	}
	return j.Flush(ctx)
}
