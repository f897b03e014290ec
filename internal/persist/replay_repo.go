package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
)

// ErrMatchNotFound is returned when a match id has no row.
var ErrMatchNotFound = eris.New("match not found")

// MatchRow is one recorded match.
type MatchRow struct {
	ID        ulid.ULID
	Map       string
	Seed      uint64
	TickRate  int
	Players   int
	StartedAt time.Time
	EndedAt   *time.Time
	FinalTick *uint32
	Checksum  *uint64
}

// InputRow holds the confirmed controls of every slot for one tick, packed by
// EncodeControls.
type InputRow struct {
	Tick     uint32
	Controls []byte
}

type ReplayRepo struct {
	store *Store
}

func NewReplayRepo(store *Store) *ReplayRepo {
	return &ReplayRepo{store: store}
}

func (r *ReplayRepo) CreateMatch(ctx context.Context, m MatchRow) error {
	_, err := r.store.pool.Exec(ctx,
		`INSERT INTO matches (id, map_name, seed, tick_rate, players)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID.String(), m.Map, int64(m.Seed), m.TickRate, m.Players,
	)
	if err != nil {
		return eris.Wrapf(err, "create match %s", m.ID)
	}
	return nil
}

// AppendInputs writes a batch of confirmed ticks in a single transaction.
// Either every row lands or none does.
func (r *ReplayRepo) AppendInputs(ctx context.Context, match ulid.ULID, rows []InputRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "inputs begin")
	}
	defer tx.Rollback(ctx)

	id := match.String()
	for _, row := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO match_inputs (match_id, tick, controls) VALUES ($1, $2, $3)`,
			id, int64(row.Tick), row.Controls,
		); err != nil {
			return eris.Wrapf(err, "insert tick %d", row.Tick)
		}
	}
	return tx.Commit(ctx)
}

// EndMatch stamps the number of recorded ticks and, when the state after the
// last of them is known, its checksum.
func (r *ReplayRepo) EndMatch(ctx context.Context, match ulid.ULID, finalTick uint32, checksum *uint64) error {
	var sum *int64
	if checksum != nil {
		v := int64(*checksum)
		sum = &v
	}
	tag, err := r.store.pool.Exec(ctx,
		`UPDATE matches SET ended_at = NOW(), final_tick = $2, checksum = $3 WHERE id = $1`,
		match.String(), int64(finalTick), sum,
	)
	if err != nil {
		return eris.Wrapf(err, "end match %s", match)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrMatchNotFound, "end match %s", match)
	}
	return nil
}

func (r *ReplayRepo) LoadMatch(ctx context.Context, match ulid.ULID) (*MatchRow, error) {
	var (
		m         MatchRow
		seed      int64
		finalTick *int64
		checksum  *int64
	)
	err := r.store.pool.QueryRow(ctx,
		`SELECT map_name, seed, tick_rate, players, started_at, ended_at, final_tick, checksum
		 FROM matches WHERE id = $1`, match.String(),
	).Scan(&m.Map, &seed, &m.TickRate, &m.Players, &m.StartedAt, &m.EndedAt, &finalTick, &checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrMatchNotFound, "load match %s", match)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "load match %s", match)
	}
	m.ID = match
	m.Seed = uint64(seed)
	if finalTick != nil {
		v := uint32(*finalTick)
		m.FinalTick = &v
	}
	if checksum != nil {
		v := uint64(*checksum)
		m.Checksum = &v
	}
	return &m, nil
}

// LoadInputs returns every recorded tick of a match in tick order.
func (r *ReplayRepo) LoadInputs(ctx context.Context, match ulid.ULID) ([]InputRow, error) {
	rows, err := r.store.pool.Query(ctx,
		`SELECT tick, controls FROM match_inputs WHERE match_id = $1 ORDER BY tick`,
		match.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "load inputs %s", match)
	}
	defer rows.Close()

	var result []InputRow
	for rows.Next() {
		var (
			tick int64
			row  InputRow
		)
		if err := rows.Scan(&tick, &row.Controls); err != nil {
			return nil, err
		}
		row.Tick = uint32(tick)
		result = append(result, row)
	}
	return result, rows.Err()
}
