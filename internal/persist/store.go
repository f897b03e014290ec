package persist

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jumpgo/server/internal/config"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// minStoreConns keeps the journal writer from queueing behind match
// bookkeeping and replay reads.
const minStoreConns = 2

const defaultConnectTimeout = 5 * time.Second

// Store is the replay database.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// OpenStore connects to the replay database and checks it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	poolCfg, err := storePoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "open replay store")
	}

	pingCtx, cancel := context.WithTimeout(ctx, poolCfg.ConnConfig.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping replay store")
	}

	log.Info("replay store connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &Store{pool: pool, log: log}, nil
}

// storePoolConfig sizes the pool for one journal writer plus bookkeeping
// and tags its sessions so journal batches are visible in pg_stat_activity.
func storePoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "parse replay store dsn")
	}
	poolCfg.MaxConns = int32(max(cfg.MaxConns, minStoreConns))
	poolCfg.MinConns = 1

	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	params := poolCfg.ConnConfig.RuntimeParams
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return poolCfg, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
