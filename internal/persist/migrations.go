package persist

import (
	"context"
	"embed"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseLogger routes goose output into the store's logger at debug level.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Errorf(strings.TrimSpace(format), v...)
}

// Migrate brings the replay schema up to date and returns its version.
func (s *Store) Migrate(ctx context.Context) (int64, error) {
	goose.SetLogger(gooseLogger{log: s.log.Named("migrate").Sugar()})
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, eris.Wrap(err, "set dialect")
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	from, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, eris.Wrap(err, "read replay schema version")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return from, eris.Wrapf(err, "migrate replay schema from version %d", from)
	}
	to, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return from, eris.Wrap(err, "read replay schema version")
	}
	if to != from {
		s.log.Info("replay schema migrated", zap.Int64("from", from), zap.Int64("to", to))
	}
	return to, nil
}
