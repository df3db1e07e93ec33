package pgsql

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// sweeper periodically deletes the expired rows of both tables.
type sweeper struct {
	conn conn
	now  func() time.Time
	log  zerolog.Logger
}

// sweepExpired deletes the rows expired at now and returns how many went.
func (s *sweeper) sweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	for _, table := range []string{locksTableName, dataTableName} {
		res, err := sq.Delete(table).
			Where(sq.LtOrEq{"expire_at": now}).
			RunWith(s.conn).ExecContext(ctx)
		if err != nil {
			return total, errors.Wrapf(err, "pgsql: failed to sweep %s", table)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, errors.Wrapf(err, "pgsql: failed to count swept %s", table)
		}
		total += n
	}
	return total, nil
}

func (s *sweeper) run(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sweepExpired(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("failed to sweep expired rows")
				continue
			}
			if n > 0 {
				s.log.Debug().Int64("count", n).Msg("swept expired rows")
			}
		}
	}
}
