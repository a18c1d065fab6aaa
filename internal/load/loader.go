package load

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

type Options struct {
	// CreateTable applies the destination DDL before inserting.
	CreateTable bool
	// VerifyCount compares the destination row count before and after the
	// insert and fails when the delta is not the number of records.
	VerifyCount bool
}

// Loader writes a whole run's records as one batch.
type Loader struct {
	dest Destination
	opts Options
	log  zerolog.Logger
}

func NewLoader(dest Destination, opts Options, log zerolog.Logger) *Loader {
	return &Loader{dest: dest, opts: opts, log: log.With().Str("stage", string(etlerr.StageLoad)).Logger()}
}

// Load appends records to the destination and returns the number written.
// Every failure wraps ErrLoadFailed.
func (l *Loader) Load(ctx context.Context, records []schema.AnalyticsRecord) (int64, error) {
	start := time.Now()

	if l.opts.CreateTable {
		if err := l.dest.CreateTable(ctx); err != nil {
			return 0, errors.Wrapf(etlerr.ErrLoadFailed, "%v", err)
		}
	}

	var before int64
	if l.opts.VerifyCount {
		n, err := l.dest.Count(ctx)
		if err != nil {
			return 0, errors.Wrapf(etlerr.ErrLoadFailed, "%v", err)
		}
		before = n
	}

	written, err := l.dest.Insert(ctx, records)
	if err != nil {
		return 0, errors.Wrapf(etlerr.ErrLoadFailed, "%v", err)
	}

	if l.opts.VerifyCount {
		after, err := l.dest.Count(ctx)
		if err != nil {
			return written, errors.Wrapf(etlerr.ErrLoadFailed, "%v", err)
		}
		if delta := after - before; delta != int64(len(records)) {
			return written, errors.Wrapf(etlerr.ErrLoadFailed,
				"row count grew by %d, expected %d", delta, len(records))
		}
	}

	l.log.Info().
		Int64("rows", written).
		Dur("duration", time.Since(start)).
		Msg("loaded batch")

	return written, nil
}
