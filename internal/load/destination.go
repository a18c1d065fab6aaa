// Package load writes analytics records to the configured analytical store.
package load

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

// Destination is an append-only analytical store. Insert writes all records
// as one unit or nothing.
type Destination interface {
	Insert(ctx context.Context, records []schema.AnalyticsRecord) (int64, error)
	Count(ctx context.Context) (int64, error)
	CreateTable(ctx context.Context) error
	Close() error
}

// OpenOptions carries per-run values some destinations need.
type OpenOptions struct {
	RunID string
}

type opener func(ctx context.Context, cfg config.DestinationConfig, opts OpenOptions) (Destination, error)

var openers = map[string]opener{
	"clickhouse": func(ctx context.Context, cfg config.DestinationConfig, _ OpenOptions) (Destination, error) {
		return OpenClickHouse(ctx, cfg)
	},
	"duckdb": func(ctx context.Context, cfg config.DestinationConfig, _ OpenOptions) (Destination, error) {
		return OpenDuckDB(ctx, cfg)
	},
	"parquet": func(_ context.Context, cfg config.DestinationConfig, opts OpenOptions) (Destination, error) {
		return NewParquet(cfg.Path, cfg.Table, opts.RunID), nil
	},
}

// Kinds lists the registered destination kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(openers))
	for k := range openers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open connects to the destination named by cfg.Kind. Failures wrap
// ErrLoadFailed: the destination is only touched by the load stage.
func Open(ctx context.Context, cfg config.DestinationConfig, opts OpenOptions) (Destination, error) {
	open, ok := openers[cfg.Kind]
	if !ok {
		return nil, errors.Wrapf(etlerr.ErrLoadFailed, "unknown destination kind %q (want one of %s)",
			cfg.Kind, strings.Join(Kinds(), ", "))
	}
	if cfg.Table == "" {
		cfg.Table = schema.DefaultAnalyticsTable
	}
	dest, err := open(ctx, cfg, opts)
	if err != nil {
		return nil, errors.Wrapf(etlerr.ErrLoadFailed, "opening %s destination: %v", cfg.Kind, err)
	}
	return dest, nil
}

func insertStatement(table string, quote func(string) string) string {
	cols := schema.AnalyticsColumnNames()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(quoted, ", "))
}
