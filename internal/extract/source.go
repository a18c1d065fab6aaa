// Package extract reads the normalized source tables into memory.
package extract

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Registered source drivers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

// Open connects to the source database and pings it. Any failure wraps
// ErrSourceUnavailable.
func Open(ctx context.Context, cfg config.SourceConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(etlerr.ErrSourceUnavailable, "opening %s source: %v", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(etlerr.ErrSourceUnavailable, "pinging %s source: %v", driver, err)
	}
	return db, nil
}
