package load

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

// DuckDB loads records into a local DuckDB file inside one transaction.
type DuckDB struct {
	db    *sql.DB
	table string
}

func OpenDuckDB(ctx context.Context, cfg config.DestinationConfig) (*DuckDB, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening duckdb %s", cfg.Path)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "pinging duckdb %s", cfg.Path)
	}
	return NewDuckDB(db, cfg.Table), nil
}

func NewDuckDB(db *sql.DB, table string) *DuckDB {
	return &DuckDB{db: db, table: table}
}

func (d *DuckDB) CreateTable(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema.DuckDBDDL(d.table)); err != nil {
		return errors.Wrapf(err, "creating table %s", d.table)
	}
	return nil
}

// Insert runs one prepared statement per record inside a single
// transaction and commits once; any failure rolls everything back.
func (d *DuckDB) Insert(ctx context.Context, records []schema.AnalyticsRecord) (n int64, err error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema.AnalyticsColumns)), ", ")
	query := insertStatement(d.table, strconv.Quote) + " VALUES (" + placeholders + ")"
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for i := range records {
		if _, err = stmt.ExecContext(ctx, records[i].PlainValues()...); err != nil {
			return 0, errors.Wrapf(err, "inserting trans_id %d", records[i].TransID)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing")
	}
	return int64(len(records)), nil
}

func (d *DuckDB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, "SELECT count(*) FROM "+d.table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting %s", d.table)
	}
	return n, nil
}

func (d *DuckDB) Close() error {
	return d.db.Close()
}
