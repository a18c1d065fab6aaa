package load

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

// ClickHouse loads records over the native protocol in a single batch.
type ClickHouse struct {
	conn  driver.Conn
	table string
}

// OpenClickHouse dials the servers in cfg.Addr and pings them.
func OpenClickHouse(ctx context.Context, cfg config.DestinationConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to ClickHouse")
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "pinging ClickHouse")
	}
	return NewClickHouse(conn, cfg.Table), nil
}

func NewClickHouse(conn driver.Conn, table string) *ClickHouse {
	return &ClickHouse{conn: conn, table: table}
}

func (c *ClickHouse) CreateTable(ctx context.Context) error {
	if err := c.conn.Exec(ctx, schema.ClickHouseDDL(c.table)); err != nil {
		return errors.Wrapf(err, "creating table %s", c.table)
	}
	return nil
}

// Insert appends every record to one batch and sends it. The batch is
// aborted on any error, so nothing is written.
func (c *ClickHouse) Insert(ctx context.Context, records []schema.AnalyticsRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch, err := c.conn.PrepareBatch(ctx, insertStatement(c.table, func(s string) string { return "`" + s + "`" }))
	if err != nil {
		return 0, errors.Wrap(err, "preparing batch")
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for i := range records {
		if err := batch.Append(records[i].Values()...); err != nil {
			return 0, errors.Wrapf(err, "appending trans_id %d", records[i].TransID)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, errors.Wrap(err, "sending batch")
	}
	return int64(len(records)), nil
}

func (c *ClickHouse) Count(ctx context.Context) (int64, error) {
	var n uint64
	if err := c.conn.QueryRow(ctx, "SELECT count() FROM "+c.table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting %s", c.table)
	}
	return int64(n), nil
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
