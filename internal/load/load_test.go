package load

import (
	"context"
	sqldriver "database/sql/driver"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guregu/null"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

func sampleRecords(n int) []schema.AnalyticsRecord {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	out := make([]schema.AnalyticsRecord, n)
	for i := range out {
		out[i] = schema.AnalyticsRecord{
			TransID:            int64(i + 1),
			TransNum:           null.StringFrom("t"),
			TransDateTransTime: ts,
			Amount:             decimal.NewNullDecimal(decimal.RequireFromString("50.00")),
			IsFraud:            null.IntFrom(0),
			CustomerID:         1,
			Age:                null.IntFrom(34),
			MerchantID:         1,
			CategoryName:       null.StringFrom("grocery"),
			Lat:                40.0,
			Long:               -73.0,
			CityName:           null.StringFrom("Springfield"),
			State:              null.StringFrom("IL"),
		}
	}
	return out
}

// ClickHouse fakes embed the driver interfaces and override what Insert uses.

type fakeBatch struct {
	driver.Batch
	conn      *fakeConn
	rows      [][]any
	appendErr error
	sendErr   error
	sent      bool
	aborted   bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = true
	b.conn.count += uint64(len(b.rows))
	return nil
}

func (b *fakeBatch) Abort() error {
	if b.sent {
		return errors.New("batch has already been sent")
	}
	b.aborted = true
	return nil
}

type fakeRow struct {
	driver.Row
	n   uint64
	err error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*uint64) = r.n
	return nil
}

type fakeConn struct {
	driver.Conn
	batch      *fakeBatch
	query      string
	prepareErr error
	execs      []string
	count      uint64
	closed     bool
}

func (c *fakeConn) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	if c.prepareErr != nil {
		return nil, c.prepareErr
	}
	c.query = query
	c.batch.conn = c
	return c.batch, nil
}

func (c *fakeConn) Exec(_ context.Context, query string, _ ...any) error {
	c.execs = append(c.execs, query)
	return nil
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) driver.Row {
	return &fakeRow{n: c.count}
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestClickHouseInsert(t *testing.T) {
	conn := &fakeConn{batch: &fakeBatch{}}
	ch := NewClickHouse(conn, "fraud_analytics")

	n, err := ch.Insert(context.Background(), sampleRecords(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.True(t, strings.HasPrefix(conn.query, "INSERT INTO fraud_analytics (`trans_id`, `trans_num`"))
	assert.True(t, conn.batch.sent)
	assert.False(t, conn.batch.aborted)
	require.Len(t, conn.batch.rows, 3)
	assert.Len(t, conn.batch.rows[0], len(schema.AnalyticsColumns))
	assert.Equal(t, int64(2), conn.batch.rows[1][0])

	count, err := ch.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, ch.Close())
	assert.True(t, conn.closed)
}

func TestClickHouseInsertAbortsOnError(t *testing.T) {
	tests := []struct {
		name  string
		batch *fakeBatch
	}{
		{"append fails", &fakeBatch{appendErr: errors.New("converting Nullable(UInt8)")}},
		{"send fails", &fakeBatch{sendErr: errors.New("connection reset by peer")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{batch: tt.batch}
			ch := NewClickHouse(conn, "fraud_analytics")

			_, err := ch.Insert(context.Background(), sampleRecords(2))
			require.Error(t, err)
			assert.True(t, tt.batch.aborted)
			assert.Zero(t, conn.count)
		})
	}
}

func TestClickHouseCreateTable(t *testing.T) {
	conn := &fakeConn{batch: &fakeBatch{}}
	require.NoError(t, NewClickHouse(conn, "fa").CreateTable(context.Background()))
	require.Len(t, conn.execs, 1)
	assert.Contains(t, conn.execs[0], "CREATE TABLE IF NOT EXISTS fa")
}

func TestDuckDBInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	records := sampleRecords(2)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO fraud_analytics ("trans_id", "trans_num"`))
	for range records {
		prep.ExpectExec().
			WithArgs(anyArgs(len(schema.AnalyticsColumns))...).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	n, err := NewDuckDB(db, "fraud_analytics").Insert(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuckDBInsertRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO fraud_analytics`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err = NewDuckDB(db, "fraud_analytics").Insert(context.Background(), sampleRecords(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trans_id 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuckDBCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM fraud_analytics")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := NewDuckDB(db, "fraud_analytics").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func anyArgs(n int) []sqldriver.Value {
	out := make([]sqldriver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func TestParquetInsertAndCount(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewParquet(dir, "fraud_analytics", "run-1")
	require.NoError(t, first.CreateTable(ctx))
	n, err := first.Insert(ctx, sampleRecords(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.FileExists(t, filepath.Join(dir, "fraud_analytics-run-1.parquet"))

	second := NewParquet(dir, "fraud_analytics", "run-2")
	_, err = second.Insert(ctx, sampleRecords(2))
	require.NoError(t, err)

	total, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	_, err = first.Insert(ctx, sampleRecords(1))
	assert.Error(t, err, "a run never overwrites its file")
}

func TestArrowSchema(t *testing.T) {
	sc := ArrowSchema()
	require.Equal(t, len(schema.AnalyticsColumns), sc.NumFields())
	assert.Equal(t, "trans_id", sc.Field(0).Name)
	assert.False(t, sc.Field(0).Nullable)
	amount, ok := sc.FieldsByName("amount")
	require.True(t, ok)
	assert.True(t, amount[0].Nullable)
	assert.Equal(t, "decimal(12, 2)", amount[0].Type.String())
}

// fakeDest records what the loader asks of it.
type fakeDest struct {
	count     int64
	insertErr error
	countErr  error
	// lost simulates a destination that acknowledges rows it never stores.
	lost    int64
	created bool
}

func (d *fakeDest) Insert(_ context.Context, records []schema.AnalyticsRecord) (int64, error) {
	if d.insertErr != nil {
		return 0, d.insertErr
	}
	d.count += int64(len(records)) - d.lost
	return int64(len(records)), nil
}

func (d *fakeDest) Count(context.Context) (int64, error) { return d.count, d.countErr }

func (d *fakeDest) CreateTable(context.Context) error {
	d.created = true
	return nil
}

func (d *fakeDest) Close() error { return nil }

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and verifies", func(t *testing.T) {
		dest := &fakeDest{count: 10}
		l := NewLoader(dest, Options{CreateTable: true, VerifyCount: true}, zerolog.Nop())
		n, err := l.Load(ctx, sampleRecords(4))
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.Equal(t, int64(14), dest.count)
		assert.True(t, dest.created)
	})

	t.Run("insert failure leaves count unchanged", func(t *testing.T) {
		dest := &fakeDest{count: 10, insertErr: errors.New("dial tcp 127.0.0.1:9000: connection refused")}
		_, err := NewLoader(dest, Options{}, zerolog.Nop()).Load(ctx, sampleRecords(4))
		require.Error(t, err)
		assert.ErrorIs(t, err, etlerr.ErrLoadFailed)
		assert.Equal(t, int64(10), dest.count)
	})

	t.Run("count mismatch", func(t *testing.T) {
		dest := &fakeDest{lost: 1}
		_, err := NewLoader(dest, Options{VerifyCount: true}, zerolog.Nop()).Load(ctx, sampleRecords(4))
		assert.ErrorIs(t, err, etlerr.ErrLoadFailed)
		assert.Contains(t, err.Error(), "grew by 3, expected 4")
	})

	t.Run("count unavailable", func(t *testing.T) {
		dest := &fakeDest{countErr: errors.New("timeout")}
		_, err := NewLoader(dest, Options{VerifyCount: true}, zerolog.Nop()).Load(ctx, sampleRecords(1))
		assert.ErrorIs(t, err, etlerr.ErrLoadFailed)
	})
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), config.DestinationConfig{Kind: "bigquery"}, OpenOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, etlerr.ErrLoadFailed)
	assert.Contains(t, err.Error(), "clickhouse, duckdb, parquet")
}

func TestOpenParquet(t *testing.T) {
	dest, err := Open(context.Background(), config.DestinationConfig{Kind: "parquet", Path: t.TempDir()}, OpenOptions{RunID: "abc"})
	require.NoError(t, err)
	p, ok := dest.(*Parquet)
	require.True(t, ok)
	assert.Equal(t, "fraud_analytics-abc.parquet", filepath.Base(p.Path()))
}

func TestOnDemandOpensAtLoadTime(t *testing.T) {
	dest := &fakeDest{}
	opened := 0
	o := NewOnDemand(config.DestinationConfig{Kind: "fake"}, OpenOptions{}, Options{}, zerolog.Nop())
	o.open = func(context.Context, config.DestinationConfig, OpenOptions) (Destination, error) {
		opened++
		return dest, nil
	}
	assert.Zero(t, opened)

	n, err := o.Load(context.Background(), sampleRecords(2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, opened)
}

func TestOnDemandOpenFailure(t *testing.T) {
	o := NewOnDemand(config.DestinationConfig{Kind: "bigquery"}, OpenOptions{}, Options{}, zerolog.Nop())
	_, err := o.Load(context.Background(), sampleRecords(1))
	assert.ErrorIs(t, err, etlerr.ErrLoadFailed)
}
