package extract

import (
	"bytes"
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/internal/table"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

// Querier is the part of *sql.DB the extractor needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Extractor reads whole source tables. It never writes.
type Extractor struct {
	db  Querier
	log zerolog.Logger
}

func NewExtractor(db Querier, log zerolog.Logger) *Extractor {
	return &Extractor{db: db, log: log.With().Str("stage", string(etlerr.StageExtract)).Logger()}
}

// ExtractAll reads the six source tables in extraction order and stops at
// the first failure.
func (e *Extractor) ExtractAll(ctx context.Context) (*table.Snapshot, error) {
	snap := &table.Snapshot{}
	for _, s := range schema.SourceTables() {
		t, err := e.Extract(ctx, s)
		if err != nil {
			return nil, err
		}
		snap.Set(t)
	}
	return snap, nil
}

// Extract reads every row of s, checks the result shape against the declared
// columns and returns the rows in deterministic order.
func (e *Extractor) Extract(ctx context.Context, s schema.Table) (*table.Table, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, "SELECT * FROM "+s.Name)
	if err != nil {
		return nil, errors.Wrapf(etlerr.ErrSourceUnavailable, "reading %s: %v", s.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrapf(etlerr.ErrSourceUnavailable, "reading %s columns: %v", s.Name, err)
	}
	if err := checkColumns(s, cols); err != nil {
		return nil, err
	}

	out := table.New(s)
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	coerced := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(etlerr.ErrSourceUnavailable, "scanning %s: %v", s.Name, err)
		}
		row := make(table.Row, len(cols))
		for i, c := range s.Columns {
			v, ok := coerce(c.Type, raw[i])
			if !ok {
				if !c.Nullable {
					return nil, errors.Wrapf(etlerr.ErrSchemaMismatch,
						"%s: value %v is not a valid %s", schema.Qualified(s.Name, c.Name), raw[i], c.Type)
				}
				coerced++
			}
			if v == nil && !c.Nullable {
				return nil, errors.Wrapf(etlerr.ErrSchemaMismatch,
					"%s: null in non-nullable column", schema.Qualified(s.Name, c.Name))
			}
			row[i] = v
		}
		out.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(etlerr.ErrSourceUnavailable, "iterating %s: %v", s.Name, err)
	}

	out.Sort()

	if coerced > 0 {
		e.log.Warn().Str("table", s.Name).Int("values", coerced).Msg("unparseable values read as null")
	}
	e.log.Info().
		Str("table", s.Name).
		Int("rows", out.Len()).
		Dur("duration", time.Since(start)).
		Msg("extracted table")

	return out, nil
}

func checkColumns(s schema.Table, cols []string) error {
	if len(cols) != len(s.Columns) {
		return errors.Wrapf(etlerr.ErrSchemaMismatch,
			"%s: expected %d columns, got %d", s.Name, len(s.Columns), len(cols))
	}
	for i, c := range s.Columns {
		if !strings.EqualFold(c.Name, cols[i]) {
			return errors.Wrapf(etlerr.ErrSchemaMismatch,
				"%s: column %d is %q, expected %q", s.Name, i+1, cols[i], c.Name)
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

// coerce converts a scanned driver value to the cell type of t. ok is false
// when v was present but could not be converted; the returned cell is then nil.
func coerce(t schema.ColumnType, v any) (cell any, ok bool) {
	if v == nil {
		return nil, true
	}
	if b, isBytes := v.([]byte); isBytes {
		v = string(bytes.Clone(b))
	}

	switch t {
	case schema.Int:
		switch x := v.(type) {
		case int64:
			return x, true
		case float64:
			if x == float64(int64(x)) {
				return int64(x), true
			}
		case bool:
			if x {
				return int64(1), true
			}
			return int64(0), true
		case string:
			s := strings.TrimSpace(x)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, true
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
				return int64(f), true
			}
		}
		return nil, false

	case schema.Float:
		switch x := v.(type) {
		case float64:
			return x, true
		case float32:
			return float64(x), true
		case int64:
			return float64(x), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, true
			}
		}
		return nil, false

	case schema.Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), true
		case string:
			for _, layout := range timestampLayouts {
				if ts, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
					return ts.UTC(), true
				}
			}
		case int64:
			return time.Unix(x, 0).UTC(), true
		}
		return nil, false

	default:
		switch x := v.(type) {
		case string:
			return x, true
		case int64:
			return strconv.FormatInt(x, 10), true
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(x), true
		case time.Time:
			// DATE columns come back as midnight timestamps.
			u := x.UTC()
			if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
				return u.Format(time.DateOnly), true
			}
			return u.Format(time.RFC3339), true
		}
		return nil, false
	}
}
