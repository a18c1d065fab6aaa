package load

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/atomicfile"
)

// Parquet writes each run's records to one file under dir. Files are never
// rewritten, so appending a run means adding a file.
type Parquet struct {
	dir   string
	table string
	runID string
	mem   memory.Allocator
}

func NewParquet(dir, table, runID string) *Parquet {
	return &Parquet{dir: dir, table: table, runID: runID, mem: memory.DefaultAllocator}
}

// CreateTable only makes sure the output directory exists.
func (p *Parquet) CreateTable(context.Context) error {
	return errors.Wrap(os.MkdirAll(p.dir, 0o755), "creating parquet directory")
}

// ArrowSchema mirrors the ClickHouse column types of the destination table.
func ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(schema.AnalyticsColumns))
	for i, c := range schema.AnalyticsColumns {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     arrowType(c.ClickHouse),
			Nullable: strings.Contains(c.ClickHouse, "Nullable"),
		}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(clickhouseType string) arrow.DataType {
	switch {
	case strings.Contains(clickhouseType, "String"):
		return arrow.BinaryTypes.String
	case strings.Contains(clickhouseType, "Decimal"):
		return &arrow.Decimal128Type{Precision: 12, Scale: 2}
	case strings.Contains(clickhouseType, "DateTime"):
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	case strings.Contains(clickhouseType, "UInt8"):
		return arrow.PrimitiveTypes.Uint8
	case strings.Contains(clickhouseType, "Int32"):
		return arrow.PrimitiveTypes.Int32
	case strings.Contains(clickhouseType, "Float64"):
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.PrimitiveTypes.Int64
	}
}

// Path is the file this run writes.
func (p *Parquet) Path() string {
	id := p.runID
	if id == "" {
		id = time.Now().UTC().Format("20060102_150405")
	}
	return filepath.Join(p.dir, fmt.Sprintf("%s-%s.parquet", p.table, id))
}

// Insert encodes all records into a single parquet file and publishes it
// atomically.
func (p *Parquet) Insert(_ context.Context, records []schema.AnalyticsRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	path := p.Path()
	if _, err := os.Stat(path); err == nil {
		return 0, errors.Errorf("%s already exists", path)
	}

	sc := ArrowSchema()
	rb := array.NewRecordBuilder(p.mem, sc)
	defer rb.Release()

	for i := range records {
		for col, v := range records[i].Values() {
			if err := appendValue(rb.Field(col), v); err != nil {
				return 0, errors.Wrapf(err, "trans_id %d column %s", records[i].TransID, sc.Field(col).Name)
			}
		}
	}
	rec := rb.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)
	writer, err := pqarrow.NewFileWriter(sc, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return 0, errors.Wrap(err, "creating parquet writer")
	}
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return 0, errors.Wrap(err, "writing record")
	}
	if err := writer.Close(); err != nil {
		return 0, errors.Wrap(err, "closing parquet writer")
	}

	if err := atomicfile.Write(path, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// Count sums row counts from the footers of every file for this table.
func (p *Parquet) Count(context.Context) (int64, error) {
	matches, err := filepath.Glob(filepath.Join(p.dir, p.table+"-*.parquet"))
	if err != nil {
		return 0, errors.Wrap(err, "listing parquet files")
	}
	var total int64
	for _, m := range matches {
		r, err := file.OpenParquetFile(m, false)
		if err != nil {
			return 0, errors.Wrapf(err, "opening %s", m)
		}
		total += r.NumRows()
		r.Close()
	}
	return total, nil
}

func (p *Parquet) Close() error {
	return nil
}

func appendValue(b array.Builder, v any) error {
	switch bb := b.(type) {
	case *array.Int64Builder:
		switch x := v.(type) {
		case int64:
			bb.Append(x)
		case *int64:
			if x == nil {
				bb.AppendNull()
			} else {
				bb.Append(*x)
			}
		default:
			return errors.Errorf("unexpected %T for int64", v)
		}
	case *array.StringBuilder:
		x, ok := v.(*string)
		if !ok {
			return errors.Errorf("unexpected %T for string", v)
		}
		if x == nil {
			bb.AppendNull()
		} else {
			bb.Append(*x)
		}
	case *array.TimestampBuilder:
		x, ok := v.(time.Time)
		if !ok {
			return errors.Errorf("unexpected %T for timestamp", v)
		}
		bb.Append(arrow.Timestamp(x.UnixMicro()))
	case *array.Decimal128Builder:
		x, ok := v.(*decimal.Decimal)
		if !ok {
			return errors.Errorf("unexpected %T for decimal", v)
		}
		if x == nil {
			bb.AppendNull()
		} else {
			bb.Append(decimal128.FromI64(x.Shift(2).Round(0).IntPart()))
		}
	case *array.Uint8Builder:
		x, ok := v.(*uint8)
		if !ok {
			return errors.Errorf("unexpected %T for uint8", v)
		}
		if x == nil {
			bb.AppendNull()
		} else {
			bb.Append(*x)
		}
	case *array.Int32Builder:
		x, ok := v.(*int32)
		if !ok {
			return errors.Errorf("unexpected %T for int32", v)
		}
		if x == nil {
			bb.AppendNull()
		} else {
			bb.Append(*x)
		}
	case *array.Float64Builder:
		x, ok := v.(float64)
		if !ok {
			return errors.Errorf("unexpected %T for float64", v)
		}
		bb.Append(x)
	default:
		return errors.Errorf("unsupported builder %T", b)
	}
	return nil
}
