package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"
)

// DefaultAnalyticsTable is the destination table name used when none is configured.
const DefaultAnalyticsTable = "fraud_analytics"

// AnalyticsColumn is one column of the destination table.
type AnalyticsColumn struct {
	Name       string
	ClickHouse string
	DuckDB     string
}

// AnalyticsColumns is the destination column list in declared order. Values,
// PlainValues and the DDL below all follow this order.
var AnalyticsColumns = []AnalyticsColumn{
	{Name: "trans_id", ClickHouse: "Int64", DuckDB: "BIGINT NOT NULL"},
	{Name: "trans_num", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "trans_date_trans_time", ClickHouse: "DateTime", DuckDB: "TIMESTAMP NOT NULL"},
	{Name: "unix_time", ClickHouse: "Nullable(Int64)", DuckDB: "BIGINT"},
	{Name: "amount", ClickHouse: "Nullable(Decimal(12, 2))", DuckDB: "DECIMAL(12,2)"},
	{Name: "is_fraud", ClickHouse: "Nullable(UInt8)", DuckDB: "UTINYINT"},
	{Name: "customer_id", ClickHouse: "Int64", DuckDB: "BIGINT NOT NULL"},
	{Name: "first", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "last", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "gender", ClickHouse: "LowCardinality(Nullable(String))", DuckDB: "VARCHAR"},
	{Name: "job", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "dob", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "age", ClickHouse: "Nullable(Int32)", DuckDB: "INTEGER"},
	{Name: "merchant_id", ClickHouse: "Int64", DuckDB: "BIGINT NOT NULL"},
	{Name: "merchant_name", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "category_name", ClickHouse: "LowCardinality(Nullable(String))", DuckDB: "VARCHAR"},
	{Name: "street", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "zip", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "lat", ClickHouse: "Float64", DuckDB: "DOUBLE NOT NULL"},
	{Name: "long", ClickHouse: "Float64", DuckDB: "DOUBLE NOT NULL"},
	{Name: "city_name", ClickHouse: "Nullable(String)", DuckDB: "VARCHAR"},
	{Name: "state", ClickHouse: "LowCardinality(Nullable(String))", DuckDB: "VARCHAR"},
	{Name: "city_pop", ClickHouse: "Nullable(Int64)", DuckDB: "BIGINT"},
}

// AnalyticsColumnNames returns the destination column names in order.
func AnalyticsColumnNames() []string {
	names := make([]string, len(AnalyticsColumns))
	for i, c := range AnalyticsColumns {
		names[i] = c.Name
	}
	return names
}

// AnalyticsRecord is one flattened transaction. Customer, merchant and
// location fields are null when the corresponding parent row is missing.
type AnalyticsRecord struct {
	TransID            int64
	TransNum           null.String
	TransDateTransTime time.Time
	UnixTime           null.Int
	Amount             decimal.NullDecimal
	IsFraud            null.Int
	CustomerID         int64
	First              null.String
	Last               null.String
	Gender             null.String
	Job                null.String
	DOB                null.String
	// Age depends on the run date, so identical sources can yield different
	// ages on different days.
	Age          null.Int
	MerchantID   int64
	MerchantName null.String
	CategoryName null.String
	Street       null.String
	Zip          null.String
	Lat          float64
	Long         float64
	CityName     null.String
	State        null.String
	CityPop      null.Int
}

// Values returns the record in column order using the Go types the
// ClickHouse driver expects for each column; nullable columns are pointers.
func (r AnalyticsRecord) Values() []any {
	return []any{
		r.TransID,
		r.TransNum.Ptr(),
		r.TransDateTransTime,
		r.UnixTime.Ptr(),
		decimalPtr(r.Amount),
		uint8Ptr(r.IsFraud),
		r.CustomerID,
		r.First.Ptr(),
		r.Last.Ptr(),
		r.Gender.Ptr(),
		r.Job.Ptr(),
		r.DOB.Ptr(),
		int32Ptr(r.Age),
		r.MerchantID,
		r.MerchantName.Ptr(),
		r.CategoryName.Ptr(),
		r.Street.Ptr(),
		r.Zip.Ptr(),
		r.Lat,
		r.Long,
		r.CityName.Ptr(),
		r.State.Ptr(),
		r.CityPop.Ptr(),
	}
}

// PlainValues returns the record in column order with nulls as untyped nil
// and everything else as string, int64, float64 or time.Time.
func (r AnalyticsRecord) PlainValues() []any {
	var amount any
	if r.Amount.Valid {
		amount = r.Amount.Decimal.InexactFloat64()
	}
	return []any{
		r.TransID,
		plainString(r.TransNum),
		r.TransDateTransTime,
		plainInt(r.UnixTime),
		amount,
		plainInt(r.IsFraud),
		r.CustomerID,
		plainString(r.First),
		plainString(r.Last),
		plainString(r.Gender),
		plainString(r.Job),
		plainString(r.DOB),
		plainInt(r.Age),
		r.MerchantID,
		plainString(r.MerchantName),
		plainString(r.CategoryName),
		plainString(r.Street),
		plainString(r.Zip),
		r.Lat,
		r.Long,
		plainString(r.CityName),
		plainString(r.State),
		plainInt(r.CityPop),
	}
}

func plainString(s null.String) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func plainInt(i null.Int) any {
	if !i.Valid {
		return nil
	}
	return i.Int64
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func uint8Ptr(i null.Int) *uint8 {
	if !i.Valid {
		return nil
	}
	v := uint8(i.Int64)
	return &v
}

func int32Ptr(i null.Int) *int32 {
	if !i.Valid {
		return nil
	}
	v := int32(i.Int64)
	return &v
}

// ClickHouseDDL returns the CREATE TABLE statement for the destination table.
func ClickHouseDDL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	for i, c := range AnalyticsColumns {
		fmt.Fprintf(&b, "    `%s` %s", c.Name, c.ClickHouse)
		if i < len(AnalyticsColumns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(") ENGINE = MergeTree()\n")
	b.WriteString("PARTITION BY toYYYYMM(trans_date_trans_time)\n")
	b.WriteString("ORDER BY (trans_date_trans_time, customer_id, merchant_id)")
	return b.String()
}

// DuckDBDDL returns the CREATE TABLE statement for a DuckDB destination.
// DuckDB has no partitioning clause; ordering is left to queries.
func DuckDBDDL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	for i, c := range AnalyticsColumns {
		fmt.Fprintf(&b, "    %q %s", c.Name, c.DuckDB)
		if i < len(AnalyticsColumns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}
