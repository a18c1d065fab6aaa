package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceTables(t *testing.T) {
	tables := SourceTables()
	require.Len(t, tables, 6)

	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Name
		assert.Equal(t, 0, tbl.Index("id"), "%s must lead with id", tbl.Name)
		assert.False(t, tbl.Columns[0].Nullable, "%s.id must be non-nullable", tbl.Name)
	}
	assert.Equal(t, []string{Transactions, Customers, Merchants, Categories, Addresses, Cities}, names)
}

func TestTableIndex(t *testing.T) {
	assert.Equal(t, 3, AddressesTable.Index("lat"))
	assert.Equal(t, 3, AddressesTable.Index("LAT"))
	assert.Equal(t, -1, AddressesTable.Index("missing"))
	assert.Equal(t, "addresses.lat", Qualified(Addresses, "lat"))
}

func TestRecordValuesFollowColumnOrder(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := AnalyticsRecord{
		TransID:            1,
		TransDateTransTime: ts,
		Amount:             decimal.NewNullDecimal(decimal.RequireFromString("50.00")),
		IsFraud:            null.IntFrom(1),
		CustomerID:         7,
		Age:                null.IntFrom(34),
		MerchantID:         9,
		CategoryName:       null.StringFrom("grocery"),
		Lat:                40.0,
		Long:               -73.0,
	}

	values := rec.Values()
	require.Len(t, values, len(AnalyticsColumns))

	idx := func(name string) int {
		for i, c := range AnalyticsColumns {
			if c.Name == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}

	assert.Equal(t, int64(1), values[idx("trans_id")])
	assert.Equal(t, ts, values[idx("trans_date_trans_time")])
	assert.Nil(t, values[idx("trans_num")].(*string))
	assert.Equal(t, "50", values[idx("amount")].(*decimal.Decimal).String())
	assert.Equal(t, uint8(1), *values[idx("is_fraud")].(*uint8))
	assert.Equal(t, int32(34), *values[idx("age")].(*int32))
	assert.Equal(t, "grocery", *values[idx("category_name")].(*string))
	assert.Equal(t, 40.0, values[idx("lat")])
	assert.Equal(t, -73.0, values[idx("long")])

	plain := rec.PlainValues()
	require.Len(t, plain, len(AnalyticsColumns))
	assert.Nil(t, plain[idx("trans_num")])
	assert.Equal(t, 50.0, plain[idx("amount")])
	assert.Equal(t, int64(34), plain[idx("age")])
	assert.Equal(t, "grocery", plain[idx("category_name")])
}

func TestClickHouseDDL(t *testing.T) {
	ddl := ClickHouseDDL("fraud_analytics")
	assert.True(t, strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS fraud_analytics ("))
	assert.Contains(t, ddl, "PARTITION BY toYYYYMM(trans_date_trans_time)")
	assert.Contains(t, ddl, "ORDER BY (trans_date_trans_time, customer_id, merchant_id)")
	for _, c := range AnalyticsColumns {
		assert.Contains(t, ddl, "`"+c.Name+"` "+c.ClickHouse)
	}
}

func TestDuckDBDDL(t *testing.T) {
	ddl := DuckDBDDL("fraud_analytics")
	assert.Contains(t, ddl, `"long" DOUBLE NOT NULL`)
	assert.NotContains(t, ddl, "PARTITION BY")
	assert.Equal(t, AnalyticsColumnNames()[0], "trans_id")
}
