package transform

import (
	"time"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

// field binds one destination column to the single qualified source column
// it is read from. Where two parents carry a column of the same name the
// binding below is the only place that choice is made.
type field struct {
	column string
	source string
	assign func(r *schema.AnalyticsRecord, v any, runDate time.Time)
}

var projection = []field{
	{"trans_id", "transactions.id", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.TransID = asInt(v).Int64 }},
	{"trans_num", "transactions.trans_num", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.TransNum = asString(v) }},
	{"trans_date_trans_time", "transactions.trans_date_trans_time", func(r *schema.AnalyticsRecord, v any, _ time.Time) {
		if ts, ok := v.(time.Time); ok {
			r.TransDateTransTime = ts.UTC()
		}
	}},
	{"unix_time", "transactions.unix_time", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.UnixTime = asInt(v) }},
	{"amount", "transactions.amt", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Amount = amount(v) }},
	{"is_fraud", "transactions.is_fraud", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.IsFraud = asInt(v) }},
	{"customer_id", "transactions.customer_id", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.CustomerID = asInt(v).Int64 }},
	{"first", "customers.first", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.First = asString(v) }},
	{"last", "customers.last", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Last = asString(v) }},
	{"gender", "customers.gender", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Gender = asString(v) }},
	{"job", "customers.job", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Job = asString(v) }},
	{"dob", "customers.dob", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.DOB = asString(v) }},
	{"age", "customers.dob", func(r *schema.AnalyticsRecord, v any, runDate time.Time) { r.Age = Age(asString(v), runDate) }},
	{"merchant_id", "transactions.merchant_id", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.MerchantID = asInt(v).Int64 }},
	{"merchant_name", "merchants.name", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.MerchantName = asString(v) }},
	{"category_name", "categories.category_name", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.CategoryName = asString(v) }},
	{"street", "addresses.street", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Street = asString(v) }},
	{"zip", "addresses.zip", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Zip = asString(v) }},
	// Address coordinates win over merchant coordinates. Not configurable.
	{"lat", "addresses.lat", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Lat = Coordinate(v) }},
	{"long", "addresses.long", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.Long = Coordinate(v) }},
	{"city_name", "cities.city", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.CityName = asString(v) }},
	{"state", "cities.state", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.State = asString(v) }},
	{"city_pop", "cities.city_pop", func(r *schema.AnalyticsRecord, v any, _ time.Time) { r.CityPop = asInt(v) }},
}

// Policy returns destination column -> qualified source column.
func Policy() map[string]string {
	p := make(map[string]string, len(projection))
	for _, f := range projection {
		p[f.column] = f.source
	}
	return p
}

func asString(v any) null.String {
	if s, ok := v.(string); ok {
		return null.StringFrom(s)
	}
	return null.String{}
}

func asInt(v any) null.Int {
	if n, ok := v.(int64); ok {
		return null.IntFrom(n)
	}
	return null.Int{}
}

func amount(v any) decimal.NullDecimal {
	f, ok := v.(float64)
	if !ok || !finite(f) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f).Round(2))
}
