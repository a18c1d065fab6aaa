// Package transform joins the extracted source tables into flat analytics
// records.
package transform

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/internal/table"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

// Foreign keys followed by the join chain, in join order.
const (
	FKCustomer = "transactions.customer_id"
	FKMerchant = "transactions.merchant_id"
	FKCategory = "merchants.category_id"
	FKAddress  = "customers.address_id"
	FKCity     = "addresses.city_id"
)

var joinKeys = []string{
	FKCustomer, "customers.id",
	FKMerchant, "merchants.id",
	FKCategory, "categories.id",
	FKAddress, "addresses.id",
	FKCity, "cities.id",
}

// Stats describes how the joins resolved.
type Stats struct {
	Transactions int `json:"transactions"`
	// Missing counts lookups per foreign key that found no parent.
	Missing map[string]int `json:"missing"`
	// Duplicates counts parent rows shadowed by an earlier row with the same id.
	Duplicates map[string]int `json:"duplicates"`
	// FanoutHits counts lookups per foreign key that matched a duplicated id.
	FanoutHits map[string]int `json:"fanout_hits"`
	NullAges   int            `json:"null_ages"`
	// ZeroCoordinates counts records whose lat or long was defaulted to 0.0.
	ZeroCoordinates int `json:"zero_coordinates"`
}

func newStats() Stats {
	return Stats{
		Missing:    make(map[string]int),
		Duplicates: make(map[string]int),
		FanoutHits: make(map[string]int),
	}
}

type Result struct {
	Records []schema.AnalyticsRecord
	RunDate time.Time
	Stats   Stats
}

// Transformer turns a snapshot into analytics records. It does no I/O
// besides logging.
type Transformer struct {
	// Now supplies the run date for age derivation. Defaults to time.Now.
	Now func() time.Time
	// StrictJoins fails the run when a transaction's join resolves to an id
	// shared by several parent rows. Otherwise the first row in sorted order
	// is used.
	StrictJoins bool
	Log         zerolog.Logger
}

func (t *Transformer) runDate() time.Time {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return utcDay(now())
}

// Transform produces exactly one record per transaction, in transaction order.
func (t *Transformer) Transform(snap *table.Snapshot) (*Result, error) {
	start := time.Now()
	log := t.Log.With().Str("stage", string(etlerr.StageTransform)).Logger()

	if err := checkComplete(snap); err != nil {
		return nil, err
	}

	runDate := t.runDate()
	stats := newStats()
	j := &joiner{strict: t.StrictJoins, stats: &stats}

	customers := buildIndex(snap.Customers)
	merchants := buildIndex(snap.Merchants)
	categories := buildIndex(snap.Categories)
	addresses := buildIndex(snap.Addresses)
	cities := buildIndex(snap.Cities)
	for _, idx := range []*index{customers, merchants, categories, addresses, cities} {
		if n := idx.duplicates(); n > 0 {
			stats.Duplicates[idx.table.Name()] = n
			log.Warn().Str("table", idx.table.Name()).Int("rows", n).Msg("duplicate parent ids; first row in sorted order wins")
		}
	}

	policy := Policy()
	latSource, longSource := policy["lat"], policy["long"]

	tx := snap.Transactions
	records := make([]schema.AnalyticsRecord, 0, tx.Len())
	for _, txRow := range tx.Rows {
		w := make(working, 48)
		w.put(tx.Schema, txRow)

		customer, err := j.lookup(customers, FKCustomer, w[FKCustomer])
		if err != nil {
			return nil, err
		}
		w.put(snap.Customers.Schema, customer)

		merchant, err := j.lookup(merchants, FKMerchant, w[FKMerchant])
		if err != nil {
			return nil, err
		}
		w.put(snap.Merchants.Schema, merchant)

		category, err := j.lookup(categories, FKCategory, w[FKCategory])
		if err != nil {
			return nil, err
		}
		w.put(snap.Categories.Schema, category)

		address, err := j.lookup(addresses, FKAddress, w[FKAddress])
		if err != nil {
			return nil, err
		}
		w.put(snap.Addresses.Schema, address)

		city, err := j.lookup(cities, FKCity, w[FKCity])
		if err != nil {
			return nil, err
		}
		w.put(snap.Cities.Schema, city)

		var rec schema.AnalyticsRecord
		for _, f := range projection {
			f.assign(&rec, w[f.source], runDate)
		}
		if !rec.Age.Valid {
			stats.NullAges++
		}
		if defaulted(w[latSource]) || defaulted(w[longSource]) {
			stats.ZeroCoordinates++
		}
		records = append(records, rec)
	}
	stats.Transactions = len(records)

	log.Info().
		Int("records", len(records)).
		Time("run_date", runDate).
		Interface("missing", stats.Missing).
		Int("null_ages", stats.NullAges).
		Dur("duration", time.Since(start)).
		Msg("transformed")

	return &Result{Records: records, RunDate: runDate, Stats: stats}, nil
}

// checkComplete rejects snapshots that cannot populate every destination
// column: a missing or empty table, or a projected column absent from the
// joined schema.
func checkComplete(snap *table.Snapshot) error {
	if snap == nil {
		return errors.Wrap(etlerr.ErrTransformIncomplete, "no snapshot")
	}
	joined := make(map[string]bool)
	names := []string{schema.Transactions, schema.Customers, schema.Merchants, schema.Categories, schema.Addresses, schema.Cities}
	for i, t := range snap.Tables() {
		if t == nil {
			return errors.Wrapf(etlerr.ErrTransformIncomplete, "table %s was not extracted", names[i])
		}
		if t.Len() == 0 {
			return errors.Wrapf(etlerr.ErrTransformIncomplete, "table %s is empty", t.Name())
		}
		for _, c := range t.Schema.Columns {
			joined[schema.Qualified(t.Name(), c.Name)] = true
		}
	}
	for _, f := range projection {
		if !joined[f.source] {
			return errors.Wrapf(etlerr.ErrTransformIncomplete, "column %s has no source %s", f.column, f.source)
		}
	}
	for _, key := range joinKeys {
		if !joined[key] {
			return errors.Wrapf(etlerr.ErrTransformIncomplete, "join key %s is missing", key)
		}
	}
	return nil
}
