// Package table holds extracted source data in memory with a fixed schema.
package table

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

// Row is one source row. Cells are nil, int64, float64, time.Time or string
// depending on the declared column type.
type Row []any

// Table is a materialized source table.
type Table struct {
	Schema schema.Table
	Rows   []Row
}

// New returns an empty table for s.
func New(s schema.Table) *Table {
	return &Table{Schema: s}
}

// Name returns the source table name.
func (t *Table) Name() string {
	return t.Schema.Name
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row. The row length must match the schema.
func (t *Table) Append(r Row) {
	t.Rows = append(t.Rows, r)
}

// Get returns the named cell of row i, or nil when the column is unknown.
func (t *Table) Get(i int, column string) any {
	idx := t.Schema.Index(column)
	if idx < 0 {
		return nil
	}
	return t.Rows[i][idx]
}

// Sort orders rows by comparing cells left to right in declared column
// order. Tables lead with id, so this is id order with full-row tie-breaks.
func (t *Table) Sort() {
	slices.SortStableFunc(t.Rows, CompareRows)
}

// CompareRows compares two rows cell by cell. Nil sorts first.
func CompareRows(a, b Row) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareCell(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func compareCell(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return 0
}

// Snapshot is the full set of source tables read in one run.
type Snapshot struct {
	Transactions *Table
	Customers    *Table
	Merchants    *Table
	Categories   *Table
	Addresses    *Table
	Cities       *Table
}

// Tables returns the snapshot tables in extraction order.
func (s *Snapshot) Tables() []*Table {
	return []*Table{s.Transactions, s.Customers, s.Merchants, s.Categories, s.Addresses, s.Cities}
}

// Set stores t in the slot matching its table name. Unknown names are ignored.
func (s *Snapshot) Set(t *Table) {
	switch t.Name() {
	case schema.Transactions:
		s.Transactions = t
	case schema.Customers:
		s.Customers = t
	case schema.Merchants:
		s.Merchants = t
	case schema.Categories:
		s.Categories = t
	case schema.Addresses:
		s.Addresses = t
	case schema.Cities:
		s.Cities = t
	}
}

// Counts returns rows per table name.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int, 6)
	for _, t := range s.Tables() {
		if t != nil {
			counts[t.Name()] = t.Len()
		}
	}
	return counts
}
