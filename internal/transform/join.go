package transform

import (
	"github.com/pkg/errors"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/internal/table"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

// index maps a parent id to the row that join lookups resolve to. Rows are
// visited in the table's sorted order, so the first row for an id wins.
type index struct {
	table *table.Table
	rows  map[int64]table.Row
	dups  map[int64]int
}

func buildIndex(t *table.Table) *index {
	idx := &index{
		table: t,
		rows:  make(map[int64]table.Row, t.Len()),
		dups:  make(map[int64]int),
	}
	col := t.Schema.Index("id")
	for _, r := range t.Rows {
		id, ok := r[col].(int64)
		if !ok {
			continue
		}
		if _, seen := idx.rows[id]; seen {
			idx.dups[id]++
			continue
		}
		idx.rows[id] = r
	}
	return idx
}

// duplicates is the number of rows shadowed by an earlier row with the same id.
func (idx *index) duplicates() int {
	n := 0
	for _, c := range idx.dups {
		n += c
	}
	return n
}

// joiner resolves foreign keys against parent indexes and records what it saw.
type joiner struct {
	strict bool
	stats  *Stats
}

// lookup resolves key against idx. A nil key or an unknown id yields a nil
// row and counts as a missing parent. In strict mode a key that matches more
// than one parent fails with ErrJoinFanout.
func (j *joiner) lookup(idx *index, fk string, key any) (table.Row, error) {
	id, ok := key.(int64)
	if !ok {
		j.stats.Missing[fk]++
		return nil, nil
	}
	row, found := idx.rows[id]
	if !found {
		j.stats.Missing[fk]++
		return nil, nil
	}
	if n := idx.dups[id]; n > 0 {
		if j.strict {
			return nil, errors.Wrapf(etlerr.ErrJoinFanout,
				"%s=%d matches %d %s rows", fk, id, n+1, idx.table.Name())
		}
		j.stats.FanoutHits[fk]++
	}
	return row, nil
}

// working is one joined row keyed by qualified column name.
type working map[string]any

func (w working) put(s schema.Table, row table.Row) {
	for i, c := range s.Columns {
		var v any
		if row != nil {
			v = row[i]
		}
		w[schema.Qualified(s.Name, c.Name)] = v
	}
}
