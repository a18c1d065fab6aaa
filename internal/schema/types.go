// Package schema declares the fixed table contracts the pipeline reads from
// and writes to. Nothing here is inferred from a live database.
package schema

import "strings"

// ColumnType is the declared type of a source column.
type ColumnType int

const (
	Text ColumnType = iota
	Int
	Float
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Timestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// Column is one declared column of a source table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Table is a source table name plus its ordered column list.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Qualified returns "table.column".
func Qualified(table, column string) string {
	return table + "." + column
}
