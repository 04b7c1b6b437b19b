package parser

import "strings"

// Discovered accumulates, per table name, the columns observed being
// referenced against it during one Parse call. Tables and columns keep their
// first-seen order; names compare case-insensitively.
type Discovered struct {
	tables []string
	cols   map[string]*columnSet
}

type columnSet struct {
	names []string
	seen  map[string]struct{}
}

// NewDiscovered returns an empty accumulator.
func NewDiscovered() *Discovered {
	return &Discovered{cols: make(map[string]*columnSet)}
}

// Add records column as referenced on table. The wildcard marker "*" is a
// column like any other.
func (d *Discovered) Add(table, column string) {
	if table == "" || column == "" {
		return
	}
	key := strings.ToLower(table)
	set, ok := d.cols[key]
	if !ok {
		set = &columnSet{seen: make(map[string]struct{})}
		d.cols[key] = set
		d.tables = append(d.tables, table)
	}
	ck := strings.ToLower(column)
	if _, dup := set.seen[ck]; dup {
		return
	}
	set.seen[ck] = struct{}{}
	set.names = append(set.names, column)
}

// Has reports whether anything was recorded for table.
func (d *Discovered) Has(table string) bool {
	_, ok := d.cols[strings.ToLower(table)]
	return ok
}

// Columns returns the recorded columns of table, wildcard marker included.
func (d *Discovered) Columns(table string) []string {
	set, ok := d.cols[strings.ToLower(table)]
	if !ok {
		return nil
	}
	return append([]string(nil), set.names...)
}

// HasWildcard reports whether a wildcard was seen against table.
func (d *Discovered) HasWildcard(table string) bool {
	set, ok := d.cols[strings.ToLower(table)]
	if !ok {
		return false
	}
	_, wild := set.seen["*"]
	return wild
}

// Tables returns the table names with recorded columns, in first-seen order.
func (d *Discovered) Tables() []string {
	return append([]string(nil), d.tables...)
}
