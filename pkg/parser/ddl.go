package parser

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/sqltext"
)

// createModifiers may sit between CREATE and TABLE/VIEW.
var createModifiers = map[string]bool{
	"OR": true, "REPLACE": true, "ALTER": true, "GLOBAL": true, "LOCAL": true,
	"TEMP": true, "TEMPORARY": true, "UNLOGGED": true, "VOLATILE": true,
	"SECURE": true, "TRANSIENT": true, "EXTERNAL": true, "MATERIALIZED": true,
	"RECURSIVE": true, "MULTISET": true,
}

// tableClauses start column-list entries that define no column. The match is
// on the unquoted first word, so a column spelled key is read as a MySQL KEY
// index and skipped; "key" is kept.
var tableClauses = map[string]bool{
	"CONSTRAINT": true, "KEY": true, "INDEX": true, "UNIQUE": true, "CHECK": true,
	"FULLTEXT": true, "SPATIAL": true, "EXCLUDE": true, "LIKE": true, "PERIOD": true,
}

// typeStops end the type of a column definition.
var typeStops = map[string]bool{
	"NOT": true, "NULL": true, "DEFAULT": true, "PRIMARY": true, "REFERENCES": true,
	"UNIQUE": true, "CHECK": true, "CONSTRAINT": true, "COLLATE": true,
	"GENERATED": true, "IDENTITY": true, "AUTO_INCREMENT": true, "AUTOINCREMENT": true,
	"ENCODE": true, "DISTKEY": true, "SORTKEY": true, "COMMENT": true, "AS": true,
	"ON": true, "KEY": true, "ENCODING": true, "OPTIONS": true,
}

// createHead finds `CREATE [modifiers] TABLE|VIEW` at depth 0 and returns
// "TABLE" or "VIEW" with the index of that keyword.
func (b *body) createHead() (string, int) {
	for i, t := range b.toks {
		if !t.Is("CREATE") || b.depth[i] != 0 {
			continue
		}
		j := i + 1
		for j < b.len() && b.toks[j].Kind == sqltext.TokenIdent && createModifiers[strings.ToUpper(b.toks[j].Text)] {
			j++
		}
		if b.is(j, "TABLE") || b.is(j, "VIEW") {
			return strings.ToUpper(b.toks[j].Text), j
		}
	}
	return "", -1
}

// objectName reads `[IF NOT EXISTS] name` at i.
func (b *body) objectName(i int) (string, int) {
	if b.is(i, "IF") && b.is(i+1, "NOT") && b.is(i+2, "EXISTS") {
		i += 3
	}
	parts, end := b.chain(i)
	return qualified(parts), end
}

// sortKeysAt returns the names in a SORTKEY(...) group opened at i.
func (b *body) sortKeysAt(i int) []string {
	if b.is(i-1, "SORTKEY") {
		return b.nameList(i)
	}
	return nil
}

// createTable handles CREATE TABLE: a column list, or AS <query>.
func (s *session) createTable(b *body, at int) bool {
	name, k := b.objectName(at + 1)
	if name == "" {
		return false
	}
	name = s.canonical(name)

	var sortKeys, listed []string
	colOpen, colClose := -1, -1
	for i := k; i < b.len(); i++ {
		switch {
		case b.punct(i, '('):
			end := b.matchParen(i)
			if i == k {
				colOpen, colClose = i, end
			} else {
				sortKeys = append(sortKeys, b.sortKeysAt(i)...)
			}
			i = end
		case b.is(i, "AS") && b.depth[i] == 0:
			if colOpen >= 0 {
				listed = b.nameList(colOpen)
			}
			t := s.walkQuery(b.rest(i+1), name, false)
			renameColumns(t, listed)
			t.MarkSortKeys(sortKeys)
			return true
		}
	}
	if colOpen < 0 {
		return false
	}
	t := s.columnDefs(name, b.span(colOpen+1, colClose))
	t.MarkSortKeys(sortKeys)
	s.addTable(t)
	return true
}

// columnDefs parses the entries of a CREATE TABLE column list.
func (s *session) columnDefs(name, text string) *core.Table {
	t := &core.Table{Name: name}
	var pk, fkCols []string

	for _, def := range sqltext.SplitTopLevel(text) {
		d := newBody(def)
		if d.len() == 0 {
			continue
		}
		i := 0
		if d.is(0, "CONSTRAINT") {
			i = 2
		}
		switch {
		case d.is(i, "PRIMARY") && d.is(i+1, "KEY"):
			pk = append(pk, d.nameList(i+2)...)
		case d.is(i, "FOREIGN") && d.is(i+1, "KEY"):
			fks := s.foreignKey(d, i+2)
			for _, fk := range fks {
				fkCols = append(fkCols, fk.Column)
			}
			t.ForeignKeys = append(t.ForeignKeys, fks...)
		case i > 0 || d.toks[0].Kind == sqltext.TokenIdent && tableClauses[strings.ToUpper(d.toks[0].Text)]:
			s.log.Debug("skipping table clause", slog.String("table", name), slog.String("clause", collapseSpace(def)))
		default:
			col, fk, ok := s.columnDef(d)
			if !ok {
				s.log.Debug("skipping column definition", slog.String("table", name), slog.String("definition", collapseSpace(def)))
				continue
			}
			t.Columns = append(t.Columns, col)
			if fk != nil {
				t.ForeignKeys = append(t.ForeignKeys, *fk)
			}
		}
	}

	for _, c := range pk {
		if col := t.Column(c); col != nil {
			col.IsPrimaryKey = true
		}
	}
	for _, c := range fkCols {
		if col := t.Column(c); col != nil {
			col.IsForeignKey = true
		}
	}
	return t
}

// foreignKey parses `(cols) REFERENCES table [(cols)]` at i. Composite keys
// pair columns by position.
func (s *session) foreignKey(d *body, i int) []core.ForeignKeyRef {
	cols := d.nameList(i)
	j := i
	for j < d.len() && !d.is(j, "REFERENCES") {
		j++
	}
	ref, end := d.chain(j + 1)
	name := qualified(ref)
	if len(cols) == 0 || name == "" {
		return nil
	}
	table := s.canonical(name)
	refCols := d.nameList(end)

	fks := make([]core.ForeignKeyRef, 0, len(cols))
	for n, c := range cols {
		fk := core.ForeignKeyRef{Column: c, ReferencedTable: table}
		if n < len(refCols) {
			fk.ReferencedColumn = refCols[n]
			s.discovered.Add(table, fk.ReferencedColumn)
		}
		fks = append(fks, fk)
	}
	return fks
}

// columnDef parses `name type [args] [modifiers]`.
func (s *session) columnDef(d *body) (core.Column, *core.ForeignKeyRef, bool) {
	first := d.toks[0]
	if !first.IsIdent() || first.Kind == sqltext.TokenIdent && sqltext.IsKeyword(first.Text) {
		return core.Column{}, nil, false
	}
	col := core.Column{Name: first.Value()}

	j := 1
	for j < d.len() {
		t := d.toks[j]
		if t.IsPunct('(') {
			j = d.skipParen(j)
			continue
		}
		if t.Kind == sqltext.TokenIdent {
			word := strings.ToUpper(t.Text)
			if typeStops[word] {
				break
			}
			if word == "WITH" && !d.is(j+1, "TIME") && !d.is(j+1, "LOCAL") {
				break
			}
		}
		j++
	}
	col.Type = collapseSpace(d.span(1, j))
	if col.Type == "" {
		col.Type = "TEXT"
	}

	var fk *core.ForeignKeyRef
	for k := j; k < d.len(); k++ {
		switch {
		case d.is(k, "PRIMARY") && d.is(k+1, "KEY"):
			col.IsPrimaryKey = true
		case d.is(k, "SORTKEY"):
			col.IsSortKey = true
		case d.is(k, "REFERENCES") && fk == nil:
			ref, end := d.chain(k + 1)
			name := qualified(ref)
			if name == "" {
				continue
			}
			col.IsForeignKey = true
			fk = &core.ForeignKeyRef{Column: col.Name, ReferencedTable: s.canonical(name)}
			if refCols := d.nameList(end); len(refCols) > 0 {
				fk.ReferencedColumn = refCols[0]
				s.discovered.Add(fk.ReferencedTable, fk.ReferencedColumn)
			}
		}
	}
	return col, fk, true
}

// createView handles CREATE [MATERIALIZED] VIEW name [(cols)] [options] AS body.
func (s *session) createView(b *body, at int) bool {
	name, k := b.objectName(at + 1)
	if name == "" {
		return false
	}
	var sortKeys, listed []string
	for i := k; i < b.len(); i++ {
		switch {
		case b.punct(i, '('):
			if i == k {
				listed = b.nameList(i)
			} else {
				sortKeys = append(sortKeys, b.sortKeysAt(i)...)
			}
			i = b.matchParen(i)
		case b.is(i, "AS") && b.depth[i] == 0:
			t := s.walkQuery(b.rest(i+1), name, true)
			renameColumns(t, listed)
			t.MarkSortKeys(sortKeys)
			return true
		}
	}
	return false
}
