package parser

import (
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/sqltext"
)

// cteScope holds the CTE names visible in the current statement.
type cteScope map[string]struct{}

func (c cteScope) add(name string) {
	c[strings.ToLower(name)] = struct{}{}
}

func (c cteScope) has(name string) bool {
	_, ok := c[strings.ToLower(name)]
	return ok
}

// walkQuery analyzes a query body that may start with a WITH clause. Each
// CTE becomes its own table; the main body is analyzed last under name with
// every sibling CTE in scope. The main table is returned.
func (s *session) walkQuery(text, name string, isView bool) *core.Table {
	text = sqltext.Unwrap(text)
	b := newBody(text)
	scope := cteScope{}

	if !b.is(0, "WITH") {
		return s.addTable(s.analyzeSelect(name, text, isView, false, scope))
	}

	i := 1
	if b.is(i, "RECURSIVE") {
		i++
	}
	for {
		cteName, columns, open, ok := b.cteHead(i)
		if !ok {
			break
		}
		end := b.matchParen(open)

		// Registered before its body so recursive self-references stay local.
		scope.add(cteName)
		t := s.analyzeSelect(cteName, b.span(open+1, end), true, true, scope)
		renameColumns(t, columns)
		s.addTable(t)

		i = end + 1
		if !b.punct(i, ',') {
			break
		}
		i++
	}
	return s.addTable(s.analyzeSelect(name, b.rest(i), isView, false, scope))
}

// cteHead matches `name [(columns)] AS [[NOT] MATERIALIZED] (` at i and
// returns the index of the opening paren of the body.
func (b *body) cteHead(i int) (name string, columns []string, open int, ok bool) {
	parts, j := b.chain(i)
	if qualified(parts) == "" {
		return "", nil, 0, false
	}
	if b.punct(j, '(') {
		columns = b.nameList(j)
		j = b.skipParen(j)
	}
	if !b.is(j, "AS") {
		return "", nil, 0, false
	}
	j++
	if b.is(j, "NOT") {
		j++
	}
	if b.is(j, "MATERIALIZED") {
		j++
	}
	if !b.punct(j, '(') {
		return "", nil, 0, false
	}
	return qualified(parts), columns, j, true
}

// renameColumns applies an explicit column list to the leading columns of t
// and to the lineage that targets them.
func renameColumns(t *core.Table, names []string) {
	if len(names) == 0 {
		return
	}
	renamed := make(map[string]string, len(names))
	for i := 0; i < len(names) && i < len(t.Columns); i++ {
		old := t.Columns[i].Name
		if _, dup := renamed[old]; !dup {
			renamed[old] = names[i]
		}
		t.Columns[i].Name = names[i]
	}
	for i := range t.Lineage {
		if name, ok := renamed[t.Lineage[i].TargetColumn]; ok {
			t.Lineage[i].TargetColumn = name
		}
	}
}
