package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/sqltext"
)

// selectAnalysis is the state of analyzing one query body.
type selectAnalysis struct {
	s       *session
	b       *body
	scope   cteScope
	aliases *AliasMap
	refs    []string         // referenced tables, first-seen order
	seen    map[string]bool  // lower(ref)
	exclude map[int]bool     // tokens naming tables or aliases
	outputs map[string]bool  // lower(projection alias)
	items   []projectionItem // top-level projection list
}

// projectionItem is one top-level entry of the select list.
type projectionItem struct {
	from, to int // token range
	column   int // index of the column it produced, or -1
}

// reference is a column reference found in an expression.
type reference struct {
	qualifier string // dotted alias or table name; empty when bare
	column    string
}

// selectStops end a select list when the query has no FROM.
var selectStops = map[string]bool{
	"FROM": true, "INTO": true, "WHERE": true, "GROUP": true, "HAVING": true,
	"ORDER": true, "LIMIT": true, "OFFSET": true, "FETCH": true, "WINDOW": true,
	"QUALIFY": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
}

// groupByStops end a GROUP BY list.
var groupByStops = map[string]bool{
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true, "FETCH": true,
	"FOR": true, "QUALIFY": true, "WINDOW": true, "UNION": true, "EXCEPT": true,
	"INTERSECT": true,
}

// analyzeSelect builds the table produced by a query body: its columns,
// column lineage and one structural reference per table it reads.
func (s *session) analyzeSelect(name, text string, isView, isCte bool, scope cteScope) *core.Table {
	a := &selectAnalysis{
		s:       s,
		b:       newBody(text),
		scope:   scope,
		aliases: NewAliasMap(),
		seen:    make(map[string]bool),
		exclude: make(map[int]bool),
		outputs: make(map[string]bool),
	}
	t := &core.Table{
		Name:   s.canonical(sqltext.CleanIdentifier(name)),
		IsView: isView,
		IsCte:  isCte,
	}

	a.resolveTables()

	if sel := a.findSelect(); sel >= 0 {
		a.projection(sel)
		a.columns(t)
		a.discoverAll()
		a.groupBy(t, sel)
	} else {
		t.Columns = []core.Column{core.SyntheticColumn(core.UnknownColumnsName, core.ProvenanceUnparsed)}
	}

	for _, ref := range a.refs {
		t.ForeignKeys = append(t.ForeignKeys, core.ForeignKeyRef{ReferencedTable: ref})
	}
	return t
}

// resolveTables scans FROM, JOIN, APPLY and UNNEST clauses at every depth
// and fills the alias map and the referenced table list.
func (a *selectAnalysis) resolveTables() {
	b := a.b
	for i, t := range b.toks {
		switch {
		case t.Is("FROM"):
			if b.insideFromCaller(i) || a.distinctFrom(i) {
				continue
			}
			a.fromList(i+1, b.depth[i])
		case t.Is("JOIN"), t.Is("APPLY"):
			a.tableItem(i + 1)
		case t.Is("UNNEST"):
			if i+1 < b.len() && b.toks[i+1].IsIdent() {
				a.tableItem(i + 1)
			}
		}
	}
}

// distinctFrom reports whether the FROM at i belongs to IS [NOT] DISTINCT FROM.
func (a *selectAnalysis) distinctFrom(i int) bool {
	return a.b.is(i-1, "DISTINCT") && (a.b.is(i-2, "IS") || a.b.is(i-2, "NOT"))
}

// fromList reads comma-separated table items starting at i.
func (a *selectAnalysis) fromList(i, depth int) {
	for {
		i = a.tableItem(i)
		if !a.b.punct(i, ',') || a.b.depth[i] != depth {
			return
		}
		i++
	}
}

// tableItem reads one table reference (name, derived table or table
// function) with its optional alias and returns the index after it.
func (a *selectAnalysis) tableItem(i int) int {
	b := a.b
	for b.is(i, "LATERAL") || b.is(i, "ONLY") {
		i++
	}
	if i >= b.len() {
		return i
	}
	if b.punct(i, '(') {
		return a.itemAlias(b.skipParen(i), "")
	}
	if !b.toks[i].IsIdent() {
		return i
	}
	parts, end := b.chain(i)
	if b.punct(end, '(') {
		// table function such as generate_series(...) or UNNEST(...)
		return a.itemAlias(b.skipParen(end), "")
	}
	if b.toks[i].Kind == sqltext.TokenIdent && len(parts) == 1 && sqltext.IsKeyword(parts[0]) {
		return i
	}

	for k := i; k < end; k++ {
		a.exclude[k] = true
	}
	name := qualified(parts)
	if name == "" {
		return a.itemAlias(end, "")
	}
	name = a.s.canonical(name)
	a.addRef(name)
	return a.itemAlias(end, name)
}

// itemAlias reads `[AS] alias [(columns)]` at i. The alias is mapped to table
// when table is known.
func (a *selectAnalysis) itemAlias(i int, table string) int {
	b := a.b
	j := i
	if b.is(j, "AS") {
		j++
	}
	if j >= b.len() || !isAliasToken(b.toks[j]) {
		return i
	}
	a.exclude[j] = true
	a.aliases.Set(b.toks[j].Value(), table)
	j++
	if b.punct(j, '(') {
		end := b.matchParen(j)
		for k := j; k < end; k++ {
			a.exclude[k] = true
		}
		j = min(end+1, b.len())
	}
	return j
}

// isAliasToken reports whether t can name an alias.
func isAliasToken(t sqltext.Token) bool {
	if t.Kind == sqltext.TokenQuotedIdent {
		return true
	}
	return t.Kind == sqltext.TokenIdent && !sqltext.IsKeyword(t.Text) && !sqltext.IsExpressionWord(t.Text)
}

func (a *selectAnalysis) addRef(name string) {
	a.aliases.Register(name)
	key := strings.ToLower(name)
	if a.seen[key] {
		return
	}
	a.seen[key] = true
	a.refs = append(a.refs, name)
}

// findSelect returns the index of the first SELECT, or -1.
func (a *selectAnalysis) findSelect() int {
	for i, t := range a.b.toks {
		if t.Is("SELECT") {
			return i
		}
	}
	return -1
}

// projection splits the select list following the SELECT at sel into items.
// The list ends at the first FROM (or other clause keyword) at the SELECT's
// own depth, so subqueries inside the list do not end it early.
func (a *selectAnalysis) projection(sel int) {
	b := a.b
	depth := b.depth[sel]
	i := a.skipSelectModifiers(sel + 1)

	start := i
	for ; i < b.len(); i++ {
		if b.depth[i] < depth {
			break
		}
		if b.depth[i] != depth {
			continue
		}
		t := b.toks[i]
		if t.Kind == sqltext.TokenIdent && selectStops[strings.ToUpper(t.Text)] {
			break
		}
		if t.IsPunct(',') {
			a.addItem(start, i)
			start = i + 1
		}
		if t.IsPunct(';') {
			break
		}
	}
	a.addItem(start, i)
}

func (a *selectAnalysis) addItem(from, to int) {
	if from < to {
		a.items = append(a.items, projectionItem{from: from, to: to, column: -1})
	}
}

// skipSelectModifiers steps over DISTINCT [ON (...)], ALL, TOP n and
// BigQuery's AS STRUCT / AS VALUE.
func (a *selectAnalysis) skipSelectModifiers(i int) int {
	b := a.b
	for {
		switch {
		case b.is(i, "DISTINCT"):
			i++
			if b.is(i, "ON") && b.punct(i+1, '(') {
				i = b.skipParen(i + 1)
			}
		case b.is(i, "ALL"):
			i++
		case b.is(i, "TOP"):
			i++
			if b.punct(i, '(') {
				i = b.skipParen(i)
			} else if i < b.len() && b.toks[i].Kind == sqltext.TokenNumber {
				i++
			}
			if b.is(i, "PERCENT") {
				i++
			}
			if b.is(i, "WITH") && b.is(i+1, "TIES") {
				i += 2
			}
		case b.is(i, "AS") && (b.is(i+1, "STRUCT") || b.is(i+1, "VALUE")):
			i += 2
		default:
			return i
		}
	}
}

// columns turns the projection items into columns and lineage on t.
func (a *selectAnalysis) columns(t *core.Table) {
	for n := range a.items {
		it := &a.items[n]

		if qualifier, ok := a.wildcard(it.from, it.to); ok {
			a.discoverWildcard(qualifier)
			continue
		}

		alias, exprEnd := a.splitAlias(it.from, it.to)
		if alias != "" {
			a.outputs[strings.ToLower(alias)] = true
		}

		calculated := !a.isDirect(it.from, exprEnd)
		var (
			name  = alias
			links []link
		)
		if calculated {
			links = a.calculatedLinks(it.from, exprEnd)
			if name == "" && len(links) > 0 {
				name = links[0].column
			}
		} else {
			parts, _ := a.b.chain(it.from)
			links = a.directLinks(parts)
			if name == "" {
				name = parts[len(parts)-1]
			}
		}
		if name == "" {
			name = fallbackName(a.b.span(it.from, it.to))
		}
		if name == "" || name == core.WildcardMarker || strings.EqualFold(name, "SELECT") {
			continue
		}

		formula := ""
		if calculated {
			formula = collapseSpace(a.b.span(it.from, exprEnd))
		}
		for _, l := range links {
			t.Lineage = append(t.Lineage, core.LineageEntry{
				SourceTable:  l.table,
				SourceColumn: l.column,
				TargetColumn: name,
				Formula:      formula,
			})
		}

		prov := core.ProvenanceMapped
		switch {
		case t.IsCte:
			prov = core.ProvenanceStart
		case calculated:
			prov = core.ProvenanceCalculated
		}
		t.Columns = append(t.Columns, core.SyntheticColumn(name, prov))
		it.column = len(t.Columns) - 1
	}
}

// link is a resolved source column.
type link struct {
	table, column string
}

// wildcard recognizes `*`, `q.*` and `* EXCEPT (...)` style items.
func (a *selectAnalysis) wildcard(from, to int) (string, bool) {
	b := a.b
	i := from
	var parts []string
	if b.toks[i].IsIdent() {
		parts, i = b.chain(i)
		if i >= to || !b.punct(i, '.') {
			return "", false
		}
		i++
	}
	if i >= to || b.toks[i].Kind != sqltext.TokenOperator || b.toks[i].Text != "*" {
		return "", false
	}
	i++
	if i < to && !(b.is(i, "EXCEPT") || b.is(i, "EXCLUDE") || b.is(i, "REPLACE") || b.is(i, "RENAME")) {
		return "", false
	}
	return strings.Join(parts, "."), true
}

func (a *selectAnalysis) discoverWildcard(qualifier string) {
	if qualifier == "" {
		for _, ref := range a.refs {
			a.s.discover(a.scope, ref, core.WildcardMarker)
		}
		return
	}
	if table, ok := a.aliases.ResolveQualifier(qualifier); ok {
		a.s.discover(a.scope, table, core.WildcardMarker)
	}
}

// splitAlias finds an explicit or implicit output alias at the end of the
// item and returns it with the end of the expression proper.
func (a *selectAnalysis) splitAlias(from, to int) (string, int) {
	b := a.b
	if to-from >= 3 && b.is(to-2, "AS") && b.toks[to-1].IsIdent() {
		a.exclude[to-1] = true
		return b.toks[to-1].Value(), to - 2
	}
	if to-from < 2 || !isAliasToken(b.toks[to-1]) {
		return "", to
	}
	prev := b.toks[to-2]
	switch {
	case prev.Kind == sqltext.TokenIdent && sqltext.IsKeyword(prev.Text) && !prev.Is("END"):
		return "", to
	case prev.IsIdent(), prev.IsLiteral(), prev.IsPunct(')'):
		a.exclude[to-1] = true
		return b.toks[to-1].Value(), to - 1
	}
	return "", to
}

// isDirect reports whether tokens [from, to) are a plain column reference.
func (a *selectAnalysis) isDirect(from, to int) bool {
	parts, end := a.b.chain(from)
	if len(parts) == 0 || end != to {
		return false
	}
	if len(parts) == 1 && a.b.toks[from].Kind == sqltext.TokenIdent {
		w := parts[0]
		return !sqltext.IsKeyword(w) && !sqltext.IsExpressionWord(w)
	}
	return true
}

// directLinks resolves a plain column reference.
func (a *selectAnalysis) directLinks(parts []string) []link {
	col := parts[len(parts)-1]
	if len(parts) == 1 {
		return a.bareLinks(col)
	}
	table, ok := a.aliases.ResolveQualifier(strings.Join(parts[:len(parts)-1], "."))
	if !ok || table == "" {
		return nil
	}
	a.s.discover(a.scope, table, col)
	return []link{{table: table, column: col}}
}

// calculatedLinks resolves every distinct reference inside an expression.
func (a *selectAnalysis) calculatedLinks(from, to int) []link {
	var links []link
	seen := make(map[string]bool)
	for _, ref := range a.harvest(from, to) {
		var found []link
		if ref.qualifier == "" {
			found = a.bareLinks(ref.column)
		} else if table, ok := a.aliases.ResolveQualifier(ref.qualifier); ok && table != "" {
			a.s.discover(a.scope, table, ref.column)
			found = []link{{table: table, column: ref.column}}
		}
		for _, l := range found {
			key := strings.ToLower(l.table + "\x00" + l.column)
			if seen[key] {
				continue
			}
			seen[key] = true
			links = append(links, l)
		}
	}
	return links
}

// bareLinks applies the resolution policy to an unqualified column, records
// discovery, and returns the lineage sources.
func (a *selectAnalysis) bareLinks(col string) []link {
	lineage, discovery := a.bareTargets()
	for _, table := range discovery {
		a.s.discover(a.scope, table, col)
	}
	links := make([]link, 0, len(lineage))
	for _, table := range lineage {
		links = append(links, link{table: table, column: col})
	}
	return links
}

// bareTargets returns the tables an unqualified column is attributed to for
// lineage and for discovery.
func (a *selectAnalysis) bareTargets() (lineage, discovery []string) {
	if len(a.refs) == 0 {
		return nil, nil
	}
	switch a.s.opts.Resolution {
	case ResolveAll:
		return a.refs, a.refs
	case ResolveUnique:
		if len(a.refs) == 1 {
			return a.refs, a.refs
		}
		return nil, nil
	default:
		return a.refs[:1], a.refs
	}
}

// harvest returns the column references in tokens [from, to). Function
// names, types after AS or ::, typed literals, keywords, variables and
// excluded table/alias tokens are not references.
func (a *selectAnalysis) harvest(from, to int) []reference {
	b := a.b
	var refs []reference
	typeRun := -1 // last token skipped as part of a type name
	for i := from; i < to && i < b.len(); i++ {
		t := b.toks[i]
		if !t.IsIdent() || a.exclude[i] {
			continue
		}
		parts, end := b.chain(i)
		start := i
		i = end - 1

		prev := start - 1
		switch {
		case b.is(prev, "AS"), b.is(prev, "OVER"), b.is(prev, "WINDOW"),
			prev >= 0 && b.toks[prev].Kind == sqltext.TokenOperator && b.toks[prev].Text == "::",
			prev >= 0 && prev == typeRun && b.toks[prev].Kind == sqltext.TokenIdent:
			typeRun = i
			continue
		}
		if end < b.len() {
			next := b.toks[end]
			if next.IsPunct('(') || next.IsPunct('.') {
				continue
			}
			if next.Kind == sqltext.TokenString && len(parts) == 1 {
				continue
			}
		}

		col := parts[len(parts)-1]
		last := b.toks[end-1]
		if last.Kind == sqltext.TokenIdent {
			if sqltext.IsKeyword(col) || strings.HasPrefix(col, "@") {
				continue
			}
			if len(parts) == 1 && sqltext.IsExpressionWord(col) {
				continue
			}
		}
		refs = append(refs, reference{
			qualifier: strings.Join(parts[:len(parts)-1], "."),
			column:    col,
		})
	}
	return refs
}

// discoverAll records every column reference in the body, wherever it
// appears, so stubs learn about columns used only in filters or joins.
func (a *selectAnalysis) discoverAll() {
	for _, ref := range a.harvest(0, a.b.len()) {
		if ref.qualifier != "" {
			if table, ok := a.aliases.ResolveQualifier(ref.qualifier); ok {
				a.s.discover(a.scope, table, ref.column)
			}
			continue
		}
		if a.outputs[strings.ToLower(ref.column)] {
			continue
		}
		_, discovery := a.bareTargets()
		for _, table := range discovery {
			a.s.discover(a.scope, table, ref.column)
		}
	}
}

// groupBy flags projected columns named (or numbered) in the GROUP BY
// clause of the SELECT at sel.
func (a *selectAnalysis) groupBy(t *core.Table, sel int) {
	b := a.b
	depth := b.depth[sel]
	i := sel + 1
	for ; i < b.len(); i++ {
		if b.depth[i] < depth {
			return
		}
		if b.depth[i] == depth && b.is(i, "GROUP") && b.is(i+1, "BY") {
			break
		}
	}
	if i >= b.len() {
		return
	}

	start := i + 2
	for i = start; i <= b.len(); i++ {
		if i < b.len() && b.depth[i] > depth {
			continue
		}
		if i < b.len() && b.depth[i] == depth && b.toks[i].IsPunct(',') {
			a.markGrouping(t, start, i)
			start = i + 1
			continue
		}
		if i == b.len() || b.depth[i] < depth || b.toks[i].IsPunct(';') ||
			(b.toks[i].Kind == sqltext.TokenIdent && groupByStops[strings.ToUpper(b.toks[i].Text)]) {
			a.markGrouping(t, start, i)
			return
		}
	}
}

// markGrouping flags the columns a single GROUP BY item refers to: a 1-based
// ordinal into the select list, or the column names it mentions.
func (a *selectAnalysis) markGrouping(t *core.Table, from, to int) {
	if from >= to {
		return
	}
	b := a.b
	if to-from == 1 && b.toks[from].Kind == sqltext.TokenNumber {
		n, err := strconv.Atoi(b.toks[from].Text)
		if err != nil || n < 1 || n > len(a.items) {
			return
		}
		if c := a.items[n-1].column; c >= 0 {
			t.Columns[c].IsGroupingKey = true
		}
		return
	}
	for _, ref := range a.harvest(from, to) {
		for c := range t.Columns {
			if strings.EqualFold(t.Columns[c].Name, ref.column) {
				t.Columns[c].IsGroupingKey = true
			}
		}
	}
}

// fallbackName is the last dot- or space-separated token of an expression.
func fallbackName(expr string) string {
	fields := strings.FieldsFunc(expr, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return ""
	}
	return sqltext.CleanIdentifier(fields[len(fields)-1])
}
