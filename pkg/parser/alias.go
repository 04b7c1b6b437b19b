package parser

import (
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/sqltext"
)

// AliasMap maps aliases and table names to canonical table names within one
// query body. Keys are case-insensitive.
type AliasMap struct {
	m map[string]string
}

// NewAliasMap returns an empty map.
func NewAliasMap() *AliasMap {
	return &AliasMap{m: make(map[string]string)}
}

// Set maps alias to table.
func (a *AliasMap) Set(alias, table string) {
	if alias == "" {
		return
	}
	a.m[strings.ToLower(alias)] = table
}

// Register adds the identity mapping for table and, for a qualified name,
// its last segment as an implicit alias.
func (a *AliasMap) Register(table string) {
	a.Set(table, table)
	if last := sqltext.LastSegment(table); last != table {
		a.Set(last, table)
	}
}

// Resolve returns the table that name stands for.
func (a *AliasMap) Resolve(name string) (string, bool) {
	t, ok := a.m[strings.ToLower(name)]
	return t, ok
}

// ResolveQualifier resolves the qualifier of a column reference: the whole
// qualifier first, then its last segment (db.schema.t.col via "t").
func (a *AliasMap) ResolveQualifier(qualifier string) (string, bool) {
	if t, ok := a.Resolve(qualifier); ok {
		return t, true
	}
	if last := sqltext.LastSegment(qualifier); last != qualifier {
		return a.Resolve(last)
	}
	return "", false
}

// Len returns the number of keys.
func (a *AliasMap) Len() int {
	return len(a.m)
}
