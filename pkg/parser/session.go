package parser

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// session owns everything one Parse call accumulates.
type session struct {
	opts       Options
	log        *slog.Logger
	tables     []*core.Table
	index      map[string]int    // lower(name) -> position in tables
	names      map[string]string // lower(name) -> first spelling seen
	discovered *Discovered
	skipped    []StatementError
}

func newSession(opts Options) *session {
	opts = opts.withDefaults()
	return &session{
		opts:       opts,
		log:        opts.Logger,
		index:      make(map[string]int),
		names:      make(map[string]string),
		discovered: NewDiscovered(),
	}
}

// canonical returns the spelling under which name was first seen, so that
// Orders and orders end up on the same node.
func (s *session) canonical(name string) string {
	key := strings.ToLower(name)
	if c, ok := s.names[key]; ok {
		return c
	}
	s.names[key] = name
	return name
}

// addTable stores t, replacing an earlier table of the same name in place.
func (s *session) addTable(t *core.Table) *core.Table {
	key := strings.ToLower(t.Name)
	if i, ok := s.index[key]; ok {
		s.log.Debug("table redefined", slog.String("table", t.Name))
		s.tables[i] = t
		return t
	}
	s.index[key] = len(s.tables)
	s.tables = append(s.tables, t)
	return t
}

// discover records column on table unless table is a CTE in scope.
func (s *session) discover(scope cteScope, table, column string) {
	if scope.has(table) {
		return
	}
	s.discovered.Add(table, column)
}
