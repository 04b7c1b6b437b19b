package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/sqltext"
)

// Result is everything one Parse call found.
type Result struct {
	// Tables holds tables, views and CTEs in definition order. A later
	// definition of a name replaces the earlier one in place.
	Tables []*core.Table
	// Discovered holds the columns seen referenced per table name.
	Discovered *Discovered
	// Skipped lists statements abandoned after an internal failure.
	Skipped []StatementError
}

// Table returns the table with the given name (case-insensitive), or nil.
func (r *Result) Table(name string) *core.Table {
	for _, t := range r.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// StatementError records a statement whose analysis failed. Such failures
// are recovered; the remaining statements are still analyzed.
type StatementError struct {
	Index     int    // zero-based statement position
	Statement string // statement text, shortened
	Err       error
}

func (e StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index+1, e.Err)
}

func (e StatementError) Unwrap() error {
	return e.Err
}

// Parse analyzes every statement in sql. It never fails: statements it does
// not recognize are ignored and statements whose analysis breaks are listed
// in Result.Skipped.
func Parse(sql string, opts Options) *Result {
	s := newSession(opts)
	stmts := sqltext.SplitStatements(sqltext.StripComments(sql))
	s.log.Debug("parsing sql", slog.Int("statements", len(stmts)))

	for i, stmt := range stmts {
		s.statement(i, stmt)
	}
	return &Result{
		Tables:     s.tables,
		Discovered: s.discovered,
		Skipped:    s.skipped,
	}
}

// statement dispatches one statement to the DDL analyzer or the query walker.
func (s *session) statement(idx int, text string) {
	defer func() {
		if r := recover(); r != nil {
			se := StatementError{
				Index:     idx,
				Statement: shorten(text, 80),
				Err:       fmt.Errorf("analyzer panic: %v", r),
			}
			s.log.Warn("statement skipped", slog.Int("index", idx), slog.Any("error", se.Err))
			s.skipped = append(s.skipped, se)
		}
	}()

	b := newBody(text)
	handled := false
	switch kind, at := b.createHead(); kind {
	case "TABLE":
		handled = s.createTable(b, at)
	case "VIEW":
		handled = s.createView(b, at)
	default:
		if b.is(0, "WITH") || b.is(0, "SELECT") {
			s.walkQuery(text, s.opts.AdHocName, true)
			handled = true
		}
	}
	if !handled {
		s.log.Debug("statement not recognized", slog.Int("index", idx), slog.String("sql", shorten(text, 80)))
	}
}

func shorten(s string, n int) string {
	s = collapseSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
