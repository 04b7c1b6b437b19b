// Package diagram runs the whole pipeline: SQL text in, positioned nodes and
// classified edges out.
package diagram

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"
	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/graph"
	"github.com/leapstack-labs/schemagraph/pkg/layout"
	"github.com/leapstack-labs/schemagraph/pkg/parser"
)

// Options configures Generate. The zero value is usable.
type Options struct {
	Parser parser.Options
	Layout layout.Options

	// Catalog, when set, replaces guessed stub columns with real ones.
	// It must already be connected.
	Catalog catalog.Catalog

	// Focus keeps only the named table and the tables it is connected to
	// upstream or downstream. Empty keeps everything.
	Focus string

	Logger *slog.Logger
}

// Result is a laid-out diagram plus what produced it.
type Result struct {
	Diagram *core.Diagram
	// Tables holds parsed tables followed by synthesized stubs.
	Tables  []*core.Table
	Layout  layout.Result
	Skipped []parser.StatementError
	// Fingerprint is a stable hash of Diagram, usable as an ETag.
	Fingerprint string
}

// Generate parses sql and lays out its schema graph. Malformed SQL never
// fails; the only error is ctx being done. Catalog failures are logged and
// the guessed stub columns kept.
func Generate(ctx context.Context, sql string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Parser.Logger == nil {
		opts.Parser.Logger = logger
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed := parser.Parse(sql, opts.Parser)
	tables := append(parsed.Tables, graph.Synthesize(parsed.Tables, parsed.Discovered)...)

	if opts.Catalog != nil {
		n, err := catalog.Enrich(ctx, opts.Catalog, tables, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("catalog enrichment failed", slog.String("catalog", opts.Catalog.Name()), slog.Any("error", err))
		}
		logger.Debug("catalog enrichment", slog.Int("stubs", n))
	}

	d := graph.Build(tables)
	if opts.Focus != "" {
		d = Focus(d, opts.Focus)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lres := layout.Apply(d, opts.Layout)

	logger.Debug("diagram generated",
		slog.Int("nodes", len(d.Nodes)),
		slog.Int("edges", len(d.Edges)),
		slog.Int("skipped", len(parsed.Skipped)))

	return &Result{
		Diagram:     d,
		Tables:      tables,
		Layout:      lres,
		Skipped:     parsed.Skipped,
		Fingerprint: Fingerprint(d),
	}, nil
}

// Fingerprint hashes the JSON form of d with xxh3.
func Fingerprint(d *core.Diagram) string {
	data, _ := json.Marshal(d) // plain values only; cannot fail
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}
