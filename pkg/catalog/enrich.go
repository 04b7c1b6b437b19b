package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// Enrich replaces the guessed columns of every stub table with the columns
// the catalog reports. Stubs the catalog does not know keep their guesses.
// A failed lookup is logged and the walk goes on with the next stub. It
// returns the number of stubs enriched and the joined lookup errors.
func Enrich(ctx context.Context, c Catalog, tables []*core.Table, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var (
		enriched int
		errs     []error
	)
	for _, t := range tables {
		if !t.IsStub {
			continue
		}
		if err := ctx.Err(); err != nil {
			return enriched, err
		}
		cols, err := c.Columns(ctx, t.Name)
		if errors.Is(err, ErrTableNotFound) {
			logger.Debug("stub not in catalog", slog.String("table", t.Name))
			continue
		}
		if err != nil {
			logger.Warn("catalog lookup failed", slog.String("table", t.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("catalog lookup for %s: %w", t.Name, err))
			continue
		}

		t.Columns = make([]core.Column, 0, len(cols))
		for _, col := range cols {
			t.Columns = append(t.Columns, core.Column{
				Name:         col.Name,
				Type:         col.Type,
				Provenance:   core.ProvenanceDeclared,
				IsPrimaryKey: col.IsPrimaryKey,
			})
		}
		enriched++
		logger.Debug("stub enriched from catalog", slog.String("table", t.Name), slog.Int("columns", len(cols)))
	}
	return enriched, errors.Join(errs...)
}
