package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/internal/cli/config"
	"github.com/leapstack-labs/schemagraph/internal/cli/output"
	"github.com/leapstack-labs/schemagraph/pkg/catalog"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"

	// Catalog implementations register themselves.
	_ "github.com/leapstack-labs/schemagraph/pkg/catalog/duckdb"
	_ "github.com/leapstack-labs/schemagraph/pkg/catalog/postgres"
	_ "github.com/leapstack-labs/schemagraph/pkg/catalog/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	// Catalog is connected when one is configured, otherwise nil.
	Catalog catalog.Catalog
}

// NewCommandContext builds the command dependencies from the config the
// root command stored in context, loading it when the command runs on its
// own. A configured catalog is connected; the returned cleanup closes it and
// must always be called.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	cfg, ok := config.FromContext(ctx)
	if !ok {
		var err error
		if cfg, err = config.Load("", cmd.Flags()); err != nil {
			return nil, nil, err
		}
	}
	logger := config.GetLogger(ctx)

	mode := output.Mode(cfg.OutputFormat)
	if !mode.Valid() {
		return nil, nil, fmt.Errorf("unknown output format %q (want one of %s)", cfg.OutputFormat, strings.Join(output.Modes(), ", "))
	}

	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
	cleanup := func() {}

	if cfg.Catalog.Type != "" {
		cat, err := catalog.New(cfg.Catalog, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := cat.Connect(ctx, cfg.Catalog); err != nil {
			return nil, nil, fmt.Errorf("failed to connect %s catalog: %w", cat.Name(), err)
		}
		cc.Catalog = cat
		cleanup = func() {
			if err := cat.Close(); err != nil {
				logger.Warn("failed to close catalog", slog.Any("error", err))
			}
		}
	}

	return cc, cleanup, nil
}

// DiagramOptions returns the pipeline options for this invocation.
func (c *CommandContext) DiagramOptions() diagram.Options {
	opts := c.Cfg.DiagramOptions(c.Logger)
	opts.Catalog = c.Catalog
	return opts
}

// source is one named SQL input.
type source struct {
	Name string
	SQL  string
}

// readSources reads each file argument; no arguments or "-" read stdin.
func readSources(cmd *cobra.Command, args []string) ([]source, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	sources := make([]source, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			sources = append(sources, source{Name: "stdin", SQL: string(data)})
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		sources = append(sources, source{Name: arg, SQL: string(data)})
	}
	return sources, nil
}

// joinSources concatenates sources into one script. The separator keeps a
// file without a trailing semicolon from running into the next.
func joinSources(sources []source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.SQL
	}
	return strings.Join(parts, "\n;\n")
}

// loadDiagram reads the inputs as one script and generates its diagram.
func loadDiagram(cmd *cobra.Command, cc *CommandContext, args []string) (*diagram.Result, error) {
	sources, err := readSources(cmd, args)
	if err != nil {
		return nil, err
	}
	res, err := diagram.Generate(cmd.Context(), joinSources(sources), cc.DiagramOptions())
	if err != nil {
		return nil, err
	}
	warnSkipped(cc.Renderer, res)
	return res, nil
}

func warnSkipped(r *output.Renderer, res *diagram.Result) {
	for _, sk := range res.Skipped {
		r.Warning("skipped " + sk.Error())
	}
}
