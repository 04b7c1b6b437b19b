package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/internal/cli/output"
	"github.com/leapstack-labs/schemagraph/internal/config"
	"github.com/leapstack-labs/schemagraph/internal/watch"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Regenerate the diagram whenever a file changes",
		Long: `Watch a SQL file and regenerate its diagram after every save.

In json or yaml mode each change writes one complete diagram document;
otherwise a one-line summary is printed. Unchanged diagrams are not
written again.`,
		Example: `  # Summaries on every save
  schemagraph watch schema.sql

  # Stream diagrams to another tool
  schemagraph watch schema.sql -o json | my-renderer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0])
		},
	}

	cmd.Flags().Duration("debounce", config.DefaultDebounce, "Quiet period before regenerating")
	cmd.Flags().String("focus", "", "Keep only this table and the tables connected to it")

	return cmd
}

func runWatch(cmd *cobra.Command, path string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	opts := cc.DiagramOptions()
	last := ""

	return watch.File(cmd.Context(), path, watch.Options{
		Debounce: cc.Cfg.Watch.Debounce,
		Logger:   cc.Logger,
	}, func(ctx context.Context, content string) {
		res, err := diagram.Generate(ctx, content, opts)
		if err != nil {
			if ctx.Err() == nil {
				cc.Logger.Error("regenerate failed", slog.Any("error", err))
			}
			return
		}
		if res.Fingerprint == last {
			return
		}
		last = res.Fingerprint
		if err := watchReport(r, path, res); err != nil {
			cc.Logger.Error("failed to write diagram", slog.Any("error", err))
		}
	})
}

func watchReport(r *output.Renderer, path string, res *diagram.Result) error {
	if ok, err := r.Structured(fileDiagram{File: path, Fingerprint: res.Fingerprint, Diagram: res.Diagram}); ok {
		return err
	}
	warnSkipped(r, res)
	r.Printf("%s %s: %s %s\n",
		r.Muted(time.Now().Format(time.TimeOnly)),
		path,
		summaryLine(res),
		r.Muted("["+res.Fingerprint[:8]+"]"))
	return nil
}
