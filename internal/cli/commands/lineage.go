package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/internal/cli/output"
	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
}

// lineageReport is the structured output of the lineage command.
type lineageReport struct {
	Table      string              `json:"table" yaml:"table"`
	Upstream   []string            `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	Downstream []string            `json:"downstream,omitempty" yaml:"downstream,omitempty"`
	Columns    []core.LineageEntry `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <table> [files...]",
		Short: "Show lineage for a table",
		Long: `Display the tables a table reads from (upstream), the tables that read
from it (downstream), and where each of its columns comes from.

Foreign keys count as dependencies of the referencing table, so a table's
upstream includes the tables it references.`,
		Example: `  # Full lineage of a view
  schemagraph lineage order_summary schema.sql

  # Only what would be affected by changing users
  schemagraph lineage users schema.sql --upstream=false

  # Output as JSON
  schemagraph lineage order_summary schema.sql --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream dependencies")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream dependents")

	return cmd
}

func runLineage(cmd *cobra.Command, table string, files []string, opts *LineageOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := loadDiagram(cmd, cc, files)
	if err != nil {
		return err
	}

	imp, ok := diagram.ImpactOf(res.Diagram, table)
	if !ok {
		return fmt.Errorf("table %q not found", table)
	}

	report := lineageReport{Table: imp.Table}
	if opts.Upstream {
		report.Upstream = imp.Upstream
	}
	if opts.Downstream {
		report.Downstream = imp.Downstream
	}
	for _, t := range res.Tables {
		if t.Name == imp.Table {
			report.Columns = t.Lineage
			break
		}
	}

	r := cc.Renderer
	if ok, err := r.Structured(report); ok {
		return err
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		lineageMarkdown(r, report, opts)
		return nil
	}
	lineageText(r, report, opts)
	return nil
}

// lineageText outputs lineage in styled text format.
func lineageText(r *output.Renderer, rep lineageReport, opts *LineageOptions) {
	styles := r.Styles()

	r.Header(1, "Lineage: "+rep.Table)

	section := func(title string, names []string) {
		r.Println(styles.Header2.Render(title))
		if len(names) == 0 {
			r.Println("  " + styles.Muted.Render("(none)"))
		}
		for _, n := range names {
			r.Printf("  %s\n", n)
		}
		r.Println("")
	}
	if opts.Upstream {
		section(fmt.Sprintf("Upstream (%d):", len(rep.Upstream)), rep.Upstream)
	}
	if opts.Downstream {
		section(fmt.Sprintf("Downstream (%d):", len(rep.Downstream)), rep.Downstream)
	}

	if len(rep.Columns) > 0 {
		r.Println(styles.Header2.Render("Columns:"))
		r.Table([]string{"Column", "Source", "Formula"}, columnRows(rep.Columns))
	}
}

// lineageMarkdown outputs lineage in markdown format.
func lineageMarkdown(r *output.Renderer, rep lineageReport, opts *LineageOptions) {
	r.Header(1, "Lineage: "+rep.Table)

	list := func(title string, names []string) {
		r.Header(2, title)
		if len(names) == 0 {
			r.Println("_None_")
		}
		for _, n := range names {
			r.Printf("- %s\n", n)
		}
		r.Println("")
	}
	if opts.Upstream {
		list("Upstream", rep.Upstream)
	}
	if opts.Downstream {
		list("Downstream", rep.Downstream)
	}

	if len(rep.Columns) > 0 {
		r.Header(2, "Columns")
		r.Table([]string{"Column", "Source", "Formula"}, columnRows(rep.Columns))
	}
}

func columnRows(entries []core.LineageEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, l := range entries {
		rows = append(rows, []string{
			l.TargetColumn,
			l.SourceTable + "." + l.SourceColumn,
			strings.TrimSpace(l.Formula),
		})
	}
	return rows
}
