package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/internal/cli/output"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
)

// ranksReport is the structured output of the ranks command.
type ranksReport struct {
	// Levels groups tables by data-flow depth; level 0 reads from nothing.
	Levels [][]string `json:"levels" yaml:"levels"`
	// Ranks are the layout columns (rows for TB) of each table.
	Ranks     map[string]int `json:"ranks" yaml:"ranks"`
	RankCount int            `json:"rankCount" yaml:"rankCount"`
	Reversed  int            `json:"reversed" yaml:"reversed"`
	Crossings int            `json:"crossings" yaml:"crossings"`
	diagram.Shape `yaml:",inline"`
}

// NewRanksCommand creates the ranks command.
func NewRanksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ranks [files...]",
		Short: "Show dependency levels and layout ranks",
		Long: `Display the tables grouped by dependency level, and the layout rank
each one was placed in.

Levels follow data flow: a table is one level below every table it reads
from or references. Ranks are what the layout used, after breaking cycles
and pulling sources next to their consumers.`,
		Example: `  # Levels of a schema
  schemagraph ranks schema.sql

  # As JSON, with crossing count
  schemagraph ranks schema.sql -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRanks(cmd, args)
		},
	}
}

func runRanks(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := loadDiagram(cmd, cc, args)
	if err != nil {
		return err
	}

	report := ranksReport{
		Levels:    diagram.Levels(res.Diagram),
		Ranks:     res.Layout.Ranks,
		RankCount: res.Layout.RankCount,
		Reversed:  res.Layout.Reversed,
		Crossings: res.Layout.Crossings,
		Shape:     diagram.ShapeOf(res.Diagram),
	}

	r := cc.Renderer
	if ok, err := r.Structured(report); ok {
		return err
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		ranksMarkdown(r, report)
		return nil
	}
	ranksText(r, report)
	return nil
}

// ranksText outputs levels in styled text format.
func ranksText(r *output.Renderer, rep ranksReport) {
	styles := r.Styles()

	r.Header(1, "Dependency Levels")
	for i, level := range rep.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, name := range level {
			r.Printf("  %s %s\n", name, styles.Muted.Render(fmt.Sprintf("(rank %d)", rep.Ranks[name])))
		}
		r.Println("")
	}
	if len(rep.Cycle) > 0 {
		r.Warning("cycle: " + strings.Join(rep.Cycle, " -> "))
	}
	r.Println(styles.Muted.Render(fmt.Sprintf("Sinks: %s", strings.Join(rep.Sinks, ", "))))
	r.Println(styles.Muted.Render(fmt.Sprintf("Layout: %d ranks, %d crossings, %d edges reversed",
		rep.RankCount, rep.Crossings, rep.Reversed)))
}

// ranksMarkdown outputs levels in markdown format.
func ranksMarkdown(r *output.Renderer, rep ranksReport) {
	r.Header(1, "Dependency Levels")

	for i, level := range rep.Levels {
		name := fmt.Sprintf("Level %d", i)
		if i == 0 {
			name = "Level 0 (Sources)"
		}
		r.Header(2, name)
		for _, t := range level {
			r.Printf("- %s\n", t)
		}
		r.Println("")
	}

	r.Header(2, "Layout Ranks")
	byRank := make([][]string, rep.RankCount)
	for name, rank := range rep.Ranks {
		if rank >= 0 && rank < len(byRank) {
			byRank[rank] = append(byRank[rank], name)
		}
	}
	rows := make([][]string, 0, len(byRank))
	for i, names := range byRank {
		sort.Strings(names)
		rows = append(rows, []string{fmt.Sprint(i), strings.Join(names, ", ")})
	}
	r.Table([]string{"Rank", "Tables"}, rows)
	r.Println(output.FormatKeyValue("Crossings", fmt.Sprint(rep.Crossings)))
	r.Println(output.FormatKeyValue("Reversed edges", fmt.Sprint(rep.Reversed)))
	r.Println(output.FormatKeyValue("Sinks", strings.Join(rep.Sinks, ", ")))
	if len(rep.Cycle) > 0 {
		r.Println(output.FormatKeyValue("Cycle", strings.Join(rep.Cycle, " -> ")))
	}
}
