package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/schemagraph/internal/cli/output"
	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
	"github.com/leapstack-labs/schemagraph/pkg/graph"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Separate bool
	Columns  bool
}

// fileDiagram is the structured output of one input.
type fileDiagram struct {
	File        string        `json:"file,omitempty" yaml:"file,omitempty"`
	Fingerprint string        `json:"fingerprint" yaml:"fingerprint"`
	Diagram     *core.Diagram `json:"diagram" yaml:"diagram"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:     "generate [files...]",
		Aliases: []string{"gen"},
		Short:   "Generate a schema diagram from SQL",
		Long: `Parse SQL scripts and emit the laid-out schema diagram.

All files are read as one script, so views in one file can reference tables
declared in another. With --separate each file gets its own diagram.
Without file arguments the script is read from stdin.

Output adapts to environment:
  - Terminal: Styled tables
  - Piped/Scripted: Markdown
  - --output json|yaml: The full diagram (nodes with positions, edges)`,
		Example: `  # Diagram for a schema file, as JSON for a renderer
  schemagraph generate schema.sql -o json

  # Only the tables connected to orders
  schemagraph generate schema.sql views.sql --focus orders

  # One diagram per file, top to bottom
  schemagraph generate *.sql --separate --direction TB -o yaml

  # From stdin
  pg_dump --schema-only mydb | schemagraph generate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, opts)
		},
	}

	cmd.Flags().String("focus", "", "Keep only this table and the tables connected to it")
	cmd.Flags().BoolVar(&opts.Separate, "separate", false, "Generate one diagram per input file")
	cmd.Flags().BoolVar(&opts.Columns, "columns", false, "List the columns of every table (text and markdown)")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, opts *GenerateOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer

	if !opts.Separate {
		res, err := loadDiagram(cmd, cc, args)
		if err != nil {
			return err
		}
		if ok, err := r.Structured(fileDiagram{Fingerprint: res.Fingerprint, Diagram: res.Diagram}); ok {
			return err
		}
		renderDiagram(r, "Schema Diagram", res, opts.Columns)
		return nil
	}

	sources, err := readSources(cmd, args)
	if err != nil {
		return err
	}
	results := make([]*diagram.Result, len(sources))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		g.Go(func() error {
			res, err := diagram.Generate(ctx, src.SQL, cc.DiagramOptions())
			if err != nil {
				return fmt.Errorf("%s: %w", src.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	files := make([]fileDiagram, len(sources))
	for i, res := range results {
		warnSkipped(r, res)
		files[i] = fileDiagram{File: sources[i].Name, Fingerprint: res.Fingerprint, Diagram: res.Diagram}
	}
	if ok, err := r.Structured(files); ok {
		return err
	}
	for i, res := range results {
		renderDiagram(r, sources[i].Name, res, opts.Columns)
	}
	return nil
}

func renderDiagram(r *output.Renderer, title string, res *diagram.Result, columns bool) {
	if r.EffectiveMode() == output.ModeMarkdown {
		diagramMarkdown(r, title, res, columns)
		return
	}
	diagramText(r, title, res, columns)
}

// diagramText outputs the diagram summary as styled tables.
func diagramText(r *output.Renderer, title string, res *diagram.Result, columns bool) {
	styles := r.Styles()
	d := res.Diagram

	r.Header(1, title)
	r.Table([]string{"Table", "Role", "Columns", "Rank", "Position"}, nodeRows(res, func(n core.Node) string {
		switch {
		case n.IsStub:
			return styles.Stub.Render(n.Label + " (stub)")
		case n.Role == core.RoleView:
			return styles.View.Render(n.Label)
		case n.Role == core.RoleCTE:
			return styles.CTE.Render(n.Label)
		default:
			return styles.Table.Render(n.Label)
		}
	}))

	if columns {
		for _, n := range d.Nodes {
			r.Println("")
			r.Println(styles.Header2.Render(n.Label))
			for _, c := range n.Columns {
				name := styles.Column.Render(c.Name)
				if c.IsPrimaryKey || c.IsForeignKey {
					name = styles.Key.Render(c.Name)
				}
				r.Printf("  %s %s%s\n", name, styles.Muted.Render(c.Type), columnFlags(c))
			}
		}
	}

	if len(d.Edges) > 0 {
		r.Println("")
		r.Header(2, "Edges")
		r.Table([]string{"Source", "Target", "Kind", "Label"}, edgeRows(d))
	}

	r.Println("")
	r.Println(styles.Muted.Render(summaryLine(res)))
}

// diagramMarkdown outputs the diagram summary in markdown format.
func diagramMarkdown(r *output.Renderer, title string, res *diagram.Result, columns bool) {
	d := res.Diagram

	r.Header(1, title)
	r.Println(output.FormatKeyValue("Fingerprint", "`"+res.Fingerprint+"`"))
	r.Println(output.FormatKeyValue("Tables", fmt.Sprint(len(d.Nodes))))
	r.Println(output.FormatKeyValue("Edges", fmt.Sprint(len(d.Edges))))
	r.Println("")

	if len(d.Nodes) == 0 {
		r.Println("_No tables found._")
		return
	}

	r.Header(2, "Tables")
	r.Table([]string{"Table", "Role", "Columns", "Rank", "Position"}, nodeRows(res, func(n core.Node) string {
		if n.IsStub {
			return n.Label + " _(stub)_"
		}
		return n.Label
	}))

	if columns {
		for _, n := range d.Nodes {
			r.Header(3, n.Label)
			for _, c := range n.Columns {
				r.Printf("- `%s` %s%s\n", c.Name, c.Type, columnFlags(c))
			}
			r.Println("")
		}
	}

	if len(d.Edges) > 0 {
		r.Header(2, "Edges")
		r.Table([]string{"Source", "Target", "Kind", "Label"}, edgeRows(d))
	}
}

func nodeRows(res *diagram.Result, label func(core.Node) string) [][]string {
	rows := make([][]string, 0, len(res.Diagram.Nodes))
	for _, n := range res.Diagram.Nodes {
		rows = append(rows, []string{
			label(n),
			output.Title(string(n.Role)),
			fmt.Sprint(len(n.Columns)),
			fmt.Sprint(res.Layout.Ranks[n.ID]),
			fmt.Sprintf("%.0f,%.0f", n.Position.X, n.Position.Y),
		})
	}
	return rows
}

func edgeRows(d *core.Diagram) [][]string {
	rows := make([][]string, 0, len(d.Edges))
	for _, e := range d.Edges {
		src, dst := e.Source, e.Target
		if e.SourceHandle != "" {
			src += "." + strings.TrimPrefix(e.SourceHandle, graph.SourceHandlePrefix)
		}
		if e.TargetHandle != "" {
			dst += "." + strings.TrimPrefix(e.TargetHandle, graph.TargetHandlePrefix)
		}
		rows = append(rows, []string{src, dst, string(e.Kind), e.Label})
	}
	return rows
}

func columnFlags(c core.Column) string {
	var flags []string
	if c.IsPrimaryKey {
		flags = append(flags, "PK")
	}
	if c.IsForeignKey {
		flags = append(flags, "FK")
	}
	if c.IsGroupingKey {
		flags = append(flags, "group")
	}
	if c.IsSortKey {
		flags = append(flags, "sort")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ", ") + "]"
}

func summaryLine(res *diagram.Result) string {
	stubs := 0
	for _, n := range res.Diagram.Nodes {
		if n.IsStub {
			stubs++
		}
	}
	line := fmt.Sprintf("Total: %d tables (%d stubs), %d edges", len(res.Diagram.Nodes), stubs, len(res.Diagram.Edges))
	if res.Layout.Reversed > 0 {
		line += fmt.Sprintf(", %d cyclic edges reversed for layout", res.Layout.Reversed)
	}
	return line
}
