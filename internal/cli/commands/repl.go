package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/internal/cli/output"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
)

const (
	replPrompt     = "schemagraph> "
	replContPrompt = "        ...> "
)

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl [files...]",
		Short: "Build a schema interactively",
		Long: `Start an interactive session that grows a schema one statement at a time.

Each statement ending in a semicolon is added to the session script and the
diagram is regenerated. Files given as arguments are loaded first.`,
		Example: `  # Start empty
  schemagraph repl

  # Continue from an existing schema
  schemagraph repl schema.sql`,
		RunE: runRepl,
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sess := newReplSession(cc.Renderer, cc.DiagramOptions())
	if len(args) > 0 {
		sources, err := readSources(cmd, args)
		if err != nil {
			return err
		}
		sess.load(cmd.Context(), joinSources(sources))
	}

	historyFile := ""
	if dir, err := os.UserCacheDir(); err == nil {
		historyFile = filepath.Join(dir, "schemagraph", "repl_history")
		_ = os.MkdirAll(filepath.Dir(historyFile), 0o750)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    sess.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	cc.Renderer.Println("schemagraph REPL")
	cc.Renderer.Println("Type .help for commands, .quit to exit")
	cc.Renderer.Println("")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sess.pending.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if sess.handleLine(cmd.Context(), line) {
			return nil
		}
		if sess.pending.Len() > 0 {
			rl.SetPrompt(replContPrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// replSession holds the growing script and its latest diagram.
type replSession struct {
	r       *output.Renderer
	opts    diagram.Options
	script  []string
	pending strings.Builder
	res     *diagram.Result
}

func newReplSession(r *output.Renderer, opts diagram.Options) *replSession {
	return &replSession{r: r, opts: opts}
}

// handleLine processes one input line and reports whether the session ends.
func (s *replSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line)
	}

	// Accumulate multi-line SQL until semicolon
	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.pending.WriteString("\n")
		return false
	}
	stmt := s.pending.String()
	s.pending.Reset()

	s.load(ctx, stmt)
	return false
}

// load appends sql to the script and regenerates.
func (s *replSession) load(ctx context.Context, sql string) {
	s.apply(ctx, append(s.script[:len(s.script):len(s.script)], sql))
}

// apply regenerates from script and makes it current. On failure the
// previous script stays.
func (s *replSession) apply(ctx context.Context, script []string) {
	res, err := diagram.Generate(ctx, strings.Join(script, "\n;\n"), s.opts)
	if err != nil {
		s.r.Error(err.Error())
		return
	}
	before := 0
	if s.res != nil {
		before = len(s.res.Diagram.Nodes)
	}
	s.script, s.res = script, res
	warnSkipped(s.r, res)
	s.r.Success(fmt.Sprintf("%d tables (%+d), %d edges", len(res.Diagram.Nodes), len(res.Diagram.Nodes)-before, len(res.Diagram.Edges)))
}

func (s *replSession) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Writer())

	case ".tables":
		if s.res == nil {
			s.r.Println("No tables yet.")
			return false
		}
		renderDiagram(s.r, "Schema Diagram", s.res, false)

	case ".lineage":
		if len(parts) < 2 {
			s.r.Error("usage: .lineage <table>")
			return false
		}
		s.lineage(parts[1])

	case ".source":
		s.r.Println(strings.Join(s.script, "\n"))

	case ".undo":
		if len(s.script) == 0 {
			s.r.Warning("nothing to undo")
			return false
		}
		if len(s.script) == 1 {
			s.script, s.res = nil, nil
			s.r.Success("script is empty")
			return false
		}
		s.apply(ctx, s.script[:len(s.script)-1])

	case ".reset":
		s.script, s.res = nil, nil
		s.r.Success("script cleared")

	default:
		s.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", command))
	}
	return false
}

func (s *replSession) lineage(table string) {
	if s.res == nil {
		s.r.Error(fmt.Sprintf("table %q not found", table))
		return
	}
	imp, ok := diagram.ImpactOf(s.res.Diagram, table)
	if !ok {
		s.r.Error(fmt.Sprintf("table %q not found", table))
		return
	}
	none := func(names []string) string {
		if len(names) == 0 {
			return "(none)"
		}
		return strings.Join(names, ", ")
	}
	s.r.Printf("%s\n  upstream:   %s\n  downstream: %s\n", imp.Table, none(imp.Upstream), none(imp.Downstream))
}

// completer offers dot-commands and, for .lineage, the current table names.
func (s *replSession) completer() *readline.PrefixCompleter {
	tables := func(string) []string {
		if s.res == nil {
			return nil
		}
		names := make([]string, 0, len(s.res.Diagram.Nodes))
		for _, n := range s.res.Diagram.Nodes {
			names = append(names, n.ID)
		}
		return names
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".lineage", readline.PcItemDynamic(tables)),
		readline.PcItem(".source"),
		readline.PcItem(".undo"),
		readline.PcItem(".reset"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .tables            Show the current diagram
  .lineage <table>   Show upstream and downstream tables
  .source            Print the session script
  .undo              Drop the last statement
  .reset             Clear the session script
  .quit / .exit      Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names after .lineage
`
	_, _ = fmt.Fprintln(w, help)
}
