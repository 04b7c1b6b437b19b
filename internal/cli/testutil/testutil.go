// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// Warehouse is a small schema with a foreign key, two stacked views and a
// query against an undeclared table.
const Warehouse = `
CREATE TABLE users (
    id INT PRIMARY KEY,
    email VARCHAR(255)
);
CREATE TABLE orders (
    id INT PRIMARY KEY,
    user_id INT REFERENCES users(id),
    total DECIMAL(10, 2)
);
CREATE VIEW order_summary AS
SELECT u.email, SUM(o.total) AS revenue
FROM users u JOIN orders o ON o.user_id = u.id
GROUP BY u.email;
CREATE VIEW top_customers AS
SELECT s.email FROM order_summary s WHERE s.revenue > 1000;
SELECT e.id FROM events e;
`

// SetupTestProject creates a temporary directory holding the warehouse
// schema split over tables.sql and views.sql. It returns the directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	split := strings.Index(Warehouse, "CREATE VIEW")
	WriteFile(t, dir, "tables.sql", Warehouse[:split])
	WriteFile(t, dir, "views.sql", Warehouse[split:])
	return dir
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return path
}

// Result holds the captured streams of a command run.
type Result struct {
	Out    string
	ErrOut string
	Err    error
}

// Run executes cmd with args and stdin, capturing both output streams.
func Run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) Result {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return Result{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
