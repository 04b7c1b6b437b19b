package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagraph/internal/cli/testutil"
	"github.com/leapstack-labs/schemagraph/pkg/core"
)

type generated struct {
	Fingerprint string        `json:"fingerprint"`
	Diagram     *core.Diagram `json:"diagram"`
}

func TestRoot_GenerateFlags(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "schema.sql", testutil.Warehouse)

	res := testutil.Run(t, NewRootCmd(), "", "generate", "-o", "json", "--direction", "TB", path)
	require.NoError(t, res.Err, res.ErrOut)

	var got generated
	require.NoError(t, json.Unmarshal([]byte(res.Out), &got))
	users, ok := got.Diagram.Node("users")
	require.True(t, ok)
	summary, ok := got.Diagram.Node("order_summary")
	require.True(t, ok)
	assert.Less(t, users.Position.Y, summary.Position.Y)
	assert.Len(t, got.Fingerprint, 32)
}

func TestRoot_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "schemagraph.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output: json\nadhoc_name: Scratch\n"), 0o600))

	res := testutil.Run(t, NewRootCmd(), "SELECT id FROM events;", "--config", cfg, "generate")
	require.NoError(t, res.Err, res.ErrOut)

	var got generated
	require.NoError(t, json.Unmarshal([]byte(res.Out), &got))
	_, ok := got.Diagram.Node("Scratch")
	assert.True(t, ok, "ad-hoc name from config file")
}

func TestRoot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown output", []string{"ranks", "-o", "xml"}, `unknown output format "xml"`},
		{"unknown resolution", []string{"ranks", "--resolution", "nearest"}, "unable to decode config"},
		{"unknown catalog", []string{"ranks", "--catalog-type", "oracle", "--catalog-dsn", "x"}, "invalid catalog configuration"},
		{"lineage needs a table", []string{"lineage"}, "requires at least 1 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testutil.Run(t, NewRootCmd(), "", tt.args...)
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.wantErr)
		})
	}
}

func TestRoot_Completion(t *testing.T) {
	res := testutil.Run(t, NewRootCmd(), "", "completion", "bash")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "schemagraph")
}
