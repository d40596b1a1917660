package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testManifest = `
module: counter: {
	codeHash: "636f756e7465722d7631"
	kind: "counter"
	capabilities: ["counting"]
	operation: increment: { signature: "increment()" }
	operation: get: { signature: "get()" }
}
template: genesis: {
	entries: [
		{module: "counter", action: "add", operations: ["increment()", "get()"]},
	]
}
template: expand: {
	entries: [
		{module: "counter", action: "add", operations: ["reset()"]},
	]
}
`

// writeTestManifest writes a one-module manifest into a temp directory.
func writeTestManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.cue"), []byte(testManifest), 0644))
	return dir
}

// runCLI executes the root command with the given arguments and returns
// the combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// initService constructs a fresh service and returns the database path
// and manifest directory for follow-up commands.
func initService(t *testing.T, extra ...string) (string, string) {
	t.Helper()
	man := writeTestManifest(t)
	db := filepath.Join(t.TempDir(), "svc.db")
	args := append([]string{"init", "--db", db, "--manifest", man, "--owner", "alice"}, extra...)
	out, err := runCLI(t, args...)
	require.NoError(t, err, out)
	return db, man
}
