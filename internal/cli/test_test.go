package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: cli-smoke
modules:
  - name: counter
    kind: counter
    code: counter-v1
    namespace: mod/counter
genesis:
  - module: counter
    action: add
    operations: ["increment()", "get()"]
steps:
  - call:
      op: "increment()"
      expect: "1"
  - call:
      op: "get()"
      expect: "1"
`

const failingScenario = `
name: cli-failing
modules:
  - name: counter
    kind: counter
    code: counter-v1
    namespace: mod/counter
genesis:
  - module: counter
    action: add
    operations: ["increment()"]
steps:
  - call:
      op: "increment()"
      expect: "5"
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTestCommandPassingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "smoke.yaml", passingScenario)

	out, err := runCLI(t, "test", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok    cli-smoke")
	assert.Contains(t, out, "1 scenarios, 0 failed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "failing.yaml", failingScenario)

	out, err := runCLI(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL  cli-failing")
}

func TestTestCommandDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a-smoke.yaml", passingScenario)
	writeScenario(t, dir, "b-failing.yaml", failingScenario)

	out, err := runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "2 scenarios, 1 failed")
}

func TestTestCommandMalformedScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "broken.yaml", "name: broken\nbogus_field: true\n")

	_, err := runCLI(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDirectory(t *testing.T) {
	_, err := runCLI(t, "test", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no scenario files")
}
