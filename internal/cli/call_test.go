package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCounterIncrements(t *testing.T) {
	db, man := initService(t)

	out, err := runCLI(t, "call", "increment()", "--caller", "bob", "--db", db, "--manifest", man)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(out))

	out, err = runCLI(t, "call", "increment()", "--caller", "bob", "--db", db, "--manifest", man)
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))

	out, err = runCLI(t, "call", "get()", "--caller", "bob", "--db", db, "--manifest", man)
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))
}

func TestCallUnknownOperation(t *testing.T) {
	db, man := initService(t)

	out, err := runCLI(t, "call", "missing()", "--caller", "bob", "--db", db, "--manifest", man)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "UNKNOWN_OPERATION")
}

func TestCallMissingDatabase(t *testing.T) {
	man := writeTestManifest(t)

	_, err := runCLI(t, "call", "get()", "--caller", "bob",
		"--db", filepath.Join(t.TempDir(), "nope.db"), "--manifest", man)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCallWrongSaltFindsNoModules(t *testing.T) {
	db, man := initService(t)

	// A different salt derives different module addresses, so the
	// rebuilt binding no longer matches the persisted registry.
	out, err := runCLI(t, "call", "get()", "--caller", "bob",
		"--db", db, "--manifest", man, "--salt", "other")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "MODULE_NOT_BOUND")
}
