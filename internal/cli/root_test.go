package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tessera", cmd.Use)
	assert.Contains(t, cmd.Long, "cuts")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "submit", "execute", "cancel", "show", "call", "owner", "set-delay", "deploy", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "tessera.db", dbFlag.DefValue)

	saltFlag := cmd.PersistentFlags().Lookup("salt")
	require.NotNil(t, saltFlag)
	assert.Equal(t, "tessera", saltFlag.DefValue)
}

func TestInitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	initCmd, _, err := cmd.Find([]string{"init"})
	require.NoError(t, err)

	ownerFlag := initCmd.Flags().Lookup("owner")
	require.NotNil(t, ownerFlag)
	// --owner is required, so default is empty
	assert.Equal(t, "", ownerFlag.DefValue)

	templateFlag := initCmd.Flags().Lookup("template")
	require.NotNil(t, templateFlag)
	assert.Equal(t, "genesis", templateFlag.DefValue)
}

func TestSubmitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	submitCmd, _, err := cmd.Find([]string{"submit"})
	require.NoError(t, err)

	callerFlag := submitCmd.Flags().Lookup("caller")
	require.NotNil(t, callerFlag)

	templateFlag := submitCmd.Flags().Lookup("template")
	require.NotNil(t, templateFlag)
	assert.Equal(t, "", templateFlag.DefValue)
}

func TestCallCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	callCmd, _, err := cmd.Find([]string{"call"})
	require.NoError(t, err)

	callerFlag := callCmd.Flags().Lookup("caller")
	require.NotNil(t, callerFlag)

	valueFlag := callCmd.Flags().Lookup("value")
	require.NotNil(t, valueFlag)
	assert.Equal(t, "0", valueFlag.DefValue)
}

func TestOwnerRenounceFlags(t *testing.T) {
	cmd := NewRootCommand()
	renounceCmd, _, err := cmd.Find([]string{"owner", "renounce"})
	require.NoError(t, err)

	yesFlag := renounceCmd.Flags().Lookup("yes")
	require.NotNil(t, yesFlag)
	assert.Equal(t, "false", yesFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "show", "owner"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
