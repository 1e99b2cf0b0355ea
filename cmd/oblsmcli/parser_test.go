package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSetCommand(t *testing.T) {
	cmd, err := parseCommand(`set "a" "1"`)
	require.NoError(t, err)
	require.Equal(t, "set", cmd.name)
	require.Equal(t, "a", cmd.args[0])
	require.Equal(t, "1", cmd.args[1])
}

func TestParseGetCommand(t *testing.T) {
	cmd, err := parseCommand(`get "key0"`)
	require.NoError(t, err)
	require.Equal(t, "get", cmd.name)
	require.Equal(t, "key0", cmd.args[0])
}

func TestParseQuotedStringWithEscape(t *testing.T) {
	cmd, err := parseCommand(`set "a\"b" "v"`)
	require.NoError(t, err)
	require.Equal(t, `a"b`, cmd.args[0])
}

func TestParseScanWithUnboundedEndpoints(t *testing.T) {
	cmd, err := parseCommand(`scan - -`)
	require.NoError(t, err)
	require.Equal(t, "scan", cmd.name)
	require.True(t, cmd.bounds[0])
	require.True(t, cmd.bounds[1])
}

func TestParseScanWithMixedEndpoints(t *testing.T) {
	cmd, err := parseCommand(`scan "key0" -`)
	require.NoError(t, err)
	require.False(t, cmd.bounds[0])
	require.Equal(t, "key0", cmd.args[0])
	require.True(t, cmd.bounds[1])
}

func TestParseMissingArgumentIsSyntaxError(t *testing.T) {
	_, err := parseCommand(`get`)
	require.Error(t, err)
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := parseCommand(`frobnicate "x"`)
	require.Error(t, err)
}

func TestParseEmptyLineIsNil(t *testing.T) {
	cmd, err := parseCommand("   ")
	require.NoError(t, err)
	require.Nil(t, cmd)
}

func TestParseHelpExitCloseDumpTakeNoArgs(t *testing.T) {
	for _, name := range []string{"help", "exit", "close", "dump"} {
		cmd, err := parseCommand(name)
		require.NoError(t, err)
		require.Equal(t, name, cmd.name)
	}
}
