package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "guardctl", cmd.Use)
	assert.Contains(t, cmd.Long, "allow-list")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"login", "logout", "list", "add", "update", "remove", "check", "tier", "sync"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestRemoveAliases(t *testing.T) {
	cmd := NewRootCommand()
	for _, alias := range []string{"rm", "delete"} {
		subCmd, _, err := cmd.Find([]string{alias})
		require.NoError(t, err)
		assert.Equal(t, "remove", subCmd.Name())
	}
}

func TestTierSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"get", "set"} {
		subCmd, _, err := cmd.Find([]string{"tier", name})
		require.NoError(t, err)
		assert.Equal(t, name, subCmd.Name())
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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	listCmd, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)

	refreshFlag := listCmd.Flags().Lookup("refresh")
	require.NotNil(t, refreshFlag)
	assert.Equal(t, "r", refreshFlag.Shorthand)
}

func TestCheckCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)

	for _, name := range []string{"tls-error", "allow", "decline"} {
		flag := checkCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "flag %s", name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestRun_InvalidFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--format", "yaml", "tier"}, &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), `invalid format "yaml"`)
}

func TestRun_WrongArgCount(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--config", t.TempDir() + "/config.toml", "update", "https://only-one.example"}, &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout.String())
}

func TestRun_CheckFlagsMutuallyExclusive(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--config", t.TempDir() + "/config.toml",
		"check", "https://bank.example", "--allow", "--decline",
	}, &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "allow")
}
