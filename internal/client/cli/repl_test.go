package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShell_RunsCommandsInOneSession(t *testing.T) {
	e := newEnv(t, "")

	script := "help\n" +
		"add-strategy --name Breakout\n" +
		"list strategies\n" +
		"list notes\n" +
		"\n" +
		"exit\n"
	out, err := e.run(t, script, "shell")
	require.NoError(t, err)

	assert.Contains(t, out, "Not logged in")
	assert.Contains(t, out, "Available commands:")
	assert.Contains(t, out, "add-trade")
	assert.Contains(t, out, "added strategy")
	assert.Contains(t, out, "Breakout")
	assert.Contains(t, out, "(logged out, 1 pending)")
	assert.Contains(t, out, "Bye!")
}

func TestShell_EOFEnds(t *testing.T) {
	e := newEnv(t, "")
	e.mustRun(t, "login", "user-1")

	out, err := e.run(t, "status\n", "shell")
	require.NoError(t, err)
	assert.Regexp(t, `logged in:\s+true`, out)
}

func TestShell_NotNested(t *testing.T) {
	e := newEnv(t, "")
	_, err := e.run(t, "shell\nexit\n", "shell")
	require.NoError(t, err)
}
