package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "ask", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestIngestRequiresArgs(t *testing.T) {
	assert.Error(t, ingestCmd.Args(ingestCmd, nil))
	assert.NoError(t, ingestCmd.Args(ingestCmd, []string{"./docs"}))
}
