package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandMetadata(t *testing.T) {
	assert.Equal(t, "cwbd", rootCmd.Use)
	assert.Equal(t, Version, rootCmd.Version)
	assert.NotNil(t, Execute)
}

func TestCLIFlagDefaults(t *testing.T) {
	assert.Equal(t, "cwbd.yaml", cfgFile)
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, 0, workers)
	assert.Equal(t, "", categoryFile)
	assert.Equal(t, "", dumpsDir)
	assert.Equal(t, "", outputDir)
	assert.True(t, recursive)
}

func TestGetCLIOverridesRecursiveUnset(t *testing.T) {
	overrides := GetCLIOverrides()
	assert.Nil(t, overrides.Recursive, "recursive override only applies when the flag is set")
}

func TestGetCLIOverridesRecursiveSet(t *testing.T) {
	require.NoError(t, rootCmd.PersistentFlags().Set("recursive", "false"))
	defer func() {
		rootCmd.PersistentFlags().Set("recursive", "true")
		rootCmd.PersistentFlags().Lookup("recursive").Changed = false
	}()

	overrides := GetCLIOverrides()
	require.NotNil(t, overrides.Recursive)
	assert.False(t, *overrides.Recursive)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "fetch", "download", "status", "clean", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
