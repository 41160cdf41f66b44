package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "generate", "sample", "classify", "export", "evaluate", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "rfprofile", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level"} {
		f := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, "--%s", name)
		assert.Equal(t, "", f.DefValue)
	}
	assert.True(t, rootCmd.SilenceUsage)
}

func runtimeCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "x"}
	c.Flags().String("config", "", "")
	c.Flags().String("log-level", "", "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestLoadRuntime(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transmitter:\n  id: site\nlog:\n  level: info\n  format: console\n"), 0o644))

	require.NoError(t, loadRuntime(runtimeCmd(t, "--config", path, "--log-level", "debug"), nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "site", cfg.Transmitter.ID)
	assert.Equal(t, "debug", cfg.Log.Level, "flag overrides file")

	err := loadRuntime(runtimeCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")

	err = loadRuntime(runtimeCmd(t, "--config", path, "--log-level", "loud"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"run", "output", ""},
		{"run", "format", ""},
		{"run", "no-store", "false"},
		{"run", "tx-id", ""},
		{"run", "frequency", "0"},
		{"generate", "phyllotaxis", "0"},
		{"generate", "scale", "1000"},
		{"generate", "geojson", "false"},
		{"export", "coverage", ""},
		{"evaluate", "coverage", ""},
		{"serve", "port", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{tt.cmd})
			require.NoError(t, err)
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "%s should have --%s", tt.cmd, tt.flag)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}

	list, _, err := rootCmd.Find([]string{"runs", "list"})
	require.NoError(t, err)
	limit := list.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
}
