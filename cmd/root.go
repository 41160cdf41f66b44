package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rfprofile",
	Short: "Terrain profile preparation for P.1812 propagation studies",
	Long:  "Generates radial receiver grids around a transmitter, enriches them with elevation, land cover and zone data, and assembles per-azimuth profiles for a propagation model.",
	// Reference data errors are not usage errors.
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (default ./config.yaml)")
	f.String("log-level", "", "override log.level (debug, info, warn, error)")
}

// loadRuntime reads configuration, applies the global flag overrides and
// installs the logger before any subcommand runs.
func loadRuntime(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.LoadFile(path)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	zap.L().Debug("config loaded",
		zap.String("file", path),
		zap.String("store", cfg.Store.Driver),
		zap.String("tx_id", cfg.Transmitter.ID),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
