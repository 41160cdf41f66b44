package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/pipeline"
	"github.com/sells-group/rfprofile-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Prepare profiles for one transmitter",
	Long:  "Generates the receiver grid, enriches it from the configured reference data, assembles per-azimuth profiles, stores the run and writes the profile file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyTransmitterFlags(cmd, cfg)
		if f, _ := cmd.Flags().GetString("format"); f != "" {
			cfg.Data.Format = f
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		tx, err := cfg.TransmitterModel()
		if err != nil {
			return err
		}

		opts, err := pipelineOptions(cfg)
		if err != nil {
			return err
		}
		opts.Output, _ = cmd.Flags().GetString("output")
		if opts.Output == "" {
			opts.Output = outputPath(cfg, tx.ID, opts.Format)
		}

		res, err := pipeline.OpenResources(resourcePaths(cfg))
		if err != nil {
			return eris.Wrap(err, "open reference data")
		}
		defer res.Close() //nolint:errcheck

		var st store.Store
		if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		result, err := pipeline.New(opts, res, st).Run(ctx, tx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("profiles ready",
			zap.String("tx_id", tx.ID),
			zap.String("run_id", result.RunID),
			zap.Int("points", len(result.Points)),
			zap.Int("profiles", len(result.Profiles)),
			zap.String("output", result.Output),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	addTransmitterFlags(runCmd)
	runCmd.Flags().String("output", "", "profile file (default data.output_dir/<tx_id>.<ext>)")
	runCmd.Flags().String("format", "", "export format: jsonl or csv (default from config)")
	runCmd.Flags().Bool("no-store", false, "do not record the run in the store")
	rootCmd.AddCommand(runCmd)
}
