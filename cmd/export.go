package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/profile"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write the stored profiles of a run to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format := cfg.Data.Format
		if f, _ := cmd.Flags().GetString("format"); f != "" {
			format = f
		}
		f, err := profile.ParseFormat(format)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		profiles, err := st.LoadProfiles(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = outputPath(cfg, run.Transmitter.ID, f)
		}
		if err := profile.WriteFile(out, f, profiles); err != nil {
			return err
		}
		zap.L().Info("profiles exported",
			zap.String("run_id", run.ID),
			zap.Int("profiles", len(profiles)),
			zap.String("output", out),
		)

		if cov, _ := cmd.Flags().GetString("coverage"); cov != "" {
			if err := writeCoverage(cov, profiles, nil); err != nil {
				return err
			}
		}
		return nil
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <profiles-file>",
	Short: "Run the free-space baseline over a profile file",
	Long:  "Reads a JSON-lines or delimited profile file, evaluates every profile with the free-space loss model and prints one JSON result per profile. Unreadable rows are reported and skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		profiles, bad, err := profile.ReadFile(args[0])
		if err != nil {
			return err
		}
		for _, b := range bad {
			zap.L().Warn("skipping unreadable profile row", zap.String("file", args[0]), zap.Int("row", b.Row), zap.Error(b.Err))
		}

		evals, err := profile.Evaluate(ctx, profile.FreeSpace{}, profiles, cfg.Workers.Concurrency)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, ev := range evals {
			if err := enc.Encode(ev); err != nil {
				return eris.Wrap(err, "encode evaluation")
			}
		}

		if cov, _ := cmd.Flags().GetString("coverage"); cov != "" {
			return writeCoverage(cov, profiles, evals)
		}
		return nil
	},
}

func writeCoverage(path string, profiles []model.Profile, evals []profile.Evaluation) error {
	data, err := profile.CoverageJSON(profiles, evals)
	if err != nil {
		return err
	}
	return writeOutput(path, data)
}

func init() {
	exportCmd.Flags().String("output", "", "profile file (default data.output_dir/<tx_id>.<ext>)")
	exportCmd.Flags().String("format", "", "export format: jsonl or csv (default from config)")
	exportCmd.Flags().String("coverage", "", "also write a coverage GeoJSON to this path")
	evaluateCmd.Flags().String("coverage", "", "write a coverage GeoJSON with loss values to this path")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(evaluateCmd)
}
