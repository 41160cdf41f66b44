package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/grid"
	"github.com/sells-group/rfprofile-cli/internal/model"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the receiver grid without enrichment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyTransmitterFlags(cmd, cfg)
		tx, err := cfg.TransmitterModel()
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("output")
		asGeoJSON, _ := cmd.Flags().GetBool("geojson")
		n, _ := cmd.Flags().GetInt("phyllotaxis")

		var data []byte
		if n > 0 {
			scale, _ := cmd.Flags().GetFloat64("scale")
			pts, err := grid.Phyllotaxis(tx.Location, n, scale)
			if err != nil {
				return err
			}
			data, err = grid.PointsGeoJSON(pts)
			if err != nil {
				return err
			}
		} else {
			points, err := grid.Generate(tx, gridOptions(cfg))
			if err != nil {
				return err
			}
			zap.L().Info("grid generated", zap.String("tx_id", tx.ID), zap.Int("points", len(points)))
			if asGeoJSON {
				data, err = grid.PointsGeoJSON(model.Locations(points))
			} else {
				data, err = encodePoints(points)
			}
			if err != nil {
				return err
			}
		}
		return writeOutput(out, data)
	},
}

// encodePoints renders one JSON object per point.
func encodePoints(points []model.SamplePoint) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range points {
		if err := enc.Encode(points[i]); err != nil {
			return nil, eris.Wrapf(err, "encode point %d", i)
		}
	}
	return buf.Bytes(), nil
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "create dir for %s", path)
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

func init() {
	addTransmitterFlags(generateCmd)
	generateCmd.Flags().String("output", "", "output file (default stdout)")
	generateCmd.Flags().Bool("geojson", false, "write a GeoJSON FeatureCollection instead of JSON lines")
	generateCmd.Flags().Int("phyllotaxis", 0, "generate N sunflower points instead of the radial grid")
	generateCmd.Flags().Float64("scale", 1000, "phyllotaxis radius in metres")
	rootCmd.AddCommand(generateCmd)
}
