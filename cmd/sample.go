package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/pipeline"
	"github.com/sells-group/rfprofile-cli/internal/raster"
	"github.com/sells-group/rfprofile-cli/internal/zone"
)

var sampleCmd = &cobra.Command{
	Use:   "sample [lon,lat ...]",
	Short: "Sample elevation and land cover at coordinates",
	Long:  "Looks up elevation, land-cover code, category and resistance for each coordinate. Coordinates come from the arguments or, when none are given, one per line on stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		coords, err := readCoords(args, os.Stdin)
		if err != nil {
			return err
		}

		res, err := pipeline.OpenResources(resourcePaths(cfg))
		if err != nil {
			return eris.Wrap(err, "open reference data")
		}
		defer res.Close() //nolint:errcheck

		opts := samplerOptions(cfg)
		e := pipeline.Enricher{
			Elevation: raster.NewSampler(raster.Elevation, opts),
			LandCover: raster.NewSampler(raster.LandCover, opts),
			Mapper:    res.Mapper,
		}
		loadRaster(ctx, e.Elevation, res.Elevation)
		loadRaster(ctx, e.LandCover, res.LandCover)

		points := coordPoints(coords)
		if err := pipeline.Enrich(ctx, points, e, cfg.Workers.Concurrency, cfg.Workers.ShardSize); err != nil {
			return err
		}
		formatSamples(os.Stdout, points)
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [lon,lat ...]",
	Short: "Assign zones to coordinates",
	Long:  "Classifies each coordinate against the configured zone polygons. Coordinates come from the arguments or, when none are given, one per line on stdin.",
	RunE: func(_ *cobra.Command, args []string) error {
		coords, err := readCoords(args, os.Stdin)
		if err != nil {
			return err
		}

		res, err := pipeline.OpenResources(resourcePaths(cfg))
		if err != nil {
			return eris.Wrap(err, "open reference data")
		}
		defer res.Close() //nolint:errcheck

		points := coordPoints(coords)
		pipeline.ClassifyZones(points, zone.NewClassifier(res.Zones, zone.WithDefaultZone(cfg.Zones.DefaultZone)))
		formatZones(os.Stdout, points)
		return nil
	},
}

func loadRaster(ctx context.Context, s *raster.Sampler, src raster.Source) {
	if src == nil {
		return
	}
	if err := s.Load(ctx, src); err != nil {
		zap.L().Warn("raster unavailable, using defaults", zap.String("kind", s.Kind().String()), zap.Error(err))
	}
}

// readCoords parses args, or stdin lines when args is empty. Blank lines
// and lines starting with '#' are skipped.
func readCoords(args []string, stdin io.Reader) ([]model.LonLat, error) {
	if len(args) > 0 {
		return parseLonLats(args)
	}
	var lines []string
	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read coordinates")
	}
	if len(lines) == 0 {
		return nil, &model.ValidationError{Field: "coordinate", Reason: "no coordinates given"}
	}
	return parseLonLats(lines)
}

// coordPoints wraps ad hoc coordinates as unenriched sample points.
func coordPoints(coords []model.LonLat) []model.SamplePoint {
	out := make([]model.SamplePoint, len(coords))
	for i, c := range coords {
		out[i] = model.NewSamplePoint("", i+1, 0, math.NaN(), c)
	}
	return out
}

func formatSamples(out io.Writer, points []model.SamplePoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LON\tLAT\tH\tCODE\tCT\tR")
	for _, p := range points {
		_, _ = fmt.Fprintf(w, "%.6f\t%.6f\t%g\t%d\t%d\t%g\n",
			p.Location.Lon, p.Location.Lat, p.Elevation, p.LandCoverCode, p.Category, p.Resistance)
	}
	_ = w.Flush()
}

func formatZones(out io.Writer, points []model.SamplePoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LON\tLAT\tZONE")
	for _, p := range points {
		_, _ = fmt.Fprintf(w, "%.6f\t%.6f\t%d\n", p.Location.Lon, p.Location.Lat, p.Zone)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(classifyCmd)
}
