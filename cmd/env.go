package main

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rfprofile-cli/internal/config"
	"github.com/sells-group/rfprofile-cli/internal/grid"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/pipeline"
	"github.com/sells-group/rfprofile-cli/internal/profile"
	"github.com/sells-group/rfprofile-cli/internal/raster"
	"github.com/sells-group/rfprofile-cli/internal/resilience"
	"github.com/sells-group/rfprofile-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "rfprofile.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return resilience.RetryValue(ctx, storeBackoff(), "postgres connect", func(ctx context.Context) (*store.PostgresStore, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func storeBackoff() resilience.Backoff {
	b := resilience.DefaultBackoff()
	b.Attempts = cfg.Store.ConnectAttempts
	return b
}

// openStore returns a migrated store. The caller closes it.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := resilience.Retry(ctx, storeBackoff(), "migrate", st.Migrate); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// pipelineOptions maps the receivers, data, zones and workers sections.
func pipelineOptions(c *config.Config) (pipeline.Options, error) {
	f, err := profile.ParseFormat(c.Data.Format)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Grid:        gridOptions(c),
		Sampler:     samplerOptions(c),
		DefaultZone: c.Zones.DefaultZone,
		Concurrency: c.Workers.Concurrency,
		ShardSize:   c.Workers.ShardSize,
		Format:      f,
	}, nil
}

func samplerOptions(c *config.Config) raster.SamplerOptions {
	minEl := c.Data.MinElevation
	return raster.SamplerOptions{MinElevation: &minEl, MaxElevation: c.Data.MaxElevation}
}

func gridOptions(c *config.Config) grid.Options {
	return grid.Options{
		MaxDistanceKM:  c.Receivers.MaxDistanceKM,
		StepKM:         c.Receivers.DistanceStepKM,
		NumAzimuths:    c.Receivers.NumAzimuths,
		IncludeTxPoint: c.Receivers.IncludeTxPoint,
	}
}

func resourcePaths(c *config.Config) pipeline.Paths {
	return pipeline.Paths{
		DEM:        c.Data.DEMPath,
		LandCover:  c.Data.LandCoverPath,
		Zones:      c.Data.ZonesPath,
		Lookup:     c.Data.LookupPath,
		Attribute:  c.Data.ZonesAttribute,
		ValidZones: c.Zones.ValidZones,
	}
}

// outputPath is data.output_dir/<tx_id>.<ext>.
func outputPath(c *config.Config, txID string, f profile.Format) string {
	return filepath.Join(c.Data.OutputDir, txID+f.Ext())
}

// parseLonLat reads a "lon,lat" pair.
func parseLonLat(s string) (model.LonLat, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.LonLat{}, &model.ValidationError{Field: "coordinate", Reason: "expected lon,lat: " + s}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.LonLat{}, &model.ValidationError{Field: "coordinate", Reason: "bad longitude: " + s}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.LonLat{}, &model.ValidationError{Field: "coordinate", Reason: "bad latitude: " + s}
	}
	c := model.LonLat{Lon: lon, Lat: lat}
	if !c.Valid() {
		return model.LonLat{}, &model.ValidationError{Field: "coordinate", Reason: "out of range: " + s}
	}
	return c, nil
}

func parseLonLats(args []string) ([]model.LonLat, error) {
	out := make([]model.LonLat, 0, len(args))
	for _, a := range args {
		c, err := parseLonLat(a)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// addTransmitterFlags registers overrides for the transmitter and p1812
// config sections.
func addTransmitterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("tx-id", "", "transmitter id")
	f.Float64("lon", 0, "transmitter longitude")
	f.Float64("lat", 0, "transmitter latitude")
	f.Float64("htg", 0, "transmitter antenna height above ground (m)")
	f.Float64("hrg", 0, "receiver antenna height above ground (m)")
	f.Float64("frequency", 0, "frequency (GHz)")
	f.Float64("time-percentage", 0, "time percentage")
	f.String("polarization", "", "horizontal or vertical")
}

// applyTransmitterFlags copies every changed transmitter flag onto c.
func applyTransmitterFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("tx-id") {
		c.Transmitter.ID, _ = f.GetString("tx-id")
	}
	if f.Changed("lon") {
		c.Transmitter.Lon, _ = f.GetFloat64("lon")
	}
	if f.Changed("lat") {
		c.Transmitter.Lat, _ = f.GetFloat64("lat")
	}
	if f.Changed("htg") {
		c.Transmitter.HTG, _ = f.GetFloat64("htg")
	}
	if f.Changed("hrg") {
		c.Transmitter.HRG, _ = f.GetFloat64("hrg")
	}
	if f.Changed("frequency") {
		c.P1812.FrequencyGHz, _ = f.GetFloat64("frequency")
	}
	if f.Changed("time-percentage") {
		c.P1812.TimePercentage, _ = f.GetFloat64("time-percentage")
	}
	if f.Changed("polarization") {
		c.P1812.Polarization, _ = f.GetString("polarization")
	}
}
