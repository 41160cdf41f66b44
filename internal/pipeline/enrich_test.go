package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfprofile-cli/internal/grid"
	"github.com/sells-group/rfprofile-cli/internal/landcover"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/raster"
	"github.com/sells-group/rfprofile-cli/internal/zone"
)

func gradientSampler(t *testing.T, kind raster.Kind) *raster.Sampler {
	t.Helper()
	data := make([]float64, 20*20)
	for i := range data {
		data[i] = float64(i % 100)
	}
	g, err := raster.NewGrid(20, 20, data, raster.NorthUp(-13.5, 9.5, 0.01, -0.01), -32768, true)
	require.NoError(t, err)
	s := raster.NewSampler(kind, raster.SamplerOptions{})
	require.NoError(t, s.Load(context.Background(), raster.MemorySource{Grid: g}))
	return s
}

func scenarioPoints(t *testing.T) []model.SamplePoint {
	t.Helper()
	pts, err := grid.Generate(testTransmitter(), grid.Options{MaxDistanceKM: 5, StepKM: 0.25, NumAzimuths: 36, IncludeTxPoint: true})
	require.NoError(t, err)
	return pts
}

func TestEnrich_ShardingIsInvisible(t *testing.T) {
	e := Enricher{
		Elevation: gradientSampler(t, raster.Elevation),
		LandCover: gradientSampler(t, raster.LandCover),
		Mapper:    landcover.Default(),
	}

	serial := scenarioPoints(t)
	require.NoError(t, Enrich(context.Background(), serial, e, 1, len(serial)))

	for _, cfg := range []struct{ concurrency, shard int }{{4, 1}, {3, 7}, {8, 64}, {0, 0}} {
		sharded := scenarioPoints(t)
		require.NoError(t, Enrich(context.Background(), sharded, e, cfg.concurrency, cfg.shard))
		assert.Equal(t, serial, sharded, "concurrency=%d shard=%d", cfg.concurrency, cfg.shard)
	}
}

func TestEnrich_FieldsFromSamplersAndMapper(t *testing.T) {
	pts := []model.SamplePoint{
		model.NewSamplePoint("tx", 1, 0, 0, model.LonLat{Lon: -13.495, Lat: 9.495}), // pixel (0,0)
		model.NewSamplePoint("tx", 2, 0, 0, model.LonLat{Lon: -13.485, Lat: 9.495}), // pixel (0,1)
		model.NewSamplePoint("tx", 3, 0, 0, model.LonLat{Lon: 10, Lat: 10}),         // outside
	}
	e := Enricher{Elevation: gradientSampler(t, raster.Elevation), LandCover: gradientSampler(t, raster.LandCover)}
	require.NoError(t, Enrich(context.Background(), pts, e, 2, 1))

	assert.Equal(t, 0.0, pts[0].Elevation)
	assert.Equal(t, 1.0, pts[1].Elevation)
	assert.Equal(t, model.DefaultElevation, pts[2].Elevation)

	assert.Equal(t, 0, pts[0].LandCoverCode)
	assert.Equal(t, model.DefaultLandCoverCode, pts[2].LandCoverCode)
	assert.Equal(t, model.DefaultCategory, pts[2].Category)
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pts := scenarioPoints(t)
	err := Enrich(ctx, pts, Enricher{}, 2, 10)
	require.Error(t, err)
}

func TestClassifyZones(t *testing.T) {
	pts := []model.SamplePoint{
		model.NewSamplePoint("tx", 1, 0, 0, model.LonLat{Lon: -13.40694, Lat: 9.345}),
		model.NewSamplePoint("tx", 2, 0, 0, model.LonLat{Lon: -20, Lat: 0}),
	}
	ClassifyZones(pts, zone.NewClassifier(coastalBox(), zone.WithDefaultZone(model.ZoneSea)))
	assert.Equal(t, model.ZoneCoastal, pts[0].Zone)
	assert.Equal(t, model.ZoneSea, pts[1].Zone)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, 0, Summarize(nil).Points)

	pts := []model.SamplePoint{
		{Elevation: -5, LandCoverCode: 80, Category: 1, Zone: 1},
		{Elevation: 15, LandCoverCode: 10, Category: 4, Zone: 3},
		{Elevation: 20, LandCoverCode: 80, Category: 1, Zone: 3},
	}
	s := Summarize(pts)
	assert.Equal(t, 3, s.Points)
	assert.Equal(t, -5.0, s.ElevationMin)
	assert.Equal(t, 20.0, s.ElevationMax)
	assert.InDelta(t, 10.0, s.ElevationMean, 1e-12)
	assert.Equal(t, []int{10, 80}, s.LandCoverCodes)
	assert.Equal(t, map[int]int{1: 2, 4: 1}, s.Categories)
	assert.Equal(t, map[int]int{1: 1, 3: 2}, s.Zones)
}

func TestOpenResources_NothingConfigured(t *testing.T) {
	res, err := OpenResources(Paths{})
	require.NoError(t, err)
	defer res.Close() //nolint:errcheck

	assert.Nil(t, res.Elevation)
	assert.Nil(t, res.LandCover)
	assert.Equal(t, 0, res.Zones.Len())
	assert.Equal(t, landcover.Default().Tables(), res.Mapper.Tables())
}

func TestOpenResources_MissingFilesDegrade(t *testing.T) {
	dir := t.TempDir()
	res, err := OpenResources(Paths{
		DEM:       filepath.Join(dir, "dem.tif"),
		LandCover: filepath.Join(dir, "lcm.tif"),
		Zones:     filepath.Join(dir, "zones.geojson"),
		Lookup:    filepath.Join(dir, "tables.yaml"),
	})
	require.NoError(t, err)
	defer res.Close() //nolint:errcheck

	assert.Nil(t, res.Elevation)
	assert.Nil(t, res.LandCover)
	assert.Nil(t, res.Zones)
	assert.NotNil(t, res.Mapper)
}

func TestOpenResources_ZonesAndTables(t *testing.T) {
	dir := t.TempDir()
	zones := filepath.Join(dir, "zones.geojson")
	require.NoError(t, os.WriteFile(zones, []byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"zone_type_id":3},
	   "geometry":{"type":"Polygon","coordinates":[[[-14,9],[-13,9],[-13,10],[-14,10],[-14,9]]]}}]}`), 0o644))
	tables := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(tables, []byte("landcover_to_category:\n  50: 5\n"), 0o644))

	res, err := OpenResources(Paths{Zones: zones, Lookup: tables})
	require.NoError(t, err)
	defer res.Close() //nolint:errcheck

	assert.Equal(t, 1, res.Zones.Len())
	assert.Equal(t, 5, res.Mapper.Category(50))
}

func TestOpenResources_BadTablesFail(t *testing.T) {
	tables := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(tables, []byte("landcover_to_category:\n  50: 9\n"), 0o644))

	_, err := OpenResources(Paths{Lookup: tables})
	require.Error(t, err)
}
