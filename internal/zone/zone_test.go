package zone

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

func box(minX, minY, maxX, maxY float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

var (
	rio    = model.LonLat{Lon: -43.1728, Lat: -22.9068}
	guinea = model.LonLat{Lon: -13.40694, Lat: 9.345}
)

func TestClassify_Scenario(t *testing.T) {
	set := NewPolygonSet(
		NewZone(model.ZoneCoastal, box(-43.5, -23.1, -43.0, -22.8)),
		NewZone(model.ZoneSea, box(-45, -25, -40, -23.1)),
	)
	c := NewClassifier(set)
	got := c.Classify([]model.LonLat{rio, guinea, {Lon: -42, Lat: -24}})
	assert.Equal(t, []int{model.ZoneCoastal, model.ZoneInland, model.ZoneSea}, got)
}

func TestClassify_OverlapFirstWins(t *testing.T) {
	a := NewZone(model.ZoneSea, box(0, 0, 2, 2))
	b := NewZone(model.ZoneCoastal, box(1, 1, 3, 3))
	pts := []model.LonLat{{Lon: 1.5, Lat: 1.5}, {Lon: 2.5, Lat: 2.5}, {Lon: 0.5, Lat: 0.5}}

	c := NewClassifier(NewPolygonSet(a, b))
	joined, err := c.Join(pts)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 1}, joined)
	assert.Equal(t, joined, c.IndexLookup(pts))

	c = NewClassifier(NewPolygonSet(b, a))
	joined, err = c.Join(pts)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, joined)
	assert.Equal(t, joined, c.IndexLookup(pts))
}

func TestClassify_BoundaryCountsAsInside(t *testing.T) {
	c := NewClassifier(NewPolygonSet(NewZone(model.ZoneCoastal, box(0, 0, 2, 2))))
	pts := []model.LonLat{{Lon: 0, Lat: 1}, {Lon: 2, Lat: 2}, {Lon: 2.000001, Lat: 1}}
	want := []int{3, 3, 4}
	joined, err := c.Join(pts)
	require.NoError(t, err)
	assert.Equal(t, want, joined)
	assert.Equal(t, want, c.IndexLookup(pts))
}

func TestClassify_Holes(t *testing.T) {
	holed := orb.MultiPolygon{{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{1, 1}, {1, 2}, {2, 2}, {2, 1}, {1, 1}},
	}}
	c := NewClassifier(NewPolygonSet(NewZone(model.ZoneSea, holed)))
	pts := []model.LonLat{{Lon: 1.5, Lat: 1.5}, {Lon: 3, Lat: 3}}
	assert.Equal(t, []int{4, 1}, c.Classify(pts))
	assert.Equal(t, []int{4, 1}, c.IndexLookup(pts))
}

func TestClassify_StrategiesAgree(t *testing.T) {
	set := NewPolygonSet(
		NewZone(model.ZoneSea, orb.MultiPolygon{{{{0, 0}, {3, 0}, {1.5, 2.5}, {0, 0}}}}),
		NewZone(model.ZoneCoastal, box(1, -1, 4, 1)),
		NewZone(model.ZoneInland, box(-2, -2, 0.5, 0.5)),
		NewZone(model.ZoneSea, box(2, 2, 2, 2.5)), // degenerate
	)
	var pts []model.LonLat
	for x := -2.5; x <= 4.5; x += 0.13 {
		for y := -2.5; y <= 3; y += 0.17 {
			pts = append(pts, model.LonLat{Lon: x, Lat: y})
		}
	}
	c := NewClassifier(set, WithDefaultZone(model.ZoneInland))
	joined, err := c.Join(pts)
	require.NoError(t, err)
	assert.Equal(t, joined, c.IndexLookup(pts))
	assert.Len(t, joined, len(pts))
}

func TestClassify_MalformedPolygonFallsBack(t *testing.T) {
	open := orb.MultiPolygon{{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}}
	nan := orb.MultiPolygon{{{{math.NaN(), 0}, {5, 0}, {5, 5}, {0, 5}, {math.NaN(), 0}}}}
	set := NewPolygonSet(
		NewZone(model.ZoneSea, nan),
		NewZone(model.ZoneCoastal, open),
		NewZone(model.ZoneSea, box(10, 10, 11, 11)),
	)
	c := NewClassifier(set)

	_, err := c.Join([]model.LonLat{{Lon: 1, Lat: 1}})
	require.Error(t, err)
	assert.True(t, model.IsSpatialJoin(err))

	got := c.Classify([]model.LonLat{{Lon: 1, Lat: 1}, {Lon: 10.5, Lat: 10.5}, {Lon: 50, Lat: 50}})
	assert.Equal(t, []int{3, 1, 4}, got)
}

func TestClassify_EmptySet(t *testing.T) {
	pts := []model.LonLat{rio, guinea}
	assert.Equal(t, []int{4, 4}, NewClassifier(nil).Classify(pts))
	assert.Equal(t, []int{1, 1}, NewClassifier(NewPolygonSet(), WithDefaultZone(1)).Classify(pts))
	assert.Empty(t, NewClassifier(nil).Classify(nil))
}

const featureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"zone_type_id": 3},
     "geometry": {"type": "Polygon", "coordinates": [[[-43.5,-23.1],[-43.0,-23.1],[-43.0,-22.8],[-43.5,-22.8],[-43.5,-23.1]]]}},
    {"type": "Feature", "properties": {"zone_type_id": "1"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-45,-25],[-40,-25],[-40,-23.1],[-45,-23.1],[-45,-25]]]]}},
    {"type": "Feature", "properties": {"zone_type_id": 2},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"zone_type_id": 4.5},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"zone_type_id": 4},
     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}}
  ]
}`

func TestLoadGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	require.NoError(t, os.WriteFile(path, []byte(featureCollection), 0o644))

	set, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, map[int]int{3: 1, 1: 1}, set.Counts())
	assert.Equal(t, 3, set.Zones()[0].ID)

	got := NewClassifier(set).Classify([]model.LonLat{rio, guinea})
	assert.Equal(t, []int{3, 4}, got)
}

func TestLoadGeoJSON_CustomAttributeAndValidSet(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"zone":2},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`)
	set, err := ParseGeoJSON(data, LoadOptions{Attribute: "zone", ValidZones: []int{2}})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.geojson"), LoadOptions{})
	assert.True(t, model.IsResourceMissing(err))

	_, err = Load("", LoadOptions{})
	assert.True(t, model.IsResourceMissing(err))

	_, err = ParseGeoJSON([]byte("not json"), LoadOptions{})
	require.Error(t, err)
	assert.False(t, model.IsResourceMissing(err))
}

func TestZoneID(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{3.0, 3, false},
		{" 4 ", 4, false},
		{"1.0", 1, false},
		{int64(3), 3, false},
		{2.5, 0, true},
		{"sea", 0, true},
		{nil, 0, true},
		{math.Inf(1), 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := zoneID(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func writeShapefile(t *testing.T, path, zoneField string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 16), shp.NumberField(zoneField, 4)}))

	// clockwise outer ring with a counter-clockwise hole
	holed := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0}},
		{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1}},
	}))
	n := w.Write(&holed)
	require.NoError(t, w.WriteAttribute(int(n), 0, "sea"))
	require.NoError(t, w.WriteAttribute(int(n), 1, 1))

	other := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 0}, {X: 0, Y: 0}},
	}))
	n = w.Write(&other)
	require.NoError(t, w.WriteAttribute(int(n), 1, 3))

	unknown := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 10, Y: 10}, {X: 10, Y: 11}, {X: 11, Y: 11}, {X: 11, Y: 10}, {X: 10, Y: 10}},
	}))
	n = w.Write(&unknown)
	require.NoError(t, w.WriteAttribute(int(n), 1, 7))
	w.Close()

	// go-shp names the attribute table without the dot before "dbf".
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	_, err = os.Stat(base + ".dbf")
	require.NoError(t, err)
}

func TestLoadShapefile(t *testing.T) {
	tests := []struct {
		name      string
		zoneField string
	}{
		{"full name stored in 11 bytes", "zone_type_id"},
		{"esri 10 character name", "zone_type_"},
		{"upper case", "ZONE_TYPE_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "zones.shp")
			writeShapefile(t, path, tt.zoneField)

			set, err := Load(path, LoadOptions{})
			require.NoError(t, err)
			require.Equal(t, 2, set.Len())
			require.Len(t, set.Zones()[0].Geometry, 1)
			assert.Len(t, set.Zones()[0].Geometry[0], 2, "hole attached to outer ring")

			got := NewClassifier(set).Classify([]model.LonLat{
				{Lon: 3, Lat: 3},
				{Lon: 1.5, Lat: 1.5},
				{Lon: 5, Lat: 5},
				{Lon: 10.5, Lat: 10.5},
			})
			assert.Equal(t, []int{1, 3, 3, 4}, got)
		})
	}
}

func TestFieldIndex(t *testing.T) {
	field := func(name string) shp.Field { return shp.NumberField(name, 4) }
	tests := []struct {
		name      string
		fields    []shp.Field
		attribute string
		want      int
	}{
		{"exact", []shp.Field{field("NAME"), field("zone")}, "zone", 1},
		{"case insensitive", []shp.Field{field("ZONE")}, "zone", 0},
		{"11 byte truncation", []shp.Field{field("NAME"), field("zone_type_i")}, "zone_type_id", 1},
		{"10 character truncation", []shp.Field{field("zone_type_")}, "zone_type_id", 0},
		{"exact beats truncated", []shp.Field{field("zone_type_"), field("zone_type_id")}, "zone_type_id", 1},
		{"short prefix is not a match", []shp.Field{field("zone")}, "zone_type_id", -1},
		{"longer attribute name differs", []shp.Field{field("zone_type_x")}, "zone_type_id", -1},
		{"missing", []shp.Field{field("NAME")}, "nope", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fieldIndex(tt.fields, tt.attribute))
		})
	}
}

func TestLoadShapefile_MissingAttribute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.shp")
	writeShapefile(t, path, "zone_type_id")
	_, err := LoadShapefile(path, LoadOptions{Attribute: "nope"})
	require.Error(t, err)
}
