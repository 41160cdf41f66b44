package zone

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// DefaultAttribute is the feature property holding the zone id.
const DefaultAttribute = "zone_type_id"

// dbfNameLen is the longest field name a dBASE header is meant to store.
// Writers truncate longer attribute names to it, and some keep an 11th byte.
const dbfNameLen = 10

// LoadOptions configures polygon loading.
type LoadOptions struct {
	// Attribute names the zone id property. Defaults to DefaultAttribute.
	Attribute string
	// ValidZones lists accepted ids; features with other ids are skipped.
	// Empty accepts sea, coastal and inland.
	ValidZones []int
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.Attribute == "" {
		o.Attribute = DefaultAttribute
	}
	if len(o.ValidZones) == 0 {
		o.ValidZones = []int{model.ZoneSea, model.ZoneCoastal, model.ZoneInland}
	}
	return o
}

// Load reads a polygon file, choosing the reader by extension: .shp for
// shapefiles, anything else as GeoJSON. A missing file yields a
// *model.ResourceMissingError.
func Load(path string, opts LoadOptions) (*PolygonSet, error) {
	if path == "" {
		return nil, &model.ResourceMissingError{Resource: "zones", Path: path, Err: os.ErrNotExist}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &model.ResourceMissingError{Resource: "zones", Path: path, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return LoadShapefile(path, opts)
	}
	return LoadGeoJSON(path, opts)
}

// LoadGeoJSON reads a FeatureCollection of Polygon/MultiPolygon features.
func LoadGeoJSON(path string, opts LoadOptions) (*PolygonSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ResourceMissingError{Resource: "zones", Path: path, Err: err}
	}
	return ParseGeoJSON(data, opts)
}

// ParseGeoJSON decodes a FeatureCollection held in memory.
func ParseGeoJSON(data []byte, opts LoadOptions) (*PolygonSet, error) {
	opts = opts.withDefaults()
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "zone: decode geojson")
	}

	log := zap.L().With(zap.String("component", "zone.loader"))
	var zones []Zone
	var skipped int
	for i, f := range fc.Features {
		id, err := zoneID(f.Properties[opts.Attribute])
		if err != nil {
			log.Warn("zone: skipping feature with unusable zone id",
				zap.Int("feature", i), zap.String("attribute", opts.Attribute), zap.Error(err))
			skipped++
			continue
		}
		if !slices.Contains(opts.ValidZones, id) {
			log.Warn("zone: skipping feature with unknown zone id", zap.Int("feature", i), zap.Int("zone", id))
			skipped++
			continue
		}

		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			log.Warn("zone: skipping non-polygon feature", zap.Int("feature", i), zap.String("type", geometryType(f.Geometry)))
			skipped++
			continue
		}
		zones = append(zones, NewZone(id, mp))
	}

	log.Info("zone: polygons loaded", zap.Int("zones", len(zones)), zap.Int("skipped", skipped))
	return NewPolygonSet(zones...), nil
}

// LoadShapefile reads polygon records from an ESRI shapefile. Rings wound
// clockwise start a new polygon; counter-clockwise rings are holes of the
// preceding one.
func LoadShapefile(path string, opts LoadOptions) (*PolygonSet, error) {
	opts = opts.withDefaults()
	reader, err := shp.Open(path)
	if err != nil {
		return nil, &model.ResourceMissingError{Resource: "zones", Path: path, Err: err}
	}
	defer func() { _ = reader.Close() }()

	idx := fieldIndex(reader.Fields(), opts.Attribute)
	if idx < 0 {
		return nil, eris.Errorf("zone: shapefile %s has no %s field", path, opts.Attribute)
	}

	log := zap.L().With(zap.String("component", "zone.loader"))
	var zones []Zone
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		id, err := zoneID(raw)
		if err != nil || !slices.Contains(opts.ValidZones, id) {
			log.Warn("zone: skipping shapefile record", zap.Int("record", n), zap.String("zone", raw))
			skipped++
			continue
		}
		mp := shapeToMultiPolygon(poly)
		if len(mp) == 0 {
			skipped++
			continue
		}
		zones = append(zones, NewZone(id, mp))
	}

	log.Info("zone: shapefile loaded",
		zap.String("path", path), zap.Int("zones", len(zones)), zap.Int("skipped", skipped))
	return NewPolygonSet(zones...), nil
}

// fieldIndex returns the index of the field holding attribute, or -1 if not
// found. An exact match wins over a truncated one.
func fieldIndex(fields []shp.Field, attribute string) int {
	truncated := -1
	for i, f := range fields {
		name := strings.TrimSpace(strings.TrimRight(f.String(), "\x00"))
		if strings.EqualFold(name, attribute) {
			return i
		}
		if truncated < 0 && fieldNameTruncates(name, attribute) {
			truncated = i
		}
	}
	return truncated
}

// fieldNameTruncates reports whether name is attribute cut to the dBASE
// name limit (10 characters, or 11 as go-shp stores it).
func fieldNameTruncates(name, attribute string) bool {
	if len(name) < dbfNameLen || len(name) >= len(attribute) {
		return false
	}
	return strings.EqualFold(attribute[:len(name)], name)
}

func shapeToMultiPolygon(p *shp.Polygon) orb.MultiPolygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}
	var mp orb.MultiPolygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || start >= end {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp
}

// zoneID accepts the numeric shapes a property value takes after decoding.
func zoneID(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, errors.New("missing")
	case float64:
		if !finite(t) || t != math.Trunc(t) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return zoneID(f)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
