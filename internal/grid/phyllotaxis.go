package grid

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// metresPerDegree is the small-area approximation used for the phyllotaxis layout.
const metresPerDegree = 111320.0

// goldenAngle in radians (~137.5°).
var goldenAngle = 2 * math.Pi * (1 - 1/math.Sqrt(5))

// Phyllotaxis spreads n points over a disc of radius scaleM metres around
// origin using the golden-angle sunflower pattern. Offsets use the
// equirectangular approximation, adequate for areas of a few kilometres.
func Phyllotaxis(origin model.LonLat, n int, scaleM float64) ([]model.LonLat, error) {
	if n <= 0 {
		return nil, &model.ValidationError{Field: "num_points", Reason: "must be > 0"}
	}
	if !(scaleM >= 0) || math.IsInf(scaleM, 1) {
		return nil, &model.ValidationError{Field: "scale", Reason: "must be a finite value >= 0"}
	}
	if !origin.Valid() {
		return nil, &model.ValidationError{Field: "origin", Reason: "invalid coordinate"}
	}
	// The longitude offset divides by cos(lat); the disc must not reach a pole.
	if math.Abs(origin.Lat)+scaleM/metresPerDegree >= 90 {
		return nil, &model.ValidationError{Field: "origin", Reason: "disc reaches a pole"}
	}

	cosLat := math.Cos(origin.Lat * math.Pi / 180)
	out := make([]model.LonLat, n)
	for i := 0; i < n; i++ {
		angle := float64(i) * goldenAngle
		radius := scaleM * math.Sqrt((float64(i)+0.5)/float64(n))
		x := radius * math.Cos(angle)
		y := radius * math.Sin(angle)
		out[i] = model.LonLat{
			Lon: origin.Lon + x/(metresPerDegree*cosLat),
			Lat: origin.Lat + y/metresPerDegree,
		}
	}
	return out, nil
}

// PointsGeoJSON renders coordinates as a GeoJSON FeatureCollection of points.
func PointsGeoJSON(points []model.LonLat) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for i, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["index"] = i
		fc.Append(f)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "grid: marshal geojson")
	}
	return data, nil
}
