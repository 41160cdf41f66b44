package profile

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Coverage builds a FeatureCollection for map viewers: the transmitter, one
// receiver point and one path line per profile, and, with three or more
// profiles, the closed ring through the receiver ends in azimuth order.
// evals may be nil; when given it is indexed like profiles.
func Coverage(profiles []model.Profile, evals []Evaluation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(profiles) == 0 {
		return fc
	}

	first := profiles[0]
	tx := geojson.NewFeature(point(first.Transmitter))
	tx.Properties["name"] = "transmitter"
	tx.Properties["frequency"] = first.FrequencyGHz
	tx.Properties["htg"] = first.TxHeightAGL
	tx.Properties["polarization"] = int(first.Polarization)
	fc.Append(tx)

	ring := make(orb.Ring, 0, len(profiles)+1)
	for i, p := range profiles {
		rx := geojson.NewFeature(point(p.Receiver))
		rx.Properties["name"] = "receiver"
		rx.Properties["azimuth"] = p.AzimuthDeg
		rx.Properties["hrg"] = p.RxHeightAGL
		if n := p.Len(); n > 0 {
			rx.Properties["distance"] = p.Distances[n-1]
		}
		if i < len(evals) && evals[i].Loss != nil {
			rx.Properties["Lb"] = evals[i].Loss.Lb
			rx.Properties["Ep"] = evals[i].Loss.Ep
		}
		fc.Append(rx)

		line := geojson.NewFeature(orb.LineString{point(p.Transmitter), point(p.Receiver)})
		line.Properties["azimuth"] = p.AzimuthDeg
		fc.Append(line)

		ring = append(ring, point(p.Receiver))
	}

	if len(ring) >= 3 {
		ring = append(ring, ring[0])
		area := geojson.NewFeature(orb.Polygon{ring})
		area.Properties["name"] = "coverage"
		fc.Append(area)
	}
	return fc
}

// CoverageJSON renders Coverage as indented GeoJSON.
func CoverageJSON(profiles []model.Profile, evals []Evaluation) ([]byte, error) {
	data, err := json.MarshalIndent(Coverage(profiles, evals), "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "profile: marshal coverage")
	}
	return data, nil
}

func point(c model.LonLat) orb.Point { return orb.Point{c.Lon, c.Lat} }
