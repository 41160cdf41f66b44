package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// SRID of every stored geometry.
const SRID = 4326

// EncodePoint converts a coordinate to EWKB bytes with SRID 4326.
func EncodePoint(c model.LonLat) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return data, nil
}

// DecodePoint is the inverse of EncodePoint.
func DecodePoint(data []byte) (model.LonLat, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return model.LonLat{}, eris.Wrap(err, "store: decode point")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return model.LonLat{}, eris.Errorf("store: expected point, got %T", g)
	}
	return model.LonLat{Lon: pt.X(), Lat: pt.Y()}, nil
}

// EncodePath stores the transmitter to receiver line of a profile as an EWKB
// LineString, so GIS tools can draw the radial without parsing the profile.
func EncodePath(p model.Profile) ([]byte, error) {
	flat := []float64{p.Transmitter.Lon, p.Transmitter.Lat, p.Receiver.Lon, p.Receiver.Lat}
	g := geom.NewLineStringFlat(geom.XY, flat).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode path")
	}
	return data, nil
}

// DecodePath returns the end points of a path written by EncodePath.
func DecodePath(data []byte) (tx, rx model.LonLat, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return tx, rx, eris.Wrap(err, "store: decode path")
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return tx, rx, eris.Errorf("store: expected linestring, got %T", g)
	}
	if ls.NumCoords() < 2 {
		return tx, rx, eris.New("store: path has fewer than two coordinates")
	}
	first, last := ls.Coord(0), ls.Coord(ls.NumCoords()-1)
	return model.LonLat{Lon: first.X(), Lat: first.Y()}, model.LonLat{Lon: last.X(), Lat: last.Y()}, nil
}
