// Package projection converts between WGS84 geographic coordinates and a
// metric planar system chosen per origin, so radial offsets in metres are
// physically correct near that origin.
package projection

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v11"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// RoundTripTolerance is the maximum drift in degrees of a geographic → planar
// → geographic round trip.
const RoundTripTolerance = 1e-6

const geographicCRS = "EPSG:4326"

// UTMZone returns the UTM zone number (1-60) containing the coordinate.
func UTMZone(c model.LonLat) int {
	zone := int(math.Floor((c.Lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}

// UTMEPSG returns the WGS84 / UTM EPSG code for the zone and hemisphere of c
// (326zz north, 327zz south).
func UTMEPSG(c model.LonLat) int {
	if c.Lat < 0 {
		return 32700 + UTMZone(c)
	}
	return 32600 + UTMZone(c)
}

// Projector maps coordinates near a fixed origin to and from the origin's UTM
// zone. A Projector is safe for concurrent use; go-proj serialises access to
// its context.
type Projector struct {
	origin model.LonLat
	epsg   int
	pj     *proj.PJ
}

// New builds a Projector whose planar system is derived from origin.
func New(origin model.LonLat) (*Projector, error) {
	if !origin.Valid() {
		return nil, &model.ValidationError{Field: "origin", Reason: fmt.Sprintf("invalid coordinate (%v, %v)", origin.Lon, origin.Lat)}
	}
	epsg := UTMEPSG(origin)
	pj, err := proj.NewCRSToCRS(geographicCRS, fmt.Sprintf("EPSG:%d", epsg), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "projection: create transform to EPSG:%d", epsg)
	}
	return &Projector{origin: origin, epsg: epsg, pj: pj}, nil
}

// Origin returns the coordinate the planar system was chosen for.
func (p *Projector) Origin() model.LonLat { return p.origin }

// EPSG returns the code of the planar system.
func (p *Projector) EPSG() int { return p.epsg }

// ToLocal projects a geographic coordinate to planar easting/northing in metres.
func (p *Projector) ToLocal(c model.LonLat) (x, y float64, err error) {
	// EPSG:4326 uses authority axis order (lat, lon).
	out, err := p.pj.Forward(proj.NewCoord(c.Lat, c.Lon, 0, 0))
	if err != nil {
		return 0, 0, eris.Wrapf(err, "projection: forward (%v, %v)", c.Lon, c.Lat)
	}
	return out[0], out[1], nil
}

// ToGeographic inverts ToLocal.
func (p *Projector) ToGeographic(x, y float64) (model.LonLat, error) {
	out, err := p.pj.Inverse(proj.NewCoord(x, y, 0, 0))
	if err != nil {
		return model.LonLat{}, eris.Wrapf(err, "projection: inverse (%v, %v)", x, y)
	}
	return model.LonLat{Lon: out[1], Lat: out[0]}, nil
}

// Offset returns the coordinate reached by moving east/north metres from c
// in the planar system.
func (p *Projector) Offset(c model.LonLat, east, north float64) (model.LonLat, error) {
	x, y, err := p.ToLocal(c)
	if err != nil {
		return model.LonLat{}, err
	}
	return p.ToGeographic(x+east, y+north)
}

// Close releases the underlying PROJ transform.
func (p *Projector) Close() {
	if p.pj != nil {
		p.pj.Destroy()
		p.pj = nil
	}
}
