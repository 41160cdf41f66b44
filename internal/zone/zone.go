// Package zone assigns each sample point a radio-climatic zone id from a set
// of classification polygons.
package zone

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Zone is one classification polygon with its zone id.
type Zone struct {
	ID       int
	Geometry orb.MultiPolygon
	bound    orb.Bound
}

// NewZone wraps geometry, caching its bounding box.
func NewZone(id int, g orb.MultiPolygon) Zone {
	return Zone{ID: id, Geometry: g, bound: g.Bound()}
}

// Bound returns the cached bounding box.
func (z Zone) Bound() orb.Bound { return z.bound }

// check reports why the polygon cannot be evaluated by the bulk join, or nil.
func (z Zone) check() error {
	if len(z.Geometry) == 0 {
		return errors.New("empty geometry")
	}
	for pi, poly := range z.Geometry {
		if len(poly) == 0 {
			return fmt.Errorf("part %d has no rings", pi)
		}
		for ri, ring := range poly {
			if len(ring) < 4 {
				return fmt.Errorf("part %d ring %d has %d coordinates, need 4", pi, ri, len(ring))
			}
			for _, p := range ring {
				if !finite(p[0]) || !finite(p[1]) {
					return fmt.Errorf("part %d ring %d has a non-finite coordinate", pi, ri)
				}
			}
			if !ring.Closed() {
				return fmt.Errorf("part %d ring %d is not closed", pi, ri)
			}
		}
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// PolygonSet is an ordered collection of zones. Order is priority: where
// polygons overlap, the earliest wins.
type PolygonSet struct {
	zones []Zone
}

// NewPolygonSet keeps zones in the given order.
func NewPolygonSet(zones ...Zone) *PolygonSet {
	return &PolygonSet{zones: zones}
}

// Len returns the number of zones.
func (s *PolygonSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.zones)
}

// Zones returns the zones in priority order.
func (s *PolygonSet) Zones() []Zone {
	if s == nil {
		return nil
	}
	return s.zones
}

// Counts returns how many polygons carry each zone id.
func (s *PolygonSet) Counts() map[int]int {
	out := make(map[int]int)
	for _, z := range s.Zones() {
		out[z.ID]++
	}
	return out
}
