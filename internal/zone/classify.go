package zone

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// minExtent pads degenerate bounding boxes so the R-tree accepts them.
const minExtent = 1e-9

// Classifier maps points to zone ids. A nil or empty polygon set assigns the
// default zone everywhere.
type Classifier struct {
	set         *PolygonSet
	defaultZone int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDefaultZone overrides the zone assigned to uncovered points.
func WithDefaultZone(id int) Option {
	return func(c *Classifier) { c.defaultZone = id }
}

// NewClassifier builds a classifier over set.
func NewClassifier(set *PolygonSet, opts ...Option) *Classifier {
	c := &Classifier{set: set, defaultZone: model.DefaultZone}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultZone returns the zone assigned to uncovered points.
func (c *Classifier) DefaultZone() int { return c.defaultZone }

// Classify returns one zone id per point, in input order. It runs the bulk
// join and falls back to per-point index lookups when the join cannot
// evaluate the polygon set. Both strategies agree on every point the join can
// handle: first polygon in set order whose area, boundary included, contains
// the point.
func (c *Classifier) Classify(points []model.LonLat) []int {
	if c.set.Len() == 0 {
		return c.fill(len(points))
	}
	out, err := c.Join(points)
	if err == nil {
		return out
	}
	zap.L().Warn("zone: bulk join failed, using index lookup",
		zap.Error(err),
		zap.Int("points", len(points)),
		zap.Int("polygons", c.set.Len()),
	)
	return c.IndexLookup(points)
}

// Join scans polygons in priority order and assigns each still-unassigned
// point the first containing polygon's id. It fails with a
// *model.SpatialJoinError if any polygon is malformed.
func (c *Classifier) Join(points []model.LonLat) ([]int, error) {
	zones := c.set.Zones()
	for i, z := range zones {
		if err := z.check(); err != nil {
			return nil, &model.SpatialJoinError{Index: i, Reason: err.Error()}
		}
	}

	out := c.fill(len(points))
	assigned := make([]bool, len(points))
	remaining := len(points)
	for _, z := range zones {
		if remaining == 0 {
			break
		}
		b := z.Bound()
		for i, p := range points {
			if assigned[i] {
				continue
			}
			pt := orb.Point{p.Lon, p.Lat}
			if !b.Contains(pt) || !planar.MultiPolygonContains(z.Geometry, pt) {
				continue
			}
			out[i] = z.ID
			assigned[i] = true
			remaining--
		}
	}
	return out, nil
}

// IndexLookup answers each point independently through an R-tree over the
// polygon bounds. Polygons whose bounds cannot be indexed are skipped.
func (c *Classifier) IndexLookup(points []model.LonLat) []int {
	out := c.fill(len(points))
	tree, indexed := c.buildIndex()
	if indexed == 0 {
		return out
	}
	for i, p := range points {
		if id, ok := lookup(tree, p); ok {
			out[i] = id
		}
	}
	return out
}

func lookup(tree *rtreego.Rtree, p model.LonLat) (int, bool) {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
		return 0, false
	}
	pt := rtreego.Point{p.Lon, p.Lat}
	hits := tree.SearchIntersect(pt.ToRect(minExtent))
	if len(hits) == 0 {
		return 0, false
	}
	sort.Slice(hits, func(a, b int) bool {
		return hits[a].(*entry).order < hits[b].(*entry).order
	})
	op := orb.Point{p.Lon, p.Lat}
	for _, h := range hits {
		e := h.(*entry)
		if planar.MultiPolygonContains(e.zone.Geometry, op) {
			return e.zone.ID, true
		}
	}
	return 0, false
}

func (c *Classifier) buildIndex() (*rtreego.Rtree, int) {
	var objs []rtreego.Spatial
	for i, z := range c.set.Zones() {
		e, err := newEntry(i, z)
		if err != nil {
			zap.L().Warn("zone: polygon not indexable", zap.Int("polygon", i), zap.Error(err))
			continue
		}
		objs = append(objs, e)
	}
	return rtreego.NewTree(2, 25, 50, objs...), len(objs)
}

func (c *Classifier) fill(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = c.defaultZone
	}
	return out
}

// entry adapts a zone to rtreego.Spatial, remembering its set position.
type entry struct {
	order int
	zone  Zone
	rect  rtreego.Rect
}

func newEntry(order int, z Zone) (*entry, error) {
	if len(z.Geometry) == 0 {
		return nil, &model.SpatialJoinError{Index: order, Reason: "empty geometry"}
	}
	b := z.Bound()
	if !finite(b.Min[0]) || !finite(b.Min[1]) || !finite(b.Max[0]) || !finite(b.Max[1]) {
		return nil, &model.SpatialJoinError{Index: order, Reason: "non-finite bounds"}
	}
	w := math.Max(b.Max[0]-b.Min[0], minExtent)
	h := math.Max(b.Max[1]-b.Min[1], minExtent)
	r, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	if err != nil {
		return nil, err
	}
	geom := repair(z.Geometry)
	if len(geom) == 0 {
		return nil, &model.SpatialJoinError{Index: order, Reason: "no usable rings"}
	}
	return &entry{order: order, zone: Zone{ID: z.ID, Geometry: geom, bound: b}, rect: r}, nil
}

// repair closes open rings and drops rings too short to enclose area. A
// polygon whose outer ring is dropped is dropped with its holes.
func repair(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		var fixed orb.Polygon
		for ri, ring := range poly {
			if len(ring) < 3 {
				if ri == 0 {
					break
				}
				continue
			}
			if !ring.Closed() {
				ring = append(ring[:len(ring):len(ring)], ring[0])
			}
			fixed = append(fixed, ring)
		}
		if len(fixed) > 0 {
			out = append(out, fixed)
		}
	}
	return out
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }
