package raster

import (
	"fmt"
	"math"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Grid is one raster band loaded into memory, row-major, with its
// geotransform and optional nodata sentinel. A Grid is never mutated after
// construction and may be shared between goroutines.
type Grid struct {
	width     int
	height    int
	data      []float64
	transform Affine
	noData    float64
	hasNoData bool
}

// NewGrid validates and wraps a row-major band. Pass hasNoData=false when the
// source declares no sentinel.
func NewGrid(width, height int, data []float64, transform Affine, noData float64, hasNoData bool) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, &model.ValidationError{Field: "raster", Reason: fmt.Sprintf("invalid size %dx%d", width, height)}
	}
	if len(data) != width*height {
		return nil, &model.ValidationError{Field: "raster", Reason: fmt.Sprintf("data length %d does not match %dx%d", len(data), width, height)}
	}
	if !transform.Invertible() {
		return nil, &model.ValidationError{Field: "raster", Reason: "geotransform is not invertible"}
	}
	return &Grid{
		width:     width,
		height:    height,
		data:      data,
		transform: transform,
		noData:    noData,
		hasNoData: hasNoData,
	}, nil
}

// Size returns the band dimensions.
func (g *Grid) Size() (width, height int) { return g.width, g.height }

// Transform returns the band geotransform.
func (g *Grid) Transform() Affine { return g.transform }

// NoData returns the sentinel and whether one is declared.
func (g *Grid) NoData() (float64, bool) { return g.noData, g.hasNoData }

// Index locates the pixel containing c. ok is false when c falls outside the extent.
func (g *Grid) Index(c model.LonLat) (row, col int, ok bool) {
	row, col, err := g.transform.RowCol(c.Lon, c.Lat)
	if err != nil {
		return 0, 0, false
	}
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return row, col, false
	}
	return row, col, true
}

// At returns the raw pixel value. ok is false outside the extent or when the
// value equals the nodata sentinel or is NaN.
func (g *Grid) At(row, col int) (v float64, ok bool) {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return 0, false
	}
	v = g.data[row*g.width+col]
	if math.IsNaN(v) {
		return v, false
	}
	if g.hasNoData && v == g.noData {
		return v, false
	}
	return v, true
}

// Stats summarises the valid pixels of the band.
type Stats struct {
	Valid int
	Min   float64
	Max   float64
}

// Stats scans the band once.
func (g *Grid) Stats() Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	for i, v := range g.data {
		if _, ok := g.At(i/g.width, i%g.width); !ok {
			continue
		}
		s.Valid++
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if s.Valid == 0 {
		s.Min, s.Max = 0, 0
	}
	return s
}
