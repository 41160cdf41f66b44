// Package raster holds single-band rasters in memory and answers point
// queries against them without further file I/O.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Affine is a GDAL-ordered geotransform:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
type Affine [6]float64

// NorthUp builds the transform of an unrotated raster whose upper-left corner
// is (originX, originY) with the given pixel size. pixelHeight is usually negative.
func NorthUp(originX, originY, pixelWidth, pixelHeight float64) Affine {
	return Affine{originX, pixelWidth, 0, originY, 0, pixelHeight}
}

func (a Affine) det() float64 {
	return a[1]*a[5] - a[2]*a[4]
}

// Invertible reports whether pixel indices can be recovered from coordinates.
func (a Affine) Invertible() bool {
	d := a.det()
	return d != 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

// Forward maps fractional pixel coordinates to map coordinates.
func (a Affine) Forward(col, row float64) (x, y float64) {
	return a[0] + col*a[1] + row*a[2], a[3] + col*a[4] + row*a[5]
}

// Inverse maps map coordinates to fractional (col, row) pixel coordinates.
func (a Affine) Inverse(x, y float64) (col, row float64, err error) {
	d := a.det()
	if !a.Invertible() {
		return 0, 0, eris.New("raster: geotransform is not invertible")
	}
	dx, dy := x-a[0], y-a[3]
	col = (a[5]*dx - a[2]*dy) / d
	row = (a[1]*dy - a[4]*dx) / d
	return col, row, nil
}

// RowCol returns the integer pixel containing (x, y), flooring the fractional
// index the way rasterio's rowcol does.
func (a Affine) RowCol(x, y float64) (row, col int, err error) {
	fc, fr, err := a.Inverse(x, y)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(fc) || math.IsNaN(fr) || math.IsInf(fc, 0) || math.IsInf(fr, 0) {
		return 0, 0, eris.New("raster: coordinate maps outside the pixel space")
	}
	return int(math.Floor(fr)), int(math.Floor(fc)), nil
}
