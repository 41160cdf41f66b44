package raster

import (
	"context"
	"os"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

var registerDrivers sync.Once

// Dataset is an open GDAL raster file. Callers open it, hand it to a
// Sampler, and close it when the sampler has loaded. GDAL handles are not
// safe for concurrent use, so reads are serialised.
type Dataset struct {
	path string
	band int

	mu sync.Mutex
	ds *godal.Dataset
}

// OpenDataset opens path read-only. band is 1-based; 0 selects band 1.
// A missing or unreadable file yields a *model.ResourceMissingError.
func OpenDataset(path string, band int) (*Dataset, error) {
	if path == "" {
		return nil, &model.ResourceMissingError{Resource: "raster", Path: path, Err: os.ErrNotExist}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &model.ResourceMissingError{Resource: "raster", Path: path, Err: err}
	}
	registerDrivers.Do(godal.RegisterAll)

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, &model.ResourceMissingError{Resource: "raster", Path: path, Err: err}
	}
	if band <= 0 {
		band = 1
	}
	return &Dataset{path: path, band: band, ds: ds}, nil
}

// Name implements Source.
func (d *Dataset) Name() string { return d.path }

// ReadGrid implements Source. The whole band is read as float64.
func (d *Dataset) ReadGrid(ctx context.Context) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ds == nil {
		return nil, eris.Errorf("raster: dataset %s is closed", d.path)
	}

	bands := d.ds.Bands()
	if d.band > len(bands) {
		return nil, eris.Errorf("raster: %s has %d bands, want band %d", d.path, len(bands), d.band)
	}
	b := bands[d.band-1]
	st := b.Structure()

	gt, err := d.ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "raster: geotransform of %s", d.path)
	}

	buf := make([]float64, st.SizeX*st.SizeY)
	if err := b.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
		return nil, eris.Wrapf(err, "raster: read band %d of %s", d.band, d.path)
	}
	noData, hasNoData := b.NoData()

	zap.L().Debug("raster: band loaded",
		zap.String("path", d.path),
		zap.Int("band", d.band),
		zap.Int("width", st.SizeX),
		zap.Int("height", st.SizeY),
		zap.Bool("has_nodata", hasNoData),
	)
	return NewGrid(st.SizeX, st.SizeY, buf, Affine(gt), noData, hasNoData)
}

// Close releases the GDAL handle. Safe to call more than once.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ds == nil {
		return nil
	}
	err := d.ds.Close()
	d.ds = nil
	if err != nil {
		return eris.Wrapf(err, "raster: close %s", d.path)
	}
	return nil
}
