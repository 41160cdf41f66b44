package pipeline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/landcover"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/raster"
	"github.com/sells-group/rfprofile-cli/internal/zone"
)

// Paths locates the reference data on disk. Empty paths mean "not configured".
type Paths struct {
	DEM        string
	LandCover  string
	Zones      string
	Lookup     string
	Attribute  string
	ValidZones []int
}

// Resources is the reference data of a run. Nil sources and an empty zone
// set are valid and leave the matching enrichment at its defaults.
type Resources struct {
	Elevation raster.Source
	LandCover raster.Source
	Zones     *zone.PolygonSet
	Mapper    *landcover.Mapper

	datasets []*raster.Dataset
}

// OpenResources opens whatever reference data is available. A missing or
// unreadable raster or polygon file is logged and skipped; only a malformed
// lookup table is fatal.
func OpenResources(paths Paths) (*Resources, error) {
	log := zap.L().With(zap.String("component", "resources"))
	res := &Resources{}

	res.Elevation = res.openRaster(log, "elevation", paths.DEM)
	res.LandCover = res.openRaster(log, "landcover", paths.LandCover)

	if paths.Zones == "" {
		log.Warn("pipeline: zone polygons not configured, using default zone")
	} else {
		set, err := zone.Load(paths.Zones, zone.LoadOptions{Attribute: paths.Attribute, ValidZones: paths.ValidZones})
		if err != nil {
			log.Warn("pipeline: zone polygons unavailable, using default zone",
				zap.String("path", paths.Zones), zap.Error(err))
		} else {
			res.Zones = set
		}
	}

	if paths.Lookup == "" {
		res.Mapper = landcover.Default()
	} else {
		m, err := landcover.LoadTables(paths.Lookup)
		switch {
		case err == nil:
			res.Mapper = m
		case model.IsResourceMissing(err):
			log.Warn("pipeline: lookup tables unavailable, using built-in tables",
				zap.String("path", paths.Lookup), zap.Error(err))
			res.Mapper = landcover.Default()
		default:
			res.Close() //nolint:errcheck
			return nil, err
		}
	}
	return res, nil
}

func (r *Resources) openRaster(log *zap.Logger, kind, path string) raster.Source {
	if path == "" {
		log.Warn("pipeline: raster not configured, using defaults", zap.String("kind", kind))
		return nil
	}
	ds, err := raster.OpenDataset(path, 1)
	if err != nil {
		log.Warn("pipeline: raster unavailable, using defaults",
			zap.String("kind", kind), zap.String("path", path), zap.Error(err))
		return nil
	}
	r.datasets = append(r.datasets, ds)
	return ds
}

// Close releases the open raster datasets.
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, ds := range r.datasets {
		errs = append(errs, ds.Close())
	}
	r.datasets = nil
	return errors.Join(errs...)
}
