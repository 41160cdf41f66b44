package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rfprofile-cli/internal/landcover"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/raster"
	"github.com/sells-group/rfprofile-cli/internal/zone"
)

// Enricher holds the read-only state shared by every enrichment task. Nil
// samplers behave as absent ones.
type Enricher struct {
	Elevation *raster.Sampler
	LandCover *raster.Sampler
	Mapper    *landcover.Mapper
}

// Enrich fills elevation, land-cover code, category and resistance for every
// point. Points are split into contiguous shards handled by at most
// concurrency tasks; each task writes only its own shard.
func Enrich(ctx context.Context, points []model.SamplePoint, e Enricher, concurrency, shardSize int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if shardSize <= 0 {
		shardSize = DefaultShardSize
	}
	e = e.withDefaults()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(points); start += shardSize {
		shard := points[start:min(start+shardSize, len(points))]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			e.shard(shard)
			return nil
		})
	}
	return eris.Wrap(g.Wait(), "pipeline: enrich")
}

func (e Enricher) withDefaults() Enricher {
	if e.Elevation == nil {
		e.Elevation = raster.NewSampler(raster.Elevation, raster.SamplerOptions{})
	}
	if e.LandCover == nil {
		e.LandCover = raster.NewSampler(raster.LandCover, raster.SamplerOptions{})
	}
	if e.Mapper == nil {
		e.Mapper = landcover.Default()
	}
	return e
}

func (e Enricher) shard(points []model.SamplePoint) {
	coords := model.Locations(points)
	buf := make([]float64, len(points))

	e.Elevation.BatchInto(coords, buf)
	for i := range points {
		points[i].Elevation = buf[i]
	}
	e.LandCover.BatchInto(coords, buf)
	for i := range points {
		points[i].LandCoverCode = int(buf[i])
	}
	e.Mapper.Apply(points)
}

// ClassifyZones assigns every point its zone. The join runs once over the
// whole set so the polygon order tie-break is applied uniformly.
func ClassifyZones(points []model.SamplePoint, c *zone.Classifier) {
	ids := c.Classify(model.Locations(points))
	for i := range points {
		points[i].Zone = ids[i]
	}
}
