package pipeline

import (
	"github.com/sells-group/rfprofile-cli/internal/grid"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/profile"
	"github.com/sells-group/rfprofile-cli/internal/raster"
)

// DefaultShardSize is the number of points one enrichment task handles.
const DefaultShardSize = 4096

// Options configures a pipeline run.
type Options struct {
	Grid    grid.Options
	Sampler raster.SamplerOptions
	// DefaultZone is assigned to points no polygon contains.
	DefaultZone int
	// Concurrency bounds the enrichment tasks in flight.
	Concurrency int
	// ShardSize is the number of points per enrichment task.
	ShardSize int
	// Output, when set, receives the profiles in Format.
	Output string
	Format profile.Format
}

func (o Options) withDefaults() Options {
	if o.DefaultZone == 0 {
		o.DefaultZone = model.DefaultZone
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.ShardSize <= 0 {
		o.ShardSize = DefaultShardSize
	}
	if o.Format == "" {
		o.Format = profile.FormatJSONL
	}
	return o
}

// Validate checks the grid and worker settings.
func (o Options) Validate() error {
	if err := o.Grid.Validate(); err != nil {
		return err
	}
	if o.Concurrency < 0 {
		return &model.ValidationError{Field: "concurrency", Reason: "must be >= 0"}
	}
	if o.ShardSize < 0 {
		return &model.ValidationError{Field: "shard_size", Reason: "must be >= 0"}
	}
	if o.Output != "" {
		if _, err := profile.ParseFormat(string(o.Format)); err != nil {
			return err
		}
	}
	return nil
}
