package raster

import (
	"context"
	"os"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Source yields a band to load into memory. Implementations own any file
// handles; the sampler only keeps the returned Grid.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// ReadGrid reads the whole band.
	ReadGrid(ctx context.Context) (*Grid, error)
}

// MemorySource serves an already-built Grid.
type MemorySource struct {
	Label string
	Grid  *Grid
}

// Name implements Source.
func (m MemorySource) Name() string {
	if m.Label == "" {
		return "memory"
	}
	return m.Label
}

// ReadGrid implements Source.
func (m MemorySource) ReadGrid(ctx context.Context) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Grid == nil {
		return nil, &model.ResourceMissingError{Resource: "raster", Path: m.Name(), Err: os.ErrNotExist}
	}
	return m.Grid, nil
}
