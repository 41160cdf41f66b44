package raster

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Kind selects the default value and validity rules of a Sampler.
type Kind int

const (
	// Elevation samples terrain height in metres.
	Elevation Kind = iota
	// LandCover samples a land-cover class code.
	LandCover
)

func (k Kind) String() string {
	switch k {
	case Elevation:
		return "elevation"
	case LandCover:
		return "landcover"
	default:
		return "unknown"
	}
}

// DefaultMinElevation is the plausibility floor; values at or below it are voids.
const DefaultMinElevation = -32000.0

// maxLandCoverCode bounds the class codes a land-cover raster may carry.
const maxLandCoverCode = 254

// SamplerOptions tunes validity checks. Zero values select the defaults.
type SamplerOptions struct {
	// MinElevation replaces DefaultMinElevation when set. Zero is a valid floor.
	MinElevation *float64
	// MaxElevation, when non-zero, treats values above it as voids.
	MaxElevation float64
}

// Sampler answers point queries against one in-memory band. Until Load
// succeeds it is absent and every query yields the kind's default. Queries
// never touch the file system and are safe for concurrent use.
type Sampler struct {
	kind   Kind
	minEl  float64
	maxEl  float64
	mu     sync.RWMutex
	grid   *Grid
	source string
}

// NewSampler returns an absent sampler of the given kind.
func NewSampler(kind Kind, opts SamplerOptions) *Sampler {
	s := &Sampler{kind: kind, minEl: DefaultMinElevation, maxEl: math.Inf(1)}
	if opts.MinElevation != nil {
		s.minEl = *opts.MinElevation
	}
	if opts.MaxElevation != 0 {
		s.maxEl = opts.MaxElevation
	}
	return s
}

// Kind returns the sampler kind.
func (s *Sampler) Kind() Kind { return s.kind }

// Loaded reports whether a band is in memory.
func (s *Sampler) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid != nil
}

// Load reads the whole band from src. On failure the sampler stays absent
// and the error is returned for the caller to report; queries keep working.
func (s *Sampler) Load(ctx context.Context, src Source) error {
	if src == nil {
		return &model.ResourceMissingError{Resource: s.kind.String(), Path: ""}
	}
	g, err := src.ReadGrid(ctx)
	if err != nil {
		if model.IsResourceMissing(err) {
			return err
		}
		return &model.ResourceMissingError{Resource: s.kind.String(), Path: src.Name(), Err: err}
	}

	s.mu.Lock()
	s.grid = g
	s.source = src.Name()
	s.mu.Unlock()

	w, h := g.Size()
	zap.L().Info("raster: sampler loaded",
		zap.String("kind", s.kind.String()),
		zap.String("source", src.Name()),
		zap.Int("width", w),
		zap.Int("height", h),
	)
	return nil
}

// Close drops the in-memory band. The sampler reverts to absent.
func (s *Sampler) Close() error {
	s.mu.Lock()
	s.grid = nil
	s.mu.Unlock()
	return nil
}

// Default returns the value substituted for missing data.
func (s *Sampler) Default() float64 {
	if s.kind == LandCover {
		return model.DefaultLandCoverCode
	}
	return model.DefaultElevation
}

// Value samples the pixel containing c.
func (s *Sampler) Value(c model.LonLat) float64 {
	s.mu.RLock()
	g := s.grid
	s.mu.RUnlock()
	return s.value(g, c)
}

// Batch samples every coordinate, returning one value per input in order.
func (s *Sampler) Batch(coords []model.LonLat) []float64 {
	out := make([]float64, len(coords))
	s.BatchInto(coords, out)
	return out
}

// BatchInto writes one value per coordinate into out, which must be at least
// as long as coords.
func (s *Sampler) BatchInto(coords []model.LonLat, out []float64) {
	s.mu.RLock()
	g := s.grid
	s.mu.RUnlock()
	for i, c := range coords {
		out[i] = s.value(g, c)
	}
}

func (s *Sampler) value(g *Grid, c model.LonLat) float64 {
	def := s.Default()
	if g == nil || !c.Valid() {
		return def
	}
	row, col, ok := g.Index(c)
	if !ok {
		return def
	}
	v, ok := g.At(row, col)
	if !ok {
		return def
	}
	switch s.kind {
	case Elevation:
		if v <= s.minEl || v > s.maxEl {
			return def
		}
	case LandCover:
		v = math.Round(v)
		if v < 0 || v > maxLandCoverCode {
			return def
		}
	}
	return v
}
