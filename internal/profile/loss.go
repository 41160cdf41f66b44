package profile

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// LossModel computes propagation loss over one profile. Implementations
// wrap a P.1812 engine; the pipeline treats them as opaque.
type LossModel interface {
	Name() string
	Loss(ctx context.Context, p model.Profile) (Loss, error)
}

// Loss is a model result for one profile.
type Loss struct {
	// Lb is the basic transmission loss in dB.
	Lb float64 `json:"Lb"`
	// Ep is the field strength in dB(µV/m) for 1 kW e.r.p.
	Ep float64 `json:"Ep"`
}

// Evaluation pairs a profile with its model outcome.
type Evaluation struct {
	Index      int          `json:"index"`
	AzimuthDeg float64      `json:"azimuth"`
	Receiver   model.LonLat `json:"rx"`
	DistanceKM float64      `json:"distance_km"`
	Loss       *Loss        `json:"loss,omitempty"`
	Err        string       `json:"error,omitempty"`
}

// OK reports whether the model produced a result.
func (e Evaluation) OK() bool { return e.Loss != nil }

// Evaluate runs m over every profile with up to concurrency calls in flight.
// A failing profile is recorded and skipped; only cancellation aborts.
func Evaluate(ctx context.Context, m LossModel, profiles []model.Profile, concurrency int) ([]Evaluation, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	out := make([]Evaluation, len(profiles))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range profiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := profiles[i]
			ev := Evaluation{Index: i, AzimuthDeg: p.AzimuthDeg, Receiver: p.Receiver}
			if n := p.Len(); n > 0 {
				ev.DistanceKM = p.Distances[n-1]
			}
			l, err := m.Loss(gctx, p)
			if err != nil {
				ev.Err = err.Error()
				failed.Add(1)
				zap.L().Debug("profile: loss model skipped profile",
					zap.String("model", m.Name()), zap.Int("index", i), zap.Error(err))
			} else {
				ev.Loss = &l
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "profile: evaluate")
	}

	zap.L().Info("profile: evaluation complete",
		zap.String("model", m.Name()),
		zap.Int("profiles", len(profiles)),
		zap.Int64("failed", failed.Load()),
	)
	return out, nil
}

// FreeSpace is the free-space baseline: no terrain, clutter or zone effects.
// It is a reference point for comparing full P.1812 results.
type FreeSpace struct{}

// Name implements LossModel.
func (FreeSpace) Name() string { return "free-space" }

// Loss implements LossModel over the profile's full length.
func (FreeSpace) Loss(_ context.Context, p model.Profile) (Loss, error) {
	if p.Len() == 0 {
		return Loss{}, eris.New("profile has no samples")
	}
	d := p.Distances[p.Len()-1]
	if !(d > 0) {
		return Loss{}, eris.Errorf("path length %v km must be > 0", d)
	}
	if !(p.FrequencyGHz > 0) {
		return Loss{}, eris.Errorf("frequency %v GHz must be > 0", p.FrequencyGHz)
	}
	lb := 92.44778 + 20*math.Log10(p.FrequencyGHz) + 20*math.Log10(d)
	ep := 199.36 + 20*math.Log10(p.FrequencyGHz) - lb
	return Loss{Lb: lb, Ep: ep}, nil
}
