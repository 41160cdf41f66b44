// Package pipeline runs profile preparation end to end: generate the receiver
// grid, enrich it from the reference data, classify zones, assemble profiles
// and optionally persist and export them.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rfprofile-cli/internal/grid"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/profile"
	"github.com/sells-group/rfprofile-cli/internal/raster"
	"github.com/sells-group/rfprofile-cli/internal/store"
	"github.com/sells-group/rfprofile-cli/internal/zone"
)

// Phase names, in execution order.
const (
	PhaseGenerate  = "generate"
	PhaseLoad      = "load"
	PhaseEnrich    = "enrich"
	PhaseClassify  = "classify"
	PhaseSummarize = "summarize"
	PhaseAssemble  = "assemble"
	PhasePersist   = "persist"
	PhaseExport    = "export"
)

// Pipeline orchestrates one transmitter at a time.
type Pipeline struct {
	opts  Options
	res   *Resources
	store store.Store
}

// New creates a Pipeline. res may be nil (all defaults) and st may be nil
// (no persistence).
func New(opts Options, res *Resources, st store.Store) *Pipeline {
	if res == nil {
		res = &Resources{}
	}
	return &Pipeline{opts: opts.withDefaults(), res: res, store: st}
}

// Result is the outcome of a run.
type Result struct {
	RunID    string              `json:"run_id,omitempty"`
	Points   []model.SamplePoint `json:"-"`
	Profiles []model.Profile     `json:"-"`
	Summary  model.Summary       `json:"summary"`
	Phases   []model.PhaseResult `json:"phases"`
	Output   string              `json:"output,omitempty"`
}

// Validate checks every input of a run before any I/O.
func (p *Pipeline) Validate(tx model.Transmitter) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := p.opts.Validate(); err != nil {
		return err
	}
	return profile.ParamsFor(tx).Validate()
}

// Run executes the full pipeline for tx. Validation errors are returned
// before anything is read or written. Missing reference data only degrades
// the affected fields to their defaults.
func (p *Pipeline) Run(ctx context.Context, tx model.Transmitter) (*Result, error) {
	if err := p.Validate(tx); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "pipeline"), zap.String("tx_id", tx.ID))
	result := &Result{}
	started := time.Now()

	var run *model.Run
	if p.store != nil {
		r, err := p.store.CreateRun(ctx, tx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		run = r
		result.RunID = r.ID
		log = log.With(zap.String("run_id", r.ID))
	}

	setStatus := func(status model.RunStatus) {
		if run == nil {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
			log.Warn("pipeline: failed to update run status", zap.String("status", string(status)), zap.Error(err))
		}
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "pipeline: %s", name)
		}

		var phase *model.RunPhase
		if run != nil {
			ph, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
			if phaseErr != nil {
				log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
			}
			phase = ph
		}

		start := time.Now()
		meta, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		pr := model.PhaseResult{Name: name, Duration: duration, Metadata: meta, Status: model.PhaseStatusComplete}
		if fnErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Phases = append(result.Phases, pr)

		if phase != nil {
			if err := p.store.CompletePhase(ctx, phase.ID, &pr); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		return fnErr
	}

	err := p.run(ctx, tx, result, trackPhase, setStatus)

	if run != nil {
		rr := &model.RunResult{
			Points:   len(result.Points),
			Profiles: len(result.Profiles),
			Summary:  result.Summary,
			Phases:   result.Phases,
			Output:   result.Output,
		}
		if err != nil {
			rr.Error = err.Error()
		}
		// The run record is finalised even when ctx was cancelled.
		if uerr := p.store.UpdateRunResult(context.WithoutCancel(ctx), run.ID, rr); uerr != nil {
			log.Warn("pipeline: failed to store run result", zap.Error(uerr))
		}
	}
	if err != nil {
		return result, err
	}

	log.Info("pipeline: run complete",
		zap.Int("points", len(result.Points)),
		zap.Int("profiles", len(result.Profiles)),
		zap.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return result, nil
}

func (p *Pipeline) run(
	ctx context.Context,
	tx model.Transmitter,
	result *Result,
	trackPhase func(string, func() (map[string]any, error)) error,
	setStatus func(model.RunStatus),
) error {
	setStatus(model.RunStatusGenerating)
	if err := trackPhase(PhaseGenerate, func() (map[string]any, error) {
		pts, err := grid.Generate(tx, p.opts.Grid)
		if err != nil {
			return nil, err
		}
		result.Points = pts
		return map[string]any{"points": len(pts)}, nil
	}); err != nil {
		return err
	}

	setStatus(model.RunStatusEnriching)
	elevation := raster.NewSampler(raster.Elevation, p.opts.Sampler)
	landCover := raster.NewSampler(raster.LandCover, p.opts.Sampler)
	defer elevation.Close() //nolint:errcheck
	defer landCover.Close() //nolint:errcheck

	if err := trackPhase(PhaseLoad, func() (map[string]any, error) {
		p.loadSamplers(ctx, elevation, landCover)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]any{
			"elevation": elevation.Loaded(),
			"landcover": landCover.Loaded(),
			"zones":     p.res.Zones.Len(),
		}, nil
	}); err != nil {
		return err
	}

	if err := trackPhase(PhaseEnrich, func() (map[string]any, error) {
		e := Enricher{Elevation: elevation, LandCover: landCover, Mapper: p.res.Mapper}
		if err := Enrich(ctx, result.Points, e, p.opts.Concurrency, p.opts.ShardSize); err != nil {
			return nil, err
		}
		return map[string]any{"points": len(result.Points), "concurrency": p.opts.Concurrency}, nil
	}); err != nil {
		return err
	}

	if err := trackPhase(PhaseClassify, func() (map[string]any, error) {
		c := zone.NewClassifier(p.res.Zones, zone.WithDefaultZone(p.opts.DefaultZone))
		ClassifyZones(result.Points, c)
		return map[string]any{"polygons": p.res.Zones.Len()}, nil
	}); err != nil {
		return err
	}

	if err := trackPhase(PhaseSummarize, func() (map[string]any, error) {
		s := Summarize(result.Points)
		s.ElevationLoaded = elevation.Loaded()
		s.LandCoverLoaded = landCover.Loaded()
		s.ZonesLoaded = p.res.Zones.Len() > 0
		result.Summary = s
		LogSummary(zap.L().With(zap.String("component", "pipeline"), zap.String("tx_id", tx.ID)), s)
		return nil, nil
	}); err != nil {
		return err
	}

	setStatus(model.RunStatusAssembling)
	if err := trackPhase(PhaseAssemble, func() (map[string]any, error) {
		profiles, err := profile.Assemble(result.Points, profile.ParamsFor(tx))
		if err != nil {
			return nil, err
		}
		result.Profiles = profiles
		return map[string]any{"profiles": len(profiles)}, nil
	}); err != nil {
		return err
	}

	if p.store != nil && result.RunID != "" {
		if err := trackPhase(PhasePersist, func() (map[string]any, error) {
			n, err := p.store.SaveProfiles(ctx, result.RunID, result.Profiles)
			if err != nil {
				return nil, err
			}
			return map[string]any{"profiles": n}, nil
		}); err != nil {
			return err
		}
	}

	if p.opts.Output != "" {
		if err := trackPhase(PhaseExport, func() (map[string]any, error) {
			if err := profile.WriteFile(p.opts.Output, p.opts.Format, result.Profiles); err != nil {
				return nil, err
			}
			result.Output = p.opts.Output
			return map[string]any{"path": p.opts.Output, "format": string(p.opts.Format)}, nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// loadSamplers reads both rasters concurrently. A failed load leaves the
// sampler absent and is logged, never returned.
func (p *Pipeline) loadSamplers(ctx context.Context, samplers ...*raster.Sampler) {
	sources := map[raster.Kind]raster.Source{
		raster.Elevation: p.res.Elevation,
		raster.LandCover: p.res.LandCover,
	}
	var g errgroup.Group
	for _, s := range samplers {
		src := sources[s.Kind()]
		g.Go(func() error {
			if src == nil {
				zap.L().Warn("pipeline: no raster source, using defaults", zap.String("kind", s.Kind().String()))
				return nil
			}
			if err := s.Load(ctx, src); err != nil {
				zap.L().Warn("pipeline: raster load failed, using defaults",
					zap.String("kind", s.Kind().String()), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
