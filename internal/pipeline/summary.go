package pipeline

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Summarize describes an enriched point set. Loaded flags are left to the caller.
func Summarize(points []model.SamplePoint) model.Summary {
	s := model.Summary{
		Points:     len(points),
		Categories: make(map[int]int),
		Zones:      make(map[int]int),
	}
	if len(points) == 0 {
		return s
	}

	s.ElevationMin = math.Inf(1)
	s.ElevationMax = math.Inf(-1)
	var sum float64
	codes := make(map[int]struct{})
	for _, p := range points {
		s.ElevationMin = math.Min(s.ElevationMin, p.Elevation)
		s.ElevationMax = math.Max(s.ElevationMax, p.Elevation)
		sum += p.Elevation
		codes[p.LandCoverCode] = struct{}{}
		s.Categories[p.Category]++
		s.Zones[p.Zone]++
	}
	s.ElevationMean = sum / float64(len(points))

	s.LandCoverCodes = make([]int, 0, len(codes))
	for c := range codes {
		s.LandCoverCodes = append(s.LandCoverCodes, c)
	}
	sort.Ints(s.LandCoverCodes)
	return s
}

// LogSummary writes the summary at Info.
func LogSummary(log *zap.Logger, s model.Summary) {
	log.Info("pipeline: enrichment summary",
		zap.Int("points", s.Points),
		zap.Bool("elevation_loaded", s.ElevationLoaded),
		zap.Bool("landcover_loaded", s.LandCoverLoaded),
		zap.Bool("zones_loaded", s.ZonesLoaded),
		zap.Float64("elevation_min", s.ElevationMin),
		zap.Float64("elevation_max", s.ElevationMax),
		zap.Float64("elevation_mean", s.ElevationMean),
		zap.Ints("landcover_codes", s.LandCoverCodes),
		zap.Any("categories", s.Categories),
		zap.Any("zones", s.Zones),
	)
}
