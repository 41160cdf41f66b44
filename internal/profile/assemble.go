// Package profile groups enriched sample points into per-azimuth profiles
// and moves them in and out of files.
package profile

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Radio parameter domains accepted by the P.1812 model.
const (
	MinFrequencyGHz   = 0.03
	MaxFrequencyGHz   = 6.0
	MinTimePercentage = 1.0
	MaxTimePercentage = 50.0
)

// Params are the scalar fields copied onto every profile.
type Params struct {
	FrequencyGHz   float64
	TimePercentage float64
	Polarization   model.Polarization
	TxHeightAGL    float64
	RxHeightAGL    float64
}

// ParamsFor takes the radio parameters from tx.
func ParamsFor(tx model.Transmitter) Params {
	return Params{
		FrequencyGHz:   tx.FrequencyGHz,
		TimePercentage: tx.TimePercentage,
		Polarization:   tx.Polarization,
		TxHeightAGL:    tx.HeightAGL,
		RxHeightAGL:    tx.RxHeightAGL,
	}
}

// Validate checks the radio parameter domains.
func (p Params) Validate() error {
	if !(p.FrequencyGHz >= MinFrequencyGHz && p.FrequencyGHz <= MaxFrequencyGHz) {
		return &model.ValidationError{Field: "frequency_ghz", Reason: fmt.Sprintf("%v outside [%v, %v]", p.FrequencyGHz, MinFrequencyGHz, MaxFrequencyGHz)}
	}
	if !(p.TimePercentage >= MinTimePercentage && p.TimePercentage <= MaxTimePercentage) {
		return &model.ValidationError{Field: "time_percentage", Reason: fmt.Sprintf("%v outside [%v, %v]", p.TimePercentage, MinTimePercentage, MaxTimePercentage)}
	}
	if !p.Polarization.Valid() {
		return &model.ValidationError{Field: "polarization", Reason: fmt.Sprintf("%d is not 1 or 2", int(p.Polarization))}
	}
	if p.TxHeightAGL < 0 || p.RxHeightAGL < 0 {
		return &model.ValidationError{Field: "antenna_height", Reason: "must be >= 0"}
	}
	return nil
}

// RoundHeight converts an elevation to whole metres, rounding half away
// from zero. Non-finite input yields the default elevation.
func RoundHeight(h float64) int {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return int(model.DefaultElevation)
	}
	return int(math.Round(h))
}

// Assemble builds one profile per distinct azimuth, in ascending azimuth
// order. The transmitter's own point is excluded. Samples within a profile
// are ordered by ascending distance; the nearest gives the profile's
// transmitter coordinate and the farthest its receiver coordinate.
func Assemble(points []model.SamplePoint, params Params) ([]model.Profile, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	groups := make(map[float64][]model.SamplePoint)
	for _, p := range points {
		if !p.HasAzimuth() {
			continue
		}
		groups[p.AzimuthDeg] = append(groups[p.AzimuthDeg], p)
	}

	azimuths := make([]float64, 0, len(groups))
	for az := range groups {
		azimuths = append(azimuths, az)
	}
	sort.Float64s(azimuths)

	profiles := make([]model.Profile, 0, len(azimuths))
	for _, az := range azimuths {
		profiles = append(profiles, build(az, groups[az], params))
	}

	zap.L().Debug("profile: assembled",
		zap.Int("points", len(points)),
		zap.Int("profiles", len(profiles)),
	)
	return profiles, nil
}

func build(az float64, group []model.SamplePoint, params Params) model.Profile {
	sort.SliceStable(group, func(i, j int) bool { return group[i].DistanceKM < group[j].DistanceKM })

	n := len(group)
	pr := model.Profile{
		FrequencyGHz:   params.FrequencyGHz,
		TimePercentage: params.TimePercentage,
		Distances:      make([]float64, n),
		Heights:        make([]int, n),
		Resistances:    make([]float64, n),
		Categories:     make([]int, n),
		Zones:          make([]int, n),
		TxHeightAGL:    params.TxHeightAGL,
		RxHeightAGL:    params.RxHeightAGL,
		Polarization:   params.Polarization,
		Transmitter:    group[0].Location,
		Receiver:       group[n-1].Location,
		AzimuthDeg:     az,
	}
	for i, p := range group {
		pr.Distances[i] = p.DistanceKM
		pr.Heights[i] = RoundHeight(p.Elevation)
		pr.Resistances[i] = p.Resistance
		pr.Categories[i] = p.Category
		pr.Zones[i] = p.Zone
	}
	return pr
}
