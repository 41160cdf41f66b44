// Package model holds the shared types of the profile preparation pipeline:
// transmitters, sample points, profiles and the error taxonomy.
package model

import (
	"fmt"
	"math"
)

// Polarization is the antenna polarization code expected by the P.1812 model.
type Polarization int

const (
	PolarizationHorizontal Polarization = 1
	PolarizationVertical   Polarization = 2
)

// Valid reports whether p is one of the two supported codes.
func (p Polarization) Valid() bool {
	return p == PolarizationHorizontal || p == PolarizationVertical
}

func (p Polarization) String() string {
	switch p {
	case PolarizationHorizontal:
		return "horizontal"
	case PolarizationVertical:
		return "vertical"
	default:
		return fmt.Sprintf("polarization(%d)", int(p))
	}
}

// ParsePolarization accepts either the numeric code or its name.
func ParsePolarization(s string) (Polarization, error) {
	switch s {
	case "1", "h", "horizontal":
		return PolarizationHorizontal, nil
	case "2", "v", "vertical":
		return PolarizationVertical, nil
	}
	return 0, &ValidationError{Field: "polarization", Reason: fmt.Sprintf("unknown polarization %q", s)}
}

// LonLat is a WGS84 geographic coordinate in degrees.
type LonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Valid reports whether the coordinate is finite and inside the WGS84 domain.
func (c LonLat) Valid() bool {
	if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) || math.IsInf(c.Lon, 0) || math.IsInf(c.Lat, 0) {
		return false
	}
	return c.Lon >= -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// Transmitter describes the fixed end of every profile. It is treated as
// immutable once built.
type Transmitter struct {
	ID             string       `json:"tx_id"`
	Location       LonLat       `json:"location"`
	HeightAGL      float64      `json:"htg"`
	FrequencyGHz   float64      `json:"f"`
	Polarization   Polarization `json:"pol"`
	TimePercentage float64      `json:"p"`
	RxHeightAGL    float64      `json:"hrg"`
}

// Validate checks the identifier, location and antenna heights. Radio
// parameters are validated where profiles are assembled.
func (t Transmitter) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "tx_id", Reason: "must not be empty"}
	}
	if !t.Location.Valid() {
		return &ValidationError{Field: "location", Reason: fmt.Sprintf("invalid coordinate (%v, %v)", t.Location.Lon, t.Location.Lat)}
	}
	if t.HeightAGL < 0 {
		return &ValidationError{Field: "htg", Reason: "antenna height must be >= 0"}
	}
	if t.RxHeightAGL < 0 {
		return &ValidationError{Field: "hrg", Reason: "receiver antenna height must be >= 0"}
	}
	return nil
}
