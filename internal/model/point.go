package model

import (
	"encoding/json"
	"math"
)

// Enrichment defaults applied when reference data is absent or a sample has no
// valid value.
const (
	DefaultElevation     = 0.0
	DefaultLandCoverCode = 254 // "unclassified"
	DefaultCategory      = 2
	DefaultResistance    = 0.0
	DefaultZone          = 4 // inland
)

// Zone ids used by the P.1812 reference data.
const (
	ZoneSea     = 1
	ZoneCoastal = 3
	ZoneInland  = 4
)

// TransmitterReceiverID is the receiver id reserved for the transmitter's own location.
const TransmitterReceiverID = 0

// SamplePoint is one receiver location on the radial grid. Generation fills
// the identity and geometry; the enrichment passes each own a disjoint set of
// the remaining fields.
type SamplePoint struct {
	TxID       string  `json:"tx_id"`
	RxID       int     `json:"rx_id"`
	DistanceKM float64 `json:"distance_km"`
	// AzimuthDeg is NaN for the transmitter's own point.
	AzimuthDeg float64 `json:"azimuth_deg"`
	Location   LonLat  `json:"location"`

	Elevation     float64 `json:"h"`
	LandCoverCode int     `json:"ct"`
	Category      int     `json:"Ct"`
	Resistance    float64 `json:"R"`
	Zone          int     `json:"zone"`
}

// NewSamplePoint returns a point with all enrichment fields at their defaults.
func NewSamplePoint(txID string, rxID int, distanceKM, azimuthDeg float64, loc LonLat) SamplePoint {
	return SamplePoint{
		TxID:          txID,
		RxID:          rxID,
		DistanceKM:    distanceKM,
		AzimuthDeg:    azimuthDeg,
		Location:      loc,
		Elevation:     DefaultElevation,
		LandCoverCode: DefaultLandCoverCode,
		Category:      DefaultCategory,
		Resistance:    DefaultResistance,
		Zone:          DefaultZone,
	}
}

// HasAzimuth is false only for the transmitter's own point.
func (p SamplePoint) HasAzimuth() bool {
	return !math.IsNaN(p.AzimuthDeg)
}

// MarshalJSON writes a null azimuth for the transmitter's own point.
func (p SamplePoint) MarshalJSON() ([]byte, error) {
	type plain SamplePoint
	out := struct {
		plain
		AzimuthDeg *float64 `json:"azimuth_deg"`
	}{plain: plain(p)}
	if p.HasAzimuth() {
		az := p.AzimuthDeg
		out.AzimuthDeg = &az
	}
	return json.Marshal(out)
}

// Locations extracts the coordinates of pts in order.
func Locations(pts []SamplePoint) []LonLat {
	out := make([]LonLat, len(pts))
	for i := range pts {
		out[i] = pts[i].Location
	}
	return out
}
