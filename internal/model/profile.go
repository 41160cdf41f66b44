package model

// Profile is the ordered set of samples along one azimuth, in the shape the
// P.1812 model consumes. The five sequences are parallel and sorted by
// ascending distance.
//
// Transmitter is the nearest sample of the group (distance 0 when the group
// contains it, otherwise the first sample); Receiver is the farthest sample.
type Profile struct {
	FrequencyGHz   float64      `json:"f"`
	TimePercentage float64      `json:"p"`
	Distances      []float64    `json:"d"`
	Heights        []int        `json:"h"`
	Resistances    []float64    `json:"R"`
	Categories     []int        `json:"Ct"`
	Zones          []int        `json:"zone"`
	TxHeightAGL    float64      `json:"htg"`
	RxHeightAGL    float64      `json:"hrg"`
	Polarization   Polarization `json:"pol"`
	Transmitter    LonLat       `json:"tx"`
	Receiver       LonLat       `json:"rx"`
	AzimuthDeg     float64      `json:"azimuth"`
}

// Len is the number of samples on the profile.
func (p Profile) Len() int {
	return len(p.Distances)
}

// Consistent reports whether the five sequences share one length.
func (p Profile) Consistent() bool {
	n := len(p.Distances)
	return len(p.Heights) == n && len(p.Resistances) == n && len(p.Categories) == n && len(p.Zones) == n
}
