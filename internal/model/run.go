package model

import "time"

// RunStatus represents the current state of a profile preparation run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusGenerating RunStatus = "generating"
	RunStatusEnriching  RunStatus = "enriching"
	RunStatusAssembling RunStatus = "assembling"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one persisted pipeline execution for a transmitter.
type Run struct {
	ID          string      `json:"id"`
	Transmitter Transmitter `json:"transmitter"`
	Status      RunStatus   `json:"status"`
	Result      *RunResult  `json:"result,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Points   int           `json:"points"`
	Profiles int           `json:"profiles"`
	Summary  Summary       `json:"summary"`
	Phases   []PhaseResult `json:"phases"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Summary describes an enriched point set: elevation range, the land-cover
// codes seen and the category and zone histograms.
type Summary struct {
	Points          int         `json:"points"`
	ElevationLoaded bool        `json:"elevation_loaded"`
	LandCoverLoaded bool        `json:"landcover_loaded"`
	ZonesLoaded     bool        `json:"zones_loaded"`
	ElevationMin    float64     `json:"elevation_min"`
	ElevationMax    float64     `json:"elevation_max"`
	ElevationMean   float64     `json:"elevation_mean"`
	LandCoverCodes  []int       `json:"landcover_codes"`
	Categories      map[int]int `json:"categories"`
	Zones           map[int]int `json:"zones"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
