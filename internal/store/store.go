// Package store persists pipeline runs, their phases and the assembled
// profiles. SQLite is the default backend; Postgres is used when a database
// URL is configured.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// ErrNotFound is wrapped by lookups of an unknown run or phase.
var ErrNotFound = eris.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	TxID   string          `json:"tx_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// defaultListLimit caps ListRuns when the filter sets no limit.
const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for profile preparation runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, tx model.Transmitter) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Profiles
	SaveProfiles(ctx context.Context, runID string, profiles []model.Profile) (int, error)
	LoadProfiles(ctx context.Context, runID string) ([]model.Profile, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// resultStatus is the run status recorded alongside a final result.
func resultStatus(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}

// profileRow is the backend-neutral encoding of one stored profile.
type profileRow struct {
	Index   int
	Azimuth float64
	Samples int
	Path    []byte
	Data    []byte
}

func encodeProfiles(profiles []model.Profile) ([]profileRow, error) {
	rows := make([]profileRow, len(profiles))
	for i, p := range profiles {
		if !p.Consistent() {
			return nil, eris.Errorf("store: profile %d has sequences of unequal length", i)
		}
		path, err := EncodePath(p)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode path %d", i)
		}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal profile %d", i)
		}
		rows[i] = profileRow{Index: i, Azimuth: p.AzimuthDeg, Samples: p.Len(), Path: path, Data: data}
	}
	return rows, nil
}

func decodeProfile(data []byte) (model.Profile, error) {
	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return p, eris.Wrap(err, "store: unmarshal profile")
	}
	return p, nil
}
