package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusQueued, "queued"},
		{RunStatusGenerating, "generating"},
		{RunStatusEnriching, "enriching"},
		{RunStatusAssembling, "assembling"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestPhaseStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status PhaseStatus
		want   string
	}{
		{PhaseStatusRunning, "running"},
		{PhaseStatusComplete, "complete"},
		{PhaseStatusFailed, "failed"},
		{PhaseStatusSkipped, "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestSummaryHistogramKeys(t *testing.T) {
	t.Parallel()

	s := Summary{Points: 3, Categories: map[int]int{2: 2, 4: 1}, Zones: map[int]int{ZoneInland: 3}}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"categories":{"2":2,"4":1}`)

	var back Summary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s.Categories, back.Categories)
	assert.Equal(t, 3, back.Zones[ZoneInland])
}
