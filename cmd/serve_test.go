package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/rfprofile-cli/internal/grid"
	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/pipeline"
	"github.com/sells-group/rfprofile-cli/internal/profile"
	"github.com/sells-group/rfprofile-cli/internal/store"
)

func baseTransmitter() model.Transmitter {
	return model.Transmitter{
		ID:             "conakry",
		Location:       model.LonLat{Lon: -13.40694, Lat: 9.345},
		HeightAGL:      30,
		FrequencyGHz:   0.9,
		Polarization:   model.PolarizationHorizontal,
		TimePercentage: 50,
		RxHeightAGL:    1.5,
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	opts := pipeline.Options{
		Grid:        grid.Options{MaxDistanceKM: 1, StepKM: 0.5, NumAzimuths: 4, IncludeTxPoint: true},
		Concurrency: 2,
	}
	return &server{
		store:    st,
		pipeline: pipeline.New(opts, nil, st),
		base:     baseTransmitter(),
		format:   profile.FormatJSONL,
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func createRun(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/runs", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		RunID    string `json:"run_id"`
		Points   int    `json:"points"`
		Profiles int    `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	assert.Equal(t, 13, resp.Points)
	assert.Equal(t, 4, resp.Profiles)
	return resp.RunID
}

func TestRouter_Health(t *testing.T) {
	h := buildRouter(&server{}, nil)

	rr := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_CreateAndFetchRun(t *testing.T) {
	h := buildRouter(newTestServer(t), nil)

	id := createRun(t, h, `{"tx_id":"site-a","htg":25}`)

	rr := do(t, h, http.MethodGet, "/runs/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var detail struct {
		ID          string            `json:"id"`
		Status      model.RunStatus   `json:"status"`
		Transmitter model.Transmitter `json:"transmitter"`
		Phases      []model.RunPhase  `json:"phases"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, id, detail.ID)
	assert.Equal(t, model.RunStatusComplete, detail.Status)
	assert.Equal(t, "site-a", detail.Transmitter.ID)
	assert.Equal(t, 25.0, detail.Transmitter.HeightAGL)
	assert.Equal(t, 0.9, detail.Transmitter.FrequencyGHz)
	assert.NotEmpty(t, detail.Phases)

	rr = do(t, h, http.MethodGet, "/runs?tx_id=site-a", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)

	rr = do(t, h, http.MethodGet, "/runs?tx_id=other", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestRouter_Profiles(t *testing.T) {
	h := buildRouter(newTestServer(t), nil)
	id := createRun(t, h, `{}`)

	tests := []struct {
		name        string
		query       string
		contentType string
		format      profile.Format
	}{
		{"default jsonl", "", "application/x-ndjson", profile.FormatJSONL},
		{"csv", "?format=csv", "text/csv", profile.FormatDelimited},
		{"explicit jsonl", "?format=jsonl", "application/x-ndjson", profile.FormatJSONL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, "/runs/"+id+"/profiles"+tt.query, "")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.contentType, rr.Header().Get("Content-Type"))

			profiles, bad, err := profile.Read(bytes.NewReader(rr.Body.Bytes()), tt.format)
			require.NoError(t, err)
			assert.Empty(t, bad)
			require.Len(t, profiles, 4)
			for _, p := range profiles {
				assert.True(t, p.Consistent())
				assert.Equal(t, 3, p.Len())
			}
		})
	}

	rr := do(t, h, http.MethodGet, "/runs/"+id+"/profiles?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Coverage(t *testing.T) {
	h := buildRouter(newTestServer(t), nil)
	id := createRun(t, h, `{}`)

	rr := do(t, h, http.MethodGet, "/runs/"+id+"/coverage?model=free-space", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	// transmitter + (receiver + line) per profile + coverage ring
	assert.Len(t, fc.Features, 1+2*4+1)

	var withLoss int
	for _, f := range fc.Features {
		if _, ok := f.Properties["Lb"]; ok {
			withLoss++
		}
	}
	assert.Equal(t, 4, withLoss)
}

func TestRouter_Errors(t *testing.T) {
	h := buildRouter(newTestServer(t), nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown run", http.MethodGet, "/runs/does-not-exist", "", http.StatusNotFound},
		{"unknown run profiles", http.MethodGet, "/runs/does-not-exist/profiles", "", http.StatusNotFound},
		{"unknown run coverage", http.MethodGet, "/runs/does-not-exist/coverage", "", http.StatusNotFound},
		{"bad body", http.MethodPost, "/runs", "{", http.StatusBadRequest},
		{"bad polarization", http.MethodPost, "/runs", `{"polarization":"circular"}`, http.StatusBadRequest},
		{"bad latitude", http.MethodPost, "/runs", `{"lat":95}`, http.StatusBadRequest},
		{"bad frequency", http.MethodPost, "/runs", `{"frequency_ghz":-1}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/runs?limit=abc", "", http.StatusBadRequest},
		{"negative offset", http.MethodGet, "/runs?offset=-1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	h := buildRouter(newTestServer(t), rate.NewLimiter(rate.Limit(0.001), 1))

	first := do(t, h, http.MethodGet, "/runs", "")
	assert.Equal(t, http.StatusOK, first.Code)

	second := do(t, h, http.MethodGet, "/runs", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	// health is outside the limited group
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestRouter_CORS(t *testing.T) {
	h := buildRouter(&server{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/runs", nil)
	req.Header.Set("Origin", "http://viewer.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunRequestTransmitter(t *testing.T) {
	lat := 9.5
	f := 2.4

	tx, err := runRequest{ID: "b", Lat: &lat, FrequencyGHz: &f, Polarization: "vertical"}.transmitter(baseTransmitter())
	require.NoError(t, err)
	assert.Equal(t, "b", tx.ID)
	assert.Equal(t, 9.5, tx.Location.Lat)
	assert.Equal(t, -13.40694, tx.Location.Lon)
	assert.Equal(t, 2.4, tx.FrequencyGHz)
	assert.Equal(t, model.PolarizationVertical, tx.Polarization)
	assert.Equal(t, 30.0, tx.HeightAGL)

	tx, err = runRequest{}.transmitter(baseTransmitter())
	require.NoError(t, err)
	assert.Equal(t, baseTransmitter(), tx)
}
