package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/rfprofile-cli/internal/model"
	"github.com/sells-group/rfprofile-cli/internal/pipeline"
	"github.com/sells-group/rfprofile-cli/internal/profile"
	"github.com/sells-group/rfprofile-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve runs and profiles over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}
		base, err := cfg.TransmitterModel()
		if err != nil {
			return err
		}
		opts, err := pipelineOptions(cfg)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := pipeline.OpenResources(resourcePaths(cfg))
		if err != nil {
			return eris.Wrap(err, "open reference data")
		}
		defer res.Close() //nolint:errcheck

		srv := &server{
			store:    st,
			pipeline: pipeline.New(opts, res, st),
			base:     base,
			format:   opts.Format,
		}

		var limiter *rate.Limiter
		if cfg.Server.RateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), max(cfg.Server.Burst, 1))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(srv, limiter),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// server holds the dependencies of the HTTP handlers.
type server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	// base supplies every transmitter field a request leaves out.
	base   model.Transmitter
	format profile.Format
}

// buildRouter wires the routes. A nil limiter disables rate limiting.
func buildRouter(s *server, limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		if limiter != nil {
			r.Use(rateLimit(limiter))
		}
		r.Post("/", s.createRun)
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
		r.Get("/{id}/profiles", s.getProfiles)
		r.Get("/{id}/coverage", s.getCoverage)
	})
	return r
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// runRequest overrides the configured transmitter. Absent fields keep the
// configured value.
type runRequest struct {
	ID             string   `json:"tx_id"`
	Lon            *float64 `json:"lon"`
	Lat            *float64 `json:"lat"`
	HTG            *float64 `json:"htg"`
	HRG            *float64 `json:"hrg"`
	FrequencyGHz   *float64 `json:"frequency_ghz"`
	TimePercentage *float64 `json:"time_percentage"`
	Polarization   string   `json:"polarization"`
}

func (req runRequest) transmitter(base model.Transmitter) (model.Transmitter, error) {
	tx := base
	if req.ID != "" {
		tx.ID = req.ID
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&tx.Location.Lon, req.Lon)
	set(&tx.Location.Lat, req.Lat)
	set(&tx.HeightAGL, req.HTG)
	set(&tx.RxHeightAGL, req.HRG)
	set(&tx.FrequencyGHz, req.FrequencyGHz)
	set(&tx.TimePercentage, req.TimePercentage)
	if req.Polarization != "" {
		pol, err := model.ParsePolarization(req.Polarization)
		if err != nil {
			return model.Transmitter{}, err
		}
		tx.Polarization = pol
	}
	return tx, tx.Validate()
}

// runResponse reports counts in place of the point and profile slices.
type runResponse struct {
	*pipeline.Result
	Points   int `json:"points"`
	Profiles int `json:"profiles"`
}

func (s *server) createRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := req.transmitter(s.base)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	result, err := s.pipeline.Run(r.Context(), tx)
	if err != nil {
		zap.L().Error("serve: run failed", zap.String("tx_id", tx.ID), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, runResponse{
		Result:   result,
		Points:   len(result.Points),
		Profiles: len(result.Profiles),
	})
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		TxID:   q.Get("tx_id"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	phases, err := s.store.ListPhases(r.Context(), run.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runDetail{Run: run, Phases: phases})
}

func (s *server) getProfiles(w http.ResponseWriter, r *http.Request) {
	f := s.format
	if v := r.URL.Query().Get("format"); v != "" {
		var err error
		if f, err = profile.ParseFormat(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	profiles, ok := s.loadProfiles(w, r)
	if !ok {
		return
	}

	if f == profile.FormatDelimited {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.WriteHeader(http.StatusOK)
	if err := profile.Write(w, f, profiles); err != nil {
		zap.L().Warn("serve: write profiles", zap.Error(err))
	}
}

func (s *server) getCoverage(w http.ResponseWriter, r *http.Request) {
	profiles, ok := s.loadProfiles(w, r)
	if !ok {
		return
	}

	var evals []profile.Evaluation
	if r.URL.Query().Get("model") == (profile.FreeSpace{}).Name() {
		var err error
		if evals, err = profile.Evaluate(r.Context(), profile.FreeSpace{}, profiles, 1); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	data, err := profile.CoverageJSON(profiles, evals)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// loadProfiles resolves the {id} run and its profiles, writing the error
// response itself when it fails.
func (s *server) loadProfiles(w http.ResponseWriter, r *http.Request) ([]model.Profile, bool) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	profiles, err := s.store.LoadProfiles(r.Context(), run.ID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	return profiles, true
}

func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case store.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid value %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
