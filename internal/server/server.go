// Package server exposes the simulation engine, job manager, and risk
// repository over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/risk-forecast/internal/config"
	"github.com/iwvelando/risk-forecast/internal/jobs"
	"github.com/iwvelando/risk-forecast/internal/repository"
	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"github.com/iwvelando/risk-forecast/pkg/distribution"
	"go.uber.org/zap"
)

// Options wires the handler's collaborators. Engine is required; Jobs,
// Repository, and Metrics disable their routes when nil.
type Options struct {
	Engine         *simulation.Engine
	Jobs           *jobs.Manager
	Repository     repository.Source
	Metrics        http.Handler
	MaxRequestSize int64
	Version        string
}

type handler struct {
	logger         *zap.Logger
	engine         *simulation.Engine
	jobs           *jobs.Manager
	repo           repository.Source
	maxRequestSize int64
	version        string
}

// NewHandler constructs the HTTP handler that serves the simulation API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRequestSize := opts.MaxRequestSize
	if maxRequestSize <= 0 {
		maxRequestSize = constants.DefaultMaxRequestSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	engine := opts.Engine
	if engine == nil {
		engine = simulation.NewEngine(logger)
	}

	h := &handler{
		logger:         logger,
		engine:         engine,
		jobs:           opts.Jobs,
		repo:           opts.Repository,
		maxRequestSize: maxRequestSize,
		version:        trimmedVersion,
	}

	mux := http.NewServeMux()

	// Synchronous simulation of a JSON request
	mux.HandleFunc("POST /api/simulate", h.handleSimulate)

	// Synchronous simulation of an uploaded YAML configuration
	mux.HandleFunc("POST /api/config/simulate", h.handleConfigSimulate)

	// Repository-backed simulation
	if h.repo != nil {
		mux.HandleFunc("POST /api/projects/{project}/revisions/{revision}/simulate", h.handleRevisionSimulate)
	}

	// Asynchronous jobs
	if h.jobs != nil {
		mux.HandleFunc("POST /api/jobs", h.handleJobSubmit)
		mux.HandleFunc("GET /api/jobs/{id}", h.handleJobGet)
		mux.HandleFunc("DELETE /api/jobs/{id}", h.handleJobCancel)
	}

	mux.HandleFunc("GET /api/version", h.handleVersion)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return mux
}

// simulateRequest is the JSON body of the simulate and job endpoints.
type simulateRequest struct {
	Risks    []simulation.RiskInput `json:"risks"`
	Settings settingsPayload        `json:"settings"`
	Base     float64                `json:"base"`
}

type settingsPayload struct {
	Iterations       int     `json:"iterations"`
	TargetPercentile int     `json:"targetPercentile"`
	Seed             *uint64 `json:"seed,omitempty"`
	HistogramBins    int     `json:"histogramBins,omitempty"`
	CurvePoints      int     `json:"curvePoints,omitempty"`
}

func (p simulateRequest) toRequest() simulation.Request {
	risks := make([]simulation.RiskInput, len(p.Risks))
	for i, risk := range p.Risks {
		risk.Shape = distribution.NormalizeShape(string(risk.Shape))
		risks[i] = risk
	}

	seed := simulation.ClockSeed()
	if p.Settings.Seed != nil {
		seed = *p.Settings.Seed
	}
	return simulation.Request{
		Risks: risks,
		Settings: simulation.Settings{
			Iterations:       p.Settings.Iterations,
			TargetPercentile: p.Settings.TargetPercentile,
			Seed:             seed,
			HistogramBins:    p.Settings.HistogramBins,
			CurvePoints:      p.Settings.CurvePoints,
		},
		Base: p.Base,
	}
}

type simulateResponse struct {
	*simulation.Result
	Warnings []string `json:"warnings,omitempty"`
	Duration string   `json:"duration"`
}

type errorResponse struct {
	Error  string `json:"error"`
	RiskID string `json:"riskId,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (h *handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulate"
	start := time.Now()

	req, ok := h.decodeRequest(w, r, op)
	if !ok {
		return
	}
	h.runSimulation(r.Context(), w, req, nil, start, op)
}

func (h *handler) handleConfigSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleConfigSimulate"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)
	if err := r.ParseMultipartForm(h.maxRequestSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxRequestSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, "missing configuration file", op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to read configuration: %v", err), op)
		return
	}

	conf, err := config.LoadConfigurationFromReader(&buf)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	h.runSimulation(r.Context(), w, conf.Request(), conf.ValidateConfiguration(), start, op)
}

func (h *handler) handleRevisionSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRevisionSimulate"
	start := time.Now()

	project, revision := r.PathValue("project"), r.PathValue("revision")
	req, err := repository.Request(r.Context(), h.repo, project, revision)
	if err != nil {
		h.respondFailure(w, fmt.Errorf("failed to load %s/%s: %w", project, revision, err), op)
		return
	}
	h.runSimulation(r.Context(), w, req, nil, start, op)
}

func (h *handler) runSimulation(ctx context.Context, w http.ResponseWriter, req simulation.Request, warnings []string, start time.Time, op string) {
	result, err := h.engine.Run(ctx, req)
	if err != nil {
		h.respondFailure(w, err, op)
		return
	}

	h.logger.Info("simulation request completed",
		zap.String("op", op),
		zap.Int("risks", result.RisksAnalyzed),
		zap.Int("iterations", len(result.Distribution)),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, simulateResponse{
		Result:   result,
		Warnings: warnings,
		Duration: time.Since(start).String(),
	})
}

func (h *handler) handleJobSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleJobSubmit"

	req, ok := h.decodeRequest(w, r, op)
	if !ok {
		return
	}
	snapshot, err := h.jobs.Submit(req)
	if err != nil {
		h.respondFailure(w, err, op)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+snapshot.ID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     snapshot.ID,
		"status": string(snapshot.Status),
	})
}

func (h *handler) handleJobGet(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		h.respondFailure(w, err, "server.handleJobGet")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *handler) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.jobs.Cancel(r.PathValue("id"))
	if err != nil {
		h.respondFailure(w, err, "server.handleJobCancel")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     snapshot.ID,
		"status": string(snapshot.Status),
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request, op string) (simulation.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)

	var payload simulateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxRequestSize), op)
			return simulation.Request{}, false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return simulation.Request{}, false
	}
	return payload.toRequest(), true
}

// respondFailure maps an error from the engine, job manager, or repository to
// a status code.
func (h *handler) respondFailure(w http.ResponseWriter, err error, op string) {
	var verr *simulation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.Warn("simulation request rejected",
			zap.String("op", op),
			zap.Error(err),
		)
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  err.Error(),
			RiskID: verr.RiskID,
			Field:  verr.Field,
		})
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
	case errors.Is(err, jobs.ErrClosed):
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, err.Error(), op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, fmt.Sprintf("simulation aborted: %v", err), op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
	}
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("simulation request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
