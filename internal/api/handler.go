package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/eugenenazirov/best-candidate/internal/packer"
	"github.com/eugenenazirov/best-candidate/internal/render"
	"github.com/eugenenazirov/best-candidate/internal/runner"
	"github.com/eugenenazirov/best-candidate/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultMaxCanvas  = 4096
	defaultRunTimeout = 30 * time.Second
)

// PackingRunner executes a packing run to completion.
type PackingRunner interface {
	Run(ctx context.Context, cfg packer.Config, opts ...packer.Option) (runner.Result, error)
}

// Handler wires the packing runner and storage dependencies into HTTP handlers.
type Handler struct {
	runner  PackingRunner
	storage storage.Storage

	clock      func() time.Time
	maxCanvas  float64
	runTimeout time.Duration

	mu                sync.RWMutex
	defaultsUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxCanvas bounds the width and height accepted by packing requests.
func WithMaxCanvas(maxCanvas float64) HandlerOption {
	return func(h *Handler) {
		if maxCanvas > 0 {
			h.maxCanvas = maxCanvas
		}
	}
}

// WithRunTimeout bounds the wall time of a single packing request.
func WithRunTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.runTimeout = timeout
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(run PackingRunner, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		runner:  run,
		storage: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		maxCanvas:  defaultMaxCanvas,
		runTimeout: defaultRunTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.defaultsUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetDefaults(w http.ResponseWriter, r *http.Request) {
	_ = r
	defaults, err := h.storage.GetDefaults()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := defaultsResponse{
		Config:    defaults,
		UpdatedAt: h.currentDefaultsUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutDefaults(w http.ResponseWriter, r *http.Request) {
	var req packer.Config
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if err := h.checkCanvas(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid defaults", err.Error())
		return
	}

	if err := h.storage.SetDefaults(req); err != nil {
		if errors.Is(err, storage.ErrInvalidDefaults) {
			writeError(w, http.StatusBadRequest, "Invalid defaults", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markDefaultsUpdated()

	defaults, err := h.storage.GetDefaults()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := defaultsResponse{
		Config:    defaults,
		UpdatedAt: h.currentDefaultsUpdatedAt(),
		Message:   "Defaults updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreatePacking(w http.ResponseWriter, r *http.Request) {
	var req packingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	defaults, err := h.storage.GetDefaults()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	cfg := req.merge(defaults)

	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid packing parameters", err.Error())
		return
	}
	if err := h.checkCanvas(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid packing parameters", err.Error())
		return
	}

	var opts []packer.Option
	if req.Seed != nil {
		opts = append(opts, packer.WithSeed(*req.Seed))
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
	defer cancel()

	result, runErr := h.runner.Run(ctx, cfg, opts...)
	if runErr != nil {
		switch {
		case errors.Is(runErr, packer.ErrInvalidConfig):
			writeError(w, http.StatusBadRequest, "Invalid packing parameters", runErr.Error())
		case errors.Is(runErr, context.DeadlineExceeded):
			suggestion := fmt.Sprintf("Reduce the canvas or raise minRadius; the run stopped after %d circles", len(result.Circles))
			writeError(w, http.StatusServiceUnavailable, "Packing timed out", runErr.Error(), suggestion)
		case errors.Is(runErr, context.Canceled):
			writeError(w, http.StatusServiceUnavailable, "Packing canceled", runErr.Error())
		default:
			writeInternalError(w, runErr)
		}
		return
	}

	run := storage.Run{
		Config:    result.Config,
		Seed:      req.Seed,
		Circles:   result.Circles,
		Reason:    result.Reason,
		Attempts:  result.Attempts,
		Levels:    result.Levels,
		Elapsed:   result.Elapsed,
		CreatedAt: h.clock(),
	}
	id, err := h.storage.SaveRun(run)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	run.ID = id

	w.Header().Set("Location", "/api/packings/"+id)
	writeJSON(w, http.StatusCreated, newPackingResponse(run))
}

func (h *Handler) handleListPackings(w http.ResponseWriter, r *http.Request) {
	_ = r
	runs, err := h.storage.ListRuns()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Packings: runs})
}

func (h *Handler) handleGetPacking(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newPackingResponse(run))
}

func (h *Handler) handleRenderPacking(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	opts, err := renderOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid render options", err.Error())
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch format := r.PathValue("format"); format {
	case "svg":
		contentType = "image/svg+xml"
		err = render.SVG(&buf, run.Config.Width, run.Config.Height, run.Circles, opts)
	case "png":
		contentType = "image/png"
		err = render.PNG(&buf, run.Config.Width, run.Config.Height, run.Circles, opts)
	case "text":
		contentType = "text/plain; charset=utf-8"
		err = render.Text(&buf, run.Circles)
	default:
		writeError(w, http.StatusNotFound, "Unknown format", fmt.Sprintf("format %q is not supported; use svg, png or text", format))
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (storage.Run, bool) {
	run, err := h.storage.GetRun(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Packing not found", err.Error())
			return storage.Run{}, false
		}
		writeInternalError(w, err)
		return storage.Run{}, false
	}
	return run, true
}

func (h *Handler) checkCanvas(cfg packer.Config) error {
	if cfg.Width > h.maxCanvas || cfg.Height > h.maxCanvas {
		return fmt.Errorf("canvas %vx%v exceeds the maximum of %v", cfg.Width, cfg.Height, h.maxCanvas)
	}
	return nil
}

func (h *Handler) currentDefaultsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaultsUpdatedAt
}

func (h *Handler) markDefaultsUpdated() {
	h.mu.Lock()
	h.defaultsUpdatedAt = h.clock()
	h.mu.Unlock()
}

func renderOptionsFromQuery(r *http.Request) (render.Options, error) {
	opts := render.DefaultOptions()
	q := r.URL.Query()
	if v := q.Get("stroke"); v != "" {
		opts.Stroke = v
	}
	if v := q.Get("fill"); v != "" {
		opts.Fill = v
	}
	if v := q.Get("background"); v != "" {
		opts.Background = v
	}
	if v := q.Get("strokeWidth"); v != "" {
		width, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return render.Options{}, fmt.Errorf("invalid strokeWidth %q", v)
		}
		opts.StrokeWidth = width
	}
	return opts, opts.Validate()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type packingRequest struct {
	Width           *float64 `json:"width"`
	Height          *float64 `json:"height"`
	MinRadius       *float64 `json:"minRadius"`
	MaxRadius       *float64 `json:"maxRadius"`
	SampleSize      *int     `json:"sampleSize"`
	CirclesPerLevel *int     `json:"circlesPerLevel"`
	Seed            *uint64  `json:"seed"`
}

// merge fills omitted fields from defaults.
func (req packingRequest) merge(defaults packer.Config) packer.Config {
	cfg := defaults
	if req.Width != nil {
		cfg.Width = *req.Width
	}
	if req.Height != nil {
		cfg.Height = *req.Height
	}
	if req.MinRadius != nil {
		cfg.MinRadius = *req.MinRadius
	}
	if req.MaxRadius != nil {
		cfg.MaxRadius = *req.MaxRadius
	}
	if req.SampleSize != nil {
		cfg.SampleSize = *req.SampleSize
	}
	if req.CirclesPerLevel != nil {
		cfg.CirclesPerLevel = *req.CirclesPerLevel
	}
	return cfg
}

type packingResponse struct {
	ID                string          `json:"id"`
	Config            packer.Config   `json:"config"`
	Seed              *uint64         `json:"seed,omitempty"`
	Circles           []packer.Circle `json:"circles"`
	Count             int             `json:"count"`
	Reason            string          `json:"reason"`
	Attempts          int             `json:"attempts"`
	Levels            int             `json:"levels"`
	CalculationTimeMs int64           `json:"calculationTimeMs"`
	CreatedAt         time.Time       `json:"createdAt"`
}

func newPackingResponse(run storage.Run) packingResponse {
	return packingResponse{
		ID:                run.ID,
		Config:            run.Config,
		Seed:              run.Seed,
		Circles:           run.Circles,
		Count:             len(run.Circles),
		Reason:            run.Reason,
		Attempts:          run.Attempts,
		Levels:            run.Levels,
		CalculationTimeMs: run.Elapsed.Milliseconds(),
		CreatedAt:         run.CreatedAt,
	}
}

type listResponse struct {
	Packings []storage.RunSummary `json:"packings"`
}

type defaultsResponse struct {
	packer.Config
	UpdatedAt time.Time `json:"updatedAt"`
	Message   string    `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
