// Package api provides HTTP handlers for the defect detection API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/monitoring"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/cache"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// HandlerConfig bounds upload handling.
type HandlerConfig struct {
	// MaxUploadBytes is the largest accepted image upload.
	// Default: 10 MiB.
	MaxUploadBytes int64

	// MaxBatchFiles caps the number of files in one batch request.
	// Default: 16.
	MaxBatchFiles int

	// BatchConcurrency is how many images are analyzed in parallel.
	// Default: 4.
	BatchConcurrency int
}

// DefaultHandlerConfig returns the default configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		MaxUploadBytes:   10 << 20,
		MaxBatchFiles:    16,
		BatchConcurrency: 4,
	}
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	store     store.Store
	cache     cache.Cache
	detectors *detect.Holder
	metrics   *Metrics
	logger    *slog.Logger
	version   string
	config    HandlerConfig

	openapiState
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, c cache.Cache, detectors *detect.Holder, l *slog.Logger, version string, config HandlerConfig) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if c == nil {
		c = cache.NewNoopCache()
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.MaxBatchFiles == 0 {
		config.MaxBatchFiles = 16
	}
	if config.BatchConcurrency == 0 {
		config.BatchConcurrency = 4
	}
	return &Handler{
		store:     s,
		cache:     c,
		detectors: detectors,
		metrics:   NewMetrics(),
		logger:    l,
		version:   version,
		config:    config,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)
	r.Use(h.countRequests)

	// Service endpoints
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/metrics", h.handleMetrics)
	r.Get("/dashboard", h.handleDashboard)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect", h.handleDetect)
		r.Post("/batch-detect", h.handleBatchDetect)
		r.Get("/stats", h.handleStats)
		r.Get("/history", h.handleHistory)
		r.Get("/inspections/{id}", h.handleGetInspection)
		r.Get("/openapi.json", h.openAPIGenerator().Handler())
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
// Handlers serving other content types override it.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// countRequests tracks total and in-flight request counts.
func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.beginRequest()
		defer h.metrics.endRequest()
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Service Handlers
// =============================================================================

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, RootResponse{
		Service: "defect-detector",
		Version: h.version,
		Endpoints: []string{
			"/health",
			"/ready",
			"/metrics",
			"/dashboard",
			"/api/v1/detect",
			"/api/v1/batch-detect",
			"/api/v1/stats",
			"/api/v1/history",
			"/api/v1/openapi.json",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Timestamp:    float64(time.Now().UnixMilli()) / 1000,
		ParamsLoaded: h.detectors.Current() != nil,
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := []monitoring.Check{
		{Name: "database", OK: h.store.Ping(ctx) == nil},
		{Name: "detector", OK: h.detectors.Current() != nil},
	}
	if h.cache.Enabled() {
		checks = append(checks, monitoring.Check{Name: "cache", OK: h.cache.Ping(ctx) == nil, Optional: true})
	}

	readiness := monitoring.AggregateReadiness(checks)
	if !h.cache.Enabled() {
		readiness.Checks["cache"] = "disabled"
	}

	if !readiness.Ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: readiness.Checks,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: readiness.Checks,
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.metrics.snapshot(h.cache.Enabled(), h.detectors.Current() != nil))
}

// =============================================================================
// Detection Handlers
// =============================================================================

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "multipart field 'file' is required", "validation_error")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload", "validation_error")
		return
	}
	if len(data) == 0 {
		h.writeError(w, http.StatusBadRequest, "uploaded file is empty", "validation_error")
		return
	}

	inspection, err := h.inspect(r.Context(), data, header.Filename)
	if err != nil {
		if errors.Is(err, detect.ErrDecode) || errors.Is(err, detect.ErrEmptyImage) {
			h.writeError(w, http.StatusBadRequest, "could not decode image", "invalid_image")
			return
		}
		h.logger.Error("detection failed", "source", header.Filename, "error", err)
		h.writeError(w, http.StatusInternalServerError, "detection failed", "internal_error")
		return
	}

	if err := h.store.CreateInspection(r.Context(), inspection); err != nil {
		h.logger.Error("failed to persist inspection", "inspection_id", inspection.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to persist inspection", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, inspectionToResponse(inspection))
}

func (h *Handler) handleBatchDetect(w http.ResponseWriter, r *http.Request) {
	maxBody := h.config.MaxUploadBytes * int64(h.config.MaxBatchFiles)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.writeError(w, http.StatusBadRequest, "multipart field 'files' is required", "validation_error")
		return
	}
	if len(files) > h.config.MaxBatchFiles {
		h.writeError(w, http.StatusBadRequest,
			"too many files, maximum is "+strconv.Itoa(h.config.MaxBatchFiles), "validation_error")
		return
	}

	payloads := make([][]byte, len(files))
	names := make([]string, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "failed to read upload "+fh.Filename, "validation_error")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "failed to read upload "+fh.Filename, "validation_error")
			return
		}
		payloads[i] = data
		names[i] = fh.Filename
	}

	results := make([]DetectResponse, len(files))
	inspections := make([]*domain.Inspection, len(files))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(h.config.BatchConcurrency)

	for i := range payloads {
		i := i
		g.Go(func() error {
			inspection, err := h.inspect(ctx, payloads[i], names[i])
			if err != nil {
				// Per-file failures do not abort the batch.
				results[i] = DetectResponse{
					Source:  names[i],
					Status:  "error",
					Error:   err.Error(),
					Defects: []domain.Defect{},
				}
				return nil
			}
			inspections[i] = inspection
			results[i] = inspectionToResponse(inspection)
			return nil
		})
	}
	_ = g.Wait()

	// Persist the whole batch atomically.
	err := h.store.WithTx(r.Context(), func(tx store.Store) error {
		for _, inspection := range inspections {
			if inspection == nil {
				continue
			}
			if err := tx.CreateInspection(r.Context(), inspection); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to persist batch", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to persist batch", "internal_error")
		return
	}

	summary := BatchDetectResponse{
		TotalImages: len(results),
		Results:     results,
	}
	for _, res := range results {
		summary.TotalDefects += res.DefectsFound
		if res.DefectsFound > 0 {
			summary.ImagesWithDefects++
		}
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// inspect runs one image through cache lookup, detection, and caching.
// The caller is responsible for persisting the returned inspection.
func (h *Handler) inspect(ctx context.Context, data []byte, source string) (*domain.Inspection, error) {
	start := time.Now()
	key := cache.Key(data)

	var detection *domain.Detection
	cached := false

	if hit, err := h.cache.GetDetection(ctx, key); err != nil {
		h.logger.Warn("cache lookup failed", "error", err)
	} else if hit != nil {
		detection = hit
		cached = true
		h.metrics.recordCacheHit()
	}

	if detection == nil {
		h.metrics.recordCacheMiss()

		var err error
		detection, err = h.detectors.Current().Inspect(ctx, data)
		if err != nil {
			return nil, err
		}

		if err := h.cache.SetDetection(ctx, key, detection); err != nil {
			h.logger.Warn("cache store failed", "error", err)
		}
	}

	verdict := detection.Verdict()
	h.metrics.recordDetection(verdict == domain.VerdictRejected)

	elapsedMS := math.Round(float64(time.Since(start).Microseconds())/10) / 100

	return &domain.Inspection{
		ID:               uuid.New().String(),
		Source:           source,
		Backend:          h.detectors.Current().Backend(),
		ImageWidth:       detection.ImageWidth,
		ImageHeight:      detection.ImageHeight,
		Defects:          detection.Defects,
		DefectPercentage: detection.DefectPercentage,
		Verdict:          verdict,
		Cached:           cached,
		ProcessingMS:     elapsedMS,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// =============================================================================
// History Handlers
// =============================================================================

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	sums, err := h.store.Summaries(r.Context())
	if err != nil {
		h.logger.Error("failed to load summaries", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to compute stats", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, monitoring.ComputeStats(sums))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	inspections, err := h.store.ListInspections(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list inspections", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list inspections", "internal_error")
		return
	}

	resp := HistoryResponse{
		Inspections: make([]DetectResponse, 0, len(inspections)),
		Count:       len(inspections),
	}
	for i := range inspections {
		resp.Inspections = append(resp.Inspections, inspectionToResponse(&inspections[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inspection, err := h.store.GetInspection(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "inspection not found", "inspection_not_found")
			return
		}
		h.logger.Error("failed to get inspection", "inspection_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get inspection", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, inspectionToResponse(inspection))
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
