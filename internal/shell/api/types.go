package api

import (
	"time"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// =============================================================================
// Response Types
// =============================================================================

// RootResponse describes the service on GET /.
type RootResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// HealthResponse is the liveness probe response.
type HealthResponse struct {
	Status       string  `json:"status"`
	Timestamp    float64 `json:"timestamp"`
	ParamsLoaded bool    `json:"params_loaded"`
}

// ReadyResponse is the readiness probe response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// DetectResponse is the result of analyzing one image.
type DetectResponse struct {
	ID               string          `json:"id,omitempty"`
	Source           string          `json:"source,omitempty"`
	Backend          string          `json:"backend,omitempty"`
	Status           string          `json:"status"`
	Error            string          `json:"error,omitempty"`
	ImageWidth       int             `json:"image_width,omitempty"`
	ImageHeight      int             `json:"image_height,omitempty"`
	DefectsFound     int             `json:"defects_found"`
	DefectPercentage float64         `json:"defect_percentage"`
	Defects          []domain.Defect `json:"defects"`
	Verdict          string          `json:"verdict,omitempty"`
	Cached           bool            `json:"cached"`
	ProcessingMS     float64         `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at,omitempty"`
}

// BatchDetectResponse summarizes a multi-image detection request.
type BatchDetectResponse struct {
	TotalImages       int              `json:"total_images"`
	TotalDefects      int              `json:"total_defects"`
	ImagesWithDefects int              `json:"images_with_defects"`
	Results           []DetectResponse `json:"results"`
}

// HistoryResponse lists past inspections, newest first.
type HistoryResponse struct {
	Inspections []DetectResponse `json:"inspections"`
	Count       int              `json:"count"`
}

// MetricsResponse exposes service counters as JSON.
type MetricsResponse struct {
	RequestsTotal      int64   `json:"defect_detector_requests_total"`
	RequestsInProgress int64   `json:"defect_detector_requests_in_progress"`
	DetectionsTotal    int64   `json:"defect_detector_detections_total"`
	CacheHits          int64   `json:"defect_detector_cache_hits_total"`
	CacheMisses        int64   `json:"defect_detector_cache_misses_total"`
	Accepted           int64   `json:"defect_detector_accepted_total"`
	Rejected           int64   `json:"defect_detector_rejected_total"`
	ParamsLoadStatus   int     `json:"defect_detector_params_load_status"`
	CacheEnabled       bool    `json:"cache_enabled"`
	Timestamp          float64 `json:"timestamp"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Conversions
// =============================================================================

// inspectionToResponse converts a persisted inspection to its API shape.
func inspectionToResponse(i *domain.Inspection) DetectResponse {
	defects := i.Defects
	if defects == nil {
		defects = []domain.Defect{}
	}
	return DetectResponse{
		ID:               i.ID,
		Source:           i.Source,
		Backend:          i.Backend,
		Status:           "success",
		ImageWidth:       i.ImageWidth,
		ImageHeight:      i.ImageHeight,
		DefectsFound:     len(i.Defects),
		DefectPercentage: i.DefectPercentage,
		Defects:          defects,
		Verdict:          string(i.Verdict),
		Cached:           i.Cached,
		ProcessingMS:     i.ProcessingMS,
		CreatedAt:        i.CreatedAt,
	}
}
