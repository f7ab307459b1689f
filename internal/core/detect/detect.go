// Package detect implements edge-based defect detection for product images.
// The native backend is pure Go and has no I/O; an OpenCV-accelerated backend
// lives in internal/shell/vision behind the gocv build tag.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// =============================================================================
// Detector Interface
// =============================================================================

// Detector analyzes an encoded image and reports defect regions.
type Detector interface {
	// Inspect decodes and analyzes the image bytes.
	Inspect(ctx context.Context, imageData []byte) (*domain.Detection, error)

	// Backend returns the backend identifier ("native" or "opencv").
	Backend() string
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrDecode is returned when the image bytes cannot be decoded.
	ErrDecode = errors.New("failed to decode image")

	// ErrEmptyImage is returned for images with a zero-area pixel grid.
	ErrEmptyImage = errors.New("empty image")

	// ErrInvalidParams is returned when detection parameters are inconsistent.
	ErrInvalidParams = errors.New("invalid detection parameters")
)

// =============================================================================
// Parameters
// =============================================================================

// Params are the tunable detection parameters. They are loaded from the
// params file and may be hot-reloaded at runtime.
type Params struct {
	// MaxSide is the maximum image side in pixels; larger images are
	// downscaled before analysis so thresholds stay comparable.
	MaxSide int `json:"max_side" yaml:"max_side"`

	// LowThreshold and HighThreshold bound the edge hysteresis on the
	// normalized gradient magnitude (0-255).
	LowThreshold  int `json:"low_threshold" yaml:"low_threshold"`
	HighThreshold int `json:"high_threshold" yaml:"high_threshold"`

	// MinArea and MaxArea bound the defect pixel count; regions outside
	// the open interval (MinArea, MaxArea) are discarded.
	MinArea int `json:"min_area" yaml:"min_area"`
	MaxArea int `json:"max_area" yaml:"max_area"`

	// MinAspectRatio and MaxAspectRatio bound the bounding-box shape.
	MinAspectRatio float64 `json:"min_aspect_ratio" yaml:"min_aspect_ratio"`
	MaxAspectRatio float64 `json:"max_aspect_ratio" yaml:"max_aspect_ratio"`

	// BaseConfidence is the confidence assigned to a defect before the
	// shape adjustment.
	BaseConfidence float64 `json:"base_confidence" yaml:"base_confidence"`
}

// DefaultParams returns the default detection parameters.
func DefaultParams() Params {
	return Params{
		MaxSide:        1024,
		LowThreshold:   10,
		HighThreshold:  50,
		MinArea:        100,
		MaxArea:        5000,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10.0,
		BaseConfidence: 0.85,
	}
}

// Validate checks parameter consistency.
func (p Params) Validate() error {
	if p.MaxSide < 16 {
		return fmt.Errorf("%w: max_side must be >= 16, got %d", ErrInvalidParams, p.MaxSide)
	}
	if p.LowThreshold < 0 || p.LowThreshold > 255 {
		return fmt.Errorf("%w: low_threshold must be in [0,255], got %d", ErrInvalidParams, p.LowThreshold)
	}
	if p.HighThreshold <= p.LowThreshold || p.HighThreshold > 255 {
		return fmt.Errorf("%w: high_threshold must be in (low_threshold,255], got %d", ErrInvalidParams, p.HighThreshold)
	}
	if p.MinArea < 0 {
		return fmt.Errorf("%w: min_area must be >= 0, got %d", ErrInvalidParams, p.MinArea)
	}
	if p.MaxArea <= p.MinArea {
		return fmt.Errorf("%w: max_area must be > min_area, got %d", ErrInvalidParams, p.MaxArea)
	}
	if p.MinAspectRatio <= 0 || p.MaxAspectRatio <= p.MinAspectRatio {
		return fmt.Errorf("%w: aspect ratio bounds must satisfy 0 < min < max", ErrInvalidParams)
	}
	if p.BaseConfidence <= 0 || p.BaseConfidence > 1 {
		return fmt.Errorf("%w: base_confidence must be in (0,1], got %g", ErrInvalidParams, p.BaseConfidence)
	}
	return nil
}

// =============================================================================
// Holder
// =============================================================================

// Holder provides an atomically swappable detector. The HTTP handler reads
// through a Holder so a params reload can replace the detector without
// restarting the server.
type Holder struct {
	mu  sync.RWMutex
	det Detector
}

// NewHolder creates a holder with an initial detector.
func NewHolder(det Detector) *Holder {
	return &Holder{det: det}
}

// Current returns the active detector.
func (h *Holder) Current() Detector {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.det
}

// Swap replaces the active detector.
func (h *Holder) Swap(det Detector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.det = det
}
