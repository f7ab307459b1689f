//go:build !gocv

// Package vision provides the OpenCV-accelerated detection backend.
// This stub is compiled without the gocv build tag.
package vision

import (
	"context"
	"errors"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// ErrUnavailable is returned when the binary was built without OpenCV support.
var ErrUnavailable = errors.New("opencv backend requires a build with the gocv tag")

// Detector is unavailable without the gocv build tag.
type Detector struct{}

// NewDetector reports that the OpenCV backend is not compiled in.
func NewDetector(params detect.Params) (*Detector, error) {
	return nil, ErrUnavailable
}

// Backend returns the backend identifier.
func (d *Detector) Backend() string { return "opencv" }

// Inspect always fails without the gocv build tag.
func (d *Detector) Inspect(ctx context.Context, imageData []byte) (*domain.Detection, error) {
	return nil, ErrUnavailable
}
