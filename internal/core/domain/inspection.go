// Package domain contains the core types for DefectDetectAI.
// Types here are pure values with no I/O dependencies.
package domain

import (
	"math"
	"time"
)

// =============================================================================
// Defect
// =============================================================================

// DefectClass categorizes a detected defect region by its shape.
type DefectClass string

const (
	// DefectClassCrack is a thin, sparse region spanning a larger box.
	DefectClassCrack DefectClass = "crack"
	// DefectClassScratch is a strongly elongated region.
	DefectClassScratch DefectClass = "scratch"
	// DefectClassSpot is a compact, well-filled region.
	DefectClassSpot DefectClass = "spot"
	// DefectClassUnknown is a region that matched no shape heuristic.
	DefectClassUnknown DefectClass = "unknown"
)

// Defect is a single defect region found in an image.
// Coordinates are in pixels relative to the analyzed (possibly downscaled) image.
type Defect struct {
	X          int         `json:"x"`
	Y          int         `json:"y"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Area       int         `json:"area"` // defect pixels inside the bounding box
	Class      DefectClass `json:"class"`
	Confidence float64     `json:"confidence"`
}

// Center returns the center point of the defect bounding box.
func (d Defect) Center() (x, y int) {
	return d.X + d.Width/2, d.Y + d.Height/2
}

// AspectRatio returns width/height, or 0 when the height is zero.
func (d Defect) AspectRatio() float64 {
	if d.Height == 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

// FillRatio returns the fraction of the bounding box covered by defect pixels.
func (d Defect) FillRatio() float64 {
	box := d.Width * d.Height
	if box == 0 {
		return 0
	}
	return float64(d.Area) / float64(box)
}

// =============================================================================
// Detection
// =============================================================================

// Verdict is the accept/reject decision for an inspected image.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
)

// Detection is the raw detector output for a single image.
type Detection struct {
	ImageWidth       int      `json:"image_width"`
	ImageHeight      int      `json:"image_height"`
	Defects          []Defect `json:"defects"`
	DefectPercentage float64  `json:"defect_percentage"`
}

// DefectsFound returns the number of defect regions.
func (d *Detection) DefectsFound() int {
	return len(d.Defects)
}

// Verdict returns rejected when any defect was found.
func (d *Detection) Verdict() Verdict {
	if len(d.Defects) > 0 {
		return VerdictRejected
	}
	return VerdictAccepted
}

// ComputeDefectPercentage returns the defect area as a percentage of the
// image area, rounded to two decimal places.
func ComputeDefectPercentage(defects []Defect, imageWidth, imageHeight int) float64 {
	total := imageWidth * imageHeight
	if total <= 0 {
		return 0
	}
	sum := 0
	for _, d := range defects {
		sum += d.Area
	}
	pct := float64(sum) / float64(total) * 100
	return math.Round(pct*100) / 100
}

// =============================================================================
// Inspection
// =============================================================================

// Inspection is the persisted outcome of analyzing one uploaded image.
type Inspection struct {
	ID               string
	Source           string // original filename, if known
	Backend          string // detector backend that produced the result
	ImageWidth       int
	ImageHeight      int
	Defects          []Defect
	DefectPercentage float64
	Verdict          Verdict
	Cached           bool
	ProcessingMS     float64
	CreatedAt        time.Time
}

// DefectsFound returns the number of defect regions in the inspection.
func (i *Inspection) DefectsFound() int {
	return len(i.Defects)
}
