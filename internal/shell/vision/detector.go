//go:build gocv

// Package vision provides the OpenCV-accelerated detection backend.
// It is compiled only with the gocv build tag; without the tag the
// constructor reports ErrUnavailable and callers fall back to the
// native backend.
package vision

import (
	"context"
	"image"
	"sort"

	"gocv.io/x/gocv"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/detect"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// Detector runs the detection pipeline on OpenCV.
type Detector struct {
	params detect.Params
}

// NewDetector creates an OpenCV-backed detector.
func NewDetector(params detect.Params) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Detector{params: params}, nil
}

// Backend returns the backend identifier.
func (d *Detector) Backend() string { return "opencv" }

// Inspect decodes and analyzes the image bytes with OpenCV.
func (d *Detector) Inspect(ctx context.Context, imageData []byte) (*domain.Detection, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if !mat.Empty() {
			mat.Close()
		}
		return nil, detect.ErrDecode
	}
	defer mat.Close()

	// Keep thresholds comparable across input sizes.
	if mat.Cols() > d.params.MaxSide || mat.Rows() > d.params.MaxSide {
		long := mat.Cols()
		if mat.Rows() > long {
			long = mat.Rows()
		}
		scale := float64(d.params.MaxSide) / float64(long)
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(int(float64(mat.Cols())*scale), int(float64(mat.Rows())*scale)), 0, 0, gocv.InterpolationArea)
		mat.Close()
		mat = resized
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, float32(d.params.LowThreshold), float32(d.params.HighThreshold))

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	defects := make([]domain.Defect, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := int(gocv.ContourArea(c))
		if area <= d.params.MinArea || area >= d.params.MaxArea {
			continue
		}

		rect := gocv.BoundingRect(c)
		if rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < d.params.MinAspectRatio || aspect > d.params.MaxAspectRatio {
			continue
		}

		class, conf := detect.Classify(rect.Dx(), rect.Dy(), area, d.params.BaseConfidence)
		defects = append(defects, domain.Defect{
			X:          rect.Min.X,
			Y:          rect.Min.Y,
			Width:      rect.Dx(),
			Height:     rect.Dy(),
			Area:       area,
			Class:      class,
			Confidence: conf,
		})
	}

	sort.Slice(defects, func(i, j int) bool { return defects[i].Area > defects[j].Area })

	return &domain.Detection{
		ImageWidth:       mat.Cols(),
		ImageHeight:      mat.Rows(),
		Defects:          defects,
		DefectPercentage: domain.ComputeDefectPercentage(defects, mat.Cols(), mat.Rows()),
	}, nil
}
