package detect

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Image Helpers
// =============================================================================

// whiteImage creates a uniform white RGBA image.
func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// drawCircle fills a circle of the given radius with black.
func drawCircle(img *image.RGBA, cx, cy, r int) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.Black)
			}
		}
	}
}

// drawRect fills a rectangle with black.
func drawRect(img *image.RGBA, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.Set(x, y, color.Black)
		}
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestDetector(t *testing.T) *NativeDetector {
	t.Helper()
	det, err := NewNativeDetector(DefaultParams())
	require.NoError(t, err)
	return det
}

// =============================================================================
// Inspect
// =============================================================================

func TestNativeDetector_Inspect_CleanImage(t *testing.T) {
	det := newTestDetector(t)

	result, err := det.Inspect(context.Background(), encodePNG(t, whiteImage(120, 120)))
	require.NoError(t, err)

	assert.Equal(t, 0, result.DefectsFound())
	assert.Zero(t, result.DefectPercentage)
	assert.Equal(t, domain.VerdictAccepted, result.Verdict())
	assert.Equal(t, 120, result.ImageWidth)
	assert.Equal(t, 120, result.ImageHeight)
}

func TestNativeDetector_Inspect_FindsBlob(t *testing.T) {
	det := newTestDetector(t)

	img := whiteImage(120, 120)
	drawCircle(img, 60, 60, 15)

	result, err := det.Inspect(context.Background(), encodePNG(t, img))
	require.NoError(t, err)

	require.GreaterOrEqual(t, result.DefectsFound(), 1)
	assert.Equal(t, domain.VerdictRejected, result.Verdict())
	assert.Greater(t, result.DefectPercentage, 0.0)

	// The largest defect should cover the blob center.
	d := result.Defects[0]
	assert.LessOrEqual(t, d.X, 60)
	assert.GreaterOrEqual(t, d.X+d.Width, 60)
	assert.LessOrEqual(t, d.Y, 60)
	assert.GreaterOrEqual(t, d.Y+d.Height, 60)
}

func TestNativeDetector_Inspect_ClassifiesScratch(t *testing.T) {
	det := newTestDetector(t)

	img := whiteImage(120, 120)
	drawRect(img, 20, 50, 80, 57) // long thin bar

	result, err := det.Inspect(context.Background(), encodePNG(t, img))
	require.NoError(t, err)

	require.GreaterOrEqual(t, result.DefectsFound(), 1)
	assert.Equal(t, domain.DefectClassScratch, result.Defects[0].Class)
}

func TestNativeDetector_Inspect_IgnoresTinyRegions(t *testing.T) {
	det := newTestDetector(t)

	img := whiteImage(120, 120)
	drawRect(img, 50, 50, 54, 54) // below the minimum area gate

	result, err := det.Inspect(context.Background(), encodePNG(t, img))
	require.NoError(t, err)

	assert.Equal(t, 0, result.DefectsFound())
}

func TestNativeDetector_Inspect_DownscalesLargeImages(t *testing.T) {
	det := newTestDetector(t)

	img := whiteImage(2048, 1024)
	drawRect(img, 200, 200, 500, 500)

	result, err := det.Inspect(context.Background(), encodePNG(t, img))
	require.NoError(t, err)

	assert.Equal(t, 1024, result.ImageWidth)
	assert.Equal(t, 512, result.ImageHeight)
	assert.GreaterOrEqual(t, result.DefectsFound(), 1)
}

func TestNativeDetector_Inspect_Undecodable(t *testing.T) {
	det := newTestDetector(t)

	_, err := det.Inspect(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNativeDetector_Inspect_CanceledContext(t *testing.T) {
	det := newTestDetector(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := det.Inspect(ctx, encodePNG(t, whiteImage(64, 64)))
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Parameters
// =============================================================================

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"max side too small", func(p *Params) { p.MaxSide = 8 }},
		{"negative low threshold", func(p *Params) { p.LowThreshold = -1 }},
		{"high below low", func(p *Params) { p.HighThreshold = 5 }},
		{"negative min area", func(p *Params) { p.MinArea = -1 }},
		{"max area below min", func(p *Params) { p.MaxArea = 50 }},
		{"inverted aspect bounds", func(p *Params) { p.MinAspectRatio = 20 }},
		{"confidence out of range", func(p *Params) { p.BaseConfidence = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestNewNativeDetector_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.MaxArea = 0

	_, err := NewNativeDetector(p)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

// =============================================================================
// Holder
// =============================================================================

func TestHolder_Swap(t *testing.T) {
	first := newTestDetector(t)
	holder := NewHolder(first)
	assert.Same(t, first, holder.Current().(*NativeDetector))

	second := newTestDetector(t)
	holder.Swap(second)
	assert.Same(t, second, holder.Current().(*NativeDetector))
}

// =============================================================================
// Pipeline Internals
// =============================================================================

func TestDownscale_PreservesSmallImages(t *testing.T) {
	g := newGrayPlane(100, 50)
	assert.Same(t, g, downscale(g, 1024))
}

func TestDownscale_AveragesBoxes(t *testing.T) {
	src := newGrayPlane(200, 100)
	for i := range src.pix {
		src.pix[i] = 200
	}

	dst := downscale(src, 100)
	assert.Equal(t, 100, dst.w)
	assert.Equal(t, 50, dst.h)
	for _, p := range dst.pix {
		assert.Equal(t, uint8(200), p)
	}
}

func TestSobelMagnitude_UniformPlaneIsZero(t *testing.T) {
	g := newGrayPlane(16, 16)
	for i := range g.pix {
		g.pix[i] = 128
	}

	for _, m := range sobelMagnitude(g) {
		assert.Zero(t, m)
	}
}

func TestConnectedComponents_TwoRegions(t *testing.T) {
	w, h := 10, 10
	mask := make([]bool, w*h)
	// 2x2 block at (1,1) and single pixel at (8,8).
	mask[1*w+1], mask[1*w+2], mask[2*w+1], mask[2*w+2] = true, true, true, true
	mask[8*w+8] = true

	comps := connectedComponents(mask, w, h)
	assert.Len(t, comps, 2)
}
