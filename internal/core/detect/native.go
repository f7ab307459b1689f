package detect

import (
	"bytes"
	"context"
	"image"
	"sort"

	// Image formats accepted for upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// =============================================================================
// Native Detector
// =============================================================================

// NativeDetector is the pure-Go detection backend. The pipeline is
// grayscale -> Gaussian blur -> Sobel gradient -> hysteresis edge mask ->
// connected components -> area/shape filtering -> classification.
type NativeDetector struct {
	params Params
}

// NewNativeDetector creates a native detector with the given parameters.
func NewNativeDetector(params Params) (*NativeDetector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &NativeDetector{params: params}, nil
}

// Backend returns the backend identifier.
func (d *NativeDetector) Backend() string { return "native" }

// Params returns a copy of the detector parameters.
func (d *NativeDetector) Params() Params { return d.params }

// Inspect decodes the image bytes and reports defect regions.
func (d *NativeDetector) Inspect(ctx context.Context, imageData []byte) (*domain.Detection, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, ErrDecode
	}

	g := toGray(img)
	if g.w == 0 || g.h == 0 {
		return nil, ErrEmptyImage
	}
	g = downscale(g, d.params.MaxSide)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blurred := gaussianBlur5(g)
	mag := sobelMagnitude(blurred)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask := hysteresis(mag, g.w, g.h, uint8(d.params.LowThreshold), uint8(d.params.HighThreshold))
	comps := connectedComponents(mask, g.w, g.h)

	defects := make([]domain.Defect, 0, len(comps))
	for _, c := range comps {
		// Open interval, matching the historical area gate (100 < area < 5000).
		if c.pixels <= d.params.MinArea || c.pixels >= d.params.MaxArea {
			continue
		}
		bw := c.maxX - c.minX + 1
		bh := c.maxY - c.minY + 1
		aspect := float64(bw) / float64(bh)
		if aspect < d.params.MinAspectRatio || aspect > d.params.MaxAspectRatio {
			continue
		}

		class, conf := Classify(bw, bh, c.pixels, d.params.BaseConfidence)
		defects = append(defects, domain.Defect{
			X:          c.minX,
			Y:          c.minY,
			Width:      bw,
			Height:     bh,
			Area:       c.pixels,
			Class:      class,
			Confidence: conf,
		})
	}

	// Largest regions first, so truncated views show the worst damage.
	sort.Slice(defects, func(i, j int) bool { return defects[i].Area > defects[j].Area })

	return &domain.Detection{
		ImageWidth:       g.w,
		ImageHeight:      g.h,
		Defects:          defects,
		DefectPercentage: domain.ComputeDefectPercentage(defects, g.w, g.h),
	}, nil
}

// =============================================================================
// Grayscale Plane
// =============================================================================

type grayPlane struct {
	w, h int
	pix  []uint8 // row-major, index y*w+x
}

func newGrayPlane(w, h int) *grayPlane {
	return &grayPlane{w: w, h: h, pix: make([]uint8, w*h)}
}

// toGray converts any decoded image to an 8-bit luminance plane.
func toGray(img image.Image) *grayPlane {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := newGrayPlane(w, h)

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			copy(g.pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return g
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// ITU-R BT.601 luma on 16-bit channels, reduced to 8 bits.
			lum := (299*r + 587*gr + 114*bl + 500) / 1000
			g.pix[y*w+x] = uint8(lum >> 8)
		}
	}
	return g
}

// downscale shrinks the plane so its longer side is at most maxSide,
// averaging each source box into one destination pixel.
func downscale(src *grayPlane, maxSide int) *grayPlane {
	long := src.w
	if src.h > long {
		long = src.h
	}
	if long <= maxSide {
		return src
	}

	scale := float64(maxSide) / float64(long)
	w := int(float64(src.w) * scale)
	h := int(float64(src.h) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := newGrayPlane(w, h)
	for y := 0; y < h; y++ {
		y0 := y * src.h / h
		y1 := (y + 1) * src.h / h
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for x := 0; x < w; x++ {
			x0 := x * src.w / w
			x1 := (x + 1) * src.w / w
			if x1 <= x0 {
				x1 = x0 + 1
			}

			sum := 0
			for sy := y0; sy < y1; sy++ {
				row := sy * src.w
				for sx := x0; sx < x1; sx++ {
					sum += int(src.pix[row+sx])
				}
			}
			dst.pix[y*w+x] = uint8(sum / ((y1 - y0) * (x1 - x0)))
		}
	}
	return dst
}

// =============================================================================
// Filtering and Gradients
// =============================================================================

var gaussKernel = [5]int{1, 4, 6, 4, 1} // sums to 16

// gaussianBlur5 applies a separable 5x5 Gaussian with edge replication.
func gaussianBlur5(src *grayPlane) *grayPlane {
	w, h := src.w, src.h
	tmp := newGrayPlane(w, h)
	dst := newGrayPlane(w, h)

	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				sum += gaussKernel[k+2] * int(src.pix[row+clamp(x+k, 0, w-1)])
			}
			tmp.pix[row+x] = uint8(sum / 16)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				sum += gaussKernel[k+2] * int(tmp.pix[clamp(y+k, 0, h-1)*w+x])
			}
			dst.pix[y*w+x] = uint8(sum / 16)
		}
	}
	return dst
}

// sobelMagnitude computes the normalized gradient magnitude (0-255).
// Border pixels are left at zero.
func sobelMagnitude(src *grayPlane) []uint8 {
	w, h := src.w, src.h
	mag := make([]uint8, w*h)
	if w < 3 || h < 3 {
		return mag
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			tl := int(src.pix[(y-1)*w+x-1])
			tc := int(src.pix[(y-1)*w+x])
			tr := int(src.pix[(y-1)*w+x+1])
			ml := int(src.pix[y*w+x-1])
			mr := int(src.pix[y*w+x+1])
			bl := int(src.pix[(y+1)*w+x-1])
			bc := int(src.pix[(y+1)*w+x])
			br := int(src.pix[(y+1)*w+x+1])

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}

			m := (gx + gy) / 4
			if m > 255 {
				m = 255
			}
			mag[y*w+x] = uint8(m)
		}
	}
	return mag
}

// hysteresis marks edge pixels: seeds at or above high are grown through
// neighbors at or above low, 8-connected.
func hysteresis(mag []uint8, w, h int, low, high uint8) []bool {
	mask := make([]bool, w*h)
	stack := make([]int, 0, 256)

	for i, m := range mag {
		if m >= high && !mask[i] {
			mask[i] = true
			stack = append(stack, i)

			for len(stack) > 0 {
				idx := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				x, y := idx%w, idx/w

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := x+dx, y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						n := ny*w + nx
						if !mask[n] && mag[n] >= low {
							mask[n] = true
							stack = append(stack, n)
						}
					}
				}
			}
		}
	}
	return mask
}

// =============================================================================
// Connected Components
// =============================================================================

type component struct {
	minX, minY, maxX, maxY int
	pixels                 int
}

// connectedComponents labels 8-connected regions in the edge mask and
// returns their bounding boxes and pixel counts.
func connectedComponents(mask []bool, w, h int) []component {
	visited := make([]bool, len(mask))
	var comps []component
	stack := make([]int, 0, 256)

	for i := range mask {
		if !mask[i] || visited[i] {
			continue
		}

		c := component{minX: i % w, minY: i / w, maxX: i % w, maxY: i / w}
		visited[i] = true
		stack = append(stack, i)

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w

			c.pixels++
			if x < c.minX {
				c.minX = x
			}
			if x > c.maxX {
				c.maxX = x
			}
			if y < c.minY {
				c.minY = y
			}
			if y > c.maxY {
				c.maxY = y
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if mask[n] && !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
		}

		comps = append(comps, c)
	}
	return comps
}
