package detect

import "github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"

// Shape heuristic cutoffs. An elongated box reads as a scratch, a sparse box
// as a crack meandering through it, and a well-filled box as a spot.
const (
	scratchAspect = 4.0
	crackMaxFill  = 0.2
	spotMinFill   = 0.45
)

// Classify assigns a defect class and confidence to a region from its
// bounding box and pixel area. baseConfidence anchors the confidence score;
// the fill ratio nudges it up or down within [0.5, 0.99].
func Classify(width, height, area int, baseConfidence float64) (domain.DefectClass, float64) {
	d := domain.Defect{Width: width, Height: height, Area: area}
	aspect := d.AspectRatio()
	fill := d.FillRatio()

	class := domain.DefectClassUnknown
	switch {
	case aspect >= scratchAspect || (aspect > 0 && aspect <= 1/scratchAspect):
		class = domain.DefectClassScratch
	case fill < crackMaxFill:
		class = domain.DefectClassCrack
	case fill >= spotMinFill:
		class = domain.DefectClassSpot
	}

	conf := baseConfidence + 0.1*(fill-0.5)
	if conf < 0.5 {
		conf = 0.5
	}
	if conf > 0.99 {
		conf = 0.99
	}
	return class, conf
}
