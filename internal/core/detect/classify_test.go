package detect

import (
	"testing"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		area   int
		want   domain.DefectClass
	}{
		{"wide elongated is scratch", 40, 5, 100, domain.DefectClassScratch},
		{"tall elongated is scratch", 5, 40, 100, domain.DefectClassScratch},
		{"sparse box is crack", 30, 30, 100, domain.DefectClassCrack},
		{"well filled box is spot", 20, 20, 300, domain.DefectClassSpot},
		{"middling fill is unknown", 20, 20, 140, domain.DefectClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, conf := Classify(tt.width, tt.height, tt.area, 0.85)
			assert.Equal(t, tt.want, class)
			assert.GreaterOrEqual(t, conf, 0.5)
			assert.LessOrEqual(t, conf, 0.99)
		})
	}
}

func TestClassify_ConfidenceClamped(t *testing.T) {
	// Low base with an empty box cannot drop below 0.5.
	_, conf := Classify(20, 20, 0, 0.5)
	assert.Equal(t, 0.5, conf)

	// High base with a full box cannot exceed 0.99.
	_, conf = Classify(20, 20, 400, 0.99)
	assert.Equal(t, 0.99, conf)
}
