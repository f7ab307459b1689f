package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefect_Center(t *testing.T) {
	d := Defect{X: 10, Y: 20, Width: 8, Height: 6}
	x, y := d.Center()
	assert.Equal(t, 14, x)
	assert.Equal(t, 23, y)
}

func TestDefect_AspectRatio(t *testing.T) {
	tests := []struct {
		name   string
		defect Defect
		want   float64
	}{
		{"square", Defect{Width: 10, Height: 10}, 1.0},
		{"wide", Defect{Width: 40, Height: 10}, 4.0},
		{"tall", Defect{Width: 5, Height: 50}, 0.1},
		{"zero height", Defect{Width: 10, Height: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.defect.AspectRatio(), 1e-9)
		})
	}
}

func TestDefect_FillRatio(t *testing.T) {
	d := Defect{Width: 10, Height: 10, Area: 25}
	assert.InDelta(t, 0.25, d.FillRatio(), 1e-9)

	empty := Defect{}
	assert.Zero(t, empty.FillRatio())
}

func TestDetection_Verdict(t *testing.T) {
	clean := Detection{ImageWidth: 100, ImageHeight: 100}
	assert.Equal(t, VerdictAccepted, clean.Verdict())
	assert.Equal(t, 0, clean.DefectsFound())

	dirty := Detection{
		ImageWidth:  100,
		ImageHeight: 100,
		Defects:     []Defect{{Width: 10, Height: 10, Area: 50}},
	}
	assert.Equal(t, VerdictRejected, dirty.Verdict())
	assert.Equal(t, 1, dirty.DefectsFound())
}

func TestComputeDefectPercentage(t *testing.T) {
	defects := []Defect{
		{Area: 150},
		{Area: 350},
	}

	// 500 / 10000 = 5%
	assert.InDelta(t, 5.0, ComputeDefectPercentage(defects, 100, 100), 1e-9)

	// Rounded to two decimals: 500/30000*100 = 1.6666... -> 1.67
	assert.InDelta(t, 1.67, ComputeDefectPercentage(defects, 300, 100), 1e-9)

	// Degenerate image dimensions
	assert.Zero(t, ComputeDefectPercentage(defects, 0, 100))
	assert.Zero(t, ComputeDefectPercentage(nil, 100, 100))
}
