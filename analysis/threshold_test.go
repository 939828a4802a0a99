package analysis

import (
	"math"
	"testing"
)

func TestBonferroniThreshold(t *testing.T) {

	p := []float64{0.01, 0.02, math.NaN(), 0.5}
	got := BonferroniThreshold(p, 0.05)
	want := 0.05 / 3

	if math.Abs(got-want) > 1e-12 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBonferroniThresholdNoFinite(t *testing.T) {
	if got := BonferroniThreshold([]float64{math.NaN()}, 0.05); !math.IsNaN(got) {
		t.Errorf("got %v, want NaN", got)
	}
}

func TestFDRThreshold(t *testing.T) {

	// Critical values at alpha=0.05 are [0.0125, 0.025, 0.0375, 0.05]:
	// every sorted p-value stays under its line, so the threshold is the
	// largest p-value.
	p := []float64{0.001, 0.01, 0.03, 0.04}
	if got := FDRThreshold(p, 0.05); got != 0.04 {
		t.Errorf("got %v, want 0.04", got)
	}
}

func TestFDRThresholdBreak(t *testing.T) {

	// Sorted: [0.001, 0.03, 0.04, 0.5]; 0.03 exceeds its critical value
	// 0.025, and the walk reports the value at the break point.
	p := []float64{0.5, 0.001, 0.04, 0.03}
	if got := FDRThreshold(p, 0.05); got != 0.03 {
		t.Errorf("got %v, want 0.03", got)
	}
}

func TestFDRThresholdIgnoresNaN(t *testing.T) {

	p := []float64{0.001, math.NaN(), 0.01, 0.03, math.NaN(), 0.04}
	if got := FDRThreshold(p, 0.05); got != 0.04 {
		t.Errorf("got %v, want 0.04", got)
	}
}

func TestBHYThreshold(t *testing.T) {

	// Critical values are alpha*i/(8.1*4): 0.001 passes rank 1
	// (0.00154...), 0.01 fails rank 2 (0.00308...), so the walk stops at
	// 0.01.
	p := []float64{0.001, 0.01, 0.03, 0.04}
	if got := BHYThreshold(p, 0.05); got != 0.01 {
		t.Errorf("got %v, want 0.01", got)
	}
}

func TestStepUpEmpty(t *testing.T) {
	if got := FDRThreshold(nil, 0.05); !math.IsNaN(got) {
		t.Errorf("got %v, want NaN", got)
	}
	if got := BHYThreshold([]float64{math.Inf(1)}, 0.05); !math.IsNaN(got) {
		t.Errorf("got %v, want NaN", got)
	}
}
