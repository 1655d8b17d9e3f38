package isotonic

import (
	"math"
	"testing"
)

func TestFitMonotoneData(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	outcomes := []float64{0, 0, 1, 1, 1}
	cal, err := Fit(scores, outcomes)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if p := cal.Predict(0.1); p != 0 {
		t.Fatalf("expected 0 at the low end, got %v", p)
	}
	if p := cal.Predict(0.5); p != 1 {
		t.Fatalf("expected 1 at the high end, got %v", p)
	}
	if p := cal.Predict(0.25); p != 0.5 {
		t.Fatalf("expected midpoint interpolation 0.5, got %v", p)
	}
}

func TestFitPoolsViolators(t *testing.T) {
	// The middle pair violates monotonicity and must be pooled to its mean.
	scores := []float64{1, 2, 3, 4}
	outcomes := []float64{0.1, 0.6, 0.4, 0.9}
	cal, err := Fit(scores, outcomes)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if p := cal.Predict(2); math.Abs(p-0.5) > 1e-12 {
		t.Fatalf("expected pooled value 0.5 at score 2, got %v", p)
	}
	if p := cal.Predict(3); math.Abs(p-0.5) > 1e-12 {
		t.Fatalf("expected pooled value 0.5 at score 3, got %v", p)
	}
	for s := 1.0; s < 4; s += 0.25 {
		if cal.Predict(s) > cal.Predict(s+0.25)+1e-12 {
			t.Fatalf("calibrator not monotone at %v", s)
		}
	}
}

func TestPredictClipsOutsideTrainingRange(t *testing.T) {
	cal, err := Fit([]float64{0.2, 0.8}, []float64{0, 1})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if p := cal.Predict(-5); p != 0 {
		t.Fatalf("expected clip to 0 below range, got %v", p)
	}
	if p := cal.Predict(5); p != 1 {
		t.Fatalf("expected clip to 1 above range, got %v", p)
	}
}

func TestFitSingleClassIsConstant(t *testing.T) {
	cal, err := Fit([]float64{0.1, 0.5, 0.9}, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	for _, s := range []float64{-1, 0.3, 2} {
		if p := cal.Predict(s); p != 1 {
			t.Fatalf("expected constant 1, got %v at %v", p, s)
		}
	}
}

func TestFitRejectsEmptyInput(t *testing.T) {
	if _, err := Fit(nil, nil); err == nil {
		t.Fatalf("expected error on empty dataset")
	}
}
