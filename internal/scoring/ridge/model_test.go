package ridge

import (
	"math"
	"testing"
)

func TestTrainRecoversLinearSignalAndRoundTrips(t *testing.T) {
	samples, targets := linearData()
	model, err := Train(samples, targets, []string{"x1", "x2"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	got := model.Predict([]float64{2, -1})
	want := 3.0*2 - 2.0*1 + 0.5
	if math.Abs(got-want) > 0.2 {
		t.Fatalf("prediction %.4f too far from %.4f", got, want)
	}

	blob, err := model.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := UnmarshalBinary(blob)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if diff := math.Abs(restored.Predict([]float64{2, -1}) - got); diff > 1e-9 {
		t.Fatalf("roundtrip changed prediction by %.12f", diff)
	}
}

func TestImportanceOrdersByAbsoluteCoefficient(t *testing.T) {
	samples, targets := linearData()
	model, err := Train(samples, targets, []string{"x1", "x2"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	imp := model.Importance()
	if len(imp) != 2 {
		t.Fatalf("expected 2 importances, got %d", len(imp))
	}
	if imp[0].Weight < imp[1].Weight {
		t.Fatalf("importances not sorted: %+v", imp)
	}
}

func TestSelectAlphaPrefersLowPenaltyOnCleanSignal(t *testing.T) {
	samples, targets := linearData()
	model, err := Train(samples, targets, []string{"x1", "x2"}, TrainOptions{
		Alphas:  []float64{0.1, 1000},
		CVFolds: 5,
	})
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if model.Alpha() != 0.1 {
		t.Fatalf("expected cross-validation to pick alpha 0.1, got %v", model.Alpha())
	}
}

func TestTrainHandlesConstantColumn(t *testing.T) {
	samples := make([][]float64, 30)
	targets := make([]float64, 30)
	for i := range samples {
		x := float64(i) / 10
		samples[i] = []float64{x, 7} // second column never varies
		targets[i] = 2 * x
	}
	model, err := Train(samples, targets, []string{"x", "const"}, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if math.IsNaN(model.Predict([]float64{1, 7})) {
		t.Fatalf("constant column produced NaN prediction")
	}
}

func TestTrainRejectsEmptyInput(t *testing.T) {
	if _, err := Train(nil, nil, nil, DefaultTrainOptions()); err == nil {
		t.Fatalf("expected error on empty dataset")
	}
}

func linearData() ([][]float64, []float64) {
	samples := make([][]float64, 0, 100)
	targets := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		x1 := math.Sin(float64(i)) * 3
		x2 := math.Cos(float64(i)*1.7) * 2
		samples = append(samples, []float64{x1, x2})
		targets = append(targets, 3*x1-2*x2+0.5)
	}
	return samples, targets
}
