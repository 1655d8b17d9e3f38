package ta

import (
	"math"
	"testing"
)

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("expected mean 5, got %v", mean)
	}
	if math.Abs(std-2) > 1e-12 {
		t.Fatalf("expected std 2, got %v", std)
	}
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	highs := []float64{10, 12, 11}
	lows := []float64{9, 10, 8}
	closes := []float64{9.5, 11, 9}

	tr := TrueRangeSeries(highs, lows, closes)
	if !math.IsNaN(tr[0]) {
		t.Fatalf("first true range should be NaN, got %v", tr[0])
	}
	// max(12-10, |12-9.5|, |10-9.5|) = 2.5
	if math.Abs(tr[1]-2.5) > 1e-12 {
		t.Fatalf("expected tr[1]=2.5, got %v", tr[1])
	}
	// max(11-8, |11-11|, |8-11|) = 3
	if math.Abs(tr[2]-3) > 1e-12 {
		t.Fatalf("expected tr[2]=3, got %v", tr[2])
	}
}

func TestATRSeriesWindow(t *testing.T) {
	n := 20
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 101
		lows[i] = 99
		closes[i] = 100
	}

	atr := ATRSeries(highs, lows, closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(atr[i]) {
			t.Fatalf("atr[%d] should be NaN before a full window", i)
		}
	}
	for i := 14; i < n; i++ {
		if math.Abs(atr[i]-2) > 1e-12 {
			t.Fatalf("expected atr[%d]=2, got %v", i, atr[i])
		}
	}
}
