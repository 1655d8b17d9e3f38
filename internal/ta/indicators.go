package ta

import "math"

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// TrueRangeSeries returns the per-bar true range. The first element is NaN
// since it has no previous close.
func TrueRangeSeries(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n {
		return nil
	}
	out := make([]float64, n)
	out[0] = math.NaN()
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATRSeries is a simple rolling mean of the true range over the given
// period. Positions without a full window of defined true ranges are NaN.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	tr := TrueRangeSeries(highs, lows, closes)
	if tr == nil || period <= 0 {
		return nil
	}
	out := make([]float64, len(tr))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(tr) <= period {
		return out
	}
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(tr); i++ {
		sum += tr[i] - tr[i-period]
		out[i] = sum / float64(period)
	}
	return out
}
