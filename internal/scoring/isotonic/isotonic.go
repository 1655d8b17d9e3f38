// Package isotonic fits a monotone step calibrator via the pool-adjacent-
// violators algorithm and maps raw model outputs to probabilities.
package isotonic

import (
	"errors"
	"sort"
)

// Calibrator holds the fitted breakpoints. Predictions interpolate
// linearly between them and clip outside the training range.
type Calibrator struct {
	Xs []float64 `json:"xs"`
	Ys []float64 `json:"ys"`
}

// Fit trains a nondecreasing calibrator mapping raw scores to the observed
// outcome rate. Outcomes are expected in [0,1]. A degenerate input where
// every outcome is identical yields a constant calibrator.
func Fit(scores, outcomes []float64) (*Calibrator, error) {
	if len(scores) == 0 || len(scores) != len(outcomes) {
		return nil, errors.New("invalid calibration dataset")
	}

	type pair struct{ x, y float64 }
	pairs := make([]pair, len(scores))
	for i := range scores {
		pairs[i] = pair{scores[i], outcomes[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].x < pairs[j].x })

	// Collapse duplicate scores into weighted points first so PAVA sees
	// strictly increasing x.
	xs := make([]float64, 0, len(pairs))
	ys := make([]float64, 0, len(pairs))
	ws := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		if n := len(xs); n > 0 && xs[n-1] == p.x {
			ys[n-1] = (ys[n-1]*ws[n-1] + p.y) / (ws[n-1] + 1)
			ws[n-1]++
			continue
		}
		xs = append(xs, p.x)
		ys = append(ys, p.y)
		ws = append(ws, 1)
	}

	// Pool adjacent violators: merge any block whose mean exceeds its
	// successor's until the sequence is nondecreasing.
	type block struct {
		sum, weight float64
		last        int
	}
	blocks := make([]block, 0, len(xs))
	for i := range xs {
		blocks = append(blocks, block{sum: ys[i] * ws[i], weight: ws[i], last: i})
		for len(blocks) > 1 {
			a := blocks[len(blocks)-2]
			b := blocks[len(blocks)-1]
			if a.sum/a.weight <= b.sum/b.weight {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{sum: a.sum + b.sum, weight: a.weight + b.weight, last: b.last})
		}
	}

	fitted := make([]float64, len(xs))
	start := 0
	for _, b := range blocks {
		v := b.sum / b.weight
		for i := start; i <= b.last; i++ {
			fitted[i] = v
		}
		start = b.last + 1
	}

	return &Calibrator{Xs: xs, Ys: fitted}, nil
}

// Predict maps a raw score to a calibrated probability, clipped to [0,1].
func (c *Calibrator) Predict(score float64) float64 {
	if c == nil || len(c.Xs) == 0 {
		return 0
	}
	var v float64
	switch {
	case score <= c.Xs[0]:
		v = c.Ys[0]
	case score >= c.Xs[len(c.Xs)-1]:
		v = c.Ys[len(c.Ys)-1]
	default:
		i := sort.SearchFloat64s(c.Xs, score)
		if c.Xs[i] == score {
			v = c.Ys[i]
		} else {
			span := c.Xs[i] - c.Xs[i-1]
			frac := (score - c.Xs[i-1]) / span
			v = c.Ys[i-1] + frac*(c.Ys[i]-c.Ys[i-1])
		}
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
