package ridge

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

type TrainOptions struct {
	Alphas  []float64
	CVFolds int
}

type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Coefs        []float64 `json:"coefs"`
	Intercept    float64   `json:"intercept"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
	Alpha        float64   `json:"alpha"`
}

// Model is a ridge regressor fit on standardized features via the normal
// equations. The standardization parameters travel with the artifact so a
// restored model scores raw inputs identically.
type Model struct {
	artifact Artifact
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Alphas:  []float64{0.1, 1, 10, 100},
		CVFolds: 5,
	}
}

func Train(samples [][]float64, targets []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	if len(opts.Alphas) == 0 {
		opts.Alphas = DefaultTrainOptions().Alphas
	}
	if opts.CVFolds <= 0 {
		opts.CVFolds = DefaultTrainOptions().CVFolds
	}

	n := len(samples)
	k := len(samples[0])

	means := make([]float64, k)
	stds := make([]float64, k)
	for j := 0; j < k; j++ {
		for i := range samples {
			means[j] += samples[i][j]
		}
		means[j] /= float64(n)
		for i := range samples {
			d := samples[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / float64(n))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}

	// Scaling is fit once on the full set; folds only vary the rows the
	// regression sees.
	scaled := make([][]float64, n)
	for i := range samples {
		scaled[i] = normalize(samples[i], means, stds)
	}

	alpha := selectAlpha(scaled, targets, opts.Alphas, opts.CVFolds)

	coefs, intercept, err := solve(scaled, targets, alpha)
	if err != nil {
		return nil, err
	}

	if len(featureNames) != k {
		featureNames = make([]string, k)
		for j := range featureNames {
			featureNames[j] = "f" + strconv.Itoa(j)
		}
	}

	return &Model{artifact: Artifact{
		FeatureNames: featureNames,
		Coefs:        coefs,
		Intercept:    intercept,
		Means:        means,
		Stds:         stds,
		Alpha:        alpha,
	}}, nil
}

// selectAlpha runs k-fold cross-validation over the candidate penalties and
// returns the one with the lowest mean held-out MSE. Ties keep the earlier
// candidate. Falls back to the first candidate when the set is too small to
// fold.
func selectAlpha(scaled [][]float64, targets []float64, alphas []float64, folds int) float64 {
	n := len(scaled)
	if len(alphas) == 1 || folds < 2 || n < 2*folds {
		return alphas[0]
	}

	best := alphas[0]
	bestMSE := math.Inf(1)
	for _, a := range alphas {
		var total float64
		var count int
		for f := 0; f < folds; f++ {
			lo := f * n / folds
			hi := (f + 1) * n / folds
			if hi <= lo {
				continue
			}
			trainX := make([][]float64, 0, n-(hi-lo))
			trainY := make([]float64, 0, n-(hi-lo))
			for i := 0; i < n; i++ {
				if i >= lo && i < hi {
					continue
				}
				trainX = append(trainX, scaled[i])
				trainY = append(trainY, targets[i])
			}
			coefs, intercept, err := solve(trainX, trainY, a)
			if err != nil {
				continue
			}
			for i := lo; i < hi; i++ {
				pred := intercept + dot(coefs, scaled[i])
				d := pred - targets[i]
				total += d * d
				count++
			}
		}
		if count == 0 {
			continue
		}
		if mse := total / float64(count); mse < bestMSE {
			bestMSE = mse
			best = a
		}
	}
	return best
}

// solve fits coefficients on centered targets through the normal equations
// (XᵀX + αI)w = Xᵀ(y − ȳ). The intercept is the target mean.
func solve(scaled [][]float64, targets []float64, alpha float64) ([]float64, float64, error) {
	n := len(scaled)
	k := len(scaled[0])

	var intercept float64
	for _, y := range targets {
		intercept += y
	}
	intercept /= float64(n)

	gram := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			var s float64
			for i := 0; i < n; i++ {
				s += scaled[i][a] * scaled[i][b]
			}
			if a == b {
				s += alpha
			}
			gram.SetSym(a, b, s)
		}
	}

	rhs := mat.NewVecDense(k, nil)
	for a := 0; a < k; a++ {
		var s float64
		for i := 0; i < n; i++ {
			s += scaled[i][a] * (targets[i] - intercept)
		}
		rhs.SetVec(a, s)
	}

	var chol mat.Cholesky
	if !chol.Factorize(gram) {
		return nil, 0, errors.New("singular design matrix")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, rhs); err != nil {
		return nil, 0, err
	}

	coefs := make([]float64, k)
	for a := 0; a < k; a++ {
		coefs[a] = w.AtVec(a)
	}
	return coefs, intercept, nil
}

func (m *Model) Predict(sample []float64) float64 {
	if m == nil || len(sample) != len(m.artifact.Coefs) {
		return 0
	}
	x := normalize(sample, m.artifact.Means, m.artifact.Stds)
	return m.artifact.Intercept + dot(m.artifact.Coefs, x)
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	preds := make([]float64, len(samples))
	for i := range samples {
		preds[i] = m.Predict(samples[i])
	}
	return preds
}

// Contributions returns each feature's signed pull on a prediction, the
// coefficient times the standardized value.
func (m *Model) Contributions(sample []float64) map[string]float64 {
	if m == nil || len(sample) != len(m.artifact.Coefs) {
		return nil
	}
	x := normalize(sample, m.artifact.Means, m.artifact.Stds)
	out := make(map[string]float64, len(x))
	for j, name := range m.artifact.FeatureNames {
		out[name] = m.artifact.Coefs[j] * x[j]
	}
	return out
}

type FeatureImportance struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Importance ranks features by absolute coefficient, descending.
func (m *Model) Importance() []FeatureImportance {
	if m == nil {
		return nil
	}
	out := make([]FeatureImportance, len(m.artifact.Coefs))
	for j := range m.artifact.Coefs {
		out[j] = FeatureImportance{Name: m.artifact.FeatureNames[j], Weight: math.Abs(m.artifact.Coefs[j])}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func (m *Model) Alpha() float64 {
	if m == nil {
		return 0
	}
	return m.artifact.Alpha
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.artifact.FeatureNames))
	copy(out, m.artifact.FeatureNames)
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Coefs) == 0 || len(a.Coefs) != len(a.Means) || len(a.Coefs) != len(a.Stds) {
		return nil, errors.New("invalid artifact")
	}
	return &Model{artifact: a}, nil
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
