package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"alpha-hunter/internal/domain"
	"alpha-hunter/internal/scoring/isotonic"
	"alpha-hunter/internal/scoring/ridge"

	"github.com/narumiruna/go-iforest/pkg/iforest"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	predictionCacheTTL = 24 * time.Hour
	guardQuantile      = 0.99
	topFeatureCount    = 5
)

type TrainingStore interface {
	ListTrainingRows(ctx context.Context, symbols []string, assetClass domain.AssetClass) ([]domain.TrainingRow, error)
}

type FeatureReader interface {
	GetLatest(ctx context.Context, symbol string) (*domain.FeatureVector, error)
}

type PredictionStore interface {
	Upsert(ctx context.Context, p domain.Prediction) (*domain.Prediction, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type Config struct {
	MinSamples int
	CVFolds    int
	Alphas     []float64
}

// pipeline is one trained scoring stack for an asset class: the regressor,
// its probability calibrator, and an isolation-forest guard that flags
// feature vectors far outside the training distribution.
type pipeline struct {
	model      *ridge.Model
	calibrator *isotonic.Calibrator
	guard      *iforest.IsolationForest
	guardCut   float64
	trainedAt  time.Time
	samples    int
}

// Service trains per-asset-class scoring pipelines and turns feature
// vectors into persisted predictions.
type Service struct {
	tracer      trace.Tracer
	training    TrainingStore
	features    FeatureReader
	predictions PredictionStore
	redis       RedisClient
	cfg         Config

	mu        sync.RWMutex
	pipelines map[domain.AssetClass]*pipeline
}

func NewService(
	tracer trace.Tracer,
	training TrainingStore,
	features FeatureReader,
	predictions PredictionStore,
	redisClient RedisClient,
	cfg Config,
) *Service {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 200
	}
	if cfg.CVFolds <= 0 {
		cfg.CVFolds = 5
	}
	if len(cfg.Alphas) == 0 {
		cfg.Alphas = ridge.DefaultTrainOptions().Alphas
	}
	return &Service{
		tracer:      tracer,
		training:    training,
		features:    features,
		predictions: predictions,
		redis:       redisClient,
		cfg:         cfg,
		pipelines:   make(map[domain.AssetClass]*pipeline),
	}
}

type TrainResult struct {
	AssetClass  domain.AssetClass         `json:"asset_class"`
	Samples     int                       `json:"samples"`
	Explosive   int                       `json:"explosive"`
	Alpha       float64                   `json:"alpha"`
	TopFeatures []ridge.FeatureImportance `json:"top_features"`
}

// Train fits the full stack for one asset class on every labeled row in
// the store. Below the sample floor it returns a TrainingDataError and
// leaves any previously fit pipeline in place.
func (s *Service) Train(ctx context.Context, class domain.AssetClass, symbols []string) (TrainResult, error) {
	_, span := s.tracer.Start(ctx, "scorer.train")
	defer span.End()
	span.SetAttributes(attribute.String("asset_class", string(class)))

	rows, err := s.training.ListTrainingRows(ctx, symbols, class)
	if err != nil {
		return TrainResult{}, fmt.Errorf("load training rows: %w", err)
	}
	if len(rows) < s.cfg.MinSamples {
		return TrainResult{}, &domain.TrainingDataError{Got: len(rows), Need: s.cfg.MinSamples}
	}

	specs := featuresFor(class)
	samples := make([][]float64, len(rows))
	targets := make([]float64, len(rows))
	outcomes := make([]float64, len(rows))
	explosive := 0
	for i := range rows {
		samples[i] = vectorRow(specs, &rows[i].Features)
		targets[i] = rows[i].FwdRetH
		if rows[i].IsExplosive {
			outcomes[i] = 1
			explosive++
		}
	}

	model, err := ridge.Train(samples, targets, FeatureNames(class), ridge.TrainOptions{
		Alphas:  s.cfg.Alphas,
		CVFolds: s.cfg.CVFolds,
	})
	if err != nil {
		return TrainResult{}, fmt.Errorf("fit ridge model: %w", err)
	}

	// Calibrate the raw regression output against the binary explosion
	// outcome on the same rows the model saw.
	raw := model.PredictBatch(samples)
	calibrator, err := isotonic.Fit(raw, outcomes)
	if err != nil {
		return TrainResult{}, fmt.Errorf("fit calibrator: %w", err)
	}

	guard := iforest.New()
	guard.Fit(samples)
	guardCut := quantile(guard.Score(samples), guardQuantile)

	s.mu.Lock()
	s.pipelines[class] = &pipeline{
		model:      model,
		calibrator: calibrator,
		guard:      guard,
		guardCut:   guardCut,
		trainedAt:  time.Now().UTC(),
		samples:    len(rows),
	}
	s.mu.Unlock()

	importance := model.Importance()
	if len(importance) > topFeatureCount {
		importance = importance[:topFeatureCount]
	}
	return TrainResult{
		AssetClass:  class,
		Samples:     len(rows),
		Explosive:   explosive,
		Alpha:       model.Alpha(),
		TopFeatures: importance,
	}, nil
}

type ScoreResult struct {
	AssetClass  domain.AssetClass   `json:"asset_class"`
	Scored      int                 `json:"scored"`
	Skipped     int                 `json:"skipped"`
	Anomalous   int                 `json:"anomalous"`
	Predictions []domain.Prediction `json:"predictions"`
}

// Score runs the trained pipeline over each symbol's latest feature
// vector and upserts one prediction per symbol. Symbols without features
// are skipped with a warning; vectors the guard flags as anomalous are
// logged and counted but still scored, so every symbol with features
// gets a prediction.
func (s *Service) Score(ctx context.Context, class domain.AssetClass, symbols []string) (ScoreResult, error) {
	_, span := s.tracer.Start(ctx, "scorer.score")
	defer span.End()
	span.SetAttributes(attribute.String("asset_class", string(class)), attribute.Int("symbols", len(symbols)))

	s.mu.RLock()
	p := s.pipelines[class]
	s.mu.RUnlock()
	if p == nil {
		return ScoreResult{}, fmt.Errorf("asset class %s: %w", class, domain.ErrModelNotTrained)
	}

	specs := featuresFor(class)
	result := ScoreResult{AssetClass: class}
	for _, symbol := range symbols {
		fv, err := s.features.GetLatest(ctx, symbol)
		if err != nil {
			return result, fmt.Errorf("load features for %s: %w", symbol, err)
		}
		if fv == nil {
			log.Printf("Warning: no feature vector for %s, skipping", symbol)
			result.Skipped++
			continue
		}

		row := vectorRow(specs, fv)
		if score := p.guard.Score([][]float64{row}); len(score) == 1 && score[0] > p.guardCut {
			log.Printf("Warning: feature vector for %s looks anomalous (%.3f > %.3f)", symbol, score[0], p.guardCut)
			result.Anomalous++
		}

		rawReturn := p.model.Predict(row)
		prob := p.calibrator.Predict(rawReturn)
		quantumScore := int(math.Round(prob * 100))

		pred, err := s.predictions.Upsert(ctx, domain.Prediction{
			Symbol:          symbol,
			Date:            fv.Date,
			PredictedReturn: rawReturn,
			CalibratedProb:  prob,
			QuantumScore:    quantumScore,
			ConvictionLevel: domain.ConvictionFromScore(quantumScore),
			Contributions:   p.model.Contributions(row),
		})
		if err != nil {
			return result, fmt.Errorf("upsert prediction for %s: %w", symbol, err)
		}

		s.cachePrediction(ctx, pred)
		result.Scored++
		result.Predictions = append(result.Predictions, *pred)
	}

	sort.SliceStable(result.Predictions, func(i, j int) bool {
		return result.Predictions[i].QuantumScore > result.Predictions[j].QuantumScore
	})
	return result, nil
}

// TrainAndScore is the daily workflow: refit on everything labeled so far,
// then score the universe with the fresh pipeline.
func (s *Service) TrainAndScore(ctx context.Context, class domain.AssetClass, symbols []string) (TrainResult, ScoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "scorer.train-and-score")
	defer span.End()

	trainRes, err := s.Train(ctx, class, nil)
	if err != nil {
		return TrainResult{}, ScoreResult{}, err
	}
	scoreRes, err := s.Score(ctx, class, symbols)
	return trainRes, scoreRes, err
}

// CachedPrediction returns the latest cached prediction for a symbol, or
// nil on a miss. Cache errors degrade to a miss.
func (s *Service) CachedPrediction(ctx context.Context, symbol string) *domain.Prediction {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, "prediction:"+symbol).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Printf("Warning: redis cache read error: %v", err)
		return nil
	}
	var pred domain.Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		return nil
	}
	return &pred
}

func (s *Service) cachePrediction(ctx context.Context, pred *domain.Prediction) {
	if s.redis == nil || pred == nil {
		return
	}
	data, err := json.Marshal(pred)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, "prediction:"+pred.Symbol, data, predictionCacheTTL).Err(); err != nil {
		log.Printf("Warning: redis cache write error: %v", err)
	}
}

func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.Inf(1)
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
