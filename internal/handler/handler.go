package handler

import (
	"context"
	"time"

	"alpha-hunter/internal/backtest"
	"alpha-hunter/internal/domain"
	"alpha-hunter/internal/labeling"
	"alpha-hunter/internal/scoring"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

type LabelRunner interface {
	LabelUniverse(ctx context.Context, symbols []string) (labeling.UniverseResult, error)
	ExplosionStats(ctx context.Context, symbols []string) ([]domain.ExplosionStat, error)
	Labels(ctx context.Context, symbol string) ([]domain.Label, error)
}

type ScoreRunner interface {
	TrainAndScore(ctx context.Context, class domain.AssetClass, symbols []string) (scoring.TrainResult, scoring.ScoreResult, error)
	CachedPrediction(ctx context.Context, symbol string) *domain.Prediction
}

type BacktestRunner interface {
	Run(ctx context.Context, from, to time.Time) (backtest.Result, error)
}

type PredictionReader interface {
	ListForDate(ctx context.Context, date time.Time, minScore int) ([]domain.Prediction, error)
	ListInRange(ctx context.Context, from, to time.Time, minScore int) ([]domain.Prediction, error)
}

type BarWriter interface {
	UpsertBars(ctx context.Context, bars []domain.PriceBar) error
}

type FeatureWriter interface {
	UpsertFeatureVector(ctx context.Context, fv domain.FeatureVector) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type Handler struct {
	tracer      trace.Tracer
	labeler     LabelRunner
	scorer      ScoreRunner
	backtester  BacktestRunner
	analyzer    *backtest.Analyzer
	predictions PredictionReader
	bars        BarWriter
	features    FeatureWriter
	redis       RedisClient
	universes   map[domain.AssetClass][]string
}

func New(
	tracer trace.Tracer,
	labeler LabelRunner,
	scorer ScoreRunner,
	backtester BacktestRunner,
	analyzer *backtest.Analyzer,
	predictions PredictionReader,
	bars BarWriter,
	features FeatureWriter,
	redisClient RedisClient,
	universes map[domain.AssetClass][]string,
) *Handler {
	return &Handler{
		tracer:      tracer,
		labeler:     labeler,
		scorer:      scorer,
		backtester:  backtester,
		analyzer:    analyzer,
		predictions: predictions,
		bars:        bars,
		features:    features,
		redis:       redisClient,
		universes:   universes,
	}
}

// RegisterRoutes wires the API surface. The health probe stays outside the
// key check so load balancers can reach it.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.POST("/prices", h.IngestBars)
	api.POST("/features", h.IngestFeatures)
	api.POST("/labels/run", h.TriggerLabeling)
	api.GET("/labels", h.GetLabels)
	api.GET("/labels/stats", h.GetExplosionStats)
	api.POST("/scores/run", h.TriggerScoring)
	api.GET("/predictions", h.GetPredictions)
	api.GET("/predictions/:symbol/latest", h.GetLatestPrediction)
	api.POST("/backtest/run", h.RunBacktest)
	api.GET("/backtest/report", h.GetBacktestReport)
}
