package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alpha-hunter/internal/backtest"
	"alpha-hunter/internal/bot"
	"alpha-hunter/internal/cache"
	"alpha-hunter/internal/config"
	"alpha-hunter/internal/db"
	"alpha-hunter/internal/domain"
	"alpha-hunter/internal/handler"
	"alpha-hunter/internal/job"
	"alpha-hunter/internal/labeling"
	"alpha-hunter/internal/repository"
	"alpha-hunter/internal/scoring"
	"alpha-hunter/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	initPostgresFunc    = db.InitPostgres
	initRedisFunc       = cache.InitRedis
	initTracerFunc      = tracing.InitTracer
	startLabelingJob    = func(j *job.LabelingJob, ctx context.Context) { go j.Start(ctx) }
	startScoringJob     = func(j *job.ScoringJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBot    = bot.StartTelegramBot
	newRouterFunc       = gin.Default
	setupSignalNotify   = signal.Notify
	waitForSignalFunc   = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPFunc    = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Alpha Hunter API
// @version         1.0
// @description     Explosion labeling, scoring, and backtesting service.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations
	barRepo := repository.NewPriceBarRepository(db.Pool, tracer)
	featureRepo := repository.NewFeatureRepository(db.Pool, tracer)
	labelRepo := repository.NewLabelRepository(db.Pool, tracer)
	predRepo := repository.NewPredictionRepository(db.Pool, tracer)
	if db.Pool != nil {
		for name, migrate := range map[string]func(context.Context) error{
			"price_bars":  barRepo.RunMigrations,
			"features":    featureRepo.RunMigrations,
			"labels":      labelRepo.RunMigrations,
			"predictions": predRepo.RunMigrations,
		} {
			if err := migrate(ctx); err != nil {
				log.Fatalf("failed to run %s migrations: %v", name, err)
			}
		}
	}

	universes := map[domain.AssetClass][]string{
		domain.AssetClassEquity: cfg.EquitySymbols,
		domain.AssetClassCrypto: cfg.CryptoSymbols,
	}
	allSymbols := append(append([]string{}, cfg.EquitySymbols...), cfg.CryptoSymbols...)

	labeler := labeling.NewService(tracer, barRepo, labelRepo, labeling.Config{
		HorizonDays:     cfg.HorizonDays,
		ThresholdEquity: cfg.ExplosionThresholdEquity,
		ThresholdCrypto: cfg.ExplosionThresholdCrypto,
		TBUpperMult:     cfg.TBUpperMult,
		TBLowerMult:     cfg.TBLowerMult,
		TBTimeLimit:     cfg.TBTimeLimit,
		Workers:         cfg.LabelWorkers,
	})

	scorer := scoring.NewService(tracer, featureRepo, featureRepo, predRepo, cache.Client, scoring.Config{
		MinSamples: cfg.MinSamples,
		CVFolds:    cfg.CVFolds,
		Alphas:     cfg.RidgeAlphas,
	})

	simulator := backtest.NewSimulator(tracer, predRepo, barRepo, backtest.Config{
		InitialCapital:  cfg.InitialCapital,
		PositionSizePct: cfg.PositionSizePct,
		MaxPositions:    cfg.MaxPositions,
		MaxHoldDays:     cfg.MaxHoldDays,
		ProfitTarget:    cfg.ProfitTarget,
		StopLoss:        cfg.StopLoss,
		MinScore:        cfg.MinScore,
	})
	analyzer := backtest.NewAnalyzer(tracer, backtest.AnalyzerConfig{RiskFreeRate: cfg.RiskFreeRate})

	// Background jobs, stopped by ctx cancel
	startLabelingJob(job.NewLabelingJob(tracer, labeler, allSymbols, cfg.LabelHourUTC), ctx)
	startScoringJob(job.NewScoringJob(tracer, scorer, universes, cfg.ScoreHourUTC), ctx)

	startTelegramBot(predRepo, scorer, cfg.MinScore)

	h := handler.New(tracer, labeler, scorer, simulator, analyzer, predRepo, barRepo, featureRepo, cache.Client, universes)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("alpha-hunter"))
	h.RegisterRoutes(r, cfg.APIKey)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
