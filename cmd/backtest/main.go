package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"alpha-hunter/internal/backtest"
	"alpha-hunter/internal/cache"
	"alpha-hunter/internal/config"
	"alpha-hunter/internal/db"
	"alpha-hunter/internal/repository"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	exitFunc         = os.Exit
	outputFunc       = func(s string) { fmt.Print(s) }
	runBacktestFunc  = runBacktest
)

const (
	dateLayout = "2006-01-02"
	reportKey  = "backtest:last_report"
	reportTTL  = 7 * 24 * time.Hour
)

type options struct {
	from     time.Time
	to       time.Time
	minScore int
	capital  float64
}

func main() {
	loadEnvFunc()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Println(err)
		exitFunc(1)
		return
	}

	cfg := loadConfigFunc()
	if opts.minScore > 0 {
		cfg.MinScore = opts.minScore
	}
	if opts.capital > 0 {
		cfg.InitialCapital = opts.capital
	}

	ctx := context.Background()
	initPostgresFunc(ctx, cfg.DatabaseURL)
	if db.Pool == nil {
		log.Println("DATABASE_URL is required")
		exitFunc(1)
		return
	}
	defer db.Pool.Close()
	initRedisFunc(ctx, cfg.RedisURL)

	out, err := runBacktestFunc(ctx, cfg, opts.from, opts.to)
	if err != nil {
		log.Printf("backtest failed: %v", err)
		exitFunc(1)
		return
	}
	outputFunc(out)
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fromFlag := fs.String("from", "", "backtest start date (YYYY-MM-DD)")
	toFlag := fs.String("to", "", "backtest end date (YYYY-MM-DD, defaults to today)")
	minScore := fs.Int("min-score", 0, "minimum quantum score (default from config)")
	capital := fs.Float64("capital", 0, "initial capital (default from config)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *fromFlag == "" {
		return options{}, fmt.Errorf("-from is required")
	}
	from, err := time.Parse(dateLayout, *fromFlag)
	if err != nil {
		return options{}, fmt.Errorf("invalid -from date %q: %w", *fromFlag, err)
	}
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if *toFlag != "" {
		if to, err = time.Parse(dateLayout, *toFlag); err != nil {
			return options{}, fmt.Errorf("invalid -to date %q: %w", *toFlag, err)
		}
	}
	if to.Before(from) {
		return options{}, fmt.Errorf("-to must not precede -from")
	}
	if *minScore < 0 || *minScore > 100 {
		return options{}, fmt.Errorf("-min-score must be in [0,100]")
	}
	return options{from: from, to: to, minScore: *minScore, capital: *capital}, nil
}

func runBacktest(ctx context.Context, cfg *config.Config, from, to time.Time) (string, error) {
	tracer := trace.NewNoopTracerProvider().Tracer("backtest")

	predRepo := repository.NewPredictionRepository(db.Pool, tracer)
	barRepo := repository.NewPriceBarRepository(db.Pool, tracer)

	sim := backtest.NewSimulator(tracer, predRepo, barRepo, backtest.Config{
		InitialCapital:  cfg.InitialCapital,
		PositionSizePct: cfg.PositionSizePct,
		MaxPositions:    cfg.MaxPositions,
		MaxHoldDays:     cfg.MaxHoldDays,
		ProfitTarget:    cfg.ProfitTarget,
		StopLoss:        cfg.StopLoss,
		MinScore:        cfg.MinScore,
	})

	res, err := sim.Run(ctx, from, to)
	if err != nil {
		return "", err
	}

	analyzer := backtest.NewAnalyzer(tracer, backtest.AnalyzerConfig{RiskFreeRate: cfg.RiskFreeRate})
	report := analyzer.Analyze(ctx, res.Trades, res.InitialCapital)

	if cache.Client != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := cache.Client.Set(ctx, reportKey, data, reportTTL).Err(); err != nil {
				log.Printf("Warning: failed to cache backtest report: %v", err)
			}
		}
	}

	out := fmt.Sprintf("Backtest %s to %s: %d signals, %d trades, %d entries skipped\n",
		res.StartDate.Format(dateLayout), res.EndDate.Format(dateLayout),
		res.SignalsSeen, len(res.Trades), res.EntriesSkipped)
	return out + backtest.FormatReport(report), nil
}
