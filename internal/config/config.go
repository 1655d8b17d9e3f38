package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	HTTPPort    int
	APIKey      string

	EquitySymbols []string
	CryptoSymbols []string

	HorizonDays              int
	ExplosionThresholdEquity float64
	ExplosionThresholdCrypto float64
	TBUpperMult              float64
	TBLowerMult              float64
	TBTimeLimit              int
	LabelWorkers             int
	LabelHourUTC             int

	MinSamples        int
	CVFolds           int
	RidgeAlphas       []float64
	CalibrationMethod string
	ScoreHourUTC      int

	InitialCapital  float64
	PositionSizePct float64
	MaxPositions    int
	MaxHoldDays     int
	ProfitTarget    float64
	StopLoss        float64
	RiskFreeRate    float64
	MinScore        int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)
	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))

	cfg.EquitySymbols = envList("EQUITY_SYMBOLS")
	cfg.CryptoSymbols = envList("CRYPTO_SYMBOLS")

	cfg.HorizonDays = envInt("HORIZON_DAYS", 10)
	cfg.ExplosionThresholdEquity = envFloat("EXPLOSION_THRESHOLD_EQUITY", 0.50)
	cfg.ExplosionThresholdCrypto = envFloat("EXPLOSION_THRESHOLD_CRYPTO", 0.30)
	cfg.TBUpperMult = envFloat("TB_UPPER_MULT", 2.0)
	cfg.TBLowerMult = envFloat("TB_LOWER_MULT", 1.0)
	cfg.TBTimeLimit = envInt("TB_TIME_LIMIT", 10)
	cfg.LabelWorkers = envInt("LABEL_WORKERS", 5)
	cfg.LabelHourUTC = envHour("LABEL_HOUR_UTC", 1)

	cfg.MinSamples = envInt("MIN_SAMPLES", 200)
	cfg.CVFolds = envInt("CV_FOLDS", 5)
	cfg.RidgeAlphas = envFloatList("RIDGE_ALPHAS", []float64{0.1, 1.0, 10.0, 100.0})
	cfg.CalibrationMethod = strings.TrimSpace(os.Getenv("CALIBRATION_METHOD"))
	if cfg.CalibrationMethod == "" {
		cfg.CalibrationMethod = "isotonic"
	} else if cfg.CalibrationMethod != "isotonic" {
		log.Printf("Warning: unsupported CALIBRATION_METHOD %q, using isotonic", cfg.CalibrationMethod)
		cfg.CalibrationMethod = "isotonic"
	}
	cfg.ScoreHourUTC = envHour("SCORE_HOUR_UTC", 2)

	cfg.InitialCapital = envFloat("INITIAL_CAPITAL", 100000)
	cfg.PositionSizePct = envFloat("POSITION_SIZE_PCT", 0.02)
	cfg.MaxPositions = envInt("MAX_POSITIONS", 10)
	cfg.MaxHoldDays = envInt("MAX_HOLD_DAYS", 14)
	cfg.ProfitTarget = envFloat("PROFIT_TARGET", 0.50)
	cfg.StopLoss = envSignedFloat("STOP_LOSS", -0.08)
	cfg.RiskFreeRate = envSignedFloat("RISK_FREE_RATE", 0.0)
	cfg.MinScore = envInt("MIN_SCORE", 70)

	return cfg
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envHour(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
	}
	return def
}

func envSignedFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
	}
	return def
}

func envList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envFloatList(key string, def []float64) []float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || n <= 0 {
			log.Printf("Warning: invalid %s=%q, using defaults", key, v)
			return def
		}
		out = append(out, n)
	}
	return out
}
