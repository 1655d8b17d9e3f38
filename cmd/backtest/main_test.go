package main

import (
	"context"
	"os"
	"testing"
	"time"

	"alpha-hunter/internal/config"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-from", "2025-01-02", "-to", "2025-03-04", "-min-score", "80", "-capital", "50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.from.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected from: %v", opts.from)
	}
	if !opts.to.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected to: %v", opts.to)
	}
	if opts.minScore != 80 || opts.capital != 50000 {
		t.Errorf("unexpected overrides: %+v", opts)
	}
}

func TestParseFlagsDefaultsToToday(t *testing.T) {
	opts, err := parseFlags([]string{"-from", "2025-01-02"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !opts.to.Equal(today) {
		t.Errorf("expected to default to today, got %v", opts.to)
	}
	if opts.minScore != 0 || opts.capital != 0 {
		t.Errorf("expected zero overrides, got %+v", opts)
	}
}

func TestParseFlagsRejectsBadInput(t *testing.T) {
	cases := [][]string{
		{},
		{"-from", "not-a-date"},
		{"-from", "2025-03-04", "-to", "2025-01-02"},
		{"-from", "2025-01-02", "-to", "bogus"},
		{"-from", "2025-01-02", "-min-score", "101"},
	}
	for _, args := range cases {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("expected error for args %v", args)
		}
	}
}

func TestMainExitsWithoutDatabase(t *testing.T) {
	origArgs := os.Args
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origExit := exitFunc
	defer func() {
		os.Args = origArgs
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		exitFunc = origExit
	}()

	os.Args = []string{"backtest", "-from", "2025-01-01", "-to", "2025-02-01"}
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return &config.Config{} }
	initPostgresFunc = func(context.Context, string) {}
	initRedisFunc = func(context.Context, string) {}
	var code int
	exitFunc = func(c int) { code = c }

	main()

	if code != 1 {
		t.Fatalf("expected exit code 1 without a database, got %d", code)
	}
}
