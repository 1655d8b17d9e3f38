package main

import (
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestMigratorsCoverEverySchema(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	m := migrators(nil, tracer)

	for _, name := range []string{"price_bars", "features", "labels", "predictions"} {
		if m[name] == nil {
			t.Fatalf("missing migrator for %s", name)
		}
	}
	if len(m) != 4 {
		t.Fatalf("expected 4 migrators, got %d", len(m))
	}
}

func TestMainRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	origLoadEnv := loadEnvFunc
	origExit := exitFunc
	defer func() {
		loadEnvFunc = origLoadEnv
		exitFunc = origExit
	}()

	loadEnvFunc = func(...string) error { return nil }
	var code int
	exited := false
	exitFunc = func(c int) { code = c; exited = true }

	main()

	if !exited || code != 1 {
		t.Fatalf("expected exit code 1 without DATABASE_URL, exited=%v code=%d", exited, code)
	}
}
