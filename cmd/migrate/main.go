package main

import (
	"context"
	"log"
	"os"
	"strings"

	"alpha-hunter/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
	exitFunc    = os.Exit
)

// migrators lists every repository schema in dependency order.
func migrators(pool repository.PgxPool, tracer trace.Tracer) map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"price_bars":  repository.NewPriceBarRepository(pool, tracer).RunMigrations,
		"features":    repository.NewFeatureRepository(pool, tracer).RunMigrations,
		"labels":      repository.NewLabelRepository(pool, tracer).RunMigrations,
		"predictions": repository.NewPredictionRepository(pool, tracer).RunMigrations,
	}
}

func main() {
	loadEnvFunc()

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		log.Println("DATABASE_URL is required")
		exitFunc(1)
		return
	}

	ctx := context.Background()
	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Printf("connect to postgres: %v", err)
		exitFunc(1)
		return
	}
	defer pool.Close()

	tracer := trace.NewNoopTracerProvider().Tracer("migrate")
	for name, migrate := range migrators(pool, tracer) {
		if err := migrate(ctx); err != nil {
			log.Printf("migrate %s: %v", name, err)
			exitFunc(1)
			return
		}
		log.Printf("migrated %s", name)
	}
	log.Println("migrations complete")
}
