package repository

import (
	"context"
	"errors"
	"time"

	"alpha-hunter/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createPriceBarsTable = `
CREATE TABLE IF NOT EXISTS price_bars (
    symbol       TEXT    NOT NULL,
    date         DATE    NOT NULL,
    open         NUMERIC NOT NULL,
    high         NUMERIC NOT NULL,
    low          NUMERIC NOT NULL,
    close        NUMERIC NOT NULL,
    volume       NUMERIC NOT NULL,
    asset_class  TEXT    NOT NULL,
    PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_price_bars_date ON price_bars (date);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PriceBarRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceBarRepository(pool PgxPool, tracer trace.Tracer) *PriceBarRepository {
	return &PriceBarRepository{pool: pool, tracer: tracer}
}

func (r *PriceBarRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "pricebar-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createPriceBarsTable)
	return err
}

// UpsertBars inserts bars, leaving existing rows untouched: a written bar is
// immutable.
func (r *PriceBarRepository) UpsertBars(ctx context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "pricebar-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for i := range bars {
		b := bars[i]
		batch.Queue(
			`INSERT INTO price_bars (symbol, date, open, high, low, close, volume, asset_class)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (symbol, date) DO NOTHING`,
			b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, string(b.AssetClass),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetBars returns a symbol's full history in ascending date order.
func (r *PriceBarRepository) GetBars(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "pricebar-repo.get-bars")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, date, open, high, low, close, volume, asset_class
		 FROM price_bars
		 WHERE symbol = $1
		 ORDER BY date ASC`,
		symbol,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetBar returns the bar for an exact (symbol, date), or nil when the symbol
// did not trade that day.
func (r *PriceBarRepository) GetBar(ctx context.Context, symbol string, date time.Time) (*domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "pricebar-repo.get-bar")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT symbol, date, open, high, low, close, volume, asset_class
		 FROM price_bars
		 WHERE symbol = $1 AND date = $2`,
		symbol, date,
	)
	b, err := scanBar(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetNextBar returns the first bar strictly after the given date, or nil.
func (r *PriceBarRepository) GetNextBar(ctx context.Context, symbol string, after time.Time) (*domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "pricebar-repo.get-next-bar")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT symbol, date, open, high, low, close, volume, asset_class
		 FROM price_bars
		 WHERE symbol = $1 AND date > $2
		 ORDER BY date ASC
		 LIMIT 1`,
		symbol, after,
	)
	b, err := scanBar(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetLastBar returns the most recent bar on or before the given date, or nil.
func (r *PriceBarRepository) GetLastBar(ctx context.Context, symbol string, onOrBefore time.Time) (*domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "pricebar-repo.get-last-bar")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT symbol, date, open, high, low, close, volume, asset_class
		 FROM price_bars
		 WHERE symbol = $1 AND date <= $2
		 ORDER BY date DESC
		 LIMIT 1`,
		symbol, onOrBefore,
	)
	b, err := scanBar(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanBar(row pgx.Row) (*domain.PriceBar, error) {
	b := &domain.PriceBar{}
	var assetClass string
	if err := row.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &assetClass); err != nil {
		return nil, err
	}
	b.AssetClass = domain.AssetClass(assetClass)
	return b, nil
}

func scanBars(rows pgx.Rows) ([]domain.PriceBar, error) {
	var bars []domain.PriceBar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, *b)
	}
	return bars, rows.Err()
}
