package repository

import (
	"context"
	"encoding/json"
	"time"

	"alpha-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const createPredictionsTable = `
CREATE TABLE IF NOT EXISTS predictions (
    id               BIGSERIAL PRIMARY KEY,
    symbol           TEXT    NOT NULL,
    date             DATE    NOT NULL,
    predicted_return DOUBLE PRECISION NOT NULL,
    calibrated_prob  DOUBLE PRECISION NOT NULL,
    quantum_score    INTEGER NOT NULL,
    conviction_level TEXT    NOT NULL,
    contributions    JSONB   NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_predictions_date_score ON predictions (date, quantum_score DESC);
`

type PredictionRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPredictionRepository(pool PgxPool, tracer trace.Tracer) *PredictionRepository {
	return &PredictionRepository{pool: pool, tracer: tracer}
}

func (r *PredictionRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "prediction-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createPredictionsTable)
	return err
}

func (r *PredictionRepository) Upsert(ctx context.Context, p domain.Prediction) (*domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.upsert")
	defer span.End()

	contrib := p.Contributions
	if contrib == nil {
		contrib = map[string]float64{}
	}
	contribJSON, err := json.Marshal(contrib)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO predictions (symbol, date, predicted_return, calibrated_prob, quantum_score, conviction_level, contributions)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (symbol, date) DO UPDATE SET
    predicted_return = EXCLUDED.predicted_return,
    calibrated_prob = EXCLUDED.calibrated_prob,
    quantum_score = EXCLUDED.quantum_score,
    conviction_level = EXCLUDED.conviction_level,
    contributions = EXCLUDED.contributions
RETURNING id, symbol, date, predicted_return, calibrated_prob, quantum_score, conviction_level, contributions, created_at`,
		p.Symbol, p.Date, p.PredictedReturn, p.CalibratedProb, p.QuantumScore, string(p.ConvictionLevel), contribJSON,
	)

	out := &domain.Prediction{}
	var conviction string
	var rawContrib []byte
	if err := row.Scan(&out.ID, &out.Symbol, &out.Date, &out.PredictedReturn, &out.CalibratedProb,
		&out.QuantumScore, &conviction, &rawContrib, &out.CreatedAt); err != nil {
		return nil, err
	}
	out.ConvictionLevel = domain.ConvictionLevel(conviction)
	if err := json.Unmarshal(rawContrib, &out.Contributions); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDates returns the distinct, ascending dates that carry predictions at
// or above minScore inside [from, to].
func (r *PredictionRepository) ListDates(ctx context.Context, from, to time.Time, minScore int) ([]time.Time, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-dates")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT date
FROM predictions
WHERE date >= $1 AND date <= $2 AND quantum_score >= $3
ORDER BY date ASC`, from, to, minScore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListForDate returns a date's candidates ordered by score descending;
// equal scores keep arrival (insertion id) order.
func (r *PredictionRepository) ListForDate(ctx context.Context, date time.Time, minScore int) ([]domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-for-date")
	defer span.End()

	return r.list(ctx, `
SELECT id, symbol, date, predicted_return, calibrated_prob, quantum_score, conviction_level, contributions, created_at
FROM predictions
WHERE date = $1 AND quantum_score >= $2
ORDER BY quantum_score DESC, id ASC`, date, minScore)
}

// ListInRange returns predictions in [from, to] at or above minScore.
func (r *PredictionRepository) ListInRange(ctx context.Context, from, to time.Time, minScore int) ([]domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-in-range")
	defer span.End()

	return r.list(ctx, `
SELECT id, symbol, date, predicted_return, calibrated_prob, quantum_score, conviction_level, contributions, created_at
FROM predictions
WHERE date >= $1 AND date <= $2 AND quantum_score >= $3
ORDER BY date ASC, quantum_score DESC, id ASC`, from, to, minScore)
}

func (r *PredictionRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Prediction, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var preds []domain.Prediction
	for rows.Next() {
		var p domain.Prediction
		var conviction string
		var rawContrib []byte
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Date, &p.PredictedReturn, &p.CalibratedProb,
			&p.QuantumScore, &conviction, &rawContrib, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ConvictionLevel = domain.ConvictionLevel(conviction)
		if err := json.Unmarshal(rawContrib, &p.Contributions); err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}
