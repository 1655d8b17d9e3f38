package repository

import (
	"context"

	"alpha-hunter/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createLabelsTable = `
CREATE TABLE IF NOT EXISTS labels (
    symbol          TEXT    NOT NULL,
    date            DATE    NOT NULL,
    fwd_ret_h       DOUBLE PRECISION,
    fwd_ret_30      DOUBLE PRECISION,
    is_explosive    BOOLEAN NOT NULL DEFAULT FALSE,
    lead_time_days  INTEGER,
    tb_outcome      SMALLINT,
    tb_time         INTEGER,
    PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_labels_explosive ON labels (symbol) WHERE is_explosive;
`

type LabelRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewLabelRepository(pool PgxPool, tracer trace.Tracer) *LabelRepository {
	return &LabelRepository{pool: pool, tracer: tracer}
}

func (r *LabelRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "label-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createLabelsTable)
	return err
}

// UpsertFixedHorizon writes the forward-return family of columns.
// Triple-barrier columns on an existing row are left alone.
func (r *LabelRepository) UpsertFixedHorizon(ctx context.Context, labels []domain.Label) error {
	if len(labels) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "label-repo.upsert-fixed-horizon")
	defer span.End()

	batch := &pgx.Batch{}
	for i := range labels {
		l := labels[i]
		batch.Queue(
			`INSERT INTO labels (symbol, date, fwd_ret_h, fwd_ret_30, is_explosive, lead_time_days)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (symbol, date) DO UPDATE SET
			     fwd_ret_h = EXCLUDED.fwd_ret_h,
			     fwd_ret_30 = EXCLUDED.fwd_ret_30,
			     is_explosive = EXCLUDED.is_explosive,
			     lead_time_days = EXCLUDED.lead_time_days`,
			l.Symbol, l.Date, l.FwdRetH, l.FwdRet30, l.IsExplosive, l.LeadTimeDays,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range labels {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertTripleBarrier writes the barrier family of columns, preserving any
// fixed-horizon values already on the row.
func (r *LabelRepository) UpsertTripleBarrier(ctx context.Context, labels []domain.Label) error {
	if len(labels) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "label-repo.upsert-triple-barrier")
	defer span.End()

	batch := &pgx.Batch{}
	for i := range labels {
		l := labels[i]
		batch.Queue(
			`INSERT INTO labels (symbol, date, tb_outcome, tb_time)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (symbol, date) DO UPDATE SET
			     tb_outcome = EXCLUDED.tb_outcome,
			     tb_time = EXCLUDED.tb_time`,
			l.Symbol, l.Date, l.TBOutcome, l.TBTime,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range labels {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ExplosionStats aggregates explosive rows per symbol. An empty symbols
// slice means all symbols.
func (r *LabelRepository) ExplosionStats(ctx context.Context, symbols []string) ([]domain.ExplosionStat, error) {
	_, span := r.tracer.Start(ctx, "label-repo.explosion-stats")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol,
       COUNT(*),
       AVG(fwd_ret_h),
       MAX(fwd_ret_h),
       COALESCE(AVG(lead_time_days), 0)
FROM labels
WHERE is_explosive
  AND (cardinality($1::text[]) = 0 OR symbol = ANY($1))
GROUP BY symbol
ORDER BY symbol ASC`, symbols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.ExplosionStat
	for rows.Next() {
		var s domain.ExplosionStat
		if err := rows.Scan(&s.Symbol, &s.Count, &s.MeanFwdRetH, &s.MaxFwdRetH, &s.MeanLeadDays); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetLabels returns a symbol's labels in ascending date order.
func (r *LabelRepository) GetLabels(ctx context.Context, symbol string) ([]domain.Label, error) {
	_, span := r.tracer.Start(ctx, "label-repo.get-labels")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol, date, fwd_ret_h, fwd_ret_30, is_explosive, lead_time_days, tb_outcome, tb_time
FROM labels
WHERE symbol = $1
ORDER BY date ASC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []domain.Label
	for rows.Next() {
		var l domain.Label
		if err := rows.Scan(&l.Symbol, &l.Date, &l.FwdRetH, &l.FwdRet30, &l.IsExplosive, &l.LeadTimeDays, &l.TBOutcome, &l.TBTime); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
