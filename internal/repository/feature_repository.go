package repository

import (
	"context"
	"errors"

	"alpha-hunter/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createFeatureVectorsTable = `
CREATE TABLE IF NOT EXISTS feature_vectors (
    symbol                TEXT NOT NULL,
    date                  DATE NOT NULL,
    bb_width_pct          DOUBLE PRECISION,
    bb_position           DOUBLE PRECISION,
    ma_spread_pct         DOUBLE PRECISION,
    ma_alignment_score    DOUBLE PRECISION,
    atr_pct               DOUBLE PRECISION,
    volatility_20d        DOUBLE PRECISION,
    volume_ratio_20d      DOUBLE PRECISION,
    obv_trend_5d          DOUBLE PRECISION,
    social_delta_7d       DOUBLE PRECISION,
    trends_delta_7d       DOUBLE PRECISION,
    rsi_14                DOUBLE PRECISION,
    macd                  DOUBLE PRECISION,
    funding_rate_delta_7d DOUBLE PRECISION,
    oi_delta_7d           DOUBLE PRECISION,
    PRIMARY KEY (symbol, date)
);
`

const featureColumns = `symbol, date, bb_width_pct, bb_position, ma_spread_pct,
       ma_alignment_score, atr_pct, volatility_20d, volume_ratio_20d, obv_trend_5d,
       social_delta_7d, trends_delta_7d, rsi_14, macd, funding_rate_delta_7d, oi_delta_7d`

type FeatureRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewFeatureRepository(pool PgxPool, tracer trace.Tracer) *FeatureRepository {
	return &FeatureRepository{pool: pool, tracer: tracer}
}

func (r *FeatureRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "feature-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createFeatureVectorsTable)
	return err
}

func (r *FeatureRepository) UpsertFeatureVector(ctx context.Context, fv domain.FeatureVector) error {
	_, span := r.tracer.Start(ctx, "feature-repo.upsert")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
INSERT INTO feature_vectors (`+featureColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (symbol, date) DO UPDATE SET
    bb_width_pct = EXCLUDED.bb_width_pct,
    bb_position = EXCLUDED.bb_position,
    ma_spread_pct = EXCLUDED.ma_spread_pct,
    ma_alignment_score = EXCLUDED.ma_alignment_score,
    atr_pct = EXCLUDED.atr_pct,
    volatility_20d = EXCLUDED.volatility_20d,
    volume_ratio_20d = EXCLUDED.volume_ratio_20d,
    obv_trend_5d = EXCLUDED.obv_trend_5d,
    social_delta_7d = EXCLUDED.social_delta_7d,
    trends_delta_7d = EXCLUDED.trends_delta_7d,
    rsi_14 = EXCLUDED.rsi_14,
    macd = EXCLUDED.macd,
    funding_rate_delta_7d = EXCLUDED.funding_rate_delta_7d,
    oi_delta_7d = EXCLUDED.oi_delta_7d`,
		fv.Symbol, fv.Date,
		fv.BBWidthPct, fv.BBPosition, fv.MASpreadPct, fv.MAAlignmentScore,
		fv.ATRPct, fv.Volatility20D, fv.VolumeRatio20D, fv.OBVTrend5D,
		fv.SocialDelta7D, fv.TrendsDelta7D, fv.RSI14, fv.MACD,
		fv.FundingRateDelta7D, fv.OIDelta7D,
	)
	return err
}

// GetLatest returns the most recent feature vector for a symbol, or nil when
// none has been produced yet.
func (r *FeatureRepository) GetLatest(ctx context.Context, symbol string) (*domain.FeatureVector, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.get-latest")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
SELECT `+featureColumns+`
FROM feature_vectors
WHERE symbol = $1
ORDER BY date DESC
LIMIT 1`, symbol)

	fv, err := scanFeatureVector(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fv, nil
}

// ListTrainingRows inner-joins feature vectors with labels on (symbol, date),
// keeping only rows with a defined forward return. An empty assetClass means
// no class filter; an empty symbols slice means the whole universe.
func (r *FeatureRepository) ListTrainingRows(ctx context.Context, symbols []string, assetClass domain.AssetClass) ([]domain.TrainingRow, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.list-training-rows")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT f.symbol, f.date, f.bb_width_pct, f.bb_position, f.ma_spread_pct,
       f.ma_alignment_score, f.atr_pct, f.volatility_20d, f.volume_ratio_20d, f.obv_trend_5d,
       f.social_delta_7d, f.trends_delta_7d, f.rsi_14, f.macd, f.funding_rate_delta_7d, f.oi_delta_7d,
       l.fwd_ret_h, l.is_explosive
FROM feature_vectors f
JOIN labels l ON l.symbol = f.symbol AND l.date = f.date
WHERE l.fwd_ret_h IS NOT NULL
  AND ($1 = '' OR EXISTS (
      SELECT 1 FROM price_bars pb
      WHERE pb.symbol = f.symbol AND pb.date = f.date AND pb.asset_class = $1))
  AND (cardinality($2::text[]) = 0 OR f.symbol = ANY($2))
ORDER BY f.date ASC, f.symbol ASC`,
		string(assetClass), symbols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrainingRow
	for rows.Next() {
		var tr domain.TrainingRow
		fv := &tr.Features
		if err := rows.Scan(
			&fv.Symbol, &fv.Date, &fv.BBWidthPct, &fv.BBPosition, &fv.MASpreadPct,
			&fv.MAAlignmentScore, &fv.ATRPct, &fv.Volatility20D, &fv.VolumeRatio20D, &fv.OBVTrend5D,
			&fv.SocialDelta7D, &fv.TrendsDelta7D, &fv.RSI14, &fv.MACD, &fv.FundingRateDelta7D, &fv.OIDelta7D,
			&tr.FwdRetH, &tr.IsExplosive,
		); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func scanFeatureVector(row pgx.Row) (*domain.FeatureVector, error) {
	fv := &domain.FeatureVector{}
	if err := row.Scan(
		&fv.Symbol, &fv.Date, &fv.BBWidthPct, &fv.BBPosition, &fv.MASpreadPct,
		&fv.MAAlignmentScore, &fv.ATRPct, &fv.Volatility20D, &fv.VolumeRatio20D, &fv.OBVTrend5D,
		&fv.SocialDelta7D, &fv.TrendsDelta7D, &fv.RSI14, &fv.MACD, &fv.FundingRateDelta7D, &fv.OIDelta7D,
	); err != nil {
		return nil, err
	}
	return fv, nil
}
