package labeling

import (
	"context"
	"fmt"
	"math"

	"alpha-hunter/internal/domain"
	"alpha-hunter/internal/ta"

	"go.opentelemetry.io/otel/trace"
)

const (
	atrPeriod         = 14
	tripleBarrierMin  = 50
	fixedHorizonSlack = 10
	longHorizonDays   = 30
)

type PriceStore interface {
	GetBars(ctx context.Context, symbol string) ([]domain.PriceBar, error)
}

type LabelStore interface {
	UpsertFixedHorizon(ctx context.Context, labels []domain.Label) error
	UpsertTripleBarrier(ctx context.Context, labels []domain.Label) error
	ExplosionStats(ctx context.Context, symbols []string) ([]domain.ExplosionStat, error)
	GetLabels(ctx context.Context, symbol string) ([]domain.Label, error)
}

type Config struct {
	HorizonDays     int
	ThresholdEquity float64
	ThresholdCrypto float64
	TBUpperMult     float64
	TBLowerMult     float64
	TBTimeLimit     int
	Workers         int
}

// Service turns price histories into forward-looking outcome labels.
type Service struct {
	tracer trace.Tracer
	prices PriceStore
	labels LabelStore
	cfg    Config
}

func NewService(tracer trace.Tracer, prices PriceStore, labels LabelStore, cfg Config) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 10
	}
	if cfg.ThresholdEquity <= 0 {
		cfg.ThresholdEquity = 0.50
	}
	if cfg.ThresholdCrypto <= 0 {
		cfg.ThresholdCrypto = 0.30
	}
	if cfg.TBUpperMult <= 0 {
		cfg.TBUpperMult = 2.0
	}
	if cfg.TBLowerMult <= 0 {
		cfg.TBLowerMult = 1.0
	}
	if cfg.TBTimeLimit <= 0 {
		cfg.TBTimeLimit = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Service{tracer: tracer, prices: prices, labels: labels, cfg: cfg}
}

// FixedHorizonResult reports one symbol's fixed-horizon labeling pass.
type FixedHorizonResult struct {
	Symbol     string `json:"symbol"`
	Labeled    int    `json:"labeled"`
	Explosions int    `json:"explosions"`
}

// LabelFixedHorizon computes forward returns over the configured horizon and
// marks explosive days. The threshold defaults by asset class when nil.
// Returns ErrInsufficientData when the history is shorter than horizon+10.
func (s *Service) LabelFixedHorizon(ctx context.Context, symbol string, horizonDays int, threshold *float64) (FixedHorizonResult, error) {
	_, span := s.tracer.Start(ctx, "labeler.fixed-horizon")
	defer span.End()

	if horizonDays <= 0 {
		horizonDays = s.cfg.HorizonDays
	}

	bars, err := s.prices.GetBars(ctx, symbol)
	if err != nil {
		return FixedHorizonResult{}, fmt.Errorf("load bars for %s: %w", symbol, err)
	}
	if len(bars) < horizonDays+fixedHorizonSlack {
		return FixedHorizonResult{}, fmt.Errorf("%s has %d bars, need %d: %w",
			symbol, len(bars), horizonDays+fixedHorizonSlack, domain.ErrInsufficientData)
	}

	thr := s.thresholdFor(bars[0].AssetClass, threshold)

	labels := make([]domain.Label, 0, len(bars))
	explosions := 0
	for t := 0; t+horizonDays < len(bars); t++ {
		entry := bars[t].Close
		if entry == 0 {
			continue
		}
		fwdH := bars[t+horizonDays].Close/entry - 1

		var fwd30 *float64
		if t+longHorizonDays < len(bars) {
			v := bars[t+longHorizonDays].Close/entry - 1
			fwd30 = &v
		}

		label := domain.Label{
			Symbol:      symbol,
			Date:        bars[t].Date,
			FwdRetH:     &fwdH,
			FwdRet30:    fwd30,
			IsExplosive: fwdH >= thr,
		}
		if label.IsExplosive {
			explosions++
			// Lead time is the first forward day whose cumulative return
			// reaches the threshold, not the horizon-end value.
			for d := 1; d <= horizonDays; d++ {
				if bars[t+d].Close/entry-1 >= thr {
					lead := d
					label.LeadTimeDays = &lead
					break
				}
			}
		}
		labels = append(labels, label)
	}

	if err := s.labels.UpsertFixedHorizon(ctx, labels); err != nil {
		return FixedHorizonResult{}, fmt.Errorf("upsert labels for %s: %w", symbol, err)
	}
	return FixedHorizonResult{Symbol: symbol, Labeled: len(labels), Explosions: explosions}, nil
}

// TripleBarrierResult reports one symbol's triple-barrier labeling pass.
type TripleBarrierResult struct {
	Symbol  string `json:"symbol"`
	Labeled int    `json:"labeled"`
}

// LabelTripleBarrier classifies each day by which ATR-sized barrier the
// forward path touches first: +1 upper, -1 lower, 0 when the time limit
// expires. Days without a positive ATR are skipped silently.
func (s *Service) LabelTripleBarrier(ctx context.Context, symbol string, upperMult, lowerMult float64, timeLimit int) (TripleBarrierResult, error) {
	_, span := s.tracer.Start(ctx, "labeler.triple-barrier")
	defer span.End()

	if upperMult <= 0 {
		upperMult = s.cfg.TBUpperMult
	}
	if lowerMult <= 0 {
		lowerMult = s.cfg.TBLowerMult
	}
	if timeLimit <= 0 {
		timeLimit = s.cfg.TBTimeLimit
	}

	bars, err := s.prices.GetBars(ctx, symbol)
	if err != nil {
		return TripleBarrierResult{}, fmt.Errorf("load bars for %s: %w", symbol, err)
	}
	if len(bars) < tripleBarrierMin {
		return TripleBarrierResult{}, fmt.Errorf("%s has %d bars, need %d: %w",
			symbol, len(bars), tripleBarrierMin, domain.ErrInsufficientData)
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i := range bars {
		highs[i] = bars[i].High
		lows[i] = bars[i].Low
		closes[i] = bars[i].Close
	}
	atr := ta.ATRSeries(highs, lows, closes, atrPeriod)

	labels := make([]domain.Label, 0, len(bars))
	for t := 0; t < len(bars)-timeLimit; t++ {
		if math.IsNaN(atr[t]) || atr[t] == 0 {
			continue
		}
		entry := closes[t]
		upper := entry + upperMult*atr[t]
		lower := entry - lowerMult*atr[t]

		outcome := 0
		hit := timeLimit
		for d := 1; d <= timeLimit; d++ {
			if t+d >= len(bars) {
				break
			}
			if highs[t+d] >= upper {
				outcome = 1
				hit = d
				break
			}
			if lows[t+d] <= lower {
				outcome = -1
				hit = d
				break
			}
		}

		o := outcome
		h := hit
		labels = append(labels, domain.Label{
			Symbol:    symbol,
			Date:      bars[t].Date,
			TBOutcome: &o,
			TBTime:    &h,
		})
	}

	if err := s.labels.UpsertTripleBarrier(ctx, labels); err != nil {
		return TripleBarrierResult{}, fmt.Errorf("upsert barrier labels for %s: %w", symbol, err)
	}
	return TripleBarrierResult{Symbol: symbol, Labeled: len(labels)}, nil
}

// ExplosionStats aggregates explosive labels per symbol. Nil symbols means
// the whole universe.
func (s *Service) ExplosionStats(ctx context.Context, symbols []string) ([]domain.ExplosionStat, error) {
	_, span := s.tracer.Start(ctx, "labeler.explosion-stats")
	defer span.End()

	if symbols == nil {
		symbols = []string{}
	}
	return s.labels.ExplosionStats(ctx, symbols)
}

// Labels returns a symbol's full label history in date order.
func (s *Service) Labels(ctx context.Context, symbol string) ([]domain.Label, error) {
	_, span := s.tracer.Start(ctx, "labeler.get-labels")
	defer span.End()

	return s.labels.GetLabels(ctx, symbol)
}

func (s *Service) thresholdFor(class domain.AssetClass, override *float64) float64 {
	if override != nil && *override > 0 {
		return *override
	}
	if class == domain.AssetClassCrypto {
		return s.cfg.ThresholdCrypto
	}
	return s.cfg.ThresholdEquity
}
