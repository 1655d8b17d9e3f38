package backtest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"alpha-hunter/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PredictionSource interface {
	ListDates(ctx context.Context, from, to time.Time, minScore int) ([]time.Time, error)
	ListForDate(ctx context.Context, date time.Time, minScore int) ([]domain.Prediction, error)
}

type PriceSource interface {
	GetBar(ctx context.Context, symbol string, date time.Time) (*domain.PriceBar, error)
	GetNextBar(ctx context.Context, symbol string, after time.Time) (*domain.PriceBar, error)
	GetLastBar(ctx context.Context, symbol string, onOrBefore time.Time) (*domain.PriceBar, error)
}

type Config struct {
	InitialCapital  float64
	PositionSizePct float64
	MaxPositions    int
	MaxHoldDays     int
	ProfitTarget    float64
	StopLoss        float64
	MinScore        int
}

// Simulator replays historical predictions as a sequence of paper trades.
// Days are processed in order; each day closes positions before it opens
// new ones, so freed capital is available to the same day's signals.
type Simulator struct {
	tracer      trace.Tracer
	predictions PredictionSource
	prices      PriceSource
	cfg         Config
}

func NewSimulator(tracer trace.Tracer, predictions PredictionSource, prices PriceSource, cfg Config) *Simulator {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100000
	}
	if cfg.PositionSizePct <= 0 || cfg.PositionSizePct > 1 {
		cfg.PositionSizePct = 0.02
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = 10
	}
	if cfg.MaxHoldDays <= 0 {
		cfg.MaxHoldDays = 14
	}
	if cfg.ProfitTarget <= 0 {
		cfg.ProfitTarget = 0.50
	}
	if cfg.StopLoss >= 0 {
		cfg.StopLoss = -0.08
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 70
	}
	return &Simulator{tracer: tracer, predictions: predictions, prices: prices, cfg: cfg}
}

type Result struct {
	Trades         []domain.Trade `json:"trades"`
	InitialCapital float64        `json:"initial_capital"`
	FinalCapital   float64        `json:"final_capital"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	SignalsSeen    int            `json:"signals_seen"`
	EntriesSkipped int            `json:"entries_skipped"`
}

// Run replays every prediction between from and to. Positions still open
// after the last signal day are force-closed at the end date when a price
// is obtainable; the rest stay unclosed.
func (s *Simulator) Run(ctx context.Context, from, to time.Time) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "simulator.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("from", from.Format("2006-01-02")),
		attribute.String("to", to.Format("2006-01-02")),
	)

	dates, err := s.predictions.ListDates(ctx, from, to, s.cfg.MinScore)
	if err != nil {
		return Result{}, fmt.Errorf("list prediction dates: %w", err)
	}

	res := Result{
		InitialCapital: s.cfg.InitialCapital,
		StartDate:      from,
		EndDate:        to,
	}
	capital := s.cfg.InitialCapital
	var open []*domain.Trade

	for _, date := range dates {
		open, capital, err = s.processExits(ctx, open, capital, date, &res)
		if err != nil {
			return res, err
		}

		preds, err := s.predictions.ListForDate(ctx, date, s.cfg.MinScore)
		if err != nil {
			return res, fmt.Errorf("list predictions for %s: %w", date.Format("2006-01-02"), err)
		}
		res.SignalsSeen += len(preds)

		// Strongest signals claim the limited position slots first.
		sort.SliceStable(preds, func(i, j int) bool {
			return preds[i].QuantumScore > preds[j].QuantumScore
		})

		for i := range preds {
			if len(open) >= s.cfg.MaxPositions {
				res.EntriesSkipped += len(preds) - i
				break
			}
			if hasOpenPosition(open, preds[i].Symbol) {
				res.EntriesSkipped++
				continue
			}
			trade, err := s.tryEnter(ctx, &preds[i], capital, to)
			if err != nil {
				return res, err
			}
			if trade == nil {
				res.EntriesSkipped++
				continue
			}
			capital -= trade.PositionSize
			open = append(open, trade)
		}
	}

	// Force close whatever is still open at the end of the window.
	// A trade without an obtainable price is a data gap: it stays
	// unclosed and the rest of the loop carries on.
	for _, trade := range open {
		bar, err := s.prices.GetLastBar(ctx, trade.Symbol, to)
		if err != nil {
			log.Printf("Warning: final price for %s: %v, leaving trade unclosed", trade.Symbol, err)
			continue
		}
		if bar == nil || bar.Close <= 0 {
			log.Printf("Warning: %v for %s at backtest end, leaving trade unclosed", domain.ErrMissingPrice, trade.Symbol)
			continue
		}
		trade.Close(to, bar.Close, domain.ExitEndOfBacktest)
		capital += trade.PositionSize + *trade.PnL
		res.Trades = append(res.Trades, *trade)
	}

	res.FinalCapital = capital
	return res, nil
}

// processExits marks positions to close on this day's bar. Exit checks run
// in priority order; a missing bar defers the decision to a later day.
func (s *Simulator) processExits(ctx context.Context, open []*domain.Trade, capital float64, date time.Time, res *Result) ([]*domain.Trade, float64, error) {
	remaining := open[:0]
	for _, trade := range open {
		if !trade.EntryDate.Before(date) {
			remaining = append(remaining, trade)
			continue
		}
		bar, err := s.prices.GetBar(ctx, trade.Symbol, date)
		if err != nil {
			return nil, 0, fmt.Errorf("price for %s on %s: %w", trade.Symbol, date.Format("2006-01-02"), err)
		}
		if bar == nil {
			remaining = append(remaining, trade)
			continue
		}

		ret := trade.CurrentReturn(bar.Close)
		holding := int(date.Sub(trade.EntryDate).Hours() / 24)

		var reason domain.ExitReason
		switch {
		case ret >= s.cfg.ProfitTarget:
			reason = domain.ExitProfitTarget
		case ret <= s.cfg.StopLoss:
			reason = domain.ExitStopLoss
		case holding >= s.cfg.MaxHoldDays:
			reason = domain.ExitTimeStop
		default:
			remaining = append(remaining, trade)
			continue
		}

		trade.Close(date, bar.Close, reason)
		capital += trade.PositionSize + *trade.PnL
		res.Trades = append(res.Trades, *trade)
	}
	return remaining, capital, nil
}

func hasOpenPosition(open []*domain.Trade, symbol string) bool {
	for _, t := range open {
		if t.Symbol == symbol {
			return true
		}
	}
	return false
}

// tryEnter fills a signal at the next bar's open, falling back to the
// signal day's close when no later bar exists inside the window. Bars
// after `to` never fill: an entry past the window would be force-closed
// before it ever traded. Returns nil when the entry must be skipped.
func (s *Simulator) tryEnter(ctx context.Context, pred *domain.Prediction, capital float64, to time.Time) (*domain.Trade, error) {
	size := capital * s.cfg.PositionSizePct
	if size <= 0 || size > capital {
		return nil, nil
	}

	entryDate := pred.Date
	var entryPrice float64

	next, err := s.prices.GetNextBar(ctx, pred.Symbol, pred.Date)
	if err != nil {
		return nil, fmt.Errorf("next bar for %s: %w", pred.Symbol, err)
	}
	if next != nil && next.Date.After(to) {
		next = nil
	}
	if next != nil && next.Open > 0 {
		entryDate = next.Date
		entryPrice = next.Open
	} else {
		bar, err := s.prices.GetBar(ctx, pred.Symbol, pred.Date)
		if err != nil {
			return nil, fmt.Errorf("signal-day bar for %s: %w", pred.Symbol, err)
		}
		if bar == nil || bar.Close <= 0 {
			log.Printf("Warning: %v for %s signal on %s, skipping entry",
				domain.ErrMissingPrice, pred.Symbol, pred.Date.Format("2006-01-02"))
			return nil, nil
		}
		entryPrice = bar.Close
	}

	return &domain.Trade{
		Symbol:       pred.Symbol,
		EntryDate:    entryDate,
		EntryPrice:   entryPrice,
		PositionSize: size,
		QuantumScore: pred.QuantumScore,
		Conviction:   pred.ConvictionLevel,
		Status:       domain.TradeOpen,
	}, nil
}
