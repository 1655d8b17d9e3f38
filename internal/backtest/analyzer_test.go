package backtest

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"alpha-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func closedTrade(symbol string, entry, exit time.Time, entryPrice, size float64, ret float64, score int, reason domain.ExitReason) domain.Trade {
	t := domain.Trade{
		Symbol:       symbol,
		EntryDate:    entry,
		EntryPrice:   entryPrice,
		PositionSize: size,
		QuantumScore: score,
		Conviction:   domain.ConvictionFromScore(score),
		Status:       domain.TradeOpen,
	}
	t.Close(exit, entryPrice*(1+ret), reason)
	return t
}

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(trace.NewNoopTracerProvider().Tracer("test"), AnalyzerConfig{})
}

func TestAnalyzeEmptyInput(t *testing.T) {
	report := newTestAnalyzer().Analyze(context.Background(), nil, 100000)
	if report.TotalTrades != 0 {
		t.Fatalf("expected zero trades, got %d", report.TotalTrades)
	}
	if report.InitialCapital != 100000 || report.FinalCapital != 100000 {
		t.Fatalf("expected capital passthrough, got %.2f -> %.2f", report.InitialCapital, report.FinalCapital)
	}
	if report.ExitReasons == nil || report.ByConviction == nil || report.ByExitMonth == nil || report.ByScoreBucket == nil {
		t.Fatalf("breakdown maps must be initialized")
	}
}

func TestAnalyzeBasicStats(t *testing.T) {
	trades := []domain.Trade{
		closedTrade("A", day(0), day(5), 100, 2000, 0.50, 95, domain.ExitProfitTarget),
		closedTrade("B", day(1), day(6), 50, 2000, -0.10, 75, domain.ExitStopLoss),
		closedTrade("C", day(2), day(16), 20, 2000, 0.20, 85, domain.ExitTimeStop),
	}
	report := newTestAnalyzer().Analyze(context.Background(), trades, 100000)

	if report.TotalTrades != 3 || report.WinningTrades != 2 || report.LosingTrades != 1 {
		t.Fatalf("unexpected counts: %d total, %d wins, %d losses",
			report.TotalTrades, report.WinningTrades, report.LosingTrades)
	}
	if math.Abs(report.HitRate-2.0/3.0) > 1e-12 {
		t.Fatalf("unexpected hit rate %v", report.HitRate)
	}
	if math.Abs(report.AvgReturn-0.2) > 1e-12 {
		t.Fatalf("unexpected avg return %v", report.AvgReturn)
	}
	if math.Abs(report.MedianReturn-0.2) > 1e-12 {
		t.Fatalf("unexpected median return %v", report.MedianReturn)
	}
	if math.Abs(report.LargestWin-0.5) > 1e-12 || math.Abs(report.LargestLoss+0.1) > 1e-12 {
		t.Fatalf("unexpected extremes: %v / %v", report.LargestWin, report.LargestLoss)
	}

	// PnL: +1000, -200, +400.
	if math.Abs(report.TotalPnL-1200) > 1e-9 {
		t.Fatalf("unexpected total pnl %v", report.TotalPnL)
	}
	if math.Abs(report.FinalCapital-101200) > 1e-9 {
		t.Fatalf("unexpected final capital %v", report.FinalCapital)
	}
	if math.Abs(report.ProfitFactor-7) > 1e-9 {
		t.Fatalf("expected profit factor 7, got %v", report.ProfitFactor)
	}

	if report.ExitReasons[domain.ExitProfitTarget] != 1 || report.ExitReasons[domain.ExitStopLoss] != 1 || report.ExitReasons[domain.ExitTimeStop] != 1 {
		t.Fatalf("unexpected exit reasons: %+v", report.ExitReasons)
	}
	if s := report.ByConviction[domain.ConvictionMax]; s.Count != 1 || s.HitRate != 1 {
		t.Fatalf("unexpected MAX stats: %+v", s)
	}
	if s := report.ByScoreBucket["70-79"]; s.Count != 1 || s.HitRate != 0 {
		t.Fatalf("unexpected 70-79 bucket: %+v", s)
	}
	month := day(5).Format("2006-01")
	if report.ByExitMonth[month].Count == 0 {
		t.Fatalf("expected exit-month stats for %s", month)
	}
	if report.AvgHoldingDays != (5+5+14)/3.0 {
		t.Fatalf("unexpected avg holding days %v", report.AvgHoldingDays)
	}
}

func TestAnalyzeSentinelsWithNoLosers(t *testing.T) {
	trades := []domain.Trade{
		closedTrade("A", day(0), day(3), 100, 1000, 0.50, 90, domain.ExitProfitTarget),
		closedTrade("B", day(0), day(4), 100, 1000, 0.60, 90, domain.ExitProfitTarget),
	}
	report := newTestAnalyzer().Analyze(context.Background(), trades, 100000)

	if !math.IsInf(report.SortinoRatio, 1) {
		t.Fatalf("expected +Inf sortino with no losers, got %v", report.SortinoRatio)
	}
	if !math.IsInf(report.ProfitFactor, 1) {
		t.Fatalf("expected +Inf profit factor with no gross loss, got %v", report.ProfitFactor)
	}
	if report.WinLossRatio != math.Inf(1) {
		t.Fatalf("expected +Inf win/loss ratio, got %v", report.WinLossRatio)
	}

	// The printer must render the sentinels without panicking.
	text := FormatReport(report)
	if !strings.Contains(text, "inf") {
		t.Fatalf("expected formatted report to carry inf sentinels:\n%s", text)
	}
}

func TestAnalyzeSharpeWithZeroRiskFreeRate(t *testing.T) {
	trades := []domain.Trade{
		closedTrade("A", day(0), day(3), 100, 1000, 0.10, 90, domain.ExitProfitTarget),
		closedTrade("B", day(0), day(4), 100, 1000, 0.20, 90, domain.ExitProfitTarget),
		closedTrade("C", day(0), day(5), 100, 1000, 0.30, 90, domain.ExitProfitTarget),
	}
	report := NewAnalyzer(trace.NewNoopTracerProvider().Tracer("test"), AnalyzerConfig{RiskFreeRate: 0}).
		Analyze(context.Background(), trades, 100000)

	// mean 0.2, sample std 0.1, no excess-return haircut: 2 * sqrt(25).
	if math.Abs(report.SharpeRatio-10) > 1e-9 {
		t.Fatalf("expected sharpe 10 at zero risk-free rate, got %v", report.SharpeRatio)
	}
}

func TestAnalyzeDrawdown(t *testing.T) {
	trades := []domain.Trade{
		closedTrade("A", day(0), day(1), 100, 1000, 1.0, 90, domain.ExitProfitTarget),   // +1000, peak
		closedTrade("B", day(0), day(3), 100, 5000, -0.10, 90, domain.ExitStopLoss),     // -500
		closedTrade("C", day(0), day(7), 100, 5000, -0.10, 90, domain.ExitStopLoss),     // -500
		closedTrade("D", day(0), day(9), 100, 1000, 2.0, 90, domain.ExitProfitTarget),   // +2000, recovers
	}
	report := newTestAnalyzer().Analyze(context.Background(), trades, 100000)

	// Equity: 101000 peak, 100500, 100000 trough, 102000. The decline
	// is reported as a positive magnitude.
	wantDD := (101000.0 - 100000.0) / 101000.0
	if math.Abs(report.MaxDrawdown-wantDD) > 1e-12 {
		t.Fatalf("expected drawdown %.6f, got %.6f", wantDD, report.MaxDrawdown)
	}
	if report.MaxDrawdown < 0 {
		t.Fatalf("drawdown must be non-negative, got %v", report.MaxDrawdown)
	}
	// Underwater from the day-1 peak through the day-7 trough.
	if report.DrawdownDays != 6 {
		t.Fatalf("expected 6 underwater days, got %d", report.DrawdownDays)
	}
	if report.MaxConsecLosses != 2 || report.MaxConsecWins != 1 {
		t.Fatalf("unexpected streaks: %d wins, %d losses", report.MaxConsecWins, report.MaxConsecLosses)
	}
}
