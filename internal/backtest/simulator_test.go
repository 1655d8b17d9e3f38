package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"alpha-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var base = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return base.AddDate(0, 0, n) }

type predictionSourceStub struct {
	byDate map[time.Time][]domain.Prediction
}

func (s *predictionSourceStub) ListDates(_ context.Context, from, to time.Time, minScore int) ([]time.Time, error) {
	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, p := range s.byDate[d] {
			if p.QuantumScore >= minScore {
				dates = append(dates, d)
				break
			}
		}
	}
	return dates, nil
}

func (s *predictionSourceStub) ListForDate(_ context.Context, date time.Time, minScore int) ([]domain.Prediction, error) {
	var out []domain.Prediction
	for _, p := range s.byDate[date] {
		if p.QuantumScore >= minScore {
			out = append(out, p)
		}
	}
	return out, nil
}

type priceSourceStub struct {
	bars       map[string][]domain.PriceBar
	lastBarErr map[string]error
}

func (s *priceSourceStub) GetBar(_ context.Context, symbol string, date time.Time) (*domain.PriceBar, error) {
	for _, b := range s.bars[symbol] {
		if b.Date.Equal(date) {
			bar := b
			return &bar, nil
		}
	}
	return nil, nil
}

func (s *priceSourceStub) GetNextBar(_ context.Context, symbol string, after time.Time) (*domain.PriceBar, error) {
	for _, b := range s.bars[symbol] {
		if b.Date.After(after) {
			bar := b
			return &bar, nil
		}
	}
	return nil, nil
}

func (s *priceSourceStub) GetLastBar(_ context.Context, symbol string, onOrBefore time.Time) (*domain.PriceBar, error) {
	if err := s.lastBarErr[symbol]; err != nil {
		return nil, err
	}
	var found *domain.PriceBar
	for i := range s.bars[symbol] {
		if !s.bars[symbol][i].Date.After(onOrBefore) {
			found = &s.bars[symbol][i]
		}
	}
	return found, nil
}

func flatBars(symbol string, days int, close float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, days)
	for i := range bars {
		bars[i] = domain.PriceBar{
			Symbol: symbol,
			Date:   day(i),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
		}
	}
	return bars
}

func signal(symbol string, d time.Time, score int) domain.Prediction {
	return domain.Prediction{
		Symbol:          symbol,
		Date:            d,
		QuantumScore:    score,
		ConvictionLevel: domain.ConvictionFromScore(score),
	}
}

func newTestSimulator(preds *predictionSourceStub, prices *priceSourceStub, cfg Config) *Simulator {
	return NewSimulator(trace.NewNoopTracerProvider().Tracer("test"), preds, prices, cfg)
}

func TestRunProfitTargetExit(t *testing.T) {
	bars := flatBars("ACME", 12, 100)
	for i := 6; i < 12; i++ {
		bars[i].Close = 160
	}
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0): {signal("ACME", day(0), 85)},
		day(6): {signal("GHOST", day(6), 75)}, // no price data, entry skipped
	}}
	sim := newTestSimulator(preds, &priceSourceStub{bars: map[string][]domain.PriceBar{"ACME": bars}}, Config{})

	res, err := sim.Run(context.Background(), day(0), day(11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	trade := res.Trades[0]
	if !trade.EntryDate.Equal(day(1)) || trade.EntryPrice != 100 {
		t.Fatalf("expected entry at day 1 open 100, got %s @ %.2f", trade.EntryDate.Format("2006-01-02"), trade.EntryPrice)
	}
	if *trade.ExitReason != domain.ExitProfitTarget {
		t.Fatalf("expected profit_target exit, got %s", *trade.ExitReason)
	}
	if !trade.ExitDate.Equal(day(6)) || *trade.ExitPrice != 160 {
		t.Fatalf("expected exit at day 6 close 160, got %s @ %.2f", trade.ExitDate.Format("2006-01-02"), *trade.ExitPrice)
	}
	if math.Abs(*trade.ReturnPct-0.6) > 1e-12 {
		t.Fatalf("expected 60%% return, got %v", *trade.ReturnPct)
	}
	if res.EntriesSkipped != 1 {
		t.Fatalf("expected the unpriceable signal to be skipped, got %d", res.EntriesSkipped)
	}
	wantFinal := res.InitialCapital + *res.Trades[0].PnL
	if math.Abs(res.FinalCapital-wantFinal) > 1e-6 {
		t.Fatalf("capital not conserved: final %.2f want %.2f", res.FinalCapital, wantFinal)
	}
}

func TestRunStopLossExit(t *testing.T) {
	bars := flatBars("ACME", 12, 100)
	for i := 5; i < 12; i++ {
		bars[i].Close = 90
	}
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0): {signal("ACME", day(0), 90)},
		day(5): {signal("ACME", day(5), 90)}, // triggers the exit pass, then re-enters
	}}
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{"ACME": bars}}
	sim := newTestSimulator(preds, prices, Config{})

	res, err := sim.Run(context.Background(), day(0), day(11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected stop-loss plus forced close, got %d trades", len(res.Trades))
	}
	first := res.Trades[0]
	if *first.ExitReason != domain.ExitStopLoss {
		t.Fatalf("expected stop_loss exit, got %s", *first.ExitReason)
	}
	if math.Abs(*first.ReturnPct+0.10) > 1e-12 {
		t.Fatalf("expected -10%% return, got %v", *first.ReturnPct)
	}
	if *first.HoldingDays != 4 {
		t.Fatalf("expected 4 calendar holding days, got %d", *first.HoldingDays)
	}
}

func TestRunTimeStopFreesSlotForNewEntry(t *testing.T) {
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0):  {signal("ACME", day(0), 80)},
		day(20): {signal("BETA", day(20), 80)},
	}}
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{
		"ACME": flatBars("ACME", 25, 100),
		"BETA": flatBars("BETA", 25, 50),
	}}
	sim := newTestSimulator(preds, prices, Config{MaxPositions: 1})

	res, err := sim.Run(context.Background(), day(0), day(24))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	if *res.Trades[0].ExitReason != domain.ExitTimeStop {
		t.Fatalf("expected time_stop for ACME, got %s", *res.Trades[0].ExitReason)
	}
	if res.Trades[1].Symbol != "BETA" || *res.Trades[1].ExitReason != domain.ExitEndOfBacktest {
		t.Fatalf("expected BETA to fill the freed slot and close at end, got %+v", res.Trades[1])
	}
	if res.EntriesSkipped != 0 {
		t.Fatalf("expected no skips, got %d", res.EntriesSkipped)
	}
}

func TestRunHonorsPositionLimitAndSizesSequentially(t *testing.T) {
	var sigs []domain.Prediction
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{}}
	symbols := []string{"S01", "S02", "S03", "S04", "S05", "S06", "S07", "S08", "S09", "S10", "S11", "S12"}
	for _, sym := range symbols {
		sigs = append(sigs, signal(sym, day(0), 95))
		prices.bars[sym] = flatBars(sym, 6, 100)
	}
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{day(0): sigs}}
	sim := newTestSimulator(preds, prices, Config{})

	res, err := sim.Run(context.Background(), day(0), day(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 10 {
		t.Fatalf("expected the position limit to cap entries at 10, got %d", len(res.Trades))
	}
	if res.EntriesSkipped != 2 {
		t.Fatalf("expected 2 skipped signals, got %d", res.EntriesSkipped)
	}

	// Each fill reserves capital immediately, so successive position sizes
	// shrink.
	for i := 1; i < len(res.Trades); i++ {
		if res.Trades[i].PositionSize >= res.Trades[i-1].PositionSize {
			t.Fatalf("position sizes should decrease: %.2f then %.2f",
				res.Trades[i-1].PositionSize, res.Trades[i].PositionSize)
		}
	}
	if math.Abs(res.Trades[0].PositionSize-0.02*res.InitialCapital) > 1e-9 {
		t.Fatalf("first position should be 2%% of initial capital, got %.2f", res.Trades[0].PositionSize)
	}
	if math.Abs(res.FinalCapital-res.InitialCapital) > 1e-6 {
		t.Fatalf("flat prices should conserve capital exactly, final %.2f", res.FinalCapital)
	}
}

func TestRunDefersExitWhenBarMissing(t *testing.T) {
	bars := flatBars("ACME", 12, 100)
	for i := 5; i < 12; i++ {
		bars[i].Close = 200
	}
	// The symbol does not trade on day 5, so the profit exit waits for
	// day 8.
	trimmed := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Date.Equal(day(5)) {
			continue
		}
		trimmed = append(trimmed, b)
	}
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0): {signal("ACME", day(0), 85)},
		day(5): {signal("OTHER", day(5), 85)},
		day(8): {signal("OTHER", day(8), 85)},
	}}
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{
		"ACME":  trimmed,
		"OTHER": flatBars("OTHER", 12, 40),
	}}
	sim := newTestSimulator(preds, prices, Config{})

	res, err := sim.Run(context.Background(), day(0), day(11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var acme *domain.Trade
	for i := range res.Trades {
		if res.Trades[i].Symbol == "ACME" {
			acme = &res.Trades[i]
		}
	}
	if acme == nil {
		t.Fatalf("expected a closed ACME trade")
	}
	if *acme.ExitReason != domain.ExitProfitTarget || !acme.ExitDate.Equal(day(8)) {
		t.Fatalf("expected deferred profit exit on day 8, got %s on %s",
			*acme.ExitReason, acme.ExitDate.Format("2006-01-02"))
	}
}

func TestRunLastDaySignalNeverEntersAfterWindow(t *testing.T) {
	// EDGE trades through day 6, but the window ends on day 5: the
	// fill must fall back to the signal day's close instead of the
	// day-6 open. LATE only has a bar after the window and is skipped.
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(5): {signal("EDGE", day(5), 90), signal("LATE", day(5), 90)},
	}}
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{
		"EDGE": flatBars("EDGE", 7, 100),
		"LATE": {{Symbol: "LATE", Date: day(6), Open: 40, High: 40, Low: 40, Close: 40}},
	}}
	sim := newTestSimulator(preds, prices, Config{})

	res, err := sim.Run(context.Background(), day(0), day(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 1 || res.Trades[0].Symbol != "EDGE" {
		t.Fatalf("expected only EDGE to trade, got %+v", res.Trades)
	}
	trade := res.Trades[0]
	if !trade.EntryDate.Equal(day(5)) || trade.EntryPrice != 100 {
		t.Fatalf("expected signal-day fill at 100, got %s @ %.2f",
			trade.EntryDate.Format("2006-01-02"), trade.EntryPrice)
	}
	if trade.ExitDate.Before(trade.EntryDate) {
		t.Fatalf("trade closed before it was entered: entry %s exit %s",
			trade.EntryDate.Format("2006-01-02"), trade.ExitDate.Format("2006-01-02"))
	}
	if *trade.ExitReason != domain.ExitEndOfBacktest || *trade.HoldingDays != 0 {
		t.Fatalf("expected same-day forced close, got %s after %d days",
			*trade.ExitReason, *trade.HoldingDays)
	}
	if res.EntriesSkipped != 1 {
		t.Fatalf("expected the out-of-window signal to be skipped, got %d", res.EntriesSkipped)
	}
}

func TestRunUnpriceableForcedCloseLeavesTradeUnclosed(t *testing.T) {
	// HOLE fills at the day-1 open but never prints a usable close, so
	// the forced close at the end of the window has nothing to settle
	// against. The trade stays unclosed with its capital committed.
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0): {signal("HOLE", day(0), 90)},
	}}
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{
		"HOLE": {{Symbol: "HOLE", Date: day(1), Open: 100, High: 100, Low: 100, Close: 0}},
	}}
	sim := newTestSimulator(preds, prices, Config{})

	res, err := sim.Run(context.Background(), day(0), day(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected no closed trades, got %+v", res.Trades)
	}
	wantFinal := res.InitialCapital - 0.02*res.InitialCapital
	if math.Abs(res.FinalCapital-wantFinal) > 1e-6 {
		t.Fatalf("committed capital must stay out of the final tally: final %.2f want %.2f",
			res.FinalCapital, wantFinal)
	}
}

func TestRunForcedClosePriceErrorSkipsOnlyThatTrade(t *testing.T) {
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0): {signal("BAD", day(0), 90), signal("GOOD", day(0), 90)},
	}}
	prices := &priceSourceStub{
		bars: map[string][]domain.PriceBar{
			"BAD":  flatBars("BAD", 4, 100),
			"GOOD": flatBars("GOOD", 4, 50),
		},
		lastBarErr: map[string]error{"BAD": errors.New("connection reset")},
	}
	sim := newTestSimulator(preds, prices, Config{})

	res, err := sim.Run(context.Background(), day(0), day(3))
	if err != nil {
		t.Fatalf("a per-symbol price failure must not abort the run: %v", err)
	}
	if len(res.Trades) != 1 || res.Trades[0].Symbol != "GOOD" {
		t.Fatalf("expected only GOOD to close, got %+v", res.Trades)
	}
	if *res.Trades[0].ExitReason != domain.ExitEndOfBacktest {
		t.Fatalf("expected end_of_backtest close for GOOD, got %s", *res.Trades[0].ExitReason)
	}
	if math.Abs(res.FinalCapital-98000) > 1e-6 {
		t.Fatalf("expected BAD's stake to stay committed, final %.2f", res.FinalCapital)
	}
}

func TestRunSameDaySignalsFillByScoreRank(t *testing.T) {
	// Three signals arrive out of score order; with two slots only the
	// two strongest may enter.
	preds := &predictionSourceStub{byDate: map[time.Time][]domain.Prediction{
		day(0): {
			signal("CCC", day(0), 72),
			signal("AAA", day(0), 95),
			signal("BBB", day(0), 85),
		},
	}}
	prices := &priceSourceStub{bars: map[string][]domain.PriceBar{
		"AAA": flatBars("AAA", 6, 100),
		"BBB": flatBars("BBB", 6, 50),
		"CCC": flatBars("CCC", 6, 20),
	}}
	sim := newTestSimulator(preds, prices, Config{MaxPositions: 2})

	res, err := sim.Run(context.Background(), day(0), day(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 filled trades, got %d", len(res.Trades))
	}
	if res.Trades[0].Symbol != "AAA" || res.Trades[1].Symbol != "BBB" {
		t.Fatalf("expected the 95 and 85 scores to claim the slots, got %s and %s",
			res.Trades[0].Symbol, res.Trades[1].Symbol)
	}
	if res.EntriesSkipped != 1 {
		t.Fatalf("expected the weakest signal to be skipped, got %d", res.EntriesSkipped)
	}
}
