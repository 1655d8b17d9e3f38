package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"alpha-hunter/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"
)

const (
	// Trades target a ten-day horizon, so a year holds roughly 25
	// independent periods.
	periodsPerYear  = 25
	horizonFraction = 10.0 / 365.0
)

type AnalyzerConfig struct {
	RiskFreeRate float64
}

// Analyzer reduces a set of closed trades to a performance report.
type Analyzer struct {
	tracer trace.Tracer
	cfg    AnalyzerConfig
}

func NewAnalyzer(tracer trace.Tracer, cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{tracer: tracer, cfg: cfg}
}

// Analyze computes aggregate statistics over closed trades. Open trades
// are ignored. An empty input yields a zeroed report with capital fields
// set, never an error.
func (a *Analyzer) Analyze(ctx context.Context, trades []domain.Trade, initialCapital float64) *domain.PerformanceReport {
	_, span := a.tracer.Start(ctx, "analyzer.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("trades", len(trades)))

	report := &domain.PerformanceReport{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		ExitReasons:    map[domain.ExitReason]int{},
		ByConviction:   map[domain.ConvictionLevel]domain.ConvictionStats{},
		ByExitMonth:    map[string]domain.MonthStats{},
		ByScoreBucket:  map[string]domain.BucketStats{},
	}

	closed := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == domain.TradeClosed && t.ReturnPct != nil && t.PnL != nil {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return report
	}

	returns := make([]float64, len(closed))
	holding := make([]float64, len(closed))
	var winners, losers []float64
	var grossWin, grossLoss, totalPnL float64
	for i, t := range closed {
		r := *t.ReturnPct
		returns[i] = r
		if t.HoldingDays != nil {
			holding[i] = float64(*t.HoldingDays)
		}
		totalPnL += *t.PnL
		switch {
		case r > 0:
			winners = append(winners, r)
			grossWin += *t.PnL
		case r < 0:
			losers = append(losers, r)
			grossLoss += -*t.PnL
		}
		if t.ExitReason != nil {
			report.ExitReasons[*t.ExitReason]++
		}
	}

	report.TotalTrades = len(closed)
	report.WinningTrades = len(winners)
	report.LosingTrades = len(losers)
	report.HitRate = float64(len(winners)) / float64(len(closed))
	report.AvgReturn = stat.Mean(returns, nil)
	report.MedianReturn = median(returns)
	report.StdReturn = sampleStd(returns)
	report.AvgWinner = meanOrZero(winners)
	report.AvgLoser = meanOrZero(losers)
	report.LargestWin = maxOrZero(winners)
	report.LargestLoss = minOrZero(losers)
	report.WinLossRatio = ratio(report.AvgWinner, math.Abs(report.AvgLoser))

	report.TotalPnL = totalPnL
	report.FinalCapital = initialCapital + totalPnL
	if initialCapital > 0 {
		report.TotalReturnPct = totalPnL / initialCapital
	}

	report.SharpeRatio = a.sharpe(returns)
	report.SortinoRatio = a.sortino(returns)
	report.ProfitFactor = ratio(grossWin, grossLoss)
	report.Expectancy = report.HitRate*report.AvgWinner + (1-report.HitRate)*report.AvgLoser
	report.MaxDrawdown, report.DrawdownDays = drawdown(closed, initialCapital)

	report.AvgHoldingDays = stat.Mean(holding, nil)
	report.MedianHoldingDays = median(holding)
	report.MaxConsecWins, report.MaxConsecLosses = streaks(closed)

	a.breakdowns(report, closed)
	return report
}

// sharpe is the annualized excess return over the per-period risk-free
// rate, scaled by the sample deviation of trade returns.
func (a *Analyzer) sharpe(returns []float64) float64 {
	std := sampleStd(returns)
	if std == 0 {
		return 0
	}
	rfPeriod := math.Pow(1+a.cfg.RiskFreeRate, horizonFraction) - 1
	return (stat.Mean(returns, nil) - rfPeriod) / std * math.Sqrt(periodsPerYear)
}

// sortino penalizes only downside deviation. With no losing trades the
// ratio is reported as +Inf rather than invented.
func (a *Analyzer) sortino(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	std := sampleStd(downside)
	if len(downside) == 0 || std == 0 {
		return math.Inf(1)
	}
	rfPeriod := math.Pow(1+a.cfg.RiskFreeRate, horizonFraction) - 1
	return (stat.Mean(returns, nil) - rfPeriod) / std * math.Sqrt(periodsPerYear)
}

// drawdown walks the equity curve in exit order and returns the deepest
// peak-to-trough decline as a positive fraction plus the longest
// underwater stretch. The stretch is measured in calendar days between
// the last equity peak and an underwater exit, not in trade counts.
func drawdown(closed []domain.Trade, initialCapital float64) (float64, int) {
	ordered := make([]domain.Trade, len(closed))
	copy(ordered, closed)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitDate.Before(*ordered[j].ExitDate)
	})

	equity := initialCapital
	peak := initialCapital
	var peakDate time.Time
	if len(ordered) > 0 {
		peakDate = *ordered[0].ExitDate
	}

	maxDD := 0.0
	maxDays := 0
	underwater := false
	for _, t := range ordered {
		equity += *t.PnL
		if equity >= peak {
			peak = equity
			peakDate = *t.ExitDate
			underwater = false
			continue
		}
		if !underwater {
			underwater = true
		}
		if peak > 0 {
			if dd := (equity - peak) / peak; dd < maxDD {
				maxDD = dd
			}
		}
		if days := int(t.ExitDate.Sub(peakDate).Hours() / 24); days > maxDays {
			maxDays = days
		}
	}
	return math.Abs(maxDD), maxDays
}

func streaks(closed []domain.Trade) (maxWins, maxLosses int) {
	ordered := make([]domain.Trade, len(closed))
	copy(ordered, closed)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitDate.Before(*ordered[j].ExitDate)
	})

	wins, losses := 0, 0
	for _, t := range ordered {
		switch {
		case *t.ReturnPct > 0:
			wins++
			losses = 0
		case *t.ReturnPct < 0:
			losses++
			wins = 0
		default:
			wins, losses = 0, 0
		}
		if wins > maxWins {
			maxWins = wins
		}
		if losses > maxLosses {
			maxLosses = losses
		}
	}
	return maxWins, maxLosses
}

func (a *Analyzer) breakdowns(report *domain.PerformanceReport, closed []domain.Trade) {
	type acc struct {
		returns []float64
		pnl     float64
		wins    int
	}

	byConviction := map[domain.ConvictionLevel]*acc{}
	byMonth := map[string]*acc{}
	byBucket := map[string]*acc{}

	for _, t := range closed {
		r := *t.ReturnPct
		add := func(m map[string]*acc, key string) {
			if m[key] == nil {
				m[key] = &acc{}
			}
			m[key].returns = append(m[key].returns, r)
			m[key].pnl += *t.PnL
			if r > 0 {
				m[key].wins++
			}
		}

		if byConviction[t.Conviction] == nil {
			byConviction[t.Conviction] = &acc{}
		}
		c := byConviction[t.Conviction]
		c.returns = append(c.returns, r)
		c.pnl += *t.PnL
		if r > 0 {
			c.wins++
		}

		add(byMonth, t.ExitDate.Format("2006-01"))

		if bucket := scoreBucket(t.QuantumScore); bucket != "" {
			add(byBucket, bucket)
		}
	}

	for level, c := range byConviction {
		report.ByConviction[level] = domain.ConvictionStats{
			Count:     len(c.returns),
			HitRate:   float64(c.wins) / float64(len(c.returns)),
			AvgReturn: stat.Mean(c.returns, nil),
			TotalPnL:  c.pnl,
		}
	}
	for month, c := range byMonth {
		report.ByExitMonth[month] = domain.MonthStats{
			Count:      len(c.returns),
			TotalPnL:   c.pnl,
			MeanReturn: stat.Mean(c.returns, nil),
		}
	}
	for bucket, c := range byBucket {
		report.ByScoreBucket[bucket] = domain.BucketStats{
			Count:      len(c.returns),
			MeanReturn: stat.Mean(c.returns, nil),
			StdReturn:  sampleStd(c.returns),
			HitRate:    float64(c.wins) / float64(len(c.returns)),
		}
	}
}

func scoreBucket(score int) string {
	switch {
	case score >= 100:
		return "100"
	case score >= 90:
		return "90-99"
	case score >= 80:
		return "80-89"
	case score >= 70:
		return "70-79"
	default:
		return ""
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func maxOrZero(values []float64) float64 {
	out := 0.0
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}

func minOrZero(values []float64) float64 {
	out := 0.0
	for _, v := range values {
		if v < out {
			out = v
		}
	}
	return out
}

// ratio guards the gross-profit style quotients: a zero denominator with
// positive numerator reports +Inf, both zero reports 0.
func ratio(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return num / den
}

// FormatReport renders the report for terminal output.
func FormatReport(r *domain.PerformanceReport) string {
	out := fmt.Sprintf(`Backtest Performance
====================
Trades:          %d (%d wins / %d losses, hit rate %.1f%%)
Avg return:      %.2f%%   median %.2f%%   std %.2f%%
Avg winner:      %.2f%%   avg loser %.2f%%   W/L ratio %.2f
Capital:         %.2f -> %.2f (%.2f%%)
Sharpe:          %.2f   Sortino %s
Profit factor:   %s   expectancy %.4f
Max drawdown:    %.2f%% over %d days
Holding days:    avg %.1f, median %.1f
Streaks:         %d consecutive wins, %d consecutive losses
`,
		r.TotalTrades, r.WinningTrades, r.LosingTrades, r.HitRate*100,
		r.AvgReturn*100, r.MedianReturn*100, r.StdReturn*100,
		r.AvgWinner*100, r.AvgLoser*100, r.WinLossRatio,
		r.InitialCapital, r.FinalCapital, r.TotalReturnPct*100,
		r.SharpeRatio, formatMaybeInf(r.SortinoRatio),
		formatMaybeInf(r.ProfitFactor), r.Expectancy,
		r.MaxDrawdown*100, r.DrawdownDays,
		r.AvgHoldingDays, r.MedianHoldingDays,
		r.MaxConsecWins, r.MaxConsecLosses,
	)

	if len(r.ByConviction) > 0 {
		out += "\nBy conviction:\n"
		for _, level := range []domain.ConvictionLevel{domain.ConvictionMax, domain.ConvictionHigh, domain.ConvictionMed, domain.ConvictionLow} {
			if s, ok := r.ByConviction[level]; ok {
				out += fmt.Sprintf("  %-7s %3d trades, hit rate %.1f%%, avg %.2f%%, pnl %.2f\n",
					level, s.Count, s.HitRate*100, s.AvgReturn*100, s.TotalPnL)
			}
		}
	}
	if len(r.ByScoreBucket) > 0 {
		out += "\nBy score bucket:\n"
		for _, bucket := range []string{"70-79", "80-89", "90-99", "100"} {
			if s, ok := r.ByScoreBucket[bucket]; ok {
				out += fmt.Sprintf("  %-6s %3d trades, hit rate %.1f%%, avg %.2f%%\n",
					bucket, s.Count, s.HitRate*100, s.MeanReturn*100)
			}
		}
	}
	if len(r.ExitReasons) > 0 {
		out += "\nExits:\n"
		for _, reason := range []domain.ExitReason{domain.ExitProfitTarget, domain.ExitStopLoss, domain.ExitTimeStop, domain.ExitEndOfBacktest} {
			if n, ok := r.ExitReasons[reason]; ok {
				out += fmt.Sprintf("  %-16s %d\n", reason, n)
			}
		}
	}
	return out
}

func formatMaybeInf(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
