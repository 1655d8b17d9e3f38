package domain

// ConvictionStats summarizes closed trades sharing a conviction level.
type ConvictionStats struct {
	Count     int     `json:"count"`
	HitRate   float64 `json:"hit_rate"`
	AvgReturn float64 `json:"avg_return"`
	TotalPnL  float64 `json:"total_pnl"`
}

// MonthStats summarizes closed trades sharing an exit month (YYYY-MM).
type MonthStats struct {
	Count      int     `json:"count"`
	TotalPnL   float64 `json:"total_pnl"`
	MeanReturn float64 `json:"mean_return"`
}

// BucketStats summarizes closed trades sharing a quantum score bucket.
type BucketStats struct {
	Count      int     `json:"count"`
	MeanReturn float64 `json:"mean_return"`
	StdReturn  float64 `json:"std_return"`
	HitRate    float64 `json:"hit_rate"`
}

// PerformanceReport is the aggregate statistics for a finished trade set.
// Purely derived; it has no lifecycle of its own.
type PerformanceReport struct {
	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	HitRate      float64 `json:"hit_rate"`
	AvgReturn    float64 `json:"avg_return"`
	MedianReturn float64 `json:"median_return"`
	StdReturn    float64 `json:"std_return"`
	AvgWinner    float64 `json:"avg_winner"`
	AvgLoser     float64 `json:"avg_loser"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	WinLossRatio float64 `json:"win_loss_ratio"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`

	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	// MaxDrawdown is the deepest peak-to-trough equity decline as a
	// positive fraction. DrawdownDays is the longest underwater
	// stretch in calendar days.
	MaxDrawdown  float64 `json:"max_drawdown"`
	DrawdownDays int     `json:"drawdown_days"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`

	AvgHoldingDays    float64 `json:"avg_holding_days"`
	MedianHoldingDays float64 `json:"median_holding_days"`
	MaxConsecWins     int     `json:"max_consec_wins"`
	MaxConsecLosses   int     `json:"max_consec_losses"`

	ExitReasons   map[ExitReason]int                  `json:"exit_reasons"`
	ByConviction  map[ConvictionLevel]ConvictionStats `json:"by_conviction"`
	ByExitMonth   map[string]MonthStats               `json:"by_exit_month"`
	ByScoreBucket map[string]BucketStats              `json:"by_score_bucket"`
}
