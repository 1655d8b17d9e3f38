package domain

import "time"

type AssetClass string

const (
	AssetClassEquity AssetClass = "equity"
	AssetClassCrypto AssetClass = "crypto"
)

func (a AssetClass) IsValid() bool {
	return a == AssetClassEquity || a == AssetClassCrypto
}

// PriceBar is a single daily OHLCV bar, keyed by (symbol, date).
// Immutable once written.
type PriceBar struct {
	Symbol     string     `json:"symbol"`
	Date       time.Time  `json:"date"`
	Open       float64    `json:"open"`
	High       float64    `json:"high"`
	Low        float64    `json:"low"`
	Close      float64    `json:"close"`
	Volume     float64    `json:"volume"`
	AssetClass AssetClass `json:"asset_class"`
}

// FeatureVector is a snapshot of externally computed indicator values for a
// symbol on a date. Fields are nullable: a nil field means the upstream
// pipeline could not compute it, never that it is zero.
type FeatureVector struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`

	BBWidthPct       *float64 `json:"bb_width_pct"`
	BBPosition       *float64 `json:"bb_position"`
	MASpreadPct      *float64 `json:"ma_spread_pct"`
	MAAlignmentScore *float64 `json:"ma_alignment_score"`
	ATRPct           *float64 `json:"atr_pct"`
	Volatility20D    *float64 `json:"volatility_20d"`
	VolumeRatio20D   *float64 `json:"volume_ratio_20d"`
	OBVTrend5D       *float64 `json:"obv_trend_5d"`
	SocialDelta7D    *float64 `json:"social_delta_7d"`
	TrendsDelta7D    *float64 `json:"trends_delta_7d"`
	RSI14            *float64 `json:"rsi_14"`
	MACD             *float64 `json:"macd"`

	// Crypto-only derivative features.
	FundingRateDelta7D *float64 `json:"funding_rate_delta_7d"`
	OIDelta7D          *float64 `json:"oi_delta_7d"`
}

// Label holds forward-looking outcome labels for a (symbol, date).
// Fixed-horizon labeling fills the FwdRet/IsExplosive/LeadTime fields,
// triple-barrier labeling fills TBOutcome/TBTime; both upsert into the
// same row without clobbering the other family.
type Label struct {
	Symbol       string    `json:"symbol"`
	Date         time.Time `json:"date"`
	FwdRetH      *float64  `json:"fwd_ret_h"`
	FwdRet30     *float64  `json:"fwd_ret_30"`
	IsExplosive  bool      `json:"is_explosive"`
	LeadTimeDays *int      `json:"lead_time_days"`
	TBOutcome    *int      `json:"tb_outcome"`
	TBTime       *int      `json:"tb_time"`
}

// TrainingRow is a feature vector joined with its label, the unit the
// scoring pipeline trains on. FwdRetH is always defined here.
type TrainingRow struct {
	Features    FeatureVector
	FwdRetH     float64
	IsExplosive bool
}

// ExplosionStat aggregates explosive labels for one symbol.
type ExplosionStat struct {
	Symbol       string  `json:"symbol"`
	Count        int     `json:"count"`
	MeanFwdRetH  float64 `json:"mean_fwd_ret_h"`
	MaxFwdRetH   float64 `json:"max_fwd_ret_h"`
	MeanLeadDays float64 `json:"mean_lead_days"`
}

type ConvictionLevel string

const (
	ConvictionLow  ConvictionLevel = "LOW"
	ConvictionMed  ConvictionLevel = "MED"
	ConvictionHigh ConvictionLevel = "HIGH"
	ConvictionMax  ConvictionLevel = "MAX"
)

// ConvictionFromScore maps a quantum score to its conviction bucket.
// Boundaries are MAX>=90, HIGH>=80, MED>=70, else LOW.
func ConvictionFromScore(score int) ConvictionLevel {
	switch {
	case score >= 90:
		return ConvictionMax
	case score >= 80:
		return ConvictionHigh
	case score >= 70:
		return ConvictionMed
	default:
		return ConvictionLow
	}
}

// Prediction is a scored snapshot for a (symbol, date), upserted by the
// scoring pipeline.
type Prediction struct {
	ID              int64              `json:"id"`
	Symbol          string             `json:"symbol"`
	Date            time.Time          `json:"date"`
	PredictedReturn float64            `json:"predicted_return"`
	CalibratedProb  float64            `json:"calibrated_prob"`
	QuantumScore    int                `json:"quantum_score"`
	ConvictionLevel ConvictionLevel    `json:"conviction_level"`
	Contributions   map[string]float64 `json:"contributions,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type ExitReason string

const (
	ExitProfitTarget  ExitReason = "profit_target"
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTimeStop      ExitReason = "time_stop"
	ExitEndOfBacktest ExitReason = "end_of_backtest"
)

type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is a simulated position. It is created open and closed exactly once;
// a closed trade is never reopened.
type Trade struct {
	Symbol       string          `json:"symbol"`
	EntryDate    time.Time       `json:"entry_date"`
	EntryPrice   float64         `json:"entry_price"`
	PositionSize float64         `json:"position_size"`
	QuantumScore int             `json:"quantum_score"`
	Conviction   ConvictionLevel `json:"conviction_level"`
	Status       TradeStatus     `json:"status"`
	ExitDate     *time.Time      `json:"exit_date,omitempty"`
	ExitPrice    *float64        `json:"exit_price,omitempty"`
	ExitReason   *ExitReason     `json:"exit_reason,omitempty"`
	PnL          *float64        `json:"pnl,omitempty"`
	ReturnPct    *float64        `json:"return_pct,omitempty"`
	HoldingDays  *int            `json:"holding_days,omitempty"`
}

// Close transitions an open trade to closed at the given price.
func (t *Trade) Close(date time.Time, price float64, reason ExitReason) {
	ret := (price - t.EntryPrice) / t.EntryPrice
	pnl := t.PositionSize * ret
	days := int(date.Sub(t.EntryDate).Hours() / 24)

	t.Status = TradeClosed
	t.ExitDate = &date
	t.ExitPrice = &price
	t.ExitReason = &reason
	t.ReturnPct = &ret
	t.PnL = &pnl
	t.HoldingDays = &days
}

// CurrentReturn is the unrealized return of an open trade at the given price.
func (t *Trade) CurrentReturn(price float64) float64 {
	return (price - t.EntryPrice) / t.EntryPrice
}
