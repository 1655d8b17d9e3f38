package scoring

import "alpha-hunter/internal/domain"

// featureSpec binds a feature name to its accessor on the vector. The
// registry order is the column order of every training matrix, so it must
// stay stable between training and scoring.
type featureSpec struct {
	name string
	get  func(fv *domain.FeatureVector) *float64
}

var equityFeatures = []featureSpec{
	{"bb_width_pct", func(fv *domain.FeatureVector) *float64 { return fv.BBWidthPct }},
	{"bb_position", func(fv *domain.FeatureVector) *float64 { return fv.BBPosition }},
	{"ma_spread_pct", func(fv *domain.FeatureVector) *float64 { return fv.MASpreadPct }},
	{"ma_alignment_score", func(fv *domain.FeatureVector) *float64 { return fv.MAAlignmentScore }},
	{"atr_pct", func(fv *domain.FeatureVector) *float64 { return fv.ATRPct }},
	{"volatility_20d", func(fv *domain.FeatureVector) *float64 { return fv.Volatility20D }},
	{"volume_ratio_20d", func(fv *domain.FeatureVector) *float64 { return fv.VolumeRatio20D }},
	{"obv_trend_5d", func(fv *domain.FeatureVector) *float64 { return fv.OBVTrend5D }},
	{"social_delta_7d", func(fv *domain.FeatureVector) *float64 { return fv.SocialDelta7D }},
	{"trends_delta_7d", func(fv *domain.FeatureVector) *float64 { return fv.TrendsDelta7D }},
	{"rsi_14", func(fv *domain.FeatureVector) *float64 { return fv.RSI14 }},
	{"macd", func(fv *domain.FeatureVector) *float64 { return fv.MACD }},
}

var cryptoFeatures = []featureSpec{
	{"bb_width_pct", func(fv *domain.FeatureVector) *float64 { return fv.BBWidthPct }},
	{"ma_spread_pct", func(fv *domain.FeatureVector) *float64 { return fv.MASpreadPct }},
	{"atr_pct", func(fv *domain.FeatureVector) *float64 { return fv.ATRPct }},
	{"volatility_20d", func(fv *domain.FeatureVector) *float64 { return fv.Volatility20D }},
	{"volume_ratio_20d", func(fv *domain.FeatureVector) *float64 { return fv.VolumeRatio20D }},
	{"social_delta_7d", func(fv *domain.FeatureVector) *float64 { return fv.SocialDelta7D }},
	{"trends_delta_7d", func(fv *domain.FeatureVector) *float64 { return fv.TrendsDelta7D }},
	{"funding_rate_delta_7d", func(fv *domain.FeatureVector) *float64 { return fv.FundingRateDelta7D }},
	{"oi_delta_7d", func(fv *domain.FeatureVector) *float64 { return fv.OIDelta7D }},
}

func featuresFor(class domain.AssetClass) []featureSpec {
	if class == domain.AssetClassCrypto {
		return cryptoFeatures
	}
	return equityFeatures
}

// FeatureNames returns the active feature set for an asset class, in
// matrix column order.
func FeatureNames(class domain.AssetClass) []string {
	specs := featuresFor(class)
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.name
	}
	return names
}

// vectorRow flattens a feature vector into registry order, imputing zero
// for missing values.
func vectorRow(specs []featureSpec, fv *domain.FeatureVector) []float64 {
	row := make([]float64, len(specs))
	for i, s := range specs {
		if v := s.get(fv); v != nil {
			row[i] = *v
		}
	}
	return row
}
