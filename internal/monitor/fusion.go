package monitor

import (
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// normalWeights and oversoldWeights are the two fusion-weight profiles,
// grounded verbatim on original_source/alphapulse/market_monitor.py's
// TRADE_SIGNALS / oversold_weights dicts. The oversold profile de-emphasizes
// MACD (0.03 vs 0.15) and leans hard into price position (0.35+0.15 vs
// 0.20+0.10); its weights intentionally sum to less than 1.0.
var normalWeights = map[string]float64{
	"rsi":                0.20,
	"bb_position":        0.15,
	"macd":               0.15,
	"adx":                0.10,
	"price_position_24h": 0.20,
	"price_position_7d":  0.10,
	"volatility":         0.10,
}

var oversoldWeights = map[string]float64{
	"rsi":                0.25,
	"bb_position":        0.10,
	"macd":               0.03,
	"adx":                0.12,
	"price_position_24h": 0.35,
	"price_position_7d":  0.15,
	"volatility":         0.00,
}

// isOversoldArea reports whether the snapshot qualifies for the oversold
// weight profile: price_position_24h < 15, price_position_7d < 15, RSI < 30.
func isOversoldArea(s models.IndicatorSnapshot) bool {
	return s.PricePosition24h < 15 && s.PricePosition7d < 15 && s.RSI < 30
}

// factorsFromSnapshot normalizes each indicator into [-1, 1], grounded on
// market_monitor.py's _calculate_trade_score per-factor normalization.
// Positive = bullish, negative = bearish (market_monitor.py's "正值=偏多,
// 负值=偏空"): rsi/bb_position/price_position_24h/price_position_7d all rise
// with the factor, since a high reading (overbought, near the top of the
// range) is the bullish-momentum case this trend-following score rewards.
func factorsFromSnapshot(s models.IndicatorSnapshot) map[string]float64 {
	return map[string]float64{
		"rsi":                clip((s.RSI-50)/50, -1, 1),
		"bb_position":        clip((s.BBPercent-50)/50, -1, 1),
		"macd":               clip(s.MACDHistogram/(0.5*absOrOne(s.Price)/100), -1, 1),
		"adx":                clip(trendSignedStrength(s), -1, 1),
		"price_position_24h": clip((s.PricePosition24h-50)/50, -1, 1),
		"price_position_7d":  clip((s.PricePosition7d-50)/50, -1, 1),
		"volatility":         clip(1-s.ATRPercent/5, -1, 1),
	}
}

// trendSignedStrength folds ADX direction and strength into a single signed
// contribution: positive for an uptrend, negative for a downtrend.
func trendSignedStrength(s models.IndicatorSnapshot) float64 {
	switch s.TrendDirection {
	case models.TrendUp:
		return s.TrendStrength
	case models.TrendDown:
		return -s.TrendStrength
	default:
		return 0
	}
}

func absOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	if v < 0 {
		return -v
	}
	return v
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TradeScore computes the fused [-1, 1] trade score and the ScoreVector that
// produced it, switching weight profiles per isOversoldArea.
func TradeScore(s models.IndicatorSnapshot) models.ScoreVector {
	oversold := isOversoldArea(s)
	weights := normalWeights
	if oversold {
		weights = oversoldWeights
	}
	factors := factorsFromSnapshot(s)

	var score float64
	for name, w := range weights {
		score += factors[name] * w
	}

	return models.ScoreVector{
		Factors:  factors,
		Weights:  weights,
		Oversold: oversold,
		Score:    clip(score, -1, 1),
	}
}

// lowPriceGatePasses implements the BUY gate: BB_position < 50,
// price_position_24h < 50, price_position_7d < 40.
func lowPriceGatePasses(s models.IndicatorSnapshot) bool {
	return s.BBPercent < 50 && s.PricePosition24h < 50 && s.PricePosition7d < 40
}

// FuseSnapshot implements the fusion table of spec §4.3: given the
// indicator snapshot (for the low-price gate), the trade score, and the
// rebound detector's output, returns the signal type and an explanatory
// message. Grounded on market_monitor.py's _check_signals.
func FuseSnapshot(snapshot models.IndicatorSnapshot, score models.ScoreVector, rebound models.ReboundState) (models.SignalType, string) {
	gate := lowPriceGatePasses(snapshot)
	reboundBuy := rebound.IsReboundOpportunity && rebound.SignalType == models.SignalBuy

	switch {
	case score.Score >= 0.20 && gate:
		return models.SignalBuy, "trade_score above threshold, low-price gate passed"
	case score.Score >= 0.20 && !gate:
		return models.SignalHold, "trade_score above threshold but low-price gate failed, demoted to hold"
	case score.Score <= -0.20 && gate && reboundBuy:
		return models.SignalBuy, "trade_score below threshold but rebound reversal confirmed"
	case score.Score <= -0.20:
		return models.SignalSell, "trade_score below threshold"
	case score.Score > -0.20 && score.Score < 0.20 && reboundBuy && gate:
		return models.SignalBuy, "neutral trade_score, rebound opportunity confirmed"
	default:
		return models.SignalHold, "no condition met"
	}
}
