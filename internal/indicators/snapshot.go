package indicators

import "github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"

// minBarsForSnapshot is the minimum bar count required before a snapshot is
// considered ready (spec §3 "derived from the last >=50 bars").
const minBarsForSnapshot = 50

const (
	dayMs  = int64(24 * 60 * 60 * 1000)
	weekMs = int64(7 * dayMs)
)

// Snapshot computes a models.IndicatorSnapshot from a contiguous, oldest-first
// bar series for a single (symbol, timeframe). Bars must span enough history
// to cover 7 days (the monitor is responsible for fetching that much). When
// fewer than minBarsForSnapshot bars are available, Snapshot returns a
// neutral-default snapshot with Unready=true (spec §4.1's failure mode)
// instead of an error — the caller (C3) turns that into a HOLD decision.
func Snapshot(bars []models.Bar, cfg *IndicatorConfig) models.IndicatorSnapshot {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if len(bars) < minBarsForSnapshot {
		return neutralSnapshot(bars)
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	last := bars[len(bars)-1]
	price := last.Close

	high24h, low24h := windowExtrema(bars, last.TimestampMs-dayMs)
	high7d, low7d := windowExtrema(bars, last.TimestampMs-weekMs)

	rsi := RSILast(closes, cfg.RSIPeriod)
	macd := MACDLast(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	adx := ADXLast(highs, lows, closes, cfg.ADXPeriod)
	bb := BollingerLast(closes, cfg.BBPeriod, cfg.BBStdDev)
	atr := ATRLast(highs, lows, closes, cfg.ATRPeriod)
	atrPct := ATRPercentLast(highs, lows, closes, cfg.ATRPeriod)

	snap := models.IndicatorSnapshot{
		Symbol:      last.Symbol,
		Timeframe:   last.Timeframe,
		TimestampMs: last.TimestampMs,
		Price:       price,

		High24h: high24h, Low24h: low24h,
		High7d: high7d, Low7d: low7d,
		PricePosition24h: pricePosition(price, high24h, low24h),
		PricePosition7d:  pricePosition(price, high7d, low7d),

		ATR:        atr,
		ATRPercent: atrPct,

		RSI: rsi,

		MACD:          macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,

		ADX:     adx.ADX,
		PlusDI:  adx.PlusDI,
		MinusDI: adx.MinusDI,

		BBUpper:   bb.Upper,
		BBMiddle:  bb.Middle,
		BBLower:   bb.Lower,
		BBPercent: bb.PercentB * 100,

		TrendDirection: mapTrendDirection(adx.Direction),
		TrendStrength:  mapTrendStrength(adx.Strength),
	}

	return snap
}

func neutralSnapshot(bars []models.Bar) models.IndicatorSnapshot {
	snap := models.IndicatorSnapshot{
		RSI:              50,
		PricePosition24h: 50,
		PricePosition7d:  50,
		BBPercent:        50,
		TrendDirection:   models.TrendUnknown,
		Unready:          true,
	}
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		snap.Symbol = last.Symbol
		snap.Timeframe = last.Timeframe
		snap.TimestampMs = last.TimestampMs
		snap.Price = last.Close
	}
	return snap
}

func windowExtrema(bars []models.Bar, sinceMs int64) (high, low float64) {
	started := false
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		if b.TimestampMs < sinceMs {
			break
		}
		if !started {
			high, low = b.High, b.Low
			started = true
			continue
		}
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	if !started {
		last := bars[len(bars)-1]
		return last.High, last.Low
	}
	return high, low
}

// pricePosition is (price-low)/(high-low)*100, defaulting to 50 when the
// window is degenerate (high==low, e.g. a single bar), per
// original_source/alphapulse/tiered_storage.py's get_price_position.
func pricePosition(price, high, low float64) float64 {
	if high <= low {
		return 50
	}
	pos := (price - low) / (high - low) * 100
	if pos < 0 {
		pos = 0
	}
	if pos > 100 {
		pos = 100
	}
	return pos
}

func mapTrendDirection(d TrendDirection) models.TrendDirection {
	switch d {
	case TrendUp:
		return models.TrendUp
	case TrendDown:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

func mapTrendStrength(s TrendStrength) float64 {
	switch s {
	case TrendWeak:
		return 0.25
	case TrendModerate:
		return 0.5
	case TrendStrong:
		return 0.75
	case TrendVeryStrong:
		return 1.0
	default:
		return 0
	}
}
