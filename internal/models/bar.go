package models

// Bar is a single OHLCV candle. TimestampMs is the bar-open time in Unix
// milliseconds UTC. Bars are never mutated after they close; a later write
// for the same timestamp replaces the in-progress bar (last-write-wins),
// and a write with an older timestamp than the latest stored bar is rejected
// by the tiered store.
type Bar struct {
	Symbol      string  `json:"symbol"`
	Timeframe   string  `json:"timeframe"`
	TimestampMs int64   `json:"timestamp_ms"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
}

// Range returns high - low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// IsBullish reports whether the bar closed above its open.
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// TypicalPrice returns (H+L+C)/3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// TrueRange computes the true range of this bar relative to the previous close.
func (b Bar) TrueRange(prevClose float64) float64 {
	hl := b.High - b.Low
	hc := absFloat(b.High - prevClose)
	lc := absFloat(b.Low - prevClose)
	return maxFloat3(hl, hc, lc)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxFloat3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
