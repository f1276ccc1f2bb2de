package monitor

import (
	"fmt"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// reboundOversoldFloor is the RSI level a symbol must revisit before the
// detector will arm another rebound signal (spec §4.4 reset policy).
const reboundOversoldFloor = 30.0

// ReboundDetector is the C4 oversold-rebound detector. It is stateful per
// symbol: it compares the last two snapshots and tracks whether a rebound
// has already fired and been consumed, suppressing re-triggers until RSI
// revisits oversold territory. No original_source/alphapulse file for
// oversold_rebound_detector.py is present in the retrieval pack; built
// directly from spec §4.4's formulas and the observed call-site contract in
// market_monitor.py (is_rebound_opportunity / confidence / triggers).
type ReboundDetector struct {
	prev      *models.IndicatorSnapshot
	armed     bool // true once RSI has revisited oversold territory since the last trigger
	triggered bool // true while a rebound is pending consumption by the monitor
}

// NewReboundDetector starts armed: the first rebound seen is always eligible.
func NewReboundDetector() *ReboundDetector {
	return &ReboundDetector{armed: true}
}

// Check evaluates the current snapshot against the previous one and returns
// the rebound state for this tick. Call Consume after the monitor has acted
// on a triggered rebound, to start the reset-policy cooldown.
func (d *ReboundDetector) Check(curr models.IndicatorSnapshot) models.ReboundState {
	defer func() { d.prev = &curr }()

	if curr.RSI < reboundOversoldFloor {
		d.armed = true // RSI back in oversold territory: re-arm for a future rebound
	}

	if d.prev == nil || !d.armed || d.triggered {
		return models.ReboundState{SignalType: models.SignalHold}
	}

	prev := *d.prev
	rsiRising := prev.RSI < reboundOversoldFloor && curr.RSI >= reboundOversoldFloor
	histRising := curr.MACDHistogram > prev.MACDHistogram && curr.MACDHistogram >= 0
	lowPrice := curr.PricePosition24h <= 20

	if !(rsiRising && histRising && lowPrice) {
		return models.ReboundState{SignalType: models.SignalHold}
	}

	deltaRSI := curr.RSI - prev.RSI
	deltaHistNorm := normalizeHistogramDelta(curr.MACDHistogram - prev.MACDHistogram)
	confidence := clip(
		0.5+0.1*deltaRSI/10+0.1*deltaHistNorm+0.1*(20-curr.PricePosition24h)/20,
		0, 1,
	)

	triggers := []string{
		fmt.Sprintf("rsi rose from %.1f to %.1f crossing oversold", prev.RSI, curr.RSI),
		fmt.Sprintf("macd histogram rising to %.4f", curr.MACDHistogram),
		fmt.Sprintf("price_position_24h at %.1f (<=20)", curr.PricePosition24h),
	}

	d.triggered = true
	return models.ReboundState{
		IsReboundOpportunity: true,
		SignalType:           models.SignalBuy,
		Confidence:           confidence,
		Triggers:             triggers,
		Message:              "oversold rebound detected",
	}
}

// Consume marks a triggered rebound as acted upon, disarming the detector
// until RSI next revisits oversold territory (spec §4.4 reset policy).
func (d *ReboundDetector) Consume() {
	if d.triggered {
		d.triggered = false
		d.armed = false
	}
}

// normalizeHistogramDelta scales a raw MACD-histogram delta into roughly
// [-1, 1] for the confidence formula. The formula in spec §4.4 treats this
// term additively alongside already-normalized terms, so a small fixed scale
// (rather than a percent-of-price normalization) keeps typical histogram
// deltas from dominating the sum.
func normalizeHistogramDelta(delta float64) float64 {
	return clip(delta*10, -1, 1)
}
