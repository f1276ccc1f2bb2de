package monitor

import (
	"testing"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

func neutralSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Symbol:           "ETH-USDT-SWAP",
		Price:            100,
		RSI:              50,
		BBPercent:        50,
		MACDHistogram:    0,
		PricePosition24h: 50,
		PricePosition7d:  50,
		ATRPercent:       2,
		TrendDirection:   models.TrendSideways,
	}
}

// TestTradeScore_Bounds is P1: trade_score must stay within [-1, 1] even for
// extreme out-of-range indicator values.
func TestTradeScore_Bounds(t *testing.T) {
	cases := []models.IndicatorSnapshot{
		neutralSnapshot(),
		{RSI: 0, BBPercent: 0, MACDHistogram: 999, PricePosition24h: 0, PricePosition7d: 0, ATRPercent: 0, TrendDirection: models.TrendUp, TrendStrength: 1},
		{RSI: 100, BBPercent: 100, MACDHistogram: -999, PricePosition24h: 100, PricePosition7d: 100, ATRPercent: 999, TrendDirection: models.TrendDown, TrendStrength: 1},
	}

	for i, snap := range cases {
		score := TradeScore(snap)
		if score.Score < -1.0 || score.Score > 1.0 {
			t.Errorf("case %d: trade_score %v out of bounds [-1,1]", i, score.Score)
		}
	}
}

// TestTradeScore_WeightProfileSwitch verifies the oversold predicate selects
// the oversold weight vector.
func TestTradeScore_WeightProfileSwitch(t *testing.T) {
	normal := neutralSnapshot()
	score := TradeScore(normal)
	if score.Oversold {
		t.Fatalf("expected normal weight profile for a neutral snapshot")
	}

	oversold := neutralSnapshot()
	oversold.PricePosition24h = 10
	oversold.PricePosition7d = 8
	oversold.RSI = 25
	score = TradeScore(oversold)
	if !score.Oversold {
		t.Fatalf("expected oversold weight profile when pp24h<15, pp7d<15, rsi<30")
	}
}

// TestTradeScore_Determinism is P2: identical snapshots fuse to identical
// results across repeated calls.
func TestTradeScore_Determinism(t *testing.T) {
	snap := neutralSnapshot()
	snap.RSI = 22
	snap.MACDHistogram = 0.3

	first := TradeScore(snap)
	second := TradeScore(snap)
	if first.Score != second.Score || first.Oversold != second.Oversold {
		t.Fatalf("TradeScore is not deterministic for identical input: %+v vs %+v", first, second)
	}

	rebound := models.ReboundState{SignalType: models.SignalHold}
	sig1, msg1 := FuseSnapshot(snap, first, rebound)
	sig2, msg2 := FuseSnapshot(snap, second, rebound)
	if sig1 != sig2 || msg1 != msg2 {
		t.Fatalf("FuseSnapshot is not deterministic: (%v,%q) vs (%v,%q)", sig1, msg1, sig2, msg2)
	}
}

// TestFuseSnapshot_LowPriceGate is P3: a BUY only fires when the low-price
// gate passes, regardless of how strong the trade score is. The fixture
// leans on a strong RSI/MACD/ADX/volatility tailwind for its bullish score
// (those factors carry no gate ceiling) while keeping BB/price-position
// just under the gate's thresholds, so flipping BBPercent/PricePosition24h
// above them changes only the gate outcome, not the score's sign.
func TestFuseSnapshot_LowPriceGate(t *testing.T) {
	strongBuy := neutralSnapshot()
	strongBuy.RSI = 90
	strongBuy.BBPercent = 45
	strongBuy.PricePosition24h = 45
	strongBuy.PricePosition7d = 35
	strongBuy.MACDHistogram = 1.0
	strongBuy.TrendDirection = models.TrendUp
	strongBuy.TrendStrength = 1
	score := TradeScore(strongBuy)
	if score.Score < 0.20 {
		t.Fatalf("fixture should score above the buy threshold, got %v", score.Score)
	}
	sig, _ := FuseSnapshot(strongBuy, score, models.ReboundState{SignalType: models.SignalHold})
	if sig != models.SignalBuy {
		t.Fatalf("expected BUY when gate passes and score is high, got %v", sig)
	}

	gated := strongBuy
	gated.BBPercent = 72
	gated.PricePosition24h = 68
	score = TradeScore(gated)
	sig, msg := FuseSnapshot(gated, score, models.ReboundState{SignalType: models.SignalHold})
	if sig != models.SignalHold {
		t.Fatalf("expected HOLD when low-price gate fails, got %v (%s)", sig, msg)
	}
}

// belowThresholdGatedSnapshot scores below -0.20 under the normal weight
// profile (strong downtrend + deeply negative MACD histogram + high
// volatility) while still passing the low-price gate (BB/price-position all
// under the gate's ceilings) — the only combination that can reach both the
// sell branch and the rebound-override branch of the fusion table.
func belowThresholdGatedSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Symbol:           "ETH-USDT-SWAP",
		Price:            100,
		RSI:              45,
		BBPercent:        45,
		MACDHistogram:    -10,
		PricePosition24h: 45,
		PricePosition7d:  35,
		ATRPercent:       10,
		TrendDirection:   models.TrendDown,
		TrendStrength:    1,
	}
}

// TestFuseSnapshot_ReboundOverridesSellZone verifies a confirmed rebound can
// still turn a below-threshold score into a BUY when the gate passes.
func TestFuseSnapshot_ReboundOverridesSellZone(t *testing.T) {
	snap := belowThresholdGatedSnapshot()

	score := TradeScore(snap)
	if score.Score > -0.20 {
		t.Fatalf("fixture should score at or below the sell threshold, got %v", score.Score)
	}

	rebound := models.ReboundState{IsReboundOpportunity: true, SignalType: models.SignalBuy}
	sig, msg := FuseSnapshot(snap, score, rebound)
	if sig != models.SignalBuy {
		t.Fatalf("expected rebound-confirmed BUY, got %v (%s)", sig, msg)
	}
}

// TestFuseSnapshot_SellWithoutRebound verifies a below-threshold score sells
// when no rebound is confirmed.
func TestFuseSnapshot_SellWithoutRebound(t *testing.T) {
	snap := belowThresholdGatedSnapshot()

	score := TradeScore(snap)
	if score.Score > -0.20 {
		t.Fatalf("fixture should score at or below the sell threshold, got %v", score.Score)
	}

	sig, _ := FuseSnapshot(snap, score, models.ReboundState{SignalType: models.SignalHold})
	if sig != models.SignalSell {
		t.Fatalf("expected SELL, got %v", sig)
	}
}

// TestFuseSnapshot_NeutralZoneHoldsWithoutRebound covers the default branch:
// a neutral score with no rebound and no gate pass holds.
func TestFuseSnapshot_NeutralZoneHoldsWithoutRebound(t *testing.T) {
	snap := neutralSnapshot()
	score := TradeScore(snap)
	if score.Score <= -0.20 || score.Score >= 0.20 {
		t.Fatalf("fixture should be neutral, got %v", score.Score)
	}

	sig, _ := FuseSnapshot(snap, score, models.ReboundState{SignalType: models.SignalHold})
	if sig != models.SignalHold {
		t.Fatalf("expected HOLD for neutral score with no rebound, got %v", sig)
	}
}

// TestReboundDetector_S1OversoldReboundBuy is scenario S1: RSI crosses up
// through 30, MACD histogram rises through zero, price_position_24h is low.
func TestReboundDetector_S1OversoldReboundBuy(t *testing.T) {
	d := NewReboundDetector()

	first := neutralSnapshot()
	first.RSI = 28
	first.MACDHistogram = -1.0
	first.PricePosition24h = 10
	first.PricePosition7d = 8
	first.BBPercent = 15
	state := d.Check(first)
	if state.IsReboundOpportunity {
		t.Fatalf("first tick should never trigger (no previous snapshot)")
	}

	second := first
	second.RSI = 32
	second.MACDHistogram = 0.2
	state = d.Check(second)

	if !state.IsReboundOpportunity || state.SignalType != models.SignalBuy {
		t.Fatalf("expected a confirmed rebound BUY, got %+v", state)
	}

	score := TradeScore(second)
	sig, _ := FuseSnapshot(second, score, state)
	if sig != models.SignalBuy {
		t.Fatalf("expected fused signal BUY for S1, got %v", sig)
	}
}

// TestReboundDetector_SuppressesUntilOversoldRevisited is the C4 reset policy:
// once consumed, the detector will not re-trigger until RSI dips back under 30.
func TestReboundDetector_SuppressesUntilOversoldRevisited(t *testing.T) {
	d := NewReboundDetector()

	first := neutralSnapshot()
	first.RSI = 28
	first.MACDHistogram = -1.0
	first.PricePosition24h = 10
	d.Check(first)

	second := first
	second.RSI = 32
	second.MACDHistogram = 0.2
	state := d.Check(second)
	if !state.IsReboundOpportunity {
		t.Fatalf("expected the rebound to trigger before consumption")
	}
	d.Consume()

	third := second
	third.RSI = 33
	third.MACDHistogram = 0.4
	state = d.Check(third)
	if state.IsReboundOpportunity {
		t.Fatalf("expected suppression immediately after consumption, got %+v", state)
	}

	fourth := third
	fourth.RSI = 20 // revisits oversold territory, re-arming the detector
	d.Check(fourth)

	fifth := fourth
	fifth.RSI = 31
	fifth.MACDHistogram = 0.5
	fifth.PricePosition24h = 10
	state = d.Check(fifth)
	if !state.IsReboundOpportunity {
		t.Fatalf("expected the detector to re-arm after revisiting oversold territory")
	}
}
