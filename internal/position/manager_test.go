package position

import (
	"math"
	"testing"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

const (
	testLossPct      = 0.005
	testProfitPct    = 0.01
	testTolerancePct = 0.001
)

func openManager(entry float64) *Manager {
	m := NewManager(testLossPct, testProfitPct, testTolerancePct)
	m.UpdateFromExchange(models.Position{
		Symbol:     "ETH-USDT-SWAP",
		Side:       models.PositionLong,
		Amount:     0.01,
		EntryPrice: entry,
	})
	return m
}

// TestCalculateStopPrice_BelowEntryUsesInitialStop covers the below-entry
// branch of spec §4.7's ratchet: current_price < entry uses the fixed
// loss_pct stop under entry.
func TestCalculateStopPrice_BelowEntryUsesInitialStop(t *testing.T) {
	m := openManager(100)
	got := m.CalculateStopPrice(95)
	want := 100 * (1 - testLossPct)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected initial stop %v, got %v", want, got)
	}
}

// TestCalculateStopPrice_RatchetsNeverRegress is P5: for any
// monotonically non-decreasing price sequence after entry, the recorded
// stop price is monotonically non-decreasing.
func TestCalculateStopPrice_RatchetsNeverRegress(t *testing.T) {
	m := openManager(100)

	prices := []float64{100, 101, 103, 103, 108, 110, 109.5, 115}
	prevStop := 0.0
	for i, p := range prices {
		stop := m.CalculateStopPrice(p)
		if stop < prevStop {
			t.Fatalf("step %d: stop regressed from %v to %v at price %v", i, prevStop, stop, p)
		}
		prevStop = stop
	}
}

// TestCalculateStopPrice_TrailingNeverBelowInitial verifies the trailing
// branch's floor: even just above entry, the trailing stop never drops
// below the initial loss_pct stop.
func TestCalculateStopPrice_TrailingNeverBelowInitial(t *testing.T) {
	m := openManager(100)
	got := m.CalculateStopPrice(100.1) // barely above entry
	initial := 100 * (1 - testLossPct)
	if got < initial {
		t.Fatalf("trailing stop %v dropped below the initial stop floor %v", got, initial)
	}
}

// TestShouldUpdateStop_S3WithinTolerance is scenario S3: a candidate stop
// that moved by less than tolerance_pct of the current stop is skipped.
func TestShouldUpdateStop_S3WithinTolerance(t *testing.T) {
	m := openManager(100)
	m.SetStopOrder("stop-1", 103.01, 0.01)

	newStop := m.CalculateStopPrice(104.05)
	if math.Abs(newStop-103.0095) > 1e-6 {
		t.Fatalf("expected candidate stop 103.0095, got %v", newStop)
	}
	if m.ShouldUpdateStop(newStop) {
		t.Fatalf("expected update to be skipped for a sub-tolerance move, candidate=%v", newStop)
	}
}

// TestShouldUpdateStop_S4BeyondTolerance is scenario S4: a candidate stop
// that moved by more than tolerance_pct triggers a replace.
func TestShouldUpdateStop_S4BeyondTolerance(t *testing.T) {
	m := openManager(100)
	m.SetStopOrder("stop-1", 103.01, 0.01)

	newStop := m.CalculateStopPrice(105.0)
	if math.Abs(newStop-103.95) > 1e-6 {
		t.Fatalf("expected candidate stop 103.95, got %v", newStop)
	}
	if !m.ShouldUpdateStop(newStop) {
		t.Fatalf("expected update to trigger for a beyond-tolerance move, candidate=%v", newStop)
	}
}

// TestShouldUpdateStop_NoCurrentStopAlwaysUpdates verifies the first stop a
// position ever gets is never skipped by the tolerance check.
func TestShouldUpdateStop_NoCurrentStopAlwaysUpdates(t *testing.T) {
	m := openManager(100)
	if !m.ShouldUpdateStop(99.5) {
		t.Fatalf("expected the first stop placement to never be skipped")
	}
}

// TestUpdateFromExchange_ZeroAmountClearsPosition verifies a zero-amount
// exchange read clears has_position, independent of any stale side/entry.
func TestUpdateFromExchange_ZeroAmountClearsPosition(t *testing.T) {
	m := openManager(100)
	if !m.HasPosition() {
		t.Fatalf("fixture should start with an open position")
	}

	m.UpdateFromExchange(models.Position{Symbol: "ETH-USDT-SWAP", Side: models.PositionLong, Amount: 0})
	if m.HasPosition() {
		t.Fatalf("expected has_position=false after a zero-amount exchange read")
	}
}

// TestClearStopOrder_DropsTrackedStop verifies a cleared stop order is
// invisible to StopOrderID/StopOrder.
func TestClearStopOrder_DropsTrackedStop(t *testing.T) {
	m := openManager(100)
	m.SetStopOrder("stop-1", 99.5, 0.01)
	m.ClearStopOrder()

	if m.StopOrderID() != "" {
		t.Fatalf("expected no tracked stop order id after ClearStopOrder")
	}
	if m.StopOrder() != (models.StopOrderRef{}) {
		t.Fatalf("expected a zero-value StopOrderRef after ClearStopOrder")
	}
}
