package position

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// Manager is the C7 position manager: mirrors the exchange's authoritative
// position view and computes the ratcheting stop-loss price. Grounded on
// the teacher's state-mirroring convention in orchestrator.go's TradingState
// (stateMu-guarded struct updated wholesale from exchange reads), narrowed
// to the single position this spec tracks.
type Manager struct {
	mu        sync.RWMutex
	position  models.Position
	stopOrder models.StopOrderRef

	lossPct      float64
	profitPct    float64
	tolerancePct float64
}

func NewManager(lossPct, profitPct, tolerancePct float64) *Manager {
	return &Manager{lossPct: lossPct, profitPct: profitPct, tolerancePct: tolerancePct}
}

// UpdateFromExchange replaces local position state wholesale. An empty raw
// position (zero amount) clears local state to has_position=false.
func (m *Manager) UpdateFromExchange(raw models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if raw.Amount <= 0 {
		m.position = models.Position{Symbol: raw.Symbol, Side: models.PositionNone}
		return
	}
	m.position = raw
}

// HasPosition reports whether a tradable long position is currently held.
func (m *Manager) HasPosition() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position.HasPosition()
}

// Position returns a copy of the currently mirrored position.
func (m *Manager) Position() models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// CalculateStopPrice implements the long-only ratcheting stop-loss policy
// (spec §4.7): below entry, the stop sits a fixed loss_pct under entry; at
// or above entry, the stop trails profit_pct under the current price but
// never regresses below the initial protective stop.
func (m *Manager) CalculateStopPrice(currentPrice float64) float64 {
	m.mu.RLock()
	entry := m.position.EntryPrice
	m.mu.RUnlock()

	initialStop := entry * (1 - m.lossPct)
	if currentPrice < entry {
		return initialStop
	}

	trailingStop := currentPrice * (1 - m.profitPct)
	if trailingStop > initialStop {
		return trailingStop
	}
	return initialStop
}

// ShouldUpdateStop reports whether newStop differs from the currently
// tracked stop order's price by at least tolerance_pct of the current
// stop — smaller drifts are skipped to avoid cancel/replace churn.
func (m *Manager) ShouldUpdateStop(newStop float64) bool {
	m.mu.RLock()
	current := m.stopOrder.StopPrice
	m.mu.RUnlock()

	if current == 0 {
		return true
	}
	delta := newStop - current
	if delta < 0 {
		delta = -delta
	}
	return delta/current >= m.tolerancePct
}

// LogStopLossInfo emits a human-readable line describing a stop-loss
// recalculation, grounded on the teacher's structured zerolog call sites
// throughout orchestrator.go.
func (m *Manager) LogStopLossInfo(currentPrice, newStop float64) {
	m.mu.RLock()
	entry := m.position.EntryPrice
	m.mu.RUnlock()

	log.Info().
		Float64("entry_price", entry).
		Float64("current_price", currentPrice).
		Float64("new_stop", newStop).
		Msg("stop-loss recalculated")
}

// SetStopOrder records the live protective stop order for this position.
// amount should be the filled amount at the time of the corresponding open
// or partial fill (not the originally requested amount), so that a stop
// order always exactly covers what is actually held.
func (m *Manager) SetStopOrder(orderID string, stopPrice, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopOrder = models.StopOrderRef{OrderID: orderID, StopPrice: stopPrice, Amount: amount}
}

// StopOrderID returns the currently tracked stop order's exchange ID, or ""
// if none is set.
func (m *Manager) StopOrderID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopOrder.OrderID
}

// StopOrder returns a copy of the currently tracked stop order reference.
func (m *Manager) StopOrder() models.StopOrderRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopOrder
}

// ClearStopOrder drops the tracked stop order reference, e.g. after a
// position close.
func (m *Manager) ClearStopOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopOrder = models.StopOrderRef{}
}
