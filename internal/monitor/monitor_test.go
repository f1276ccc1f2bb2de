package monitor

import (
	"path/filepath"
	"testing"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/config"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/storage"
)

func testMonitor(t *testing.T) *Monitor {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Exchange.Symbol = "ETH-USDT-SWAP"
	cfg.Scoring.CooldownMinutes = 15

	dbPath := filepath.Join(t.TempDir(), "warm.db")
	db, err := storage.NewSQLiteDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open test sqlite db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hot := storage.NewQueueManagerWithDefaults()
	warm := storage.NewBarRepository(db)
	store := storage.NewTieredStore(hot, warm)

	return NewMonitor(cfg, nil, store, db)
}

// TestApplyCooldown_S6SuppressesRepeatFireWithinWindow is scenario S6: a BUY
// fires once, and an identical BUY decision within cooldown_minutes of that
// fire is demoted to HOLD with reason "cooldown".
func TestApplyCooldown_S6SuppressesRepeatFireWithinWindow(t *testing.T) {
	m := testMonitor(t)
	symbol := "ETH-USDT-SWAP"
	buy := models.SignalCheckResult{ShouldTrade: true, SignalType: models.SignalBuy, TradeScore: 0.5}

	first := m.applyCooldown(symbol, buy)
	if first.SignalType != models.SignalBuy {
		t.Fatalf("expected the first BUY to pass through uncooled, got %v", first.SignalType)
	}

	if err := m.ArmCooldown(symbol, models.SignalBuy); err != nil {
		t.Fatalf("ArmCooldown failed: %v", err)
	}

	second := m.applyCooldown(symbol, buy)
	if second.SignalType != models.SignalHold || second.Message != "cooldown" {
		t.Fatalf("expected a cooldown-suppressed HOLD, got %+v", second)
	}
	if second.ShouldTrade {
		t.Fatalf("expected should_trade=false for a cooldown-suppressed signal")
	}
}

// TestApplyCooldown_IndependentPerSide verifies the cooldown key is
// (symbol, side): arming a BUY cooldown must not suppress a SELL on the
// same symbol.
func TestApplyCooldown_IndependentPerSide(t *testing.T) {
	m := testMonitor(t)
	symbol := "ETH-USDT-SWAP"

	if err := m.ArmCooldown(symbol, models.SignalBuy); err != nil {
		t.Fatalf("ArmCooldown failed: %v", err)
	}

	sell := models.SignalCheckResult{ShouldTrade: true, SignalType: models.SignalSell, TradeScore: -0.5}
	result := m.applyCooldown(symbol, sell)
	if result.SignalType != models.SignalSell {
		t.Fatalf("expected a SELL cooldown to be independent of an armed BUY cooldown, got %v", result.SignalType)
	}
}

// TestApplyCooldown_HoldNeverCooled verifies applyCooldown is a no-op for a
// HOLD decision regardless of cooldown state.
func TestApplyCooldown_HoldNeverCooled(t *testing.T) {
	m := testMonitor(t)
	symbol := "ETH-USDT-SWAP"
	hold := models.SignalCheckResult{SignalType: models.SignalHold, Message: "no condition met"}

	result := m.applyCooldown(symbol, hold)
	if result.SignalType != models.SignalHold || result.Message != "no condition met" {
		t.Fatalf("expected applyCooldown to leave a HOLD result untouched, got %+v", result)
	}
}
