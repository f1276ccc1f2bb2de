package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/config"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/exchange"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/monitor"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/position"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/signal"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/storage"
)

// fakeClient is a minimal exchange.Client double: every fetch_* call
// returns a canned value, every create/cancel call is recorded for
// assertions. Grounded on the teacher's mockClient-style exchange test
// doubles used to exercise the orchestrator without a live exchange.
type fakeClient struct {
	ticker   exchange.Ticker
	position exchange.RawPosition
	balance  exchange.Balance

	createOrderCalls []createOrderCall
	canceledOrderIDs []string
	balanceCalls     int
}

type createOrderCall struct {
	side   exchange.OrderSide
	amount float64
	typ    exchange.OrderType
}

func (f *fakeClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	return nil, nil
}
func (f *fakeClient) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	return f.ticker, nil
}
func (f *fakeClient) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	f.balanceCalls++
	return f.balance, nil
}
func (f *fakeClient) FetchPosition(ctx context.Context, symbol string) (exchange.RawPosition, error) {
	return f.position, nil
}
func (f *fakeClient) CreateOrder(ctx context.Context, symbol string, side exchange.OrderSide, amount, price float64, orderType exchange.OrderType, clientOrderID string) (exchange.OrderResult, error) {
	f.createOrderCalls = append(f.createOrderCalls, createOrderCall{side: side, amount: amount, typ: orderType})
	return exchange.OrderResult{
		OrderID:         "order-" + clientOrderID,
		Status:          exchange.OrderClosed,
		RequestedAmount: amount,
		FilledAmount:    amount,
		AveragePrice:    price,
	}, nil
}
func (f *fakeClient) FetchOrder(ctx context.Context, orderID, symbol string) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, nil
}
func (f *fakeClient) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	f.canceledOrderIDs = append(f.canceledOrderIDs, orderID)
	return true, nil
}
func (f *fakeClient) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }

func testOrchestrator(t *testing.T, client *fakeClient) (*Orchestrator, *position.Manager) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Exchange.Symbol = "ETH-USDT-SWAP"
	cfg.Exchange.Leverage = 3

	dbPath := filepath.Join(t.TempDir(), "warm.db")
	db, err := storage.NewSQLiteDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open test sqlite db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hot := storage.NewQueueManagerWithDefaults()
	warm := storage.NewBarRepository(db)
	store := storage.NewTieredStore(hot, warm)

	mon := monitor.NewMonitor(cfg, noopBarFetcher{}, store, db)
	posMgr := position.NewManager(cfg.StopPolicy.LossPct, cfg.StopPolicy.ProfitPct, cfg.StopPolicy.TolerancePct)
	orders := exchange.NewService(client)
	advisor := signal.NewRuleAdvisor()

	orch := NewOrchestrator(cfg, mon, posMgr, client, orders, advisor)
	orch.ctx = context.Background() // RunCycle/latestSignal need a live advisor context without Start()
	return orch, posMgr
}

type noopBarFetcher struct{}

func (noopBarFetcher) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	return nil, nil
}

// TestRunCycle_P8ShortGuardNeverOpensOnExchangeShort is P8: if fetch_position
// returns a short, the next cycle issues a reducing order and never an
// opening BUY, even with the monitor reporting no fresh signal (which would
// otherwise look like "no position, do nothing").
func TestRunCycle_P8ShortGuardNeverOpensOnExchangeShort(t *testing.T) {
	client := &fakeClient{
		ticker:   exchange.Ticker{Last: 100},
		position: exchange.RawPosition{Symbol: "ETH-USDT-SWAP", Side: "short", Amount: 0.05, EntryPrice: 110},
	}
	orch, posMgr := testOrchestrator(t, client)

	orch.RunCycle(context.Background())

	if posMgr.Position().Side != models.PositionShortToClose {
		t.Fatalf("expected the mirrored position to be tagged short_to_close, got %+v", posMgr.Position())
	}
	if client.balanceCalls != 0 {
		t.Fatalf("expected fetch_balance to never be called (no opening path taken), got %d calls", client.balanceCalls)
	}
	if len(client.createOrderCalls) != 1 {
		t.Fatalf("expected exactly one reducing order, got %d", len(client.createOrderCalls))
	}
	call := client.createOrderCalls[0]
	if call.side != exchange.SideBuy {
		t.Fatalf("expected the short to be reduced with a BUY, got side=%v", call.side)
	}
	if call.amount != 0.05 {
		t.Fatalf("expected the reducing order's amount to match the short's amount, got %v", call.amount)
	}
}

// TestRunCycle_P8ShortGuardTakesPrecedenceOverHoldNoPosition verifies the
// defensive-mode branch runs ahead of (not alongside) the normal dispatch
// table, by confirming a second cycle with the short still open keeps
// reducing rather than falling through to the hold/no-position noop case.
func TestRunCycle_P8ShortGuardTakesPrecedenceOverHoldNoPosition(t *testing.T) {
	client := &fakeClient{
		ticker:   exchange.Ticker{Last: 100},
		position: exchange.RawPosition{Symbol: "ETH-USDT-SWAP", Side: "short", Amount: 0.02, EntryPrice: 90},
	}
	orch, _ := testOrchestrator(t, client)

	orch.RunCycle(context.Background())
	orch.RunCycle(context.Background())

	if len(client.createOrderCalls) != 2 {
		t.Fatalf("expected the short-guard to fire on every cycle while the short persists, got %d calls", len(client.createOrderCalls))
	}
	for _, call := range client.createOrderCalls {
		if call.side != exchange.SideBuy {
			t.Fatalf("expected every reducing order to be a BUY, got %v", call.side)
		}
	}
}

// TestClosePosition_S5ClosesAnOpenLong exercises scenario S5's close
// mechanics directly: a signal has already resolved to SELL with an open
// position, and close_position must market-sell the full amount, cancel the
// live protective stop, and clear the tracked position.
func TestClosePosition_S5ClosesAnOpenLong(t *testing.T) {
	client := &fakeClient{ticker: exchange.Ticker{Last: 98}}
	orch, posMgr := testOrchestrator(t, client)

	posMgr.UpdateFromExchange(models.Position{
		Symbol:     "ETH-USDT-SWAP",
		Side:       models.PositionLong,
		Amount:     0.01,
		EntryPrice: 100,
	})
	posMgr.SetStopOrder("stop-live-1", 99.5, 0.01)

	action := orch.closePosition(context.Background(), "ETH-USDT-SWAP", 98)

	if action != models.ActionClose {
		t.Fatalf("expected ActionClose, got %v", action)
	}
	if len(client.createOrderCalls) != 1 {
		t.Fatalf("expected exactly one close order, got %d", len(client.createOrderCalls))
	}
	closeCall := client.createOrderCalls[0]
	if closeCall.side != exchange.SideSell || closeCall.amount != 0.01 {
		t.Fatalf("expected a market sell of 0.01, got %+v", closeCall)
	}
	if len(client.canceledOrderIDs) != 1 || client.canceledOrderIDs[0] != "stop-live-1" {
		t.Fatalf("expected the live stop order to be canceled, got %v", client.canceledOrderIDs)
	}
	if posMgr.HasPosition() {
		t.Fatalf("expected the position to be cleared after close")
	}
	if posMgr.StopOrderID() != "" {
		t.Fatalf("expected the tracked stop order to be cleared after close")
	}
}
