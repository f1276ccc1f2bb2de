package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

func bar(symbol, timeframe string, tsMs int64, close float64) models.Bar {
	return models.Bar{
		Symbol:      symbol,
		Timeframe:   timeframe,
		TimestampMs: tsMs,
		Open:        close,
		High:        close,
		Low:         close,
		Close:       close,
		Volume:      1,
	}
}

// TestBarQueue_PushIsIdempotentForDuplicateTimestamp is half of P7: pushing
// the same (symbol, timeframe, timestamp_ms) bar twice leaves the hot tier
// in the same state as pushing it once.
func TestBarQueue_PushIsIdempotentForDuplicateTimestamp(t *testing.T) {
	q := NewBarQueue(10)
	b := bar("ETH-USDT-SWAP", "5m", 1000, 101.5)

	if !q.Push(b) {
		t.Fatalf("first push of a fresh bar should be accepted")
	}
	if !q.Push(b) {
		t.Fatalf("a repeat push at the same timestamp should still be accepted (upsert)")
	}

	if got := q.Size(); got != 1 {
		t.Fatalf("expected size 1 after pushing the same bar twice, got %d", got)
	}
	latest, ok := q.GetLatest()
	if !ok || latest != b {
		t.Fatalf("expected the stored bar to equal the pushed bar, got %+v", latest)
	}
}

// TestBarQueue_RejectsOlderTimestamp verifies the monotonicity guard: a bar
// older than the latest stored bar is rejected rather than silently
// reordering the ring.
func TestBarQueue_RejectsOlderTimestamp(t *testing.T) {
	q := NewBarQueue(10)
	q.Push(bar("ETH-USDT-SWAP", "5m", 2000, 100))

	if q.Push(bar("ETH-USDT-SWAP", "5m", 1000, 99)) {
		t.Fatalf("expected an older-timestamp push to be rejected")
	}
	if q.Size() != 1 {
		t.Fatalf("rejected push must not change the queue's size")
	}
}

// TestAggregateOHLCV_Idempotent verifies aggregateOHLCV is a pure function
// of its input window: running it twice over the same window yields
// identical output, which is what makes AggregateAndStore's cold-tier
// upsert safe to re-run.
func TestAggregateOHLCV_Idempotent(t *testing.T) {
	window := []models.Bar{
		bar("ETH-USDT-SWAP", "5m", 1000, 100),
		bar("ETH-USDT-SWAP", "5m", 1300, 105),
		bar("ETH-USDT-SWAP", "5m", 1600, 98),
	}
	window[0].High, window[0].Low = 101, 99
	window[1].High, window[1].Low = 106, 103
	window[2].High, window[2].Low = 99, 95

	first := aggregateOHLCV("ETH-USDT-SWAP", "15m", window)
	second := aggregateOHLCV("ETH-USDT-SWAP", "15m", window)
	if first != second {
		t.Fatalf("aggregateOHLCV is not idempotent over the same window: %+v vs %+v", first, second)
	}

	if first.Open != 100 || first.Close != 98 || first.High != 106 || first.Low != 95 || first.Volume != 3 {
		t.Fatalf("unexpected aggregate: %+v", first)
	}
}

func newTestTieredStore(t *testing.T) *TieredStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "warm.db")
	db, err := NewSQLiteDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open test sqlite db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hot := NewQueueManagerWithDefaults()
	warm := NewBarRepository(db)
	return NewTieredStore(hot, warm)
}

// TestTieredStore_AppendIsIdempotent is P7: appending the same bar twice
// leaves the tiered store in the same observable state (via Get) as
// appending it once.
func TestTieredStore_AppendIsIdempotent(t *testing.T) {
	store := newTestTieredStore(t)
	b := bar("ETH-USDT-SWAP", "5m", 1000, 101.5)

	store.Append(b)
	store.Append(b)

	// give the async warm-tier mirror goroutines a moment to land; the hot
	// tier is updated synchronously so this only matters for warm reads.
	time.Sleep(50 * time.Millisecond)

	got, err := store.Get("ETH-USDT-SWAP", "5m", 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one stored bar after a duplicate append, got %d", len(got))
	}
	if got[0] != b {
		t.Fatalf("expected stored bar to equal the appended bar, got %+v", got[0])
	}
}

// TestTieredStore_AggregateAndStoreIsIdempotent runs the 5m->15m aggregation
// twice over the same hot-tier contents and checks the cold tier converges
// to the same row rather than duplicating or drifting.
func TestTieredStore_AggregateAndStoreIsIdempotent(t *testing.T) {
	store := newTestTieredStore(t)
	symbol := "ETH-USDT-SWAP"

	for i := int64(0); i < 3; i++ {
		store.Append(bar(symbol, "5m", 1000+i*300, 100+float64(i)))
	}
	time.Sleep(20 * time.Millisecond)

	if err := store.AggregateAndStore(symbol, "5m", "15m", 3); err != nil {
		t.Fatalf("first aggregate_and_store failed: %v", err)
	}
	if err := store.AggregateAndStore(symbol, "5m", "15m", 3); err != nil {
		t.Fatalf("second aggregate_and_store failed: %v", err)
	}

	q := store.hot.Queue(symbol, "15m")
	if got := q.Size(); got != 1 {
		t.Fatalf("expected exactly one 15m bar after re-running aggregation, got %d", got)
	}
}
