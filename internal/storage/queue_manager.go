package storage

import "sync"

// DefaultCapacities gives each timeframe a hot-tier capacity sized to hold
// roughly one week of history, matching spec §3's "2016 bars at 5m = 1 week"
// example; the daily timeframe keeps 30 bars (30 days). Adapted from the
// teacher's QueueManager.DefaultCapacities map.
var DefaultCapacities = map[string]int{
	"1m":  10080,
	"5m":  2016,
	"15m": 672,
	"1h":  168,
	"4h":  42,
	"1d":  30,
}

// QueueManager owns one BarQueue per (symbol, timeframe) key.
type QueueManager struct {
	mu      sync.RWMutex
	queues  map[string]*BarQueue
	capFunc func(timeframe string) int
}

// NewQueueManagerWithDefaults builds a QueueManager using DefaultCapacities,
// falling back to 2016 (the spec's default working-timeframe capacity) for
// unrecognized timeframes.
func NewQueueManagerWithDefaults() *QueueManager {
	return &QueueManager{
		queues: make(map[string]*BarQueue),
		capFunc: func(tf string) int {
			if c, ok := DefaultCapacities[tf]; ok {
				return c
			}
			return 2016
		},
	}
}

func key(symbol, timeframe string) string {
	return symbol + "_" + timeframe
}

// Queue returns (creating if necessary) the BarQueue for (symbol, timeframe).
func (m *QueueManager) Queue(symbol, timeframe string) *BarQueue {
	k := key(symbol, timeframe)

	m.mu.RLock()
	q, ok := m.queues[k]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[k]; ok {
		return q
	}
	q = NewBarQueue(m.capFunc(timeframe))
	m.queues[k] = q
	return q
}
