package storage

import (
	"sort"
	"sync"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// BarQueue is a thread-safe circular buffer for one (symbol, timeframe)'s
// hot-tier bars. Adapted from the teacher's CandleQueue ring buffer:
// generalized from Candle/time.Time to models.Bar/timestamp_ms, and Push is
// changed from unconditional-append to the spec's upsert-by-timestamp
// semantics (equal timestamp overwrites the in-progress bar, an older
// timestamp is rejected). The reader-writer lock matches CandleQueue's and
// satisfies the hot tier's minimum concurrency guarantee: one writer
// (the monitor's fetch/append cycle) against many concurrent readers
// (snapshotting, the API, aggregation).
type BarQueue struct {
	mu       sync.RWMutex
	buffer   []models.Bar
	capacity int
	head     int // index of oldest element
	tail     int // index of next write position
	size     int
}

// NewBarQueue creates a ring buffer with the given capacity.
func NewBarQueue(capacity int) *BarQueue {
	if capacity <= 0 {
		capacity = 200
	}
	return &BarQueue{
		buffer:   make([]models.Bar, capacity),
		capacity: capacity,
	}
}

// Push upserts a bar by timestamp. Returns false (and does nothing) if bar's
// timestamp is strictly older than the current latest bar — an older write
// is rejected per spec §3's monotonicity invariant.
func (q *BarQueue) Push(bar models.Bar) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size > 0 {
		latestIdx := (q.tail - 1 + q.capacity) % q.capacity
		latest := q.buffer[latestIdx]
		if bar.TimestampMs < latest.TimestampMs {
			return false
		}
		if bar.TimestampMs == latest.TimestampMs {
			q.buffer[latestIdx] = bar // last-write-wins for the in-progress bar
			return true
		}
	}

	q.buffer[q.tail] = bar
	q.tail = (q.tail + 1) % q.capacity

	if q.size < q.capacity {
		q.size++
	} else {
		q.head = (q.head + 1) % q.capacity // full: discard the oldest
	}
	return true
}

// GetAll returns all bars oldest-to-newest.
func (q *BarQueue) GetAll() []models.Bar {
	q.mu.RLock()
	n := q.size
	q.mu.RUnlock()
	return q.GetLast(n)
}

// GetLast returns the last n bars oldest-to-newest.
func (q *BarQueue) GetLast(n int) []models.Bar {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.size == 0 {
		return nil
	}
	if n > q.size {
		n = q.size
	}
	result := make([]models.Bar, n)
	start := q.size - n
	for i := 0; i < n; i++ {
		idx := (q.head + start + i) % q.capacity
		result[i] = q.buffer[idx]
	}
	return result
}

// GetLatest returns the most recent bar, if any.
func (q *BarQueue) GetLatest() (models.Bar, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.size == 0 {
		return models.Bar{}, false
	}
	idx := (q.tail - 1 + q.capacity) % q.capacity
	return q.buffer[idx], true
}

// GetSince returns bars with TimestampMs >= sinceMs, oldest-to-newest. Used
// by query_by_period's window lookup. Push keeps timestamps strictly
// increasing from head to tail, so the first matching bar is found by a
// binary search over the ring's logical order (O(log n)).
func (q *BarQueue) GetSince(sinceMs int64) []models.Bar {
	q.mu.RLock()
	defer q.mu.RUnlock()

	start := sort.Search(q.size, func(i int) bool {
		return q.buffer[(q.head+i)%q.capacity].TimestampMs >= sinceMs
	})
	if start == q.size {
		return nil
	}
	result := make([]models.Bar, 0, q.size-start)
	for i := start; i < q.size; i++ {
		result = append(result, q.buffer[(q.head+i)%q.capacity])
	}
	return result
}

func (q *BarQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

func (q *BarQueue) Capacity() int { return q.capacity }

func (q *BarQueue) IsFull() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size == q.capacity
}

// HasEnoughData reports whether at least n bars are buffered.
func (q *BarQueue) HasEnoughData(n int) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size >= n
}
