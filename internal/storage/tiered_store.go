package storage

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// TieredStore is the C2 component: a mapping (symbol, timeframe) -> ordered
// bar sequence, backed by a hot in-memory ring, a warm on-disk mirror, and a
// cold downsampled on-disk tier. Grounded on the teacher's DataService
// (in-memory queue + async best-effort SQLite persistence) and
// original_source/alphapulse/tiered_storage.py (three-tier get/query
// semantics, pure-fold aggregation).
type TieredStore struct {
	hot  *QueueManager
	warm *BarRepository
}

func NewTieredStore(hot *QueueManager, warm *BarRepository) *TieredStore {
	return &TieredStore{hot: hot, warm: warm}
}

// Append upserts a bar into the hot tier and asynchronously mirrors it to
// the warm tier. A warm-write failure is logged but never fails the caller
// (spec §4.2). Returns false if the bar was rejected by the hot tier's
// monotonicity check (older than the latest stored bar).
func (s *TieredStore) Append(bar models.Bar) bool {
	accepted := s.hot.Queue(bar.Symbol, bar.Timeframe).Push(bar)
	if !accepted {
		return false
	}
	go func() {
		if err := s.warm.InsertWarm(bar); err != nil {
			log.Warn().Err(err).Str("symbol", bar.Symbol).Str("timeframe", bar.Timeframe).
				Msg("warm-tier mirror failed")
		}
	}()
	return true
}

// AppendBatch upserts many bars (oldest-first) and mirrors the batch to warm
// in one transaction, used when rehydrating from the exchange.
func (s *TieredStore) AppendBatch(bars []models.Bar) {
	if len(bars) == 0 {
		return
	}
	q := s.hot.Queue(bars[0].Symbol, bars[0].Timeframe)
	for _, b := range bars {
		q.Push(b)
	}
	go func() {
		if err := s.warm.InsertWarmBatch(bars); err != nil {
			log.Warn().Err(err).Msg("warm-tier batch mirror failed")
		}
	}()
}

// Get returns the newest `limit` bars, oldest-first, from hot, falling back
// to warm when the hot tier doesn't have enough.
func (s *TieredStore) Get(symbol, timeframe string, limit int) ([]models.Bar, error) {
	q := s.hot.Queue(symbol, timeframe)
	bars := q.GetLast(limit)
	if len(bars) >= limit {
		return bars, nil
	}

	warmBars, err := s.warm.GetWarmLast(symbol, timeframe, limit)
	if err != nil {
		if len(bars) > 0 {
			return bars, nil // degrade to what the hot tier has
		}
		return nil, fmt.Errorf("tiered store get: %w", err)
	}
	if len(warmBars) > len(bars) {
		return warmBars, nil
	}
	return bars, nil
}

// periodToMs maps a period string to a millisecond window, mirroring
// original_source/alphapulse/tiered_storage.py's period-to-milliseconds table.
func periodToMs(period string) (int64, error) {
	switch period {
	case "1h":
		return int64(time.Hour / time.Millisecond), nil
	case "4h":
		return int64(4 * time.Hour / time.Millisecond), nil
	case "24h", "1d":
		return int64(24 * time.Hour / time.Millisecond), nil
	case "7d", "1w":
		return int64(7 * 24 * time.Hour / time.Millisecond), nil
	case "30d", "1m":
		return int64(30 * 24 * time.Hour / time.Millisecond), nil
	default:
		return 0, fmt.Errorf("unrecognized period %q", period)
	}
}

// QueryByPeriod returns bars within the last `period` (e.g. "1h", "4h",
// "24h", "7d", "30d") of the latest known bar, oldest-first. Spills to warm
// on a hot-tier miss.
func (s *TieredStore) QueryByPeriod(symbol, timeframe, period string) ([]models.Bar, error) {
	windowMs, err := periodToMs(period)
	if err != nil {
		return nil, err
	}

	q := s.hot.Queue(symbol, timeframe)
	latest, ok := q.GetLatest()
	if !ok {
		return s.queryWarmByPeriod(symbol, timeframe, windowMs)
	}

	sinceMs := latest.TimestampMs - windowMs
	hot := q.GetSince(sinceMs)
	if len(hot) > 0 && hot[0].TimestampMs <= sinceMs+1 {
		return hot, nil
	}
	// hot tier doesn't cover the full window; fall back to warm
	return s.queryWarmByPeriod(symbol, timeframe, windowMs)
}

func (s *TieredStore) queryWarmByPeriod(symbol, timeframe string, windowMs int64) ([]models.Bar, error) {
	toMs := time.Now().UnixMilli()
	fromMs := toMs - windowMs
	return s.warm.GetWarmRange(symbol, timeframe, fromMs, toMs)
}

// aggregateOHLCV is a pure fold over a contiguous window of source bars:
// open=first, high=max, low=min, close=last, volume=sum. Grounded verbatim
// on original_source/alphapulse/tiered_storage.py's _aggregate_ohlcv.
func aggregateOHLCV(symbol, dstTimeframe string, window []models.Bar) models.Bar {
	first := window[0]
	out := models.Bar{
		Symbol:      symbol,
		Timeframe:   dstTimeframe,
		TimestampMs: first.TimestampMs,
		Open:        first.Open,
		High:        first.High,
		Low:         first.Low,
		Close:       window[len(window)-1].Close,
	}
	for _, b := range window {
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
		out.Volume += b.Volume
	}
	return out
}

// AggregateAndStore folds src-timeframe bars into dst-timeframe bars over
// contiguous windows of `barsPerWindow` source bars and writes the result to
// both the hot and cold tiers. A destination bar is only emitted when at
// least 80% of its expected source bars are present (spec §4.2). Running
// this twice over the same source data yields the same cold rows (the
// write is idempotent because aggregateOHLCV is a pure function of the
// window and InsertCold upserts by primary key).
func (s *TieredStore) AggregateAndStore(symbol, srcTimeframe, dstTimeframe string, barsPerWindow int) error {
	src := s.hot.Queue(symbol, srcTimeframe).GetAll()
	if len(src) == 0 {
		return nil
	}

	minRequired := (barsPerWindow*4 + 4) / 5 // ceil(80% of barsPerWindow)
	warmRepo := s.warm

	for start := 0; start+barsPerWindow <= len(src)+barsPerWindow-1 && start < len(src); start += barsPerWindow {
		end := start + barsPerWindow
		if end > len(src) {
			end = len(src)
		}
		window := src[start:end]
		if len(window) < minRequired {
			continue
		}
		dstBar := aggregateOHLCV(symbol, dstTimeframe, window)

		s.hot.Queue(symbol, dstTimeframe).Push(dstBar)
		if err := warmRepo.InsertCold(dstBar, srcTimeframe, len(window)); err != nil {
			return fmt.Errorf("aggregate_and_store: cold write failed: %w", err)
		}
	}
	return nil
}
