package storage

import (
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// BarRepository persists bars to the warm and cold SQLite tables. Grounded
// on the teacher's CandleRepository (Insert/InsertBatch/GetRange/GetLast),
// with the warm-tier write strategy changed to plain INSERT OR IGNORE per
// spec §3 (the hot tier is the sole owner of last-write-wins overwrite
// semantics; the warm mirror is best-effort and never contradicts a bar
// already on disk).
type BarRepository struct {
	db *SQLiteDB
}

func NewBarRepository(db *SQLiteDB) *BarRepository {
	return &BarRepository{db: db}
}

// InsertWarm mirrors a single bar into the warm tier. Best-effort: callers
// treat a returned error as "log and continue", never as a reason to fail
// the hot-tier append (spec §4.2).
func (r *BarRepository) InsertWarm(b models.Bar) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO bars_warm
			(symbol, timeframe, timestamp_ms, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.Symbol, b.Timeframe, b.TimestampMs, b.Open, b.High, b.Low, b.Close, b.Volume)
	return err
}

// InsertWarmBatch mirrors many bars in one transaction.
func (r *BarRepository) InsertWarmBatch(bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO bars_warm
			(symbol, timeframe, timestamp_ms, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Symbol, b.Timeframe, b.TimestampMs, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetWarmRange returns warm bars for (symbol, timeframe) within
// [fromMs, toMs], oldest-first.
func (r *BarRepository) GetWarmRange(symbol, timeframe string, fromMs, toMs int64) ([]models.Bar, error) {
	rows, err := r.db.Query(`
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars_warm
		WHERE symbol = ? AND timeframe = ? AND timestamp_ms BETWEEN ? AND ?
		ORDER BY timestamp_ms ASC
	`, symbol, timeframe, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		var b models.Bar
		b.Symbol, b.Timeframe = symbol, timeframe
		if err := rows.Scan(&b.TimestampMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetWarmLast returns the last n warm bars, oldest-first.
func (r *BarRepository) GetWarmLast(symbol, timeframe string, n int) ([]models.Bar, error) {
	rows, err := r.db.Query(`
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars_warm
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp_ms DESC
		LIMIT ?
	`, symbol, timeframe, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		var b models.Bar
		b.Symbol, b.Timeframe = symbol, timeframe
		if err := rows.Scan(&b.TimestampMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	// reverse DESC -> ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// InsertCold writes one downsampled bar, with conflict-merge semantics
// (teacher's ON CONFLICT...DO UPDATE style, kept here because cold rows are
// recomputed idempotently by aggregate_and_store and must converge to the
// same values on a re-run, per spec §4.2's idempotence invariant).
func (r *BarRepository) InsertCold(b models.Bar, sourceTimeframe string, aggregationCount int) error {
	_, err := r.db.Exec(`
		INSERT INTO bars_cold
			(symbol, timeframe, timestamp_ms, source_timeframe, aggregation_count, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, timestamp_ms) DO UPDATE SET
			source_timeframe = excluded.source_timeframe,
			aggregation_count = excluded.aggregation_count,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`, b.Symbol, b.Timeframe, b.TimestampMs, sourceTimeframe, aggregationCount,
		b.Open, b.High, b.Low, b.Close, b.Volume)
	return err
}

// GetColdRange returns cold bars for (symbol, timeframe) within
// [fromMs, toMs], oldest-first.
func (r *BarRepository) GetColdRange(symbol, timeframe string, fromMs, toMs int64) ([]models.Bar, error) {
	rows, err := r.db.Query(`
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars_cold
		WHERE symbol = ? AND timeframe = ? AND timestamp_ms BETWEEN ? AND ?
		ORDER BY timestamp_ms ASC
	`, symbol, timeframe, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		var b models.Bar
		b.Symbol, b.Timeframe = symbol, timeframe
		if err := rows.Scan(&b.TimestampMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
