package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/config"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/indicators"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/storage"
)

// barsPerWeek is the number of working-timeframe bars needed to cover 7
// days of history (spec §4.3 step 1): 2016 at 5m, with margin.
const barsPerWeek = 2100

// State is the market monitor's per-symbol state machine position
// (spec §4.3: Idle -> Fetching -> Scoring -> Fused -> [Gated|Cooling|Emitted]).
type State string

const (
	StateIdle    State = "idle"
	StateFetching State = "fetching"
	StateScoring State = "scoring"
	StateFused   State = "fused"
	StateGated   State = "gated"
	StateCooling State = "cooling"
	StateEmitted State = "emitted"
)

// BarFetcher is the subset of the exchange client the monitor needs. Defined
// here (consumer side) rather than in the exchange package, so monitor
// depends only on the shape it actually uses.
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error)
}

// Monitor is the C3 market monitor: runs its own ticker, maintains the
// tiered store, computes fused signals, and applies the cooldown filter.
// Grounded on the teacher orchestrator's pollPriceFallback/pollKlinesAndTrade
// ticker-driven cadence (internal/orchestrator/orchestrator.go), generalized
// into an independent task with its own interval per spec §5.
type Monitor struct {
	cfg      *config.Config
	fetcher  BarFetcher
	store    *storage.TieredStore
	db       *storage.SQLiteDB
	rebound  *ReboundDetector

	mu      sync.RWMutex
	state   State
	prevSnap *models.IndicatorSnapshot

	results chan models.SignalCheckResult
}

func NewMonitor(cfg *config.Config, fetcher BarFetcher, store *storage.TieredStore, db *storage.SQLiteDB) *Monitor {
	return &Monitor{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		db:      db,
		rebound: NewReboundDetector(),
		state:   StateIdle,
		results: make(chan models.SignalCheckResult, 1),
	}
}

// Results returns the channel the monitor publishes terminal SignalCheckResults
// on. Buffered with capacity 1: the orchestrator is expected to drain it every
// cycle; a result left unconsumed across two ticks is overwritten (the newest
// read always wins, matching the monitor's "retains only the last snapshot"
// contract).
func (m *Monitor) Results() <-chan models.SignalCheckResult {
	return m.results
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State reports the monitor's current per-symbol state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run ticks every MonitorTickSeconds until ctx is canceled. Each tick is
// independent: a panic or fetch error during one tick never prevents the
// next.
func (m *Monitor) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.Cadence.MonitorTickSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("market monitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("market monitor stopping")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one fetch/score/fuse/cooldown pass for the configured symbol and
// working timeframe, publishing a SignalCheckResult to Results() on success.
// Recovers from a panic within the pass so one bad tick can't kill the task.
func (m *Monitor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("market monitor tick recovered from panic")
			m.setState(StateIdle)
		}
	}()

	symbol := m.cfg.Exchange.Symbol
	timeframe := m.cfg.Store.WorkingTimeframe

	m.setState(StateFetching)
	bars, err := m.fetcher.FetchBars(ctx, symbol, timeframe, barsPerWeek)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("bar fetch failed, retrying next tick")
		m.setState(StateIdle)
		return
	}
	m.store.AppendBatch(bars)

	m.setState(StateScoring)
	result := m.evaluate(symbol, timeframe)

	m.setState(StateFused)
	result = m.applyCooldown(symbol, result)

	select {
	case m.results <- result:
	default:
		// drain the stale result and push the fresh one
		select {
		case <-m.results:
		default:
		}
		m.results <- result
	}
}

// evaluate computes the indicator snapshot, trade score, rebound state, and
// fused signal for one symbol/timeframe, without the cooldown filter.
func (m *Monitor) evaluate(symbol, timeframe string) models.SignalCheckResult {
	recent, err := m.store.Get(symbol, timeframe, barsPerWeek)
	if err != nil || len(recent) == 0 {
		return models.SignalCheckResult{
			SignalType: models.SignalHold,
			Message:    "indicator unready",
		}
	}

	indCfg := &indicators.IndicatorConfig{
		RSIPeriod:  m.cfg.Indicators.RSIPeriod,
		MACDFast:   m.cfg.Indicators.MACDFast,
		MACDSlow:   m.cfg.Indicators.MACDSlow,
		MACDSignal: m.cfg.Indicators.MACDSignal,
		BBPeriod:   m.cfg.Indicators.BBPeriod,
		BBStdDev:   m.cfg.Indicators.BBStdDev,
		ADXPeriod:  m.cfg.Indicators.ADXPeriod,
		ATRPeriod:  m.cfg.Indicators.ATRPeriod,
	}
	snapshot := indicators.Snapshot(recent, indCfg)
	if snapshot.Unready {
		return models.SignalCheckResult{
			SignalType: models.SignalHold,
			Snapshot:   snapshot,
			Message:    "indicator unready",
		}
	}

	score := TradeScore(snapshot)

	m.mu.RLock()
	prev := m.prevSnap
	m.mu.RUnlock()

	var reboundState models.ReboundState
	if prev != nil {
		reboundState = m.rebound.Check(snapshot)
	} else {
		m.rebound.Check(snapshot) // seed history without expecting a rebound on the first tick
	}

	m.mu.Lock()
	snapCopy := snapshot
	m.prevSnap = &snapCopy
	m.mu.Unlock()

	signalType, message := FuseSnapshot(snapshot, score, reboundState)
	fusedConfidence := (score.Score + 1) / 2
	if reboundState.IsReboundOpportunity {
		fusedConfidence = 0.4*fusedConfidence + 0.6*reboundState.Confidence
	}

	shouldTrade := signalType == models.SignalBuy || signalType == models.SignalSell

	return models.SignalCheckResult{
		ShouldTrade:     shouldTrade,
		SignalType:      signalType,
		TradeScore:      score.Score,
		FusedConfidence: clip(fusedConfidence, 0, 1),
		Triggers:        reboundState.Triggers,
		Snapshot:        snapshot,
		Message:         message,
	}
}

// applyCooldown demotes a BUY/SELL to HOLD if last_fire[symbol][side] is
// within cooldown_minutes. The cooldown timestamp is stamped only when the
// caller later confirms execution via ArmCooldown — per spec §4.3, "the
// cooldown is armed by execution, not by intent".
func (m *Monitor) applyCooldown(symbol string, result models.SignalCheckResult) models.SignalCheckResult {
	if result.SignalType != models.SignalBuy && result.SignalType != models.SignalSell {
		m.setState(StateFused)
		return result
	}

	lastFireMs, err := m.db.LastFire(symbol, string(result.SignalType))
	if err != nil {
		log.Warn().Err(err).Msg("failed to read cooldown state, proceeding without it")
		lastFireMs = 0
	}

	cooldown := time.Duration(m.cfg.Scoring.CooldownMinutes) * time.Minute
	elapsed := time.Since(time.UnixMilli(lastFireMs))
	if lastFireMs > 0 && elapsed < cooldown {
		m.setState(StateCooling)
		result.ShouldTrade = false
		result.SignalType = models.SignalHold
		result.Message = "cooldown"
		return result
	}

	m.setState(StateEmitted)
	return result
}

// ArmCooldown stamps last_fire[symbol][side] to now. Called by the
// orchestrator only after it has actually executed on a BUY/SELL decision,
// per the "armed by execution, not intent" rule.
func (m *Monitor) ArmCooldown(symbol string, side models.SignalType) error {
	if err := m.db.SetLastFire(symbol, string(side), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("arm cooldown: %w", err)
	}
	return nil
}

// ConsumeRebound marks the current rebound opportunity as acted upon,
// disarming the detector until RSI next revisits oversold territory.
func (m *Monitor) ConsumeRebound() {
	m.rebound.Consume()
}
