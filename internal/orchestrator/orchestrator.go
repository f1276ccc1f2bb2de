package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/config"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/exchange"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/monitor"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/position"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/signal"
)

// Orchestrator is the C9 trading bot: the sole writer of position state and
// the sole caller of the order service's write operations (spec §5).
// Adapted from the teacher's Orchestrator (component ownership, Start/Stop,
// subscriber broadcasting) rewritten to drive spec §4.9's
// open/hold/close/update-stop dispatch table instead of the teacher's
// strategy-scorer signal flow.
type Orchestrator struct {
	cfg *config.Config

	monitor  *monitor.Monitor
	posMgr   *position.Manager
	client   exchange.Client
	orders   *exchange.Service
	advisor  signal.Advisor

	broadcaster *Broadcaster

	mu        sync.RWMutex
	state     TradingState
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(
	cfg *config.Config,
	mon *monitor.Monitor,
	posMgr *position.Manager,
	client exchange.Client,
	orders *exchange.Service,
	advisor signal.Advisor,
) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		monitor: mon,
		posMgr:  posMgr,
		client:  client,
		orders:  orders,
		advisor: advisor,
	}
	o.broadcaster = NewBroadcaster(o)
	return o
}

// Start launches the monitor's independent ticking task and marks the
// orchestrator ready to accept RunCycle calls from the scheduler. The
// orchestrator itself has no ticker of its own — the scheduler (C6) drives
// its cadence (spec §5: "C3 and C9 each run as an independent task").
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.startTime = time.Now()

	o.mu.Lock()
	o.state.IsRunning = true
	o.state.StartTime = o.startTime
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.monitor.Run(o.ctx)
	}()

	log.Info().Str("symbol", o.cfg.Exchange.Symbol).Msg("orchestrator started")
}

// Stop cancels the monitor task and waits for it to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	o.mu.Lock()
	o.state.IsRunning = false
	o.mu.Unlock()

	o.broadcaster.Close()
	log.Info().Msg("orchestrator stopped")
}

// RunCycle is the scheduler's (C6) callback: one full open/hold/close/
// update-stop pass. Recovers from a panic so a single bad cycle never kills
// the scheduler's task.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	cycleID := uuid.New().String()
	phase := "fetch_ticker"
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("cycle_id", cycleID).Str("phase", phase).
				Msg("orchestrator cycle recovered from panic")
			o.recordError(fmt.Sprintf("cycle panic: %v", r))
		}
	}()

	symbol := o.cfg.Exchange.Symbol

	ticker, err := o.client.FetchTicker(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("fetch_ticker failed, skipping cycle")
		return
	}
	price := ticker.Last

	phase = "fetch_position"
	rawPos, err := o.client.FetchPosition(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("fetch_position failed, skipping cycle")
		return
	}
	o.posMgr.UpdateFromExchange(rawPosToModel(symbol, rawPos))

	phase = "signal"
	result := o.latestSignal()
	action := models.ActionNoop

	phase = "dispatch"
	// P8/spec §7's InvariantViolation defensive mode: an exchange-reported
	// short pre-empts the normal dispatch entirely. No opening BUY fires
	// while a short is outstanding — only the reducing buy runs.
	if o.posMgr.Position().Side == models.PositionShortToClose {
		action = o.reduceShort(ctx, symbol, o.posMgr.Position().Amount)
	} else {
		switch {
		case result.SignalType == models.SignalBuy && !o.posMgr.HasPosition():
			action = o.openPosition(ctx, symbol, price, result)
		case result.SignalType == models.SignalBuy && o.posMgr.HasPosition():
			action = o.updateStopLoss(ctx, symbol, price)
		case result.SignalType == models.SignalHold && o.posMgr.HasPosition():
			action = o.updateStopLoss(ctx, symbol, price)
		case result.SignalType == models.SignalHold && !o.posMgr.HasPosition():
			action = models.ActionNoop
		case result.SignalType == models.SignalSell && o.posMgr.HasPosition():
			action = o.closePosition(ctx, symbol, price)
		case result.SignalType == models.SignalSell && !o.posMgr.HasPosition():
			action = models.ActionNoop
		}
	}

	phase = "record"
	o.recordSignal(models.EmittedSignal{
		TimestampMs:  time.Now().UnixMilli(),
		Symbol:       symbol,
		SignalType:   result.SignalType,
		Confidence:   result.FusedConfidence,
		TradeScore:   result.TradeScore,
		Triggers:     result.Triggers,
		Price:        price,
		PositionSide: o.posMgr.Position().Side,
		ActionTaken:  action,
	})

	o.mu.Lock()
	o.state.CurrentPrice = price
	o.state.LastUpdate = time.Now()
	o.state.Position = o.posMgr.Position()
	o.mu.Unlock()
}

// latestSignal drains the monitor's result channel for the freshest
// SignalCheckResult, applying the deterministic validator and (when the
// signal isn't a strong_signal) consulting the AI advisor. On validator
// rejection or advisor timeout/error, the orchestrator falls back to the
// validator's decision, never to blocking (spec §4.5).
func (o *Orchestrator) latestSignal() models.SignalCheckResult {
	var result models.SignalCheckResult
	select {
	case result = <-o.monitor.Results():
	default:
		return models.SignalCheckResult{SignalType: models.SignalHold, Message: "no fresh signal"}
	}

	validation := signal.Validate(result, o.cfg.Scoring.MinConfidence)
	if !validation.Passed {
		result.SignalType = models.SignalHold
		result.ShouldTrade = false
		result.Message = validation.Message
		return result
	}

	if signal.StrongSignalBypass(result.FusedConfidence, o.cfg.Scoring.StrongSignal) {
		return result
	}

	advisorCtx, cancel := context.WithTimeout(o.ctx, 60*time.Second)
	defer cancel()

	advice, err := o.advisor.Advise(advisorCtx, result.Snapshot, validation)
	if err != nil {
		log.Warn().Err(err).Msg("advisor error/timeout, falling back to validator decision")
		return result
	}
	result.SignalType = advice.Signal
	result.FusedConfidence = advice.Confidence
	return result
}

// floor4 truncates to 4 decimal places, per spec §4.9's contract sizing
// formula (`floor4`).
func floor4(v float64) float64 {
	return math.Floor(v*10000) / 10000
}

// openPosition implements spec §4.9's open_position: size the position off
// free balance and leverage, market-buy, then place the initial protective
// stop.
func (o *Orchestrator) openPosition(ctx context.Context, symbol string, price float64, result models.SignalCheckResult) models.ActionTaken {
	balance, err := o.client.FetchBalance(ctx)
	if err != nil {
		log.Error().Err(err).Msg("fetch_balance failed, skipping open")
		return models.ActionNoop
	}

	safeBalance := balance.FreeUSDT * o.cfg.Safety.SafeBalanceFraction
	maxContracts := floor4(safeBalance * float64(o.cfg.Exchange.Leverage) / price)
	if maxContracts < o.cfg.Safety.MinContract {
		log.Warn().Float64("max_contracts", maxContracts).Msg("insufficient balance to open position, skipping cycle")
		return models.ActionNoop
	}

	orderResult, err := o.orders.CreateOrder(ctx, symbol, exchange.SideBuy, maxContracts, price)
	if err != nil {
		log.Error().Err(err).Msg("open_position: create_order transport error")
		return models.ActionNoop
	}
	if !orderResult.IsSuccess() {
		log.Warn().Str("error", orderResult.ErrorMessage).Msg("open_position: order rejected")
		return models.ActionNoop
	}

	filled := orderResult.FilledAmount
	if filled <= 0 {
		filled = maxContracts
	}

	initialStop := price * (1 - o.cfg.StopPolicy.LossPct)
	stopResult, err := o.orders.CreateStopLoss(ctx, symbol, exchange.SideSell, filled, initialStop)
	if err != nil || !stopResult.IsSuccess() {
		// Position remains unprotected until the next cycle retries stop
		// creation (spec §4.9 failure mode).
		log.Error().Err(err).Msg("open_position: stop-loss creation failed, position unprotected until next cycle")
	} else {
		o.posMgr.SetStopOrder(stopResult.OrderID, initialStop, filled)
	}

	if err := o.monitor.ArmCooldown(symbol, models.SignalBuy); err != nil {
		log.Warn().Err(err).Msg("failed to arm cooldown after open")
	}
	o.monitor.ConsumeRebound()

	return models.ActionOpen
}

// updateStopLoss implements spec §4.9's update_stop_loss: recompute the
// ratcheting stop and replace the live order only if it moved by at least
// tolerance_pct.
func (o *Orchestrator) updateStopLoss(ctx context.Context, symbol string, currentPrice float64) models.ActionTaken {
	newStop := o.posMgr.CalculateStopPrice(currentPrice)

	if !o.posMgr.ShouldUpdateStop(newStop) {
		log.Debug().Float64("new_stop", newStop).Msg("update_stop_loss: skipped, within tolerance")
		return models.ActionNoop
	}
	o.posMgr.LogStopLossInfo(currentPrice, newStop)

	prevOrderID := o.posMgr.StopOrderID()
	if prevOrderID != "" {
		o.orders.CancelOrder(ctx, prevOrderID, symbol) // tolerate failure (spec §4.9)
	}

	amount := o.posMgr.Position().Amount
	stopResult, err := o.orders.CreateStopLoss(ctx, symbol, exchange.SideSell, amount, newStop)
	if err != nil || !stopResult.IsSuccess() {
		log.Error().Err(err).Msg("update_stop_loss: replacement stop-loss creation failed")
		return models.ActionNoop
	}
	o.posMgr.SetStopOrder(stopResult.OrderID, newStop, amount)
	return models.ActionUpdateStop
}

// closePosition implements spec §4.9's close_position.
func (o *Orchestrator) closePosition(ctx context.Context, symbol string, currentPrice float64) models.ActionTaken {
	amount := o.posMgr.Position().Amount

	orderResult, err := o.orders.CreateOrder(ctx, symbol, exchange.SideSell, amount, currentPrice)
	if err != nil {
		log.Error().Err(err).Msg("close_position: create_order transport error, retrying next cycle")
		return models.ActionNoop
	}
	if !orderResult.IsSuccess() {
		log.Warn().Str("error", orderResult.ErrorMessage).Msg("close_position: order rejected")
		return models.ActionNoop
	}

	if stopID := o.posMgr.StopOrderID(); stopID != "" {
		o.orders.CancelOrder(ctx, stopID, symbol) // tolerate failure
	}
	o.posMgr.ClearStopOrder()
	o.posMgr.UpdateFromExchange(models.Position{Symbol: symbol, Side: models.PositionNone})

	if err := o.monitor.ArmCooldown(symbol, models.SignalSell); err != nil {
		log.Warn().Err(err).Msg("failed to arm cooldown after close")
	}

	return models.ActionClose
}

// ManualClosePosition lets the status API force a close_position pass
// outside the scheduler's cadence, for operator intervention. It reuses
// closePosition's exact logic, so a manual close still cancels the live
// stop order and arms the sell cooldown.
func (o *Orchestrator) ManualClosePosition(ctx context.Context) (models.ActionTaken, error) {
	if !o.posMgr.HasPosition() {
		return models.ActionNoop, fmt.Errorf("manual close: no open position")
	}
	symbol := o.cfg.Exchange.Symbol
	ticker, err := o.client.FetchTicker(ctx, symbol)
	if err != nil {
		return models.ActionNoop, fmt.Errorf("manual close: fetch_ticker failed: %w", err)
	}
	action := o.closePosition(ctx, symbol, ticker.Last)

	o.mu.Lock()
	o.state.Position = o.posMgr.Position()
	o.mu.Unlock()

	return action, nil
}

// reduceShort issues a closing buy against an exchange-reported short
// position. This core never opens a short itself (spec §3's position
// model); reduceShort only runs from RunCycle's defensive-mode branch, when
// the exchange hands back a position this bot did not open.
func (o *Orchestrator) reduceShort(ctx context.Context, symbol string, amount float64) models.ActionTaken {
	log.Error().Str("symbol", symbol).Float64("amount", amount).
		Msg("invariant violation: exchange reports a short position, issuing reducing buy")

	orderResult, err := o.orders.CreateOrder(ctx, symbol, exchange.SideBuy, amount, 0)
	if err != nil {
		log.Error().Err(err).Msg("reduce_short: create_order transport error, retrying next cycle")
		return models.ActionNoop
	}
	if !orderResult.IsSuccess() {
		log.Warn().Str("error", orderResult.ErrorMessage).Msg("reduce_short: order rejected")
		return models.ActionNoop
	}
	return models.ActionClose
}

func rawPosToModel(symbol string, raw exchange.RawPosition) models.Position {
	if raw.Amount <= 0 {
		return models.Position{Symbol: symbol, Side: models.PositionNone}
	}
	side := models.PositionLong
	if raw.Side == "short" {
		side = models.PositionShortToClose // P8: a short mirrored from the exchange is never opened by this bot, only reduced
	}
	return models.Position{
		Symbol:        symbol,
		Side:          side,
		Amount:        raw.Amount,
		EntryPrice:    raw.EntryPrice,
		UnrealizedPnL: raw.UnrealizedPnL,
	}
}

func (o *Orchestrator) recordSignal(sig models.EmittedSignal) {
	o.mu.Lock()
	o.state.LastSignal = &sig
	o.mu.Unlock()

	o.broadcaster.Broadcast(BroadcastMessage{
		Type:      MessageTypeSignal,
		Timestamp: time.Now(),
		Data:      SignalUpdate{Signal: sig},
	})
}

func (o *Orchestrator) recordError(msg string) {
	o.mu.Lock()
	o.state.Errors = append(o.state.Errors, msg)
	o.mu.Unlock()

	o.broadcaster.Broadcast(BroadcastMessage{
		Type:      MessageTypeError,
		Timestamp: time.Now(),
		Data:      ErrorUpdate{Message: msg, Time: time.Now()},
	})
}

// State returns a copy of the orchestrator's current externally-observable
// state, for the read-only status API.
func (o *Orchestrator) State() TradingState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Subscribe adds a broadcast subscriber and returns its channel.
func (o *Orchestrator) Subscribe(id string) chan BroadcastMessage {
	return o.broadcaster.Subscribe(id)
}

// Unsubscribe removes a broadcast subscriber.
func (o *Orchestrator) Unsubscribe(id string) {
	o.broadcaster.Unsubscribe(id)
}
