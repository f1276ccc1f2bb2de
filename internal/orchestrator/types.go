package orchestrator

import (
	"time"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// Config holds the orchestrator's own configuration, distinct from
// config.Config: it carries only what C9 itself needs once the component
// wiring is complete.
type Config struct {
	Symbol            string
	MinConfidence     float64
	StrongSignal      float64
	SafeBalanceFraction float64
	MinContract       float64
	Leverage          int
}

// TradingState is the orchestrator's externally-observable snapshot,
// narrowed from the teacher's TradingState to the single-symbol,
// single-position fields spec §6's "position", "signal history", and
// "errors" status surfaces actually need.
type TradingState struct {
	IsRunning      bool
	StartTime      time.Time
	LastUpdate     time.Time

	CurrentPrice float64
	Position     models.Position

	LastSignal *models.EmittedSignal
	Errors     []string
}

// BroadcastMessage is a WebSocket-facing envelope, kept from the teacher
// unchanged in shape.
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const (
	MessageTypeState    = "state"
	MessageTypeSignal   = "signal"
	MessageTypePosition = "position"
	MessageTypeError    = "error"
	MessageTypePrice    = "price"
)

// SignalUpdate is the signal-history broadcast payload.
type SignalUpdate struct {
	Signal models.EmittedSignal `json:"signal"`
}

// PositionUpdate is the position-change broadcast payload.
type PositionUpdate struct {
	Position  models.Position `json:"position"`
	EventType string          `json:"eventType"` // opened, closed, stop_updated
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorUpdate is a broadcast-facing error notice.
type ErrorUpdate struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// PriceUpdate is a lightweight high-frequency price tick payload.
type PriceUpdate struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
