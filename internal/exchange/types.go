package exchange

// OrderStatus mirrors spec §4.8's closed enum of order lifecycle states.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderClosed    OrderStatus = "closed"
	OrderCanceled  OrderStatus = "canceled"
	OrderRejected  OrderStatus = "rejected"
	OrderExpired   OrderStatus = "expired"
	OrderUnknown   OrderStatus = "unknown"
)

// OrderSide is the side of a create_order call.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType distinguishes market entries from protective stop orders.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeStopLoss  OrderType = "stop_loss"
)

// OrderResult is the Order Service's (C8) return value for every
// create/cancel/status operation (spec §4.8).
type OrderResult struct {
	OrderID          string
	Status           OrderStatus
	RequestedAmount  float64
	FilledAmount     float64
	RemainingAmount  float64
	AveragePrice     float64
	ErrorMessage     string
	ErrorCode        string
}

// IsRejected reports whether the exchange rejected the order outright.
func (r OrderResult) IsRejected() bool { return r.Status == OrderRejected }

// IsPartiallyFilled reports a fill strictly between zero and the requested amount.
func (r OrderResult) IsPartiallyFilled() bool {
	return r.FilledAmount > 0 && r.FilledAmount < r.RequestedAmount
}

// IsFullyFilled reports the order filled its entire requested amount.
func (r OrderResult) IsFullyFilled() bool {
	return r.FilledAmount >= r.RequestedAmount && r.RequestedAmount > 0
}

// IsSuccess reports any non-zero fill that wasn't rejected or canceled.
func (r OrderResult) IsSuccess() bool {
	return r.FilledAmount > 0 && r.Status != OrderRejected && r.Status != OrderCanceled
}

// Ticker is the exchange's snapshot of a symbol's last price and 24h range.
type Ticker struct {
	Last          float64
	High          float64
	Low           float64
	Volume        float64
	ChangePercent float64
}

// Balance is the free-margin balance used for position sizing.
type Balance struct {
	FreeUSDT float64
}

// RawPosition is the exchange's position record for one symbol. An empty
// RawPosition (Amount == 0) means no position is held.
type RawPosition struct {
	Symbol        string
	Side          string // "long" or "short"
	Amount        float64
	EntryPrice    float64
	UnrealizedPnL float64
}
