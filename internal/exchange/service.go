package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service is the C8 Order Service: thin idempotent wrappers over Client's
// raw create/cancel/status operations. Every create_order/create_stop_loss
// call is assigned a fresh client-supplied correlation id, grounded on the
// teacher's execution/live.go (`order.ClientID = uuid.New().String()`)
// carried over unchanged as the idempotency mechanism spec §4.8 requires
// ("must include a client-supplied correlation id").
type Service struct {
	client Client
}

func NewService(client Client) *Service {
	return &Service{client: client}
}

// CreateOrder places a market order and returns its OrderResult. A
// duplicate-clOrdId rejection from the exchange surfaces as a non-fatal
// rejected OrderResult, never as an error (spec §4.8: "rejection on
// duplicate is a non-fatal warning").
func (s *Service) CreateOrder(ctx context.Context, symbol string, side OrderSide, amount, price float64) (OrderResult, error) {
	clientOrderID := uuid.New().String()
	result, err := s.client.CreateOrder(ctx, symbol, side, amount, price, OrderTypeMarket, clientOrderID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("create_order: %w", err)
	}
	if result.IsRejected() {
		log.Warn().Str("client_order_id", clientOrderID).Str("error", result.ErrorMessage).
			Msg("order rejected")
	}
	return result, nil
}

// CreateStopLoss places a protective stop order.
func (s *Service) CreateStopLoss(ctx context.Context, symbol string, side OrderSide, amount, stopPrice float64) (OrderResult, error) {
	clientOrderID := uuid.New().String()
	result, err := s.client.CreateOrder(ctx, symbol, side, amount, stopPrice, OrderTypeStopLoss, clientOrderID)
	if err != nil {
		return OrderResult{}, fmt.Errorf("create_stop_loss: %w", err)
	}
	if result.IsRejected() {
		log.Warn().Str("client_order_id", clientOrderID).Str("error", result.ErrorMessage).
			Msg("stop-loss order rejected")
	}
	return result, nil
}

// CancelOrder cancels an order by id. An unknown id returns false without
// raising (spec §4.8).
func (s *Service) CancelOrder(ctx context.Context, orderID, symbol string) bool {
	ok, err := s.client.CancelOrder(ctx, orderID, symbol)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("cancel_order transport error, treating as not canceled")
		return false
	}
	return ok
}

// GetOrderStatus fetches the current state of a previously placed order.
func (s *Service) GetOrderStatus(ctx context.Context, orderID, symbol string) (OrderResult, error) {
	result, err := s.client.FetchOrder(ctx, orderID, symbol)
	if err != nil {
		return OrderResult{}, fmt.Errorf("get_order_status: %w", err)
	}
	return result, nil
}
