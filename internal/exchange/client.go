package exchange

import (
	"context"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// Client is the required set of exchange operations (spec §6): the
// interface the rest of the system programs against, implemented
// concretely by OKXClient. Mirrors the teacher binance.Client's method set,
// generalized from Binance spot endpoints to OKX swap endpoints and
// narrowed to exactly the operations spec §6 names.
type Client interface {
	// FetchOHLCV returns newest-last bars, inclusive of the in-progress bar.
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	FetchBalance(ctx context.Context) (Balance, error)
	FetchPosition(ctx context.Context, symbol string) (RawPosition, error)
	CreateOrder(ctx context.Context, symbol string, side OrderSide, amount, price float64, orderType OrderType, clientOrderID string) (OrderResult, error)
	FetchOrder(ctx context.Context, orderID, symbol string) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID, symbol string) (bool, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// FetchBars adapts Client to monitor.BarFetcher's smaller interface.
func (c *clientAdapter) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	return c.Client.FetchOHLCV(ctx, symbol, timeframe, limit)
}

type clientAdapter struct{ Client }

// AsBarFetcher narrows a Client down to monitor's BarFetcher interface.
func AsBarFetcher(c Client) *clientAdapter {
	return &clientAdapter{Client: c}
}
