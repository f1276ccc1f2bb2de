package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/orchestrator"
	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/storage"
	"github.com/labstack/echo/v4"
)

// CandleHandler serves bar data out of the tiered store (C2) and the
// latest ticker price mirrored onto the orchestrator's state, generalized
// from the teacher's CandleHandler which read from a single data service.
type CandleHandler struct {
	store        *storage.TieredStore
	orchestrator *orchestrator.Orchestrator
	symbol       string
	timeframe    string
}

func NewCandleHandler(store *storage.TieredStore, orch *orchestrator.Orchestrator, symbol, timeframe string) *CandleHandler {
	return &CandleHandler{store: store, orchestrator: orch, symbol: symbol, timeframe: timeframe}
}

// CandleData is a single OHLCV point, API-facing.
type CandleData struct {
	Time   int64   `json:"time"` // bar-open time, Unix ms
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// GetCandles returns the most recent bars for the configured symbol and
// timeframe, or a period window (e.g. "1h","24h","7d") when ?period is set.
func (h *CandleHandler) GetCandles(c echo.Context) error {
	if h.store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "store not available"})
	}

	symbol := c.QueryParam("symbol")
	if symbol == "" {
		symbol = h.symbol
	}
	timeframe := c.QueryParam("timeframe")
	if timeframe == "" {
		timeframe = h.timeframe
	}

	if period := c.QueryParam("period"); period != "" {
		bars, err := h.store.QueryByPeriod(symbol, timeframe, period)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, toCandleData(bars))
	}

	limit := 500
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 2000 {
		limit = l
	}

	bars, err := h.store.Get(symbol, timeframe, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toCandleData(bars))
}

func toCandleData(bars []models.Bar) []CandleData {
	out := make([]CandleData, len(bars))
	for i, b := range bars {
		out[i] = CandleData{
			Time:   b.TimestampMs,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return out
}

// TickerData is the latest price snapshot for the configured symbol.
type TickerData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// GetTicker returns the most recent price the orchestrator observed.
func (h *CandleHandler) GetTicker(c echo.Context) error {
	if h.orchestrator == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "orchestrator not available"})
	}

	state := h.orchestrator.State()
	return c.JSON(http.StatusOK, TickerData{
		Symbol:    h.symbol,
		Price:     state.CurrentPrice,
		Timestamp: time.Now().UnixMilli(),
	})
}
