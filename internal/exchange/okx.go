package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

const (
	baseURLLive    = "https://www.okx.com"
	baseURLTestnet = "https://www.okx.com" // OKX demo trading uses the same host with a simulated-trading header
)

// OKXClient is the REST adapter satisfying Client against OKX's v5 API.
// Grounded on the teacher's binance.Client (internal/binance/client.go):
// same functional-options construction, same sign/doRequest split, same
// fixed-timeout http.Client — generalized from Binance's HMAC-over-query
// string + X-MBX-APIKEY header scheme to OKX's HMAC-over-prehash-string +
// OK-ACCESS-* header scheme (timestamp+method+requestPath+body, base64).
type OKXClient struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	httpClient *http.Client
	simulated  bool
}

type OKXClientOption func(*OKXClient)

func WithOKXHTTPClient(client *http.Client) OKXClientOption {
	return func(c *OKXClient) { c.httpClient = client }
}

// NewOKXClient builds the OKX REST client. testnet selects OKX's simulated
// trading header rather than a distinct host, per OKX's demo-trading model.
func NewOKXClient(apiKey, secretKey, passphrase string, testnet bool, opts ...OKXClientOption) *OKXClient {
	baseURL := baseURLLive
	if testnet {
		baseURL = baseURLTestnet
	}
	c := &OKXClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		baseURL:    baseURL,
		simulated:  testnet,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sign computes OKX's HMAC-SHA256, base64-encoded prehash signature.
func (c *OKXClient) sign(timestamp, method, requestPath, body string) string {
	prehash := timestamp + method + requestPath + body
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// doRequest performs a signed OKX REST call and returns its decoded "data"
// array, per OKX's uniform {code, msg, data} envelope.
func (c *OKXClient) doRequest(ctx context.Context, method, requestPath string, body []byte) (json.RawMessage, error) {
	if body == nil {
		body = []byte{}
	}
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, reqBody)
	if err != nil {
		return nil, fmt.Errorf("okx: build request: %w", err)
	}

	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(timestamp, method, requestPath, string(body)))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransientExchange, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", models.ErrTransientExchange, err)
	}

	var envelope struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %v", models.ErrTransientExchange, err)
	}
	if envelope.Code != "" && envelope.Code != "0" {
		return nil, fmt.Errorf("okx error %s: %s", envelope.Code, envelope.Msg)
	}
	return envelope.Data, nil
}

type okxCandle [9]string // ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm

func (c *OKXClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error) {
	bar := okxTimeframe(timeframe)
	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s&limit=%d", url.QueryEscape(symbol), bar, limit)

	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var rows []okxCandle
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: decoding candles: %v", models.ErrTransientExchange, err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // OKX returns newest-first; spec wants newest-last
		row := rows[i]
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePx, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)
		bars = append(bars, models.Bar{
			Symbol: symbol, Timeframe: timeframe, TimestampMs: ts,
			Open: open, High: high, Low: low, Close: closePx, Volume: volume,
		})
	}
	return bars, nil
}

// okxTimeframe maps spec timeframe strings to OKX's bar granularity codes.
func okxTimeframe(tf string) string {
	switch tf {
	case "1m":
		return "1m"
	case "5m":
		return "5m"
	case "15m":
		return "15m"
	case "1h":
		return "1H"
	case "4h":
		return "4H"
	case "1d":
		return "1D"
	default:
		return tf
	}
}

func (c *OKXClient) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	path := fmt.Sprintf("/api/v5/market/ticker?instId=%s", url.QueryEscape(symbol))
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Ticker{}, err
	}

	var rows []struct {
		Last string `json:"last"`
		High string `json:"high24h"`
		Low  string `json:"low24h"`
		Vol  string `json:"vol24h"`
		Open string `json:"open24h"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return Ticker{}, fmt.Errorf("%w: decoding ticker: %v", models.ErrTransientExchange, err)
	}
	row := rows[0]

	last, _ := strconv.ParseFloat(row.Last, 64)
	high, _ := strconv.ParseFloat(row.High, 64)
	low, _ := strconv.ParseFloat(row.Low, 64)
	vol, _ := strconv.ParseFloat(row.Vol, 64)
	open, _ := strconv.ParseFloat(row.Open, 64)

	var changePct float64
	if open != 0 {
		changePct = (last - open) / open * 100
	}

	return Ticker{Last: last, High: high, Low: low, Volume: vol, ChangePercent: changePct}, nil
}

func (c *OKXClient) FetchBalance(ctx context.Context) (Balance, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/account/balance?ccy=USDT", nil)
	if err != nil {
		return Balance{}, err
	}

	var rows []struct {
		Details []struct {
			Ccy       string `json:"ccy"`
			AvailBal  string `json:"availBal"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return Balance{}, fmt.Errorf("%w: decoding balance: %v", models.ErrTransientExchange, err)
	}
	for _, acc := range rows {
		for _, d := range acc.Details {
			if d.Ccy == "USDT" {
				free, _ := strconv.ParseFloat(d.AvailBal, 64)
				return Balance{FreeUSDT: free}, nil
			}
		}
	}
	return Balance{}, nil
}

func (c *OKXClient) FetchPosition(ctx context.Context, symbol string) (RawPosition, error) {
	path := fmt.Sprintf("/api/v5/account/positions?instId=%s", url.QueryEscape(symbol))
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return RawPosition{}, err
	}

	var rows []struct {
		InstID   string `json:"instId"`
		PosSide  string `json:"posSide"`
		Pos      string `json:"pos"`
		AvgPx    string `json:"avgPx"`
		Upl      string `json:"upl"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return RawPosition{}, fmt.Errorf("%w: decoding position: %v", models.ErrTransientExchange, err)
	}
	if len(rows) == 0 {
		return RawPosition{}, nil
	}
	row := rows[0]
	amount, _ := strconv.ParseFloat(row.Pos, 64)
	entry, _ := strconv.ParseFloat(row.AvgPx, 64)
	upl, _ := strconv.ParseFloat(row.Upl, 64)

	return RawPosition{
		Symbol: row.InstID, Side: row.PosSide, Amount: amount,
		EntryPrice: entry, UnrealizedPnL: upl,
	}, nil
}

func (c *OKXClient) CreateOrder(ctx context.Context, symbol string, side OrderSide, amount, price float64, orderType OrderType, clientOrderID string) (OrderResult, error) {
	ordType := "market"
	if orderType == OrderTypeStopLoss {
		return c.createStopLoss(ctx, symbol, side, amount, price, clientOrderID)
	}

	body := map[string]interface{}{
		"instId":  symbol,
		"tdMode":  "cross",
		"side":    string(side),
		"ordType": ordType,
		"sz":      strconv.FormatFloat(amount, 'f', -1, 64),
		"clOrdId": clientOrderID,
	}
	return c.submitOrder(ctx, body, amount)
}

func (c *OKXClient) createStopLoss(ctx context.Context, symbol string, side OrderSide, amount, stopPrice float64, clientOrderID string) (OrderResult, error) {
	body := map[string]interface{}{
		"instId":  symbol,
		"tdMode":  "cross",
		"side":    string(side),
		"ordType": "conditional",
		"sz":      strconv.FormatFloat(amount, 'f', -1, 64),
		"clOrdId": clientOrderID,
		"slTriggerPx": strconv.FormatFloat(stopPrice, 'f', -1, 64),
		"slOrdPx":     "-1", // market execution once triggered
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return OrderResult{}, fmt.Errorf("okx: marshal stop order: %w", err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/v5/trade/order-algo", payload)
	if err != nil {
		return orderResultFromError(amount, err)
	}
	return parseOrderAckResponse(data, amount)
}

func (c *OKXClient) submitOrder(ctx context.Context, body map[string]interface{}, requestedAmount float64) (OrderResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return OrderResult{}, fmt.Errorf("okx: marshal order: %w", err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/v5/trade/order", payload)
	if err != nil {
		return orderResultFromError(requestedAmount, err)
	}
	return parseOrderAckResponse(data, requestedAmount)
}

// orderResultFromError maps an exchange-level rejection to a non-fatal
// OrderResult per spec §4.8 ("exchange errors map to status=rejected with a
// populated error_message"). A transient transport error (wrapped in
// ErrTransientExchange by doRequest) is not mapped: it is returned as the
// error so that it propagates to the caller.
func orderResultFromError(requestedAmount float64, err error) (OrderResult, error) {
	if errors.Is(err, models.ErrTransientExchange) {
		return OrderResult{}, err
	}
	log.Error().Err(err).Msg("order rejected by exchange")
	return OrderResult{
		Status:          OrderRejected,
		RequestedAmount: requestedAmount,
		ErrorMessage:    err.Error(),
	}, nil
}

func parseOrderAckResponse(data json.RawMessage, requestedAmount float64) (OrderResult, error) {
	var rows []struct {
		OrdID   string `json:"ordId"`
		SCode   string `json:"sCode"`
		SMsg    string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return OrderResult{}, fmt.Errorf("%w: decoding order ack: %v", models.ErrTransientExchange, err)
	}
	row := rows[0]
	if row.SCode != "" && row.SCode != "0" {
		return OrderResult{
			Status:          OrderRejected,
			RequestedAmount: requestedAmount,
			ErrorMessage:    row.SMsg,
			ErrorCode:       row.SCode,
		}, nil
	}
	return OrderResult{
		OrderID:         row.OrdID,
		Status:          OrderOpen,
		RequestedAmount: requestedAmount,
	}, nil
}

func (c *OKXClient) FetchOrder(ctx context.Context, orderID, symbol string) (OrderResult, error) {
	path := fmt.Sprintf("/api/v5/trade/order?instId=%s&ordId=%s", url.QueryEscape(symbol), url.QueryEscape(orderID))
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return OrderResult{}, err
	}

	var rows []struct {
		OrdID     string `json:"ordId"`
		State     string `json:"state"`
		Sz        string `json:"sz"`
		FillSz    string `json:"accFillSz"`
		AvgPx     string `json:"avgPx"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return OrderResult{}, fmt.Errorf("%w: decoding order: %v", models.ErrTransientExchange, err)
	}
	row := rows[0]

	requested, _ := strconv.ParseFloat(row.Sz, 64)
	filled, _ := strconv.ParseFloat(row.FillSz, 64)
	avgPx, _ := strconv.ParseFloat(row.AvgPx, 64)

	return OrderResult{
		OrderID:         row.OrdID,
		Status:          okxStateToStatus(row.State),
		RequestedAmount: requested,
		FilledAmount:    filled,
		RemainingAmount: requested - filled,
		AveragePrice:    avgPx,
	}, nil
}

func okxStateToStatus(state string) OrderStatus {
	switch state {
	case "live", "partially_filled":
		return OrderOpen
	case "filled":
		return OrderClosed
	case "canceled":
		return OrderCanceled
	default:
		return OrderUnknown
	}
}

func (c *OKXClient) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	body := map[string]interface{}{"instId": symbol, "ordId": orderID}
	payload, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("okx: marshal cancel: %w", err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/v5/trade/cancel-order", payload)
	if err != nil {
		// an unknown order id is not a transport failure: treat OKX's
		// "order does not exist" rejection as a non-raising false result
		// (spec §4.8: "cancel of an unknown id returns false but does not raise").
		log.Warn().Err(err).Str("order_id", orderID).Msg("cancel failed")
		return false, nil
	}

	var rows []struct {
		SCode string `json:"sCode"`
	}
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return false, nil
	}
	return rows[0].SCode == "0", nil
}

func (c *OKXClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]interface{}{
		"instId":  symbol,
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "cross",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("okx: marshal set-leverage: %w", err)
	}
	_, err = c.doRequest(ctx, http.MethodPost, "/api/v5/account/set-leverage", payload)
	return err
}
