package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

// Advisor is the C5 AI advisor's single operation (spec §4.5): confirm or
// override a validated signal given the snapshot and the validation result.
type Advisor interface {
	Advise(ctx context.Context, snapshot models.IndicatorSnapshot, validation models.ValidationResult) (models.AdvisorResponse, error)
}

// RuleAdvisor is the deterministic default advisor: when validation passed
// it recommends buy on an uptrend, sell on a downtrend and hold otherwise
// (hold whenever validation failed), and it echoes the validator's
// confidence. Used when no HTTP-backed advisor is configured; the
// orchestrator's fallback on advisor error/timeout keeps the validator's
// decision and does not call RuleAdvisor.
type RuleAdvisor struct{}

func NewRuleAdvisor() *RuleAdvisor { return &RuleAdvisor{} }

func (a *RuleAdvisor) Advise(_ context.Context, snapshot models.IndicatorSnapshot, validation models.ValidationResult) (models.AdvisorResponse, error) {
	signal := models.SignalHold
	if validation.Passed {
		if snapshot.TrendDirection == models.TrendUp {
			signal = models.SignalBuy
		} else if snapshot.TrendDirection == models.TrendDown {
			signal = models.SignalSell
		}
	}
	return models.AdvisorResponse{
		Signal:     signal,
		Confidence: validation.Confidence,
		Reasoning:  "rule-based: trend direction confirms validated signal",
	}, nil
}

// HTTPAdvisor calls an external AI advisory endpoint. Grounded on the
// teacher's binance.Client construction idiom (functional options over an
// http.Client with a fixed request timeout) generalized from HMAC-signed
// REST calls to a plain JSON POST.
type HTTPAdvisor struct {
	endpoint   string
	httpClient *http.Client
}

type HTTPAdvisorOption func(*HTTPAdvisor)

func WithHTTPAdvisorClient(client *http.Client) HTTPAdvisorOption {
	return func(a *HTTPAdvisor) { a.httpClient = client }
}

// NewHTTPAdvisor builds an advisor that posts to endpoint. The advisor's own
// call is bounded by the context passed to Advise; callers (the
// orchestrator) are expected to derive that context with the configured
// advisor timeout (default 60s per spec §4.5).
func NewHTTPAdvisor(endpoint string, opts ...HTTPAdvisorOption) *HTTPAdvisor {
	a := &HTTPAdvisor{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type advisorRequest struct {
	Snapshot   models.IndicatorSnapshot  `json:"snapshot"`
	Validation models.ValidationResult   `json:"validation"`
}

type advisorPayload struct {
	Signal     models.SignalType `json:"signal"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
}

func (a *HTTPAdvisor) Advise(ctx context.Context, snapshot models.IndicatorSnapshot, validation models.ValidationResult) (models.AdvisorResponse, error) {
	body, err := json.Marshal(advisorRequest{Snapshot: snapshot, Validation: validation})
	if err != nil {
		return models.AdvisorResponse{}, fmt.Errorf("advisor: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.AdvisorResponse{}, fmt.Errorf("advisor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return models.AdvisorResponse{}, fmt.Errorf("advisor: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AdvisorResponse{}, fmt.Errorf("advisor: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AdvisorResponse{}, fmt.Errorf("advisor: read response: %w", err)
	}

	var payload advisorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.AdvisorResponse{}, fmt.Errorf("advisor: decode response: %w", err)
	}

	return models.AdvisorResponse{
		Signal:     payload.Signal,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
	}, nil
}

// StrongSignalBypass reports whether fused_confidence clears the strong
// signal threshold and can skip the AI advisor entirely (spec §4.5).
func StrongSignalBypass(fusedConfidence, strongSignalThreshold float64) bool {
	return fusedConfidence >= strongSignalThreshold
}
