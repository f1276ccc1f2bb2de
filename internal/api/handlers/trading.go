package handlers

import (
	"net/http"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/orchestrator"
	"github.com/labstack/echo/v4"
)

// StatusHandler serves the orchestrator's externally-observable state. The
// bot has exactly one lifecycle, started once from cmd/bot at process
// startup and driven thereafter by the scheduler, so unlike the teacher's
// multi-strategy TradingHandler there is no start/stop/pause/resume/mode
// surface here: this is a read-only status endpoint plus the
// manual-override close in position.go.
type StatusHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewStatusHandler(orch *orchestrator.Orchestrator) *StatusHandler {
	return &StatusHandler{orchestrator: orch}
}

// StatusResponse wraps the current trading state for the API.
type StatusResponse struct {
	State orchestrator.TradingState `json:"state"`
}

// GetState returns the current trading state.
func (h *StatusHandler) GetState(c echo.Context) error {
	if h.orchestrator == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "orchestrator not available"})
	}
	return c.JSON(http.StatusOK, StatusResponse{State: h.orchestrator.State()})
}
