package handlers

import (
	"net/http"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/orchestrator"
	"github.com/labstack/echo/v4"
)

// PositionHandler exposes the single mirrored position this bot holds, plus
// a manual close override. There is no position list or per-id lookup: C9
// owns exactly one position at a time (spec §5 single-writer rule), unlike
// the teacher's multi-position PositionHandler.
type PositionHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewPositionHandler(orch *orchestrator.Orchestrator) *PositionHandler {
	return &PositionHandler{orchestrator: orch}
}

// GetPosition returns the current mirrored position, if any.
func (h *PositionHandler) GetPosition(c echo.Context) error {
	if h.orchestrator == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "orchestrator not available"})
	}
	return c.JSON(http.StatusOK, h.orchestrator.State().Position)
}

// ClosePosition forces an immediate close_position pass, bypassing the
// scheduler's cadence. Intended for operator intervention only.
func (h *PositionHandler) ClosePosition(c echo.Context) error {
	if h.orchestrator == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "orchestrator not available"})
	}

	action, err := h.orchestrator.ManualClosePosition(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"action": string(action)})
}
