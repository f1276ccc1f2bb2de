package signal

import (
	"fmt"

	"github.com/hamgua/alpha-trading-bot-okx-sub001/internal/models"
)

const (
	minATRPercent = 0.1
	maxATRPercent = 10.0
)

// Validate applies C5's deterministic checks to a SignalCheckResult,
// producing the {passed, confidence, details, message} result the
// orchestrator gates execution on. Grounded on market_monitor.py's
// downstream validation contract referenced by spec §4.5; the three checks
// (confidence floor, ATR sanity, trend consistency) are named explicitly in
// spec §4.5 and have no other grounding source in the retrieval pack.
func Validate(result models.SignalCheckResult, minConfidence float64) models.ValidationResult {
	var details []string
	passed := true

	if result.FusedConfidence < minConfidence {
		passed = false
		details = append(details, fmt.Sprintf("fused_confidence %.2f below minimum %.2f", result.FusedConfidence, minConfidence))
	}

	atrPct := result.Snapshot.ATRPercent
	if atrPct < minATRPercent || atrPct > maxATRPercent {
		passed = false
		details = append(details, fmt.Sprintf("atr_percent %.3f outside sane range [%.1f,%.1f]", atrPct, minATRPercent, maxATRPercent))
	}

	reboundOverride := len(result.Triggers) > 0
	if result.SignalType == models.SignalBuy && !reboundOverride {
		if result.Snapshot.TrendDirection == models.TrendDown && result.Snapshot.TrendStrength >= 0.7 {
			passed = false
			details = append(details, "buy signal against a strong downtrend")
		}
	}

	message := "validated"
	if !passed {
		message = "validation failed"
	}

	return models.ValidationResult{
		Passed:     passed,
		Confidence: result.FusedConfidence,
		Details:    details,
		Message:    message,
	}
}
