package service

import (
	"time"

	"github.com/shopspring/decimal"

	"chainradar/internal/storage"
)

// cooldownElapsed reports whether an alert is eligible to fire at now. An
// alert that never fired is always eligible; otherwise the full cooldown must
// have passed since the last trigger.
func cooldownElapsed(now time.Time, lastTriggered *time.Time, cooldown time.Duration) bool {
	if lastTriggered == nil {
		return true
	}
	return now.Sub(*lastTriggered) >= cooldown
}

// shouldTrigger compares the current metric against the threshold. An unknown
// current value never fires, and equality never fires: the comparison is
// strict in both directions.
func shouldTrigger(condition storage.Condition, current *decimal.Decimal, threshold decimal.Decimal) bool {
	if current == nil {
		return false
	}
	switch condition {
	case storage.ConditionAbove:
		return current.GreaterThan(threshold)
	case storage.ConditionBelow:
		return current.LessThan(threshold)
	default:
		return false
	}
}
