package storage

import (
	"time"
)

// AlertType discriminates what an alert's condition is evaluated against.
type AlertType string

// Alert types.
const (
	AlertTypePrice AlertType = "price"
	AlertTypeAPY   AlertType = "apy"
)

// Condition is the comparison an alert applies to the current metric.
type Condition string

// Conditions. Anything else never fires.
const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// User is a Telegram user known to the system. ChatID is nil until the user
// has started the bot; without it no alert can be delivered.
type User struct {
	TGUserID  string
	ChatID    *string
	Locale    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Wallet is a tracked (chain, address) pair owned by a user.
type Wallet struct {
	ID        int64
	TGUserID  string
	Chain     string
	Address   string
	IsActive  bool
	CreatedAt time.Time
}

// Alert is a persisted threshold alert. Threshold is kept as the raw decimal
// text from the store; it is validated at evaluation time so one malformed
// row skips that alert instead of failing the whole batch.
type Alert struct {
	ID              int64
	TGUserID        string
	Type            AlertType
	Chain           string
	Asset           string
	Condition       Condition
	Threshold       string
	Frequency       string
	Enabled         bool
	LastTriggeredAt *time.Time
	CooldownMinutes int
	CreatedAt       time.Time
}

// Cooldown returns the alert's cooldown as a duration.
func (a Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// EnabledAlert joins an enabled alert with its resolved notification target.
type EnabledAlert struct {
	Alert
	ChatID string
}

// CreateAlertParams carries the fields for a new alert.
type CreateAlertParams struct {
	TGUserID        string
	Type            AlertType
	Chain           string
	Asset           string
	Condition       Condition
	Threshold       string
	Frequency       string
	CooldownMinutes int
}
