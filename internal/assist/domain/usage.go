package domain

import "time"

// Subscription plans, ordered by daily allowance
const (
	PlanFree = "free"
	PlanPro  = "pro"
	PlanTeam = "team"
)

// Usage is the computed daily generation window for a user
type Usage struct {
	Plan      string    `json:"plan"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
}

// ThrottleReason names the burst detector that suppressed generation
type ThrottleReason string

const (
	ThrottleRejectBurst      ThrottleReason = "reject_burst"
	ThrottleQuickRevertBurst ThrottleReason = "quick_revert_burst"
)

// ThrottleDecision is the output of the throttle evaluator
type ThrottleDecision struct {
	Throttled     bool            `json:"throttled"`
	Reason        *ThrottleReason `json:"reason"`
	ThrottleUntil *time.Time      `json:"throttleUntil"`
}
