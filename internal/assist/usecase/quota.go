package usecase

import (
	"strings"
	"time"

	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/internal/assist/repository"
)

// PlanLimits maps a subscription plan to its daily generation allowance
type PlanLimits map[string]int

// DefaultPlanLimits is used when no limits are configured
var DefaultPlanLimits = PlanLimits{
	domain.PlanFree: 10,
	domain.PlanPro:  100,
	domain.PlanTeam: 500,
}

// Resolve returns the effective plan and its limit. Unknown plans fall back
// to free.
func (l PlanLimits) Resolve(plan string) (string, int) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if limit, ok := l[plan]; ok {
		return plan, limit
	}
	if limit, ok := l[domain.PlanFree]; ok {
		return domain.PlanFree, limit
	}
	return domain.PlanFree, DefaultPlanLimits[domain.PlanFree]
}

// PlanResolver looks up a user's subscription plan
type PlanResolver interface {
	PlanForUser(userID string) (string, error)
}

// CurrentUTCDayStart truncates now to 00:00:00.000 UTC of the same UTC day
func CurrentUTCDayStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextUTCDayStart is exactly 24 hours after CurrentUTCDayStart
func NextUTCDayStart(now time.Time) time.Time {
	return CurrentUTCDayStart(now).Add(24 * time.Hour)
}

// QuotaService computes daily usage from stored suggestion records
type QuotaService struct {
	suggestions repository.SuggestionRepository
	plans       PlanResolver
	limits      PlanLimits
	now         func() time.Time
}

// NewQuotaService creates a quota service. plans may be nil, in which case
// every user is on the free plan.
func NewQuotaService(suggestions repository.SuggestionRepository, plans PlanResolver, limits PlanLimits) *QuotaService {
	if len(limits) == 0 {
		limits = DefaultPlanLimits
	}
	return &QuotaService{
		suggestions: suggestions,
		plans:       plans,
		limits:      limits,
		now:         time.Now,
	}
}

// SetClock overrides the time source
func (q *QuotaService) SetClock(now func() time.Time) {
	q.now = now
}

// GetUsage returns the user's usage for the current UTC day
func (q *QuotaService) GetUsage(userID string) (*domain.Usage, error) {
	plan := ""
	if q.plans != nil {
		p, err := q.plans.PlanForUser(userID)
		if err != nil {
			return nil, err
		}
		plan = p
	}
	plan, limit := q.limits.Resolve(plan)

	now := q.now()
	used, err := q.suggestions.CountCreatedSince(userID, CurrentUTCDayStart(now))
	if err != nil {
		return nil, err
	}
	return &domain.Usage{
		Plan:      plan,
		Used:      int(used),
		Remaining: max(limit-int(used), 0),
		Limit:     limit,
		ResetAt:   NextUTCDayStart(now),
	}, nil
}

// CheckQuota returns nil while the user is under quota, otherwise the
// exhausted usage snapshot
func (q *QuotaService) CheckQuota(userID string) (*domain.Usage, error) {
	usage, err := q.GetUsage(userID)
	if err != nil {
		return nil, err
	}
	if usage.Remaining > 0 {
		return nil, nil
	}
	return usage, nil
}
