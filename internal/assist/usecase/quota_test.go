package usecase

import (
	"errors"
	"testing"
	"time"

	"todo-assist-backend/internal/assist/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type planTable map[string]string

func (p planTable) PlanForUser(userID string) (string, error) {
	if userID == "broken" {
		return "", errors.New("db down")
	}
	return p[userID], nil
}

func TestUTCDayBoundaries(t *testing.T) {
	moments := []time.Time{
		time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 17, 23, 59, 59, 999_999_999, time.UTC),
		time.Date(2026, 3, 29, 1, 30, 0, 0, time.FixedZone("CET", 3600)),
		time.Now(),
	}
	for _, now := range moments {
		start := CurrentUTCDayStart(now)
		next := NextUTCDayStart(now)
		assert.Equal(t, int64(86_400_000), next.Sub(start).Milliseconds())
		assert.Equal(t, time.UTC, start.Location())
		assert.Zero(t, start.Hour()+start.Minute()+start.Second()+start.Nanosecond())
		assert.False(t, now.Before(start))
		assert.True(t, now.Before(next))
	}

	cet := time.Date(2026, 3, 29, 0, 30, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC), CurrentUTCDayStart(cet))
}

func TestPlanLimits_Resolve(t *testing.T) {
	limits := PlanLimits{domain.PlanFree: 10, domain.PlanPro: 100, domain.PlanTeam: 500}

	plan, limit := limits.Resolve("Pro")
	assert.Equal(t, domain.PlanPro, plan)
	assert.Equal(t, 100, limit)

	plan, limit = limits.Resolve("enterprise")
	assert.Equal(t, domain.PlanFree, plan)
	assert.Equal(t, 10, limit)

	plan, limit = PlanLimits{}.Resolve("")
	assert.Equal(t, domain.PlanFree, plan)
	assert.Equal(t, 10, limit)
}

func TestQuota_UsageNeverNegative(t *testing.T) {
	f := newFixture(t)
	q := NewQuotaService(f.suggestions, planTable{"u1": "free", "u2": "team"}, PlanLimits{domain.PlanFree: 2, domain.PlanTeam: 5})

	for i := 0; i < 3; i++ {
		require.NoError(t, f.suggestions.Create(&domain.SuggestionRecord{
			UserID: "u1", Type: domain.RecordTaskCritic,
			Input: datatypes.JSON(`{}`), Output: datatypes.JSON(`{}`),
		}))
	}

	usage, err := q.GetUsage("u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, usage.Plan)
	assert.Equal(t, 3, usage.Used)
	assert.Equal(t, 0, usage.Remaining)
	assert.Equal(t, 2, usage.Limit)
	assert.Equal(t, NextUTCDayStart(time.Now()), usage.ResetAt)

	exhausted, err := q.CheckQuota("u1")
	require.NoError(t, err)
	require.NotNil(t, exhausted)
	assert.Equal(t, 3, exhausted.Used)

	under, err := q.CheckQuota("u2")
	require.NoError(t, err)
	assert.Nil(t, under)

	_, err = q.GetUsage("broken")
	assert.Error(t, err)
}

func TestQuota_OnlyCountsToday(t *testing.T) {
	f := newFixture(t)
	q := NewQuotaService(f.suggestions, nil, nil)
	require.NoError(t, f.suggestions.Create(&domain.SuggestionRecord{
		UserID: "u1", Type: domain.RecordTaskCritic,
		Input: datatypes.JSON(`{}`), Output: datatypes.JSON(`{}`),
	}))

	usage, err := q.GetUsage("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)

	q.SetClock(func() time.Time { return time.Now().Add(24 * time.Hour) })
	usage, err = q.GetUsage("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
	assert.Equal(t, 10, usage.Remaining)
}
