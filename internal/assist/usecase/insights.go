package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/pkg/ai"
)

// InsightsInput is what the recommendation is derived from
type InsightsInput struct {
	Plan               string
	Remaining          int
	Limit              int
	TopRejectionReason string
	GeneratedCount     int
}

// BuildInsightsRecommendation returns one nudge; the first matching rule wins
func BuildInsightsRecommendation(in InsightsInput) string {
	threshold := max(1, int(math.Ceil(float64(in.Limit)*0.1)))
	switch {
	case in.Plan == domain.PlanFree && in.Remaining <= threshold:
		return fmt.Sprintf("Only %d AI suggestions left today. Upgrade to Pro for a higher daily limit.", in.Remaining)
	case ai.WantsSpecifics(in.TopRejectionReason):
		return "Suggestions were often rejected as too generic. Add an owner, a metric or a deadline to your tasks so suggestions can be more specific."
	case in.GeneratedCount < 3:
		return "Generate a few more suggestions this week to see which kinds help you most."
	default:
		return "Keep accepting or rejecting suggestions so they keep getting better."
	}
}

// ReasonCount is one entry of the rejection-reason histogram
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// topReasons returns rejection reasons by frequency, ties in first-seen order
func topReasons(records []*domain.SuggestionRecord, n int) []ReasonCount {
	counts := map[string]int{}
	var order []string
	for _, r := range records {
		reason := strings.ToLower(strings.TrimSpace(r.RejectionReason()))
		if reason == "" {
			continue
		}
		if counts[reason] == 0 {
			order = append(order, reason)
		}
		counts[reason]++
	}

	out := make([]ReasonCount, 0, len(order))
	for _, reason := range order {
		out = append(out, ReasonCount{Reason: reason, Count: counts[reason]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
