package usecase

import (
	"time"

	"todo-assist-backend/internal/assist/domain"
)

const (
	throttleHistoryCap = 120

	rejectBurstWindow    = 30 * time.Minute
	rejectBurstThreshold = 3
	rejectBurstCooldown  = 20 * time.Minute

	quickRevertWindow    = 60 * time.Minute
	quickRevertMaxGap    = 10 * time.Minute
	quickRevertThreshold = 2
	quickRevertCooldown  = 45 * time.Minute

	recoveryAccepts = 2
)

// EvaluateThrottle decides whether generation on surface must be suppressed.
// history is most-recent-first; only the first 120 records are considered.
// It is a pure function of its arguments.
func EvaluateThrottle(history []*domain.SuggestionRecord, surface domain.Surface, now time.Time) domain.ThrottleDecision {
	if len(history) > throttleHistoryCap {
		history = history[:throttleHistoryCap]
	}

	var (
		rejects, quickReverts           int
		latestReject, latestQuickRevert time.Time
		latestNegative                  time.Time
		accepts                         []time.Time
	)
	for _, r := range history {
		if r == nil || r.Surface != surface {
			continue
		}
		signal := r.SignalTime()
		if signal.After(now) {
			continue
		}

		switch r.Status {
		case domain.StatusAccepted:
			accepts = append(accepts, signal)
		case domain.StatusRejected:
			if signal.After(latestNegative) {
				latestNegative = signal
			}
			if now.Sub(signal) <= rejectBurstWindow {
				rejects++
				if signal.After(latestReject) {
					latestReject = signal
				}
			}
			if r.AppliedAt != nil && now.Sub(signal) <= quickRevertWindow {
				gap := signal.Sub(*r.AppliedAt)
				if gap >= 0 && gap <= quickRevertMaxGap {
					quickReverts++
					if signal.After(latestQuickRevert) {
						latestQuickRevert = signal
					}
				}
			}
		}
	}

	if !latestNegative.IsZero() {
		recovered := 0
		for _, at := range accepts {
			if at.After(latestNegative) {
				recovered++
			}
		}
		if recovered >= recoveryAccepts {
			return domain.ThrottleDecision{}
		}
	}

	if quickReverts >= quickRevertThreshold {
		if until := latestQuickRevert.Add(quickRevertCooldown); now.Before(until) {
			return throttled(domain.ThrottleQuickRevertBurst, until)
		}
	}
	if rejects >= rejectBurstThreshold {
		if until := latestReject.Add(rejectBurstCooldown); now.Before(until) {
			return throttled(domain.ThrottleRejectBurst, until)
		}
	}
	return domain.ThrottleDecision{}
}

func throttled(reason domain.ThrottleReason, until time.Time) domain.ThrottleDecision {
	return domain.ThrottleDecision{Throttled: true, Reason: &reason, ThrottleUntil: &until}
}
