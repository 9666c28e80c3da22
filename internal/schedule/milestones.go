// Package schedule builds the seven-stage milestone plan for an estate,
// either backward from a target completion date or forward from today.
package schedule

import (
	"time"

	"familymatter/internal/store"
)

// Milestone keys in estate phase order.
const (
	KeyOnboardingComplete   = "onboarding_complete"
	KeyInventoryComplete    = "inventory_complete"
	KeyFamilyJoined         = "family_joined"
	KeyClaimsOpen           = "claims_open"
	KeyClaimsClosed         = "claims_closed"
	KeyConflictsResolved    = "conflicts_resolved"
	KeyDistributionComplete = "distribution_complete"
)

// Keys is the fixed milestone order.
var Keys = []string{
	KeyOnboardingComplete,
	KeyInventoryComplete,
	KeyFamilyJoined,
	KeyClaimsOpen,
	KeyClaimsClosed,
	KeyConflictsResolved,
	KeyDistributionComplete,
}

var labels = map[string]string{
	KeyOnboardingComplete:   "Schedule established",
	KeyInventoryComplete:    "Inventory complete",
	KeyFamilyJoined:         "All family members joined",
	KeyClaimsOpen:           "Claims period opens",
	KeyClaimsClosed:         "Claims period closes",
	KeyConflictsResolved:    "All conflicts resolved",
	KeyDistributionComplete: "Distribution complete",
}

// Backward-mode weights: how far before the end date each milestone lands,
// as a share of the total span.
var backWeights = map[string]float64{
	KeyDistributionComplete: 0,
	KeyConflictsResolved:    0.10,
	KeyClaimsClosed:         0.25,
	KeyClaimsOpen:           0.35,
	KeyFamilyJoined:         0.15,
	KeyInventoryComplete:    0.20,
	KeyOnboardingComplete:   0,
}

// Forward-mode default phase duration in days, before the urgency
// multiplier. Six phases at normal pace span 180 days.
const defaultPhaseDays = 30

func urgencyMultiplier(urgency string) float64 {
	switch urgency {
	case store.UrgencyUrgent:
		return 0.6
	case store.UrgencyRelaxed:
		return 1.5
	default:
		return 1.0
	}
}

// BuildPlan returns one milestone per key. With a target end date it works
// backward, distributing phases proportionally over max(30, days-to-target).
// Without one it walks forward from now, accumulating default durations
// scaled by urgency. onboarding_complete is always now and already complete;
// distribution_complete equals the end date in backward mode.
func BuildPlan(estateID int64, now time.Time, targetEndDate *time.Time, urgency string) []store.Milestone {
	if targetEndDate != nil {
		return buildBackward(estateID, now, *targetEndDate)
	}
	return buildForward(estateID, now, urgency)
}

func buildBackward(estateID int64, now, end time.Time) []store.Milestone {
	totalDays := int(end.Sub(now).Hours() / 24)
	if totalDays < 30 {
		totalDays = 30
	}

	plan := make([]store.Milestone, 0, len(Keys))
	for _, key := range Keys {
		var target time.Time
		switch key {
		case KeyOnboardingComplete:
			target = now
		case KeyDistributionComplete:
			target = end
		default:
			daysBack := int(float64(totalDays) * backWeights[key])
			target = end.AddDate(0, 0, -daysBack)
		}
		plan = append(plan, store.Milestone{
			EstateID:   estateID,
			Key:        key,
			Label:      labels[key],
			TargetDate: target,
			Status:     initialStatus(key),
		})
	}
	return plan
}

func buildForward(estateID int64, now time.Time, urgency string) []store.Milestone {
	multiplier := urgencyMultiplier(store.NormalizeUrgency(urgency))
	cursor := now

	plan := make([]store.Milestone, 0, len(Keys))
	for _, key := range Keys {
		target := now
		if key != KeyOnboardingComplete {
			duration := int(defaultPhaseDays * multiplier)
			cursor = cursor.AddDate(0, 0, duration)
			target = cursor
		}
		plan = append(plan, store.Milestone{
			EstateID:   estateID,
			Key:        key,
			Label:      labels[key],
			TargetDate: target,
			Status:     initialStatus(key),
		})
	}
	return plan
}

func initialStatus(key string) string {
	if key == KeyOnboardingComplete {
		return store.MilestoneComplete
	}
	return store.MilestonePending
}

// ParseTargetDate parses a conversational target date. Unparsable input
// returns nil so callers fall back to a forward plan instead of failing.
func ParseTargetDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "January 2, 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
