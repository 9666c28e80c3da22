// Package steward is the timeline manager: a periodic rule evaluator that
// watches each estate against its milestone plan and writes severity-graded
// alerts for the coordinator to surface. It never talks to the family
// directly.
package steward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"familymatter/internal/schedule"
	"familymatter/internal/store"
)

// Alert types the sweep owns. Every sweep resolves and re-derives each of
// these in full, so alerts are always a point-in-time statement.
var alertTypes = []string{
	"member_not_joined",
	"conflict_unresolved",
	"suggestion_unreviewed",
	"milestone_overdue",
	"milestone_upcoming",
	"inactivity",
}

// Thresholds are the day counts that grade each check. Defaults match the
// values the system has always used; they are configurable per deployment.
type Thresholds struct {
	MemberInviteWarningDays      int `yaml:"member_invite_warning_days"`
	MemberInviteCriticalDays     int `yaml:"member_invite_critical_days"`
	SuggestionReviewWarningDays  int `yaml:"suggestion_review_warning_days"`
	SuggestionReviewCriticalDays int `yaml:"suggestion_review_critical_days"`
	ConflictWarningDays          int `yaml:"conflict_warning_days"`
	ConflictCriticalDays         int `yaml:"conflict_critical_days"`
	MilestoneWarningDays         int `yaml:"milestone_warning_days"`
	InactivityDays               int `yaml:"inactivity_days"`
}

// DefaultThresholds returns the stock grading thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemberInviteWarningDays:      7,
		MemberInviteCriticalDays:     14,
		SuggestionReviewWarningDays:  2,
		SuggestionReviewCriticalDays: 5,
		ConflictWarningDays:          5,
		ConflictCriticalDays:         10,
		MilestoneWarningDays:         5,
		InactivityDays:               7,
	}
}

// Steward runs sweeps. Thresholds come through a provider so a config
// reload takes effect on the next sweep without restarting.
type Steward struct {
	store      *store.Store
	logger     *zap.Logger
	thresholds func() Thresholds
	now        func() time.Time
}

// New builds a Steward. A nil thresholds provider uses the defaults.
func New(s *store.Store, logger *zap.Logger, thresholds func() Thresholds) *Steward {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds == nil {
		thresholds = DefaultThresholds
	}
	return &Steward{store: s, logger: logger, thresholds: thresholds, now: time.Now}
}

// estateState is one consistent read of everything the checks need.
type estateState struct {
	members      []store.FamilyMember
	conflicts    []store.Conflict
	suggestions  []store.Suggestion
	milestones   []store.Milestone
	lastActivity time.Time
	now          time.Time
}

// Sweep runs one full pass for an estate: per alert type, deactivate every
// active alert of that type and re-derive from current state; then
// auto-complete eligible milestones. Safe to call repeatedly — with no
// intervening state change, two sweeps produce identical alert sets.
func (sw *Steward) Sweep(ctx context.Context, estateID int64) ([]store.Alert, error) {
	estate, err := sw.store.GetEstate(estateID)
	if err != nil {
		return nil, err
	}
	if estate.Status == store.EstateClosed {
		sw.logger.Debug("estate closed, sweep skipped", zap.Int64("estate_id", estateID))
		return nil, nil
	}

	state, err := sw.readState(estateID)
	if err != nil {
		return nil, err
	}

	th := sw.thresholds()
	checks := []struct {
		alertType string
		run       func() []store.Alert
	}{
		{"member_not_joined", func() []store.Alert { return sw.checkUninvitedMembers(state, th) }},
		{"conflict_unresolved", func() []store.Alert { return sw.checkConflicts(state, th) }},
		{"suggestion_unreviewed", func() []store.Alert { return sw.checkSuggestions(state, th) }},
		{"milestone_overdue", func() []store.Alert { return sw.checkMilestonesOverdue(state) }},
		{"milestone_upcoming", func() []store.Alert { return sw.checkMilestonesUpcoming(state, th) }},
		{"inactivity", func() []store.Alert { return sw.checkInactivity(state, th) }},
	}

	// Each check is isolated: one failure is logged and the rest still run.
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fresh := check.run()
		if err := sw.store.ReplaceAlertsOfType(estateID, check.alertType, fresh); err != nil {
			sw.logger.Error("check failed",
				zap.String("alert_type", check.alertType),
				zap.Int64("estate_id", estateID),
				zap.Error(err))
		}
	}

	sw.autoCompleteMilestones(estateID, state)

	alerts, err := sw.store.ActiveAlerts(estateID)
	if err != nil {
		return nil, err
	}
	sw.logger.Info("sweep complete",
		zap.Int64("estate_id", estateID),
		zap.Int("active_alerts", len(alerts)))
	return alerts, nil
}

// Conflicts exposes the conflict detector: items with two or more pending
// claims that have not been distributed.
func (sw *Steward) Conflicts(estateID int64) ([]store.Conflict, error) {
	return sw.store.Conflicts(estateID)
}

func (sw *Steward) readState(estateID int64) (*estateState, error) {
	members, err := sw.store.Members(estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read members: %w", err)
	}
	conflicts, err := sw.store.Conflicts(estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read conflicts: %w", err)
	}
	suggestions, err := sw.store.PendingSuggestions(estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestions: %w", err)
	}
	milestones, err := sw.store.Milestones(estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read milestones: %w", err)
	}
	lastActivity, err := sw.store.LastAuditActivity(estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to read last activity: %w", err)
	}
	return &estateState{
		members:      members,
		conflicts:    conflicts,
		suggestions:  suggestions,
		milestones:   milestones,
		lastActivity: lastActivity,
		now:          sw.now(),
	}, nil
}

func daysSince(now, t time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

func daysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

func (sw *Steward) checkUninvitedMembers(state *estateState, th Thresholds) []store.Alert {
	var alerts []store.Alert
	for _, m := range state.members {
		if m.Status != store.MemberInvited || m.InvitedAt.IsZero() {
			continue
		}
		waiting := daysSince(state.now, m.InvitedAt)
		switch {
		case waiting >= th.MemberInviteCriticalDays:
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityCritical,
				Message:  fmt.Sprintf("%s has not joined after %d days.", m.Name, waiting),
				Detail: fmt.Sprintf("Invited: %s. Email: %s. Consider a personal call or checking if the email is correct.",
					m.InvitedAt.Format("2006-01-02"), m.Email),
			})
		case waiting >= th.MemberInviteWarningDays:
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityInfo,
				Message:  fmt.Sprintf("%s has not joined yet (%d days since invitation).", m.Name, waiting),
				Detail:   fmt.Sprintf("Invited: %s. A gentle reminder may help.", m.InvitedAt.Format("2006-01-02")),
			})
		}
	}
	return alerts
}

func (sw *Steward) checkConflicts(state *estateState, th Thresholds) []store.Alert {
	var alerts []store.Alert
	for _, c := range state.conflicts {
		if c.OldestClaim.IsZero() {
			continue
		}
		open := daysSince(state.now, c.OldestClaim)
		switch {
		case open >= th.ConflictCriticalDays:
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityCritical,
				Message:  fmt.Sprintf("Conflict on %q has been unresolved for %d days.", c.ItemName, open),
				Detail:   "Multiple claimants are waiting for a decision. This needs attention soon.",
			})
		case open >= th.ConflictWarningDays:
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityWarning,
				Message:  fmt.Sprintf("Conflict on %q has been open for %d days.", c.ItemName, open),
				Detail:   "Consider initiating a resolution: lottery, mediation, or executor decision.",
			})
		}
	}
	return alerts
}

func (sw *Steward) checkSuggestions(state *estateState, th Thresholds) []store.Alert {
	var alerts []store.Alert
	for _, s := range state.suggestions {
		if s.CreatedAt.IsZero() {
			continue
		}
		waiting := daysSince(state.now, s.CreatedAt)
		switch {
		case waiting >= th.SuggestionReviewCriticalDays:
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityWarning,
				Message:  fmt.Sprintf("%q (suggested by %s) has been waiting %d days for review.", s.Name, s.SuggestedByName, waiting),
				Detail:   "Family members may be waiting on this before they can make claims.",
			})
		case waiting >= th.SuggestionReviewWarningDays:
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityInfo,
				Message:  fmt.Sprintf("%q suggested by %s is awaiting your review.", s.Name, s.SuggestedByName),
				Detail:   fmt.Sprintf("Submitted %s.", s.CreatedAt.Format("2006-01-02")),
			})
		}
	}
	return alerts
}

func (sw *Steward) checkMilestonesOverdue(state *estateState) []store.Alert {
	var alerts []store.Alert
	for _, m := range state.milestones {
		if m.Status == store.MilestoneComplete || m.TargetDate.IsZero() {
			continue
		}
		until := daysUntil(state.now, m.TargetDate) // negative once past due
		if until < 0 {
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityCritical,
				Message:  fmt.Sprintf("Milestone overdue: %q was due %d days ago.", m.Label, -until),
				Detail:   fmt.Sprintf("Target date was %s.", m.TargetDate.Format("2006-01-02")),
			})
		}
	}
	return alerts
}

func (sw *Steward) checkMilestonesUpcoming(state *estateState, th Thresholds) []store.Alert {
	var alerts []store.Alert
	for _, m := range state.milestones {
		if m.Status == store.MilestoneComplete || m.TargetDate.IsZero() {
			continue
		}
		until := daysUntil(state.now, m.TargetDate)
		if until >= 0 && until <= th.MilestoneWarningDays {
			plural := "s"
			if until == 1 {
				plural = ""
			}
			alerts = append(alerts, store.Alert{
				Severity: store.SeverityInfo,
				Message:  fmt.Sprintf("Milestone due in %d day%s: %q.", until, plural, m.Label),
				Detail:   fmt.Sprintf("Target date: %s.", m.TargetDate.Format("2006-01-02")),
			})
		}
	}
	return alerts
}

func (sw *Steward) checkInactivity(state *estateState, th Thresholds) []store.Alert {
	if state.lastActivity.IsZero() {
		return nil
	}
	quiet := daysSince(state.now, state.lastActivity)
	if quiet < th.InactivityDays {
		return nil
	}
	return []store.Alert{{
		Severity: store.SeverityInfo,
		Message:  fmt.Sprintf("No estate activity for %d days.", quiet),
		Detail:   "It may be worth reaching out to the family to keep things moving.",
	}}
}

// autoCompleteMilestones marks milestones complete when the data shows they
// are. claims_closed and inventory_complete are manual-only; in particular
// conflicts_resolved never completes before claims_closed does, so a quiet
// estate cannot look finished while claims are still open.
func (sw *Steward) autoCompleteMilestones(estateID int64, state *estateState) {
	byKey := make(map[string]store.Milestone, len(state.milestones))
	for _, m := range state.milestones {
		byKey[m.Key] = m
	}

	if m, ok := byKey[schedule.KeyFamilyJoined]; ok && m.Status != store.MilestoneComplete {
		allJoined := len(state.members) > 0
		for _, member := range state.members {
			if member.Role == store.RoleExecutor {
				continue
			}
			if member.Status != store.MemberJoined {
				allJoined = false
				break
			}
		}
		if allJoined {
			if err := sw.store.CompleteMilestone(estateID, schedule.KeyFamilyJoined,
				"All family members joined, automatically detected."); err != nil {
				sw.logger.Error("failed to auto-complete family_joined", zap.Error(err))
			}
		}
	}

	if m, ok := byKey[schedule.KeyConflictsResolved]; ok && m.Status != store.MilestoneComplete {
		claimsClosed := byKey[schedule.KeyClaimsClosed].Status == store.MilestoneComplete
		if len(state.conflicts) == 0 && claimsClosed {
			if err := sw.store.CompleteMilestone(estateID, schedule.KeyConflictsResolved,
				"No active conflicts detected."); err != nil {
				sw.logger.Error("failed to auto-complete conflicts_resolved", zap.Error(err))
			}
		}
	}
}

// FormatAlerts renders active alerts as the plain-English block the
// responder reads when drafting the morning briefing.
func FormatAlerts(alerts []store.Alert) string {
	if len(alerts) == 0 {
		return "No time-sensitive alerts from the Steward."
	}

	var critical, warnings, info []store.Alert
	for _, a := range alerts {
		switch a.Severity {
		case store.SeverityCritical:
			critical = append(critical, a)
		case store.SeverityWarning:
			warnings = append(warnings, a)
		default:
			info = append(info, a)
		}
	}

	var b strings.Builder
	b.WriteString("Steward alerts:")
	writeGroup := func(heading string, group []store.Alert, withDetail bool) {
		if len(group) == 0 {
			return
		}
		b.WriteString("\n" + heading)
		for _, a := range group {
			b.WriteString("\n  - " + a.Message)
			if withDetail && a.Detail != "" {
				b.WriteString("\n    " + a.Detail)
			}
		}
	}
	writeGroup("URGENT:", critical, true)
	writeGroup("Needs attention:", warnings, true)
	writeGroup("FYI:", info, false)
	return b.String()
}
