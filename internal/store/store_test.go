package store

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEstate(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.CreateEstate("Morris Stern", "David Stern", "david@example.com")
	if err != nil {
		t.Fatalf("Failed to create estate: %v", err)
	}
	return id
}

func TestOpenInitializesSchema(t *testing.T) {
	s := newTestStore(t)

	estateID := newTestEstate(t, s)
	estate, err := s.GetEstate(estateID)
	if err != nil {
		t.Fatalf("Failed to load estate: %v", err)
	}
	if estate.DeceasedName != "Morris Stern" {
		t.Errorf("DeceasedName = %q, want %q", estate.DeceasedName, "Morris Stern")
	}
	if estate.Status != EstateActive {
		t.Errorf("Status = %q, want %q", estate.Status, EstateActive)
	}
	if estate.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestGetEstateNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetEstate(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEstate(999) = %v, want ErrNotFound", err)
	}
}

func TestJoinCodeLifecycle(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	code, err := s.AddFamilyMember(estateID, "Sarah", "sarah@example.com", RoleMember)
	if err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("join code %q, want 6 characters", code)
	}

	pending, err := s.PendingMembers(estateID)
	if err != nil {
		t.Fatalf("PendingMembers: %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "Sarah" {
		t.Fatalf("pending = %+v, want Sarah invited", pending)
	}

	if err := s.MarkMemberJoined(code); err != nil {
		t.Fatalf("MarkMemberJoined: %v", err)
	}
	members, err := s.Members(estateID)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if members[0].Status != MemberJoined {
		t.Errorf("status = %q, want joined", members[0].Status)
	}
	firstJoinedAt := members[0].JoinedAt
	if firstJoinedAt.IsZero() {
		t.Error("JoinedAt not set")
	}

	// Redeeming the same code twice is a no-op.
	if err := s.MarkMemberJoined(code); err != nil {
		t.Fatalf("second MarkMemberJoined: %v", err)
	}
	members, _ = s.Members(estateID)
	if !members[0].JoinedAt.Equal(firstJoinedAt) {
		t.Error("JoinedAt changed on repeat redemption")
	}

	if err := s.MarkMemberJoined("ZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code = %v, want ErrNotFound", err)
	}
}

func TestAddFamilyMemberRejectsBadRole(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	if _, err := s.AddFamilyMember(estateID, "X", "", "overlord"); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestClaimFlipsItemStatus(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	itemID, err := s.AddItem(estateID, "Grandfather clock", "", "living room", "furniture", 1200)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	item, err := s.GetItem(itemID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Status != ItemUnclaimed {
		t.Errorf("status = %q, want unclaimed", item.Status)
	}

	if _, err := s.AddClaim(itemID, estateID, 1, "Sarah", ClaimWant, 1, ""); err != nil {
		t.Fatalf("AddClaim: %v", err)
	}
	item, _ = s.GetItem(itemID)
	if item.Status != ItemClaimed {
		t.Errorf("status after claim = %q, want claimed", item.Status)
	}

	claims, err := s.ItemClaims(itemID)
	if err != nil {
		t.Fatalf("ItemClaims: %v", err)
	}
	if len(claims) != 1 || claims[0].MemberName != "Sarah" {
		t.Errorf("claims = %+v, want one claim by Sarah", claims)
	}
}

func TestAddClaimRejectsBadType(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)
	itemID, _ := s.AddItem(estateID, "Clock", "", "", "", 0)

	if _, err := s.AddClaim(itemID, estateID, 1, "Sarah", "covet", 0, ""); err == nil {
		t.Error("expected error for invalid claim type")
	}
}

func TestResolveItem(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)
	itemID, _ := s.AddItem(estateID, "Clock", "", "", "", 0)
	s.AddClaim(itemID, estateID, 1, "Sarah", ClaimWant, 0, "")
	s.AddClaim(itemID, estateID, 2, "Ruth", ClaimNeed, 0, "")

	if _, err := s.ResolveItem(itemID, estateID, 2, "Ruth", MethodUnanimous, 0); err != nil {
		t.Fatalf("ResolveItem: %v", err)
	}

	item, _ := s.GetItem(itemID)
	if item.Status != ItemDistributed {
		t.Errorf("status = %q, want distributed", item.Status)
	}
	claims, _ := s.ItemClaims(itemID)
	if len(claims) != 0 {
		t.Errorf("pending claims after resolve = %d, want 0", len(claims))
	}

	// A distributed item cannot be distributed again.
	if _, err := s.ResolveItem(itemID, estateID, 1, "Sarah", MethodUnanimous, 0); !errors.Is(err, ErrAlreadyDistributed) {
		t.Errorf("second resolve = %v, want ErrAlreadyDistributed", err)
	}
}

func TestResolveItemUnknownItem(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)
	if _, err := s.ResolveItem(42, estateID, 1, "Sarah", MethodUnanimous, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("resolve unknown item = %v, want ErrNotFound", err)
	}
}

func TestConflicts(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)
	itemID, _ := s.AddItem(estateID, "Menorah", "", "", "", 0)
	s.AddClaim(itemID, estateID, 1, "Sarah", ClaimWant, 0, "")

	conflicts, err := s.Conflicts(estateID)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("one claim should not conflict, got %+v", conflicts)
	}

	s.AddClaim(itemID, estateID, 2, "Ruth", ClaimMemory, 0, "")
	conflicts, _ = s.Conflicts(estateID)
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(conflicts))
	}
	if len(conflicts[0].Claimants) != 2 {
		t.Errorf("claimants = %v, want 2 names", conflicts[0].Claimants)
	}

	// Distribution clears the conflict.
	s.ResolveItem(itemID, estateID, 1, "Sarah", MethodUnanimous, 0)
	conflicts, _ = s.Conflicts(estateID)
	if len(conflicts) != 0 {
		t.Errorf("conflicts after resolve = %d, want 0", len(conflicts))
	}
}

func TestMilestones(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	plan := []Milestone{
		{EstateID: estateID, Key: "onboarding_complete", Label: "Onboarding", Status: MilestoneComplete},
		{EstateID: estateID, Key: "inventory_complete", Label: "Inventory", TargetDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), Status: MilestonePending},
	}
	if err := s.ReplaceMilestones(estateID, plan); err != nil {
		t.Fatalf("ReplaceMilestones: %v", err)
	}

	got, err := s.Milestones(estateID)
	if err != nil {
		t.Fatalf("Milestones: %v", err)
	}
	if len(got) != 2 || got[0].Key != "onboarding_complete" || got[1].Key != "inventory_complete" {
		t.Fatalf("milestones = %+v, want insertion order preserved", got)
	}

	if err := s.CompleteMilestone(estateID, "inventory_complete", "all rooms done"); err != nil {
		t.Fatalf("CompleteMilestone: %v", err)
	}
	got, _ = s.Milestones(estateID)
	if got[1].Status != MilestoneComplete {
		t.Errorf("status = %q, want complete", got[1].Status)
	}
	completedAt := got[1].CompletedAt

	// Completing twice keeps the original completion time.
	if err := s.CompleteMilestone(estateID, "inventory_complete", "again"); err != nil {
		t.Fatalf("second CompleteMilestone: %v", err)
	}
	got, _ = s.Milestones(estateID)
	if !got[1].CompletedAt.Equal(completedAt) {
		t.Error("CompletedAt changed on repeat completion")
	}

	// Replacing wipes the old plan.
	if err := s.ReplaceMilestones(estateID, plan[:1]); err != nil {
		t.Fatalf("ReplaceMilestones: %v", err)
	}
	got, _ = s.Milestones(estateID)
	if len(got) != 1 {
		t.Errorf("milestones after replace = %d, want 1", len(got))
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	if _, err := s.Schedule(estateID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Schedule before save = %v, want ErrNotFound", err)
	}

	target := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		EstateID:           estateID,
		TargetEndDate:      &target,
		Urgency:            UrgencyNormal,
		LegalDeadlines:     "probate filing by November",
		OnboardingComplete: true,
	}
	if err := s.SaveSchedule(cfg); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}

	got, err := s.Schedule(estateID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.TargetEndDate == nil || !got.TargetEndDate.Equal(target) {
		t.Errorf("TargetEndDate = %v, want %v", got.TargetEndDate, target)
	}
	if !got.OnboardingComplete {
		t.Error("OnboardingComplete not persisted")
	}

	// Saving again overwrites.
	cfg.Urgency = UrgencyUrgent
	if err := s.SaveSchedule(cfg); err != nil {
		t.Fatalf("second SaveSchedule: %v", err)
	}
	got, _ = s.Schedule(estateID)
	if got.Urgency != UrgencyUrgent {
		t.Errorf("Urgency = %q, want urgent", got.Urgency)
	}
}

func TestReplaceAlertsOfType(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	if err := s.WriteAlert(estateID, "member_not_joined", SeverityInfo, "Sarah has not joined", ""); err != nil {
		t.Fatalf("WriteAlert: %v", err)
	}
	if err := s.WriteAlert(estateID, "conflict_unresolved", SeverityWarning, "Clock has 2 claims", ""); err != nil {
		t.Fatalf("WriteAlert: %v", err)
	}

	fresh := []Alert{{
		EstateID: estateID,
		Type:     "member_not_joined",
		Severity: SeverityCritical,
		Message:  "Sarah has not joined after 15 days",
	}}
	if err := s.ReplaceAlertsOfType(estateID, "member_not_joined", fresh); err != nil {
		t.Fatalf("ReplaceAlertsOfType: %v", err)
	}

	alerts, err := s.ActiveAlerts(estateID)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("active alerts = %d, want 2", len(alerts))
	}
	// Critical sorts first.
	if alerts[0].Severity != SeverityCritical || alerts[0].Type != "member_not_joined" {
		t.Errorf("first alert = %+v, want the critical member alert", alerts[0])
	}
	if alerts[1].Type != "conflict_unresolved" {
		t.Errorf("second alert = %+v, want the untouched conflict alert", alerts[1])
	}

	// Replacing with nothing clears the type.
	if err := s.ReplaceAlertsOfType(estateID, "member_not_joined", nil); err != nil {
		t.Fatalf("ReplaceAlertsOfType(nil): %v", err)
	}
	alerts, _ = s.ActiveAlerts(estateID)
	if len(alerts) != 1 || alerts[0].Type != "conflict_unresolved" {
		t.Errorf("alerts = %+v, want only the conflict alert", alerts)
	}
}

func TestReplaceAlertsRejectsBadSeverity(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	bad := []Alert{{EstateID: estateID, Type: "inactivity", Severity: "catastrophic", Message: "x"}}
	if err := s.ReplaceAlertsOfType(estateID, "inactivity", bad); err == nil {
		t.Error("expected error for invalid severity")
	}
	// The failed replace must not have cleared existing alerts of the type.
	s.WriteAlert(estateID, "inactivity", SeverityInfo, "quiet week", "")
	if err := s.ReplaceAlertsOfType(estateID, "inactivity", bad); err == nil {
		t.Fatal("expected error for invalid severity")
	}
	alerts, _ := s.ActiveAlerts(estateID)
	if len(alerts) != 1 {
		t.Errorf("alerts = %d, want the existing alert untouched", len(alerts))
	}
}

func TestAuditTrail(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	if last, err := s.LastAuditActivity(estateID); err != nil || !last.IsZero() {
		t.Fatalf("LastAuditActivity on empty log = (%v, %v), want zero time", last, err)
	}

	itemID, _ := s.AddItem(estateID, "Clock", "", "", "", 0)
	for _, action := range []string{"item_added", "claim_recorded", "distribution_recorded"} {
		if _, err := s.AppendAudit(AuditEntry{
			EstateID:      estateID,
			ItemID:        itemID,
			ActorName:     "Sarah",
			ActionType:    action,
			PublicSummary: action,
			Metadata:      map[string]any{"k": "v"},
		}); err != nil {
			t.Fatalf("AppendAudit(%s): %v", action, err)
		}
	}

	history, err := s.ItemAuditLog(estateID, itemID)
	if err != nil {
		t.Fatalf("ItemAuditLog: %v", err)
	}
	if len(history) != 3 || history[0].ActionType != "item_added" {
		t.Fatalf("history = %+v, want 3 entries oldest first", history)
	}
	if history[0].Metadata["k"] != "v" {
		t.Errorf("metadata = %+v, want k=v", history[0].Metadata)
	}

	recent, err := s.RecentAuditLog(estateID, 2)
	if err != nil {
		t.Fatalf("RecentAuditLog: %v", err)
	}
	if len(recent) != 2 || recent[0].ActionType != "distribution_recorded" {
		t.Fatalf("recent = %+v, want 2 entries newest first", recent)
	}

	last, err := s.LastAuditActivity(estateID)
	if err != nil || last.IsZero() {
		t.Errorf("LastAuditActivity = (%v, %v), want the latest entry time", last, err)
	}
}

func TestIntentNotesStartPrivate(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)
	itemID, _ := s.AddItem(estateID, "Ring", "", "", "", 0)

	noteID, err := s.AddIntentNote(itemID, estateID, 1, "Sarah", "this was mom's")
	if err != nil {
		t.Fatalf("AddIntentNote: %v", err)
	}
	note, err := s.GetIntentNote(noteID)
	if err != nil {
		t.Fatalf("GetIntentNote: %v", err)
	}
	if note.Visibility != VisibilityPrivate {
		t.Errorf("visibility = %q, want private", note.Visibility)
	}

	if err := s.SetNoteVisibility(noteID, VisibilityPublic); err != nil {
		t.Fatalf("SetNoteVisibility: %v", err)
	}
	note, _ = s.GetIntentNote(noteID)
	if note.Visibility != VisibilityPublic {
		t.Errorf("visibility = %q, want public", note.Visibility)
	}

	if err := s.SetNoteVisibility(noteID, "everyone"); err == nil {
		t.Error("expected error for invalid visibility")
	}
	if err := s.SetNoteVisibility(999, VisibilityPublic); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown note = %v, want ErrNotFound", err)
	}
}

func TestSuggestionNotifiedFlow(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)

	sugID, err := s.AddSuggestion(estateID, "Photo albums", "in the attic", "Ruth")
	if err != nil {
		t.Fatalf("AddSuggestion: %v", err)
	}

	unnotified, err := s.UnnotifiedSuggestions(estateID)
	if err != nil {
		t.Fatalf("UnnotifiedSuggestions: %v", err)
	}
	if len(unnotified) != 1 {
		t.Fatalf("unnotified = %d, want 1", len(unnotified))
	}

	if err := s.MarkSuggestionNotified(sugID); err != nil {
		t.Fatalf("MarkSuggestionNotified: %v", err)
	}
	unnotified, _ = s.UnnotifiedSuggestions(estateID)
	if len(unnotified) != 0 {
		t.Errorf("unnotified after mark = %d, want 0", len(unnotified))
	}

	// Still pending review after notification.
	pending, _ := s.PendingSuggestions(estateID)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	if err := s.ReviewSuggestion(sugID, SuggestionApproved); err != nil {
		t.Fatalf("ReviewSuggestion: %v", err)
	}
	pending, _ = s.PendingSuggestions(estateID)
	if len(pending) != 0 {
		t.Errorf("pending after review = %d, want 0", len(pending))
	}

	if err := s.ReviewSuggestion(sugID, "maybe"); err == nil {
		t.Error("expected error for invalid review status")
	}
}

func TestSessionStateDefaultsIdle(t *testing.T) {
	s := newTestStore(t)

	st, err := s.SessionState("telegram")
	if err != nil {
		t.Fatalf("SessionState: %v", err)
	}
	if st.State != "idle" {
		t.Errorf("state = %q, want idle", st.State)
	}
	if st.Answers == nil {
		t.Error("Answers should be an empty map, not nil")
	}

	answers := map[string]string{"q1_deadline": "before the holidays", "q2_urgency": "normal"}
	if err := s.SetSessionState("telegram", "onboarding_q2", "asked q2", answers); err != nil {
		t.Fatalf("SetSessionState: %v", err)
	}
	st, _ = s.SessionState("telegram")
	if st.State != "onboarding_q2" || st.Answers["q1_deadline"] != "before the holidays" {
		t.Errorf("state = %+v, want persisted answers", st)
	}
}

func TestMalformedTimestampTolerated(t *testing.T) {
	s := newTestStore(t)
	estateID := newTestEstate(t, s)
	code, _ := s.AddFamilyMember(estateID, "Sarah", "", RoleMember)
	_ = code

	if _, err := s.db.Exec(`UPDATE family_members SET invited_at = 'not-a-date'`); err != nil {
		t.Fatalf("corrupting timestamp: %v", err)
	}
	members, err := s.Members(estateID)
	if err != nil {
		t.Fatalf("Members with bad timestamp: %v", err)
	}
	if !members[0].InvitedAt.IsZero() {
		t.Errorf("InvitedAt = %v, want zero time for malformed input", members[0].InvitedAt)
	}
}

func TestParseTimeFormats(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"2026-08-29T10:00:00Z", false},
		{"2026-08-29T10:00:00", false},
		{"2026-08-29", false},
		{"", true},
		{"garbage", true},
	}
	for _, tt := range tests {
		got := parseTime(tt.in)
		if got.IsZero() != tt.zero {
			t.Errorf("parseTime(%q) = %v, zero=%v", tt.in, got, tt.zero)
		}
	}
}
