package store

import (
	"fmt"
	"time"
)

// Enumerated values are validated at the boundary. Anything else in the
// database is a bug, not a state.

// Estate status values.
const (
	EstateActive = "active"
	EstateClosed = "closed"
)

// Family member roles and statuses.
const (
	RoleExecutor = "executor"
	RoleMember   = "member"

	MemberInvited = "invited"
	MemberJoined  = "joined"
)

// Inventory item statuses.
const (
	ItemUnclaimed   = "unclaimed"
	ItemClaimed     = "claimed"
	ItemDistributed = "distributed"
)

// Claim types and statuses.
const (
	ClaimWant   = "want"
	ClaimNeed   = "need"
	ClaimMemory = "memory"

	ClaimPending  = "pending"
	ClaimResolved = "resolved"
)

// Distribution methods.
const (
	MethodUnanimous = "unanimous"
	MethodLottery   = "lottery"
	MethodBuyout    = "buyout"
	MethodGifted    = "gifted"
	MethodDonated   = "donated"
	MethodSold      = "sold"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Intent note visibility levels.
const (
	VisibilityPrivate  = "private"
	VisibilityMediator = "mediator"
	VisibilityMorris   = "morris"
	VisibilityPublic   = "public"
)

// Suggestion statuses.
const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

// Urgency levels for the estate schedule.
const (
	UrgencyUrgent  = "urgent"
	UrgencyNormal  = "normal"
	UrgencyRelaxed = "relaxed"
)

// Milestone statuses.
const (
	MilestonePending  = "pending"
	MilestoneComplete = "complete"
)

// Estate is the top-level case being administered.
type Estate struct {
	ID            int64
	DeceasedName  string
	ExecutorName  string
	ExecutorEmail string
	Status        string
	CreatedAt     time.Time
}

// FamilyMember is one invited or joined participant in an estate.
type FamilyMember struct {
	ID          int64
	EstateID    int64
	Name        string
	Email       string
	Role        string
	JoinCode    string
	Status      string
	InvitedAt   time.Time
	JoinedAt    time.Time
	LastNudgeAt time.Time
}

// InventoryItem is one physical item in the estate.
type InventoryItem struct {
	ID             int64
	EstateID       int64
	Name           string
	Description    string
	Location       string
	Category       string
	EstimatedValue float64
	Status         string
	AddedAt        time.Time
}

// Claim is a member's declared interest in an item.
type Claim struct {
	ID         int64
	ItemID     int64
	EstateID   int64
	MemberID   int64
	MemberName string
	ClaimType  string
	Priority   int
	Note       string
	Status     string
	CreatedAt  time.Time
}

// Distribution is the final, single assignment of an item to one member.
type Distribution struct {
	ID             int64
	ItemID         int64
	EstateID       int64
	WinnerMemberID int64
	WinnerName     string
	Method         string
	Value          float64
	CreatedAt      time.Time
}

// Milestone is one phase-completion checkpoint on the estate timeline.
type Milestone struct {
	EstateID    int64
	Key         string
	Label       string
	TargetDate  time.Time
	Status      string
	CompletedAt time.Time
	Notes       string
}

// Alert is one time-sensitive problem surfaced by the steward sweep.
type Alert struct {
	ID        int64
	EstateID  int64
	Type      string
	Severity  string
	Message   string
	Detail    string
	Active    bool
	CreatedAt time.Time
}

// AuditEntry is an immutable record of one action. Metadata never carries
// private note content.
type AuditEntry struct {
	ID            int64
	EstateID      int64
	ItemID        int64
	ActorID       int64
	ActorName     string
	ActionType    string
	PublicSummary string
	Metadata      map[string]any
	CreatedAt     time.Time
}

// IntentNote is a member's visibility-scoped annotation on an item.
type IntentNote struct {
	ID         int64
	ItemID     int64
	EstateID   int64
	MemberID   int64
	MemberName string
	Content    string
	Visibility string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Suggestion is a family-proposed inventory item awaiting executor review.
// Notified is persisted so restarts neither re-notify nor drop notifications.
type Suggestion struct {
	ID              int64
	EstateID        int64
	Name            string
	Description     string
	SuggestedByName string
	Status          string
	Notified        bool
	CreatedAt       time.Time
}

// ScheduleConfig holds the onboarding outcome that drives the milestone plan.
type ScheduleConfig struct {
	EstateID           int64
	TargetEndDate      *time.Time
	Urgency            string
	LegalDeadlines     string
	Notes              string
	OnboardingComplete bool
}

// SessionState is the singleton conversation state for one channel.
type SessionState struct {
	Channel     string
	State       string
	LastMessage string
	Answers     map[string]string
	UpdatedAt   time.Time
}

// Conflict is a derived fact: one item with two or more pending claims.
type Conflict struct {
	ItemID      int64
	ItemName    string
	Claimants   []string
	OldestClaim time.Time
}

var (
	validSeverities   = map[string]bool{SeverityInfo: true, SeverityWarning: true, SeverityCritical: true}
	validVisibilities = map[string]bool{VisibilityPrivate: true, VisibilityMediator: true, VisibilityMorris: true, VisibilityPublic: true}
	validClaimTypes   = map[string]bool{ClaimWant: true, ClaimNeed: true, ClaimMemory: true}
	validMethods      = map[string]bool{MethodUnanimous: true, MethodLottery: true, MethodBuyout: true, MethodGifted: true, MethodDonated: true, MethodSold: true}
	validRoles        = map[string]bool{RoleExecutor: true, RoleMember: true}
	validUrgencies    = map[string]bool{UrgencyUrgent: true, UrgencyNormal: true, UrgencyRelaxed: true}
)

// ValidateSeverity rejects unknown alert severities.
func ValidateSeverity(s string) error {
	if !validSeverities[s] {
		return fmt.Errorf("invalid severity %q", s)
	}
	return nil
}

// ValidateVisibility rejects unknown intent note visibility levels.
func ValidateVisibility(v string) error {
	if !validVisibilities[v] {
		return fmt.Errorf("invalid visibility %q", v)
	}
	return nil
}

// ValidateClaimType rejects unknown claim types.
func ValidateClaimType(t string) error {
	if !validClaimTypes[t] {
		return fmt.Errorf("invalid claim type %q", t)
	}
	return nil
}

// ValidateMethod rejects unknown distribution methods.
func ValidateMethod(m string) error {
	if !validMethods[m] {
		return fmt.Errorf("invalid distribution method %q", m)
	}
	return nil
}

// ValidateRole rejects unknown member roles.
func ValidateRole(r string) error {
	if !validRoles[r] {
		return fmt.Errorf("invalid role %q", r)
	}
	return nil
}

// NormalizeUrgency maps unknown urgency values to normal.
func NormalizeUrgency(u string) string {
	if validUrgencies[u] {
		return u
	}
	return UrgencyNormal
}
