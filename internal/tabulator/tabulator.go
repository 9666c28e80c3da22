// Package tabulator is the keeper of the ledger: every item, claim, and
// distribution goes through here, and every write produces an audit entry.
package tabulator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"familymatter/internal/audit"
	"familymatter/internal/store"
)

// Tabulator coordinates inventory mutations with their audit records.
type Tabulator struct {
	store  *store.Store
	ledger *audit.Ledger
	logger *zap.Logger
}

// New wires the tabulator.
func New(s *store.Store, l *audit.Ledger, logger *zap.Logger) *Tabulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tabulator{store: s, ledger: l, logger: logger}
}

// AddItem adds an inventory item and audits the addition.
func (t *Tabulator) AddItem(estateID int64, name, description, location, category string, estimatedValue float64, addedBy string) (int64, error) {
	itemID, err := t.store.AddItem(estateID, name, description, location, category, estimatedValue)
	if err != nil {
		return 0, err
	}
	if err := t.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ItemID:        itemID,
		ActorName:     addedBy,
		ActionType:    "item_added",
		PublicSummary: fmt.Sprintf("%s added %q to the inventory.", addedBy, name),
		Metadata: map[string]any{
			"category":        category,
			"location":        location,
			"estimated_value": estimatedValue,
		},
	}); err != nil {
		return 0, err
	}
	return itemID, nil
}

// RecordClaim records a member's claim, audits it, and when the item already
// had other pending claimants, flags the conflict with its own audit entry.
// The returned claimants slice is non-empty only when a conflict now exists.
func (t *Tabulator) RecordClaim(itemID, estateID, memberID int64, memberName, claimType string, priority int, note string) ([]string, error) {
	existing, err := t.store.ItemClaims(itemID)
	if err != nil {
		return nil, err
	}

	if _, err := t.store.AddClaim(itemID, estateID, memberID, memberName, claimType, priority, note); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("%s recorded a claim on item %d.", memberName, itemID)
	if note != "" {
		summary += fmt.Sprintf(" Note: %q", note)
	}
	if err := t.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ItemID:        itemID,
		ActorID:       memberID,
		ActorName:     memberName,
		ActionType:    "claim_recorded",
		PublicSummary: summary,
		Metadata:      map[string]any{"claim_type": claimType, "priority": priority},
	}); err != nil {
		return nil, err
	}

	if len(existing) == 0 {
		return nil, nil
	}

	claimants := make([]string, 0, len(existing)+1)
	for _, c := range existing {
		claimants = append(claimants, c.MemberName)
	}
	claimants = append(claimants, memberName)

	if err := t.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ItemID:        itemID,
		ActorName:     "Tabulator",
		ActionType:    "conflict_flagged",
		PublicSummary: fmt.Sprintf("Conflict detected on item %d: %s both have claims.", itemID, strings.Join(claimants, " and ")),
		Metadata:      map[string]any{"claimants": claimants},
	}); err != nil {
		return nil, err
	}
	t.logger.Info("conflict flagged",
		zap.Int64("item_id", itemID),
		zap.Strings("claimants", claimants))
	return claimants, nil
}

// Resolve records the final distribution of an item: one winner, all pending
// claims resolved, item flipped to distributed, one audit entry.
func (t *Tabulator) Resolve(itemID, estateID, winnerMemberID int64, winnerName, method string, value float64, resolvedBy string) error {
	if _, err := t.store.ResolveItem(itemID, estateID, winnerMemberID, winnerName, method, value); err != nil {
		return err
	}

	// Resolving the last open conflict clears its alerts right away instead
	// of leaving them standing until the next sweep.
	remaining, err := t.store.Conflicts(estateID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := t.store.ResolveAlertType(estateID, "conflict_unresolved"); err != nil {
			return err
		}
	}

	return t.ledger.Record(store.AuditEntry{
		EstateID:      estateID,
		ItemID:        itemID,
		ActorName:     resolvedBy,
		ActionType:    "distribution_recorded",
		PublicSummary: fmt.Sprintf("Item distributed to %s via %s.", winnerName, method),
		Metadata:      map[string]any{"method": method, "estimated_value": value},
	})
}
