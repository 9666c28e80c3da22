// Package audit is the append-only write path and visibility-filtered read
// path over audit entries and intent notes. Every mutating action elsewhere
// in the system lands here as an immutable, human-readable record.
package audit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"familymatter/internal/store"
)

// ErrNotAuthor is returned when someone other than a note's author tries to
// change its visibility.
var ErrNotAuthor = errors.New("audit: only the note's author may change its visibility")

// Ledger records actions and answers history queries. It never edits or
// removes a prior entry.
type Ledger struct {
	store  *store.Store
	logger *zap.Logger
}

// NewLedger wires the ledger to its store.
func NewLedger(s *store.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: s, logger: logger}
}

// Record appends one immutable entry.
func (l *Ledger) Record(e store.AuditEntry) error {
	id, err := l.store.AppendAudit(e)
	if err != nil {
		return err
	}
	l.logger.Debug("audit entry recorded",
		zap.Int64("entry_id", id),
		zap.Int64("estate_id", e.EstateID),
		zap.String("action", e.ActionType))
	return nil
}

// ItemHistory returns the complete story of one item, oldest first.
func (l *Ledger) ItemHistory(estateID, itemID int64) ([]store.AuditEntry, error) {
	return l.store.ItemAuditLog(estateID, itemID)
}

// RecentActivity returns the estate-wide feed, newest first.
func (l *Ledger) RecentActivity(estateID int64, limit int) ([]store.AuditEntry, error) {
	return l.store.RecentAuditLog(estateID, limit)
}

// AddNote creates an intent note. Notes always start private, and the audit
// trail records only that a note exists, never what it says.
func (l *Ledger) AddNote(itemID, estateID, memberID int64, memberName, content string) (int64, error) {
	noteID, err := l.store.AddIntentNote(itemID, estateID, memberID, memberName, content)
	if err != nil {
		return 0, err
	}
	if err := l.Record(store.AuditEntry{
		EstateID:      estateID,
		ItemID:        itemID,
		ActorID:       memberID,
		ActorName:     memberName,
		ActionType:    "note_added",
		PublicSummary: fmt.Sprintf("%s added a private note to item %d.", memberName, itemID),
		Metadata:      map[string]any{"note_id": noteID, "visibility": store.VisibilityPrivate},
	}); err != nil {
		return 0, err
	}
	return noteID, nil
}

// SetVisibility changes a note's visibility. Only the author may do this.
// On success an audit entry describes the change by label, never the content.
func (l *Ledger) SetVisibility(noteID, requesterID int64, requesterName, newVisibility string) error {
	note, err := l.store.GetIntentNote(noteID)
	if err != nil {
		return err
	}
	if note.MemberID != requesterID {
		return ErrNotAuthor
	}
	if err := l.store.SetNoteVisibility(noteID, newVisibility); err != nil {
		return err
	}
	return l.Record(store.AuditEntry{
		EstateID:      note.EstateID,
		ItemID:        note.ItemID,
		ActorID:       requesterID,
		ActorName:     requesterName,
		ActionType:    "note_visibility_changed",
		PublicSummary: fmt.Sprintf("%s changed a note's visibility from %s to %s.", requesterName, note.Visibility, newVisibility),
		Metadata:      map[string]any{"note_id": noteID, "from": note.Visibility, "to": newVisibility},
	})
}

// ReadNotes returns the notes on an item the viewer is allowed to see.
// Unreadable notes are omitted entirely, never returned in redacted form.
func (l *Ledger) ReadNotes(itemID, viewerID int64, isMorrisRole, isMediatorRole bool) ([]store.IntentNote, error) {
	all, err := l.store.ItemIntentNotes(itemID)
	if err != nil {
		return nil, err
	}
	var visible []store.IntentNote
	for _, n := range all {
		switch {
		case n.MemberID == viewerID:
			visible = append(visible, n)
		case n.Visibility == store.VisibilityPublic:
			visible = append(visible, n)
		case n.Visibility == store.VisibilityMorris && isMorrisRole:
			visible = append(visible, n)
		case n.Visibility == store.VisibilityMediator && isMediatorRole:
			visible = append(visible, n)
		}
	}
	return visible, nil
}
