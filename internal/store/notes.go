package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AddIntentNote creates a note. Notes always start private; visibility is
// widened later, and only by the author.
func (s *Store) AddIntentNote(itemID, estateID, memberID int64, memberName, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now())
	res, err := s.db.Exec(
		`INSERT INTO intent_notes (item_id, estate_id, member_id, member_name, content, visibility, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, estateID, memberID, memberName, content, VisibilityPrivate, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add intent note: %w", err)
	}
	return res.LastInsertId()
}

// GetIntentNote loads one note by ID.
func (s *Store) GetIntentNote(noteID int64) (*IntentNote, error) {
	row := s.db.QueryRow(
		`SELECT id, item_id, estate_id, member_id, member_name, content, visibility, created_at, updated_at
		 FROM intent_notes WHERE id = ?`, noteID,
	)
	var n IntentNote
	var created, updated string
	if err := row.Scan(&n.ID, &n.ItemID, &n.EstateID, &n.MemberID, &n.MemberName,
		&n.Content, &n.Visibility, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load note %d: %w", noteID, err)
	}
	n.CreatedAt = parseTime(created)
	n.UpdatedAt = parseTime(updated)
	return &n, nil
}

// SetNoteVisibility changes a note's visibility. Content is untouched.
func (s *Store) SetNoteVisibility(noteID int64, visibility string) error {
	if err := ValidateVisibility(visibility); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE intent_notes SET visibility = ?, updated_at = ? WHERE id = ?`,
		visibility, formatTime(time.Now()), noteID,
	)
	if err != nil {
		return fmt.Errorf("failed to set note visibility: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemIntentNotes returns all notes on an item, unfiltered. Visibility
// filtering belongs to the audit ledger's read path, not the store.
func (s *Store) ItemIntentNotes(itemID int64) ([]IntentNote, error) {
	rows, err := s.db.Query(
		`SELECT id, item_id, estate_id, member_id, member_name, content, visibility, created_at, updated_at
		 FROM intent_notes WHERE item_id = ? ORDER BY created_at, id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var notes []IntentNote
	for rows.Next() {
		var n IntentNote
		var created, updated string
		if err := rows.Scan(&n.ID, &n.ItemID, &n.EstateID, &n.MemberID, &n.MemberName,
			&n.Content, &n.Visibility, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.CreatedAt = parseTime(created)
		n.UpdatedAt = parseTime(updated)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
