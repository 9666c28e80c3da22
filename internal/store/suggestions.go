package store

import (
	"fmt"
	"time"
)

// AddSuggestion records a family-proposed item awaiting executor review.
func (s *Store) AddSuggestion(estateID int64, name, description, suggestedBy string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO item_suggestions (estate_id, name, description, suggested_by_name, status, notified, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		estateID, name, description, suggestedBy, SuggestionPending, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add suggestion: %w", err)
	}
	return res.LastInsertId()
}

// PendingSuggestions returns suggestions still awaiting review.
func (s *Store) PendingSuggestions(estateID int64) ([]Suggestion, error) {
	return s.suggestions(
		`SELECT id, estate_id, name, COALESCE(description,''), suggested_by_name, status, notified, created_at
		 FROM item_suggestions WHERE estate_id = ? AND status = ? ORDER BY created_at`,
		estateID, SuggestionPending,
	)
}

// UnnotifiedSuggestions returns pending suggestions the executor has not yet
// been told about. The notified flag is persisted, so restarts neither
// re-notify nor drop notifications.
func (s *Store) UnnotifiedSuggestions(estateID int64) ([]Suggestion, error) {
	return s.suggestions(
		`SELECT id, estate_id, name, COALESCE(description,''), suggested_by_name, status, notified, created_at
		 FROM item_suggestions WHERE estate_id = ? AND status = ? AND notified = 0 ORDER BY created_at`,
		estateID, SuggestionPending,
	)
}

// MarkSuggestionNotified flags a suggestion as surfaced to the executor.
func (s *Store) MarkSuggestionNotified(suggestionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE item_suggestions SET notified = 1 WHERE id = ?`, suggestionID)
	if err != nil {
		return fmt.Errorf("failed to mark suggestion %d notified: %w", suggestionID, err)
	}
	return nil
}

// ReviewSuggestion moves a suggestion to approved or rejected.
func (s *Store) ReviewSuggestion(suggestionID int64, status string) error {
	if status != SuggestionApproved && status != SuggestionRejected {
		return fmt.Errorf("invalid suggestion status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE item_suggestions SET status = ? WHERE id = ?`, status, suggestionID)
	if err != nil {
		return fmt.Errorf("failed to review suggestion %d: %w", suggestionID, err)
	}
	return nil
}

func (s *Store) suggestions(query string, args ...any) ([]Suggestion, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		var notified int
		var createdAt string
		if err := rows.Scan(&sg.ID, &sg.EstateID, &sg.Name, &sg.Description,
			&sg.SuggestedByName, &sg.Status, &notified, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		sg.Notified = notified != 0
		sg.CreatedAt = parseTime(createdAt)
		out = append(out, sg)
	}
	return out, rows.Err()
}
