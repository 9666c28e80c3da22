package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AppendAudit inserts one immutable audit entry. There is no update or
// delete path for audit rows anywhere in this package.
func (s *Store) AppendAudit(e AuditEntry) (int64, error) {
	meta := "{}"
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		meta = string(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO audit_log (estate_id, item_id, actor_id, actor_name, action_type, public_summary, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EstateID, nullableID(e.ItemID), nullableID(e.ActorID), e.ActorName,
		e.ActionType, e.PublicSummary, meta, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return res.LastInsertId()
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// ItemAuditLog returns the complete history for one item, oldest first.
func (s *Store) ItemAuditLog(estateID, itemID int64) ([]AuditEntry, error) {
	return s.auditLog(
		`SELECT id, estate_id, COALESCE(item_id,0), COALESCE(actor_id,0), actor_name,
		        action_type, public_summary, COALESCE(metadata,'{}'), created_at
		 FROM audit_log WHERE estate_id = ? AND item_id = ? ORDER BY created_at ASC, id ASC`,
		estateID, itemID,
	)
}

// RecentAuditLog returns the estate-wide activity feed, newest first.
func (s *Store) RecentAuditLog(estateID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.auditLog(
		`SELECT id, estate_id, COALESCE(item_id,0), COALESCE(actor_id,0), actor_name,
		        action_type, public_summary, COALESCE(metadata,'{}'), created_at
		 FROM audit_log WHERE estate_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		estateID, limit,
	)
}

// LastAuditActivity returns the timestamp of the most recent audit entry,
// or the zero time when the estate has no activity at all.
func (s *Store) LastAuditActivity(estateID int64) (time.Time, error) {
	var createdAt string
	err := s.db.QueryRow(
		`SELECT created_at FROM audit_log WHERE estate_id = ? ORDER BY created_at DESC LIMIT 1`,
		estateID,
	).Scan(&createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to load last activity: %w", err)
	}
	return parseTime(createdAt), nil
}

func (s *Store) auditLog(query string, args ...any) ([]AuditEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var meta, createdAt string
		if err := rows.Scan(&e.ID, &e.EstateID, &e.ItemID, &e.ActorID, &e.ActorName,
			&e.ActionType, &e.PublicSummary, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			e.Metadata = map[string]any{}
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
