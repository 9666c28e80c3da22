package store

import (
	"fmt"
	"time"
)

// WriteAlert inserts a new active alert.
func (s *Store) WriteAlert(estateID int64, alertType, severity, message, detail string) error {
	if err := ValidateSeverity(severity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO timeline_alerts (estate_id, alert_type, severity, message, detail, active, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		estateID, alertType, severity, message, detail, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to write alert: %w", err)
	}
	return nil
}

// ResolveAlertType deactivates every active alert of one type for an estate.
// The sweep calls this before re-deriving so stale alerts never outlive
// their cause.
func (s *Store) ResolveAlertType(estateID int64, alertType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE timeline_alerts SET active = 0 WHERE estate_id = ? AND alert_type = ? AND active = 1`,
		estateID, alertType,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve alerts of type %q: %w", alertType, err)
	}
	return nil
}

// ReplaceAlertsOfType resolves the type and writes its fresh alerts in one
// transaction, so there is no window where the type has no rows at all.
func (s *Store) ReplaceAlertsOfType(estateID int64, alertType string, fresh []Alert) error {
	for _, a := range fresh {
		if err := ValidateSeverity(a.Severity); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin alert transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE timeline_alerts SET active = 0 WHERE estate_id = ? AND alert_type = ? AND active = 1`,
		estateID, alertType,
	); err != nil {
		return fmt.Errorf("failed to resolve alerts of type %q: %w", alertType, err)
	}
	now := formatTime(time.Now())
	for _, a := range fresh {
		if _, err := tx.Exec(
			`INSERT INTO timeline_alerts (estate_id, alert_type, severity, message, detail, active, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			estateID, alertType, a.Severity, a.Message, a.Detail, now,
		); err != nil {
			return fmt.Errorf("failed to write alert: %w", err)
		}
	}
	return tx.Commit()
}

// ActiveAlerts returns the estate's active alerts, critical first.
func (s *Store) ActiveAlerts(estateID int64) ([]Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, estate_id, alert_type, severity, message, COALESCE(detail,''), active, created_at
		 FROM timeline_alerts WHERE estate_id = ? AND active = 1
		 ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END, id`,
		estateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts for estate %d: %w", estateID, err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var active int
		var createdAt string
		if err := rows.Scan(&a.ID, &a.EstateID, &a.Type, &a.Severity, &a.Message, &a.Detail, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Active = active != 0
		a.CreatedAt = parseTime(createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
