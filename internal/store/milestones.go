package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReplaceMilestones swaps the estate's milestone plan atomically. Calling it
// again with the same plan is a no-op in effect, which keeps rescheduling
// idempotent.
func (s *Store) ReplaceMilestones(estateID int64, milestones []Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin milestone transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM milestones WHERE estate_id = ?`, estateID); err != nil {
		return fmt.Errorf("failed to clear milestones: %w", err)
	}
	for _, m := range milestones {
		var completed string
		if m.Status == MilestoneComplete {
			completed = formatTime(time.Now())
		}
		if _, err := tx.Exec(
			`INSERT INTO milestones (estate_id, key, label, target_date, status, completed_at, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			estateID, m.Key, m.Label, formatTime(m.TargetDate), m.Status, completed, m.Notes,
		); err != nil {
			return fmt.Errorf("failed to insert milestone %q: %w", m.Key, err)
		}
	}
	return tx.Commit()
}

// Milestones returns the estate's plan in stored order.
func (s *Store) Milestones(estateID int64) ([]Milestone, error) {
	rows, err := s.db.Query(
		`SELECT estate_id, key, label, COALESCE(target_date,''), status,
		        COALESCE(completed_at,''), COALESCE(notes,'')
		 FROM milestones WHERE estate_id = ? ORDER BY rowid`, estateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load milestones for estate %d: %w", estateID, err)
	}
	defer rows.Close()

	var out []Milestone
	for rows.Next() {
		var m Milestone
		var target, completed string
		if err := rows.Scan(&m.EstateID, &m.Key, &m.Label, &target, &m.Status, &completed, &m.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		m.TargetDate = parseTime(target)
		m.CompletedAt = parseTime(completed)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CompleteMilestone marks a milestone complete. Completing an already
// complete milestone is a no-op so repeated sweeps cannot corrupt the plan.
func (s *Store) CompleteMilestone(estateID int64, key, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE milestones SET status = ?, completed_at = ?, notes = ?
		 WHERE estate_id = ? AND key = ? AND status != ?`,
		MilestoneComplete, formatTime(time.Now()), notes, estateID, key, MilestoneComplete,
	)
	if err != nil {
		return fmt.Errorf("failed to complete milestone %q: %w", key, err)
	}
	return nil
}

// SaveSchedule upserts the estate's schedule configuration.
func (s *Store) SaveSchedule(cfg ScheduleConfig) error {
	cfg.Urgency = NormalizeUrgency(cfg.Urgency)

	s.mu.Lock()
	defer s.mu.Unlock()

	var target string
	if cfg.TargetEndDate != nil {
		target = formatTime(*cfg.TargetEndDate)
	}
	complete := 0
	if cfg.OnboardingComplete {
		complete = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO estate_schedules (estate_id, target_end_date, urgency, legal_deadlines, notes, onboarding_complete)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(estate_id) DO UPDATE SET
		   target_end_date = excluded.target_end_date,
		   urgency = excluded.urgency,
		   legal_deadlines = excluded.legal_deadlines,
		   notes = excluded.notes,
		   onboarding_complete = excluded.onboarding_complete`,
		cfg.EstateID, target, cfg.Urgency, cfg.LegalDeadlines, cfg.Notes, complete,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule for estate %d: %w", cfg.EstateID, err)
	}
	return nil
}

// Schedule loads the estate's schedule configuration, or ErrNotFound.
func (s *Store) Schedule(estateID int64) (*ScheduleConfig, error) {
	row := s.db.QueryRow(
		`SELECT estate_id, COALESCE(target_end_date,''), urgency,
		        COALESCE(legal_deadlines,''), COALESCE(notes,''), onboarding_complete
		 FROM estate_schedules WHERE estate_id = ?`, estateID,
	)
	var cfg ScheduleConfig
	var target string
	var complete int
	if err := row.Scan(&cfg.EstateID, &target, &cfg.Urgency, &cfg.LegalDeadlines, &cfg.Notes, &complete); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load schedule for estate %d: %w", estateID, err)
	}
	if t := parseTime(target); !t.IsZero() {
		cfg.TargetEndDate = &t
	}
	cfg.OnboardingComplete = complete != 0
	return &cfg, nil
}
