package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"
)

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newJoinCode generates a 6-character invitation code.
func newJoinCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}

// CreateEstate inserts a new estate and returns its ID.
func (s *Store) CreateEstate(deceasedName, executorName, executorEmail string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO estates (deceased_name, executor_name, executor_email, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		deceasedName, executorName, executorEmail, EstateActive, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create estate: %w", err)
	}
	return res.LastInsertId()
}

// GetEstate loads one estate by ID.
func (s *Store) GetEstate(estateID int64) (*Estate, error) {
	row := s.db.QueryRow(
		`SELECT id, deceased_name, executor_name, executor_email, status, created_at
		 FROM estates WHERE id = ?`, estateID,
	)
	var e Estate
	var createdAt string
	if err := row.Scan(&e.ID, &e.DeceasedName, &e.ExecutorName, &e.ExecutorEmail, &e.Status, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load estate %d: %w", estateID, err)
	}
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// CloseEstate marks an estate closed. Sweeps skip closed estates.
func (s *Store) CloseEstate(estateID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE estates SET status = ? WHERE id = ?`, EstateClosed, estateID)
	if err != nil {
		return fmt.Errorf("failed to close estate %d: %w", estateID, err)
	}
	return nil
}

// AddFamilyMember adds a member to an estate and returns their join code.
func (s *Store) AddFamilyMember(estateID int64, name, email, role string) (string, error) {
	if err := ValidateRole(role); err != nil {
		return "", err
	}
	code, err := newJoinCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO family_members (estate_id, name, email, role, join_code, status, invited_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		estateID, name, email, role, code, MemberInvited, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to add family member: %w", err)
	}
	return code, nil
}

// MarkMemberJoined flips a member from invited to joined exactly once.
// Redeeming an unknown code returns ErrNotFound; redeeming twice is a no-op.
func (s *Store) MarkMemberJoined(joinCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var status string
	err := s.db.QueryRow(`SELECT status FROM family_members WHERE join_code = ?`, joinCode).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up join code: %w", err)
	}
	if status == MemberJoined {
		return nil
	}

	_, err = s.db.Exec(
		`UPDATE family_members SET status = ?, joined_at = ? WHERE join_code = ? AND status = ?`,
		MemberJoined, formatTime(time.Now()), joinCode, MemberInvited,
	)
	if err != nil {
		return fmt.Errorf("failed to mark member joined: %w", err)
	}
	return nil
}

// TouchMemberNudge records when a reminder was last sent to a member.
func (s *Store) TouchMemberNudge(memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE family_members SET last_nudge_at = ? WHERE id = ?`,
		formatTime(time.Now()), memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to record nudge for member %d: %w", memberID, err)
	}
	return nil
}

// Members returns all family members for an estate.
func (s *Store) Members(estateID int64) ([]FamilyMember, error) {
	rows, err := s.db.Query(
		`SELECT id, estate_id, name, email, role, join_code, status,
		        COALESCE(invited_at, ''), COALESCE(joined_at, ''), COALESCE(last_nudge_at, '')
		 FROM family_members WHERE estate_id = ? ORDER BY id`, estateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load members for estate %d: %w", estateID, err)
	}
	defer rows.Close()

	var members []FamilyMember
	for rows.Next() {
		var m FamilyMember
		var invited, joined, nudged string
		if err := rows.Scan(&m.ID, &m.EstateID, &m.Name, &m.Email, &m.Role, &m.JoinCode,
			&m.Status, &invited, &joined, &nudged); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.InvitedAt = parseTime(invited)
		m.JoinedAt = parseTime(joined)
		m.LastNudgeAt = parseTime(nudged)
		members = append(members, m)
	}
	return members, rows.Err()
}

// PendingMembers returns members who have been invited but not joined.
func (s *Store) PendingMembers(estateID int64) ([]FamilyMember, error) {
	all, err := s.Members(estateID)
	if err != nil {
		return nil, err
	}
	var pending []FamilyMember
	for _, m := range all {
		if m.Status == MemberInvited {
			pending = append(pending, m)
		}
	}
	return pending, nil
}
