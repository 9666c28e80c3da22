package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyDistributed is returned when a distribution already exists for
// the item. An item is distributed exactly once.
var ErrAlreadyDistributed = errors.New("store: item already distributed")

// AddItem inserts an inventory item and returns its ID.
func (s *Store) AddItem(estateID int64, name, description, location, category string, estimatedValue float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO inventory_items (estate_id, name, description, location, category, estimated_value, status, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		estateID, name, description, location, category, estimatedValue, ItemUnclaimed, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add item: %w", err)
	}
	return res.LastInsertId()
}

// GetItem loads one inventory item.
func (s *Store) GetItem(itemID int64) (*InventoryItem, error) {
	row := s.db.QueryRow(
		`SELECT id, estate_id, name, COALESCE(description,''), COALESCE(location,''),
		        COALESCE(category,''), COALESCE(estimated_value,0), status, added_at
		 FROM inventory_items WHERE id = ?`, itemID,
	)
	var it InventoryItem
	var addedAt string
	if err := row.Scan(&it.ID, &it.EstateID, &it.Name, &it.Description, &it.Location,
		&it.Category, &it.EstimatedValue, &it.Status, &addedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load item %d: %w", itemID, err)
	}
	it.AddedAt = parseTime(addedAt)
	return &it, nil
}

// Inventory returns all items for an estate, optionally filtered by status.
func (s *Store) Inventory(estateID int64, status string) ([]InventoryItem, error) {
	query := `SELECT id, estate_id, name, COALESCE(description,''), COALESCE(location,''),
	                 COALESCE(category,''), COALESCE(estimated_value,0), status, added_at
	          FROM inventory_items WHERE estate_id = ?`
	args := []any{estateID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory for estate %d: %w", estateID, err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var it InventoryItem
		var addedAt string
		if err := rows.Scan(&it.ID, &it.EstateID, &it.Name, &it.Description, &it.Location,
			&it.Category, &it.EstimatedValue, &it.Status, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.AddedAt = parseTime(addedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddClaim records a member's claim on an item and flips the item to claimed.
func (s *Store) AddClaim(itemID, estateID, memberID int64, memberName, claimType string, priority int, note string) (int64, error) {
	if err := ValidateClaimType(claimType); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO claims (item_id, estate_id, member_id, member_name, claim_type, priority, note, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, estateID, memberID, memberName, claimType, priority, note, ClaimPending, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add claim: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE inventory_items SET status = ? WHERE id = ? AND status = ?`,
		ItemClaimed, itemID, ItemUnclaimed,
	); err != nil {
		return 0, fmt.Errorf("failed to flip item status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit claim: %w", err)
	}
	return res.LastInsertId()
}

// ItemClaims returns the pending claims on an item.
func (s *Store) ItemClaims(itemID int64) ([]Claim, error) {
	rows, err := s.db.Query(
		`SELECT id, item_id, estate_id, member_id, member_name, claim_type,
		        COALESCE(priority,1), COALESCE(note,''), status, created_at
		 FROM claims WHERE item_id = ? AND status = ? ORDER BY created_at`,
		itemID, ClaimPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load claims for item %d: %w", itemID, err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

func scanClaims(rows *sql.Rows) ([]Claim, error) {
	var claims []Claim
	for rows.Next() {
		var c Claim
		var createdAt string
		if err := rows.Scan(&c.ID, &c.ItemID, &c.EstateID, &c.MemberID, &c.MemberName,
			&c.ClaimType, &c.Priority, &c.Note, &c.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// ResolveItem records a distribution, resolves every pending claim on the
// item, and flips the item status to distributed, all in one transaction.
// A second distribution for the same item fails with ErrAlreadyDistributed.
func (s *Store) ResolveItem(itemID, estateID, winnerMemberID int64, winnerName, method string, value float64) (int64, error) {
	if err := ValidateMethod(method); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin distribution transaction: %w", err)
	}
	defer tx.Rollback()

	var estate int64
	err = tx.QueryRow(`SELECT estate_id FROM inventory_items WHERE id = ?`, itemID).Scan(&estate)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to verify item %d: %w", itemID, err)
	}

	var existing int64
	err = tx.QueryRow(`SELECT COUNT(*) FROM distributions WHERE item_id = ?`, itemID).Scan(&existing)
	if err != nil {
		return 0, fmt.Errorf("failed to check distributions: %w", err)
	}
	if existing > 0 {
		return 0, ErrAlreadyDistributed
	}

	res, err := tx.Exec(
		`INSERT INTO distributions (item_id, estate_id, winner_member_id, winner_name, method, value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		itemID, estateID, winnerMemberID, winnerName, method, value, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record distribution: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE claims SET status = ? WHERE item_id = ? AND status = ?`,
		ClaimResolved, itemID, ClaimPending,
	); err != nil {
		return 0, fmt.Errorf("failed to resolve claims: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE inventory_items SET status = ? WHERE id = ?`,
		ItemDistributed, itemID,
	); err != nil {
		return 0, fmt.Errorf("failed to mark item distributed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit distribution: %w", err)
	}
	return res.LastInsertId()
}

// Conflicts returns every item with two or more pending claims that has not
// been distributed, with claimant names and the oldest pending claim time.
func (s *Store) Conflicts(estateID int64) ([]Conflict, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.name, MIN(cl.created_at)
		 FROM inventory_items i
		 JOIN claims cl ON cl.item_id = i.id
		 WHERE i.estate_id = ? AND cl.status = ? AND i.status != ?
		 GROUP BY i.id, i.name
		 HAVING COUNT(cl.id) > 1
		 ORDER BY COUNT(cl.id) DESC`,
		estateID, ClaimPending, ItemDistributed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts for estate %d: %w", estateID, err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		var c Conflict
		var oldest string
		if err := rows.Scan(&c.ItemID, &c.ItemName, &oldest); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.OldestClaim = parseTime(oldest)
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range conflicts {
		claims, err := s.ItemClaims(conflicts[i].ItemID)
		if err != nil {
			return nil, err
		}
		for _, cl := range claims {
			conflicts[i].Claimants = append(conflicts[i].Claimants, cl.MemberName)
		}
	}
	return conflicts, nil
}

// FairnessRow summarizes what one member has received so far.
type FairnessRow struct {
	MemberName string
	ItemCount  int
	TotalValue float64
}

// FairnessSummary reports distribution balance across members.
func (s *Store) FairnessSummary(estateID int64) ([]FairnessRow, error) {
	rows, err := s.db.Query(
		`SELECT winner_name, COUNT(*), COALESCE(SUM(value), 0)
		 FROM distributions WHERE estate_id = ?
		 GROUP BY winner_name ORDER BY COUNT(*) DESC`, estateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load fairness summary: %w", err)
	}
	defer rows.Close()

	var out []FairnessRow
	for rows.Next() {
		var r FairnessRow
		if err := rows.Scan(&r.MemberName, &r.ItemCount, &r.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan fairness row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
