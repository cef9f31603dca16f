// Package repository provides database access for domain entities.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gitlab.com/minqi/travel-standards/internal/database"
	"gitlab.com/minqi/travel-standards/internal/models"
)

// ErrInvalidTransition is returned for a disallowed status change.
var ErrInvalidTransition = errors.New("invalid standard status transition")

// StandardRepository handles standard database operations. It implements
// policy.Catalog.
type StandardRepository struct {
	db database.PGXDB
}

// NewStandardRepository creates a new StandardRepository.
func NewStandardRepository(db database.PGXDB) *StandardRepository {
	return &StandardRepository{db: db}
}

// FetchActiveAsOf retrieves all active standards whose effective window
// covers asOf, with condition groups and expense entries attached, ordered
// by priority descending then effective date descending.
func (r *StandardRepository) FetchActiveAsOf(ctx context.Context, asOf time.Time) ([]models.Standard, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, name, version, status, priority,
		       effective_date, expiry_date, created_at, updated_at
		FROM standards
		WHERE status = 'active'
		  AND effective_date <= $1
		  AND (expiry_date IS NULL OR expiry_date >= $1)
		ORDER BY priority DESC, effective_date DESC
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query active standards: %w", err)
	}
	defer rows.Close()

	standards, err := scanStandards(rows)
	if err != nil {
		return nil, err
	}
	if len(standards) == 0 {
		return nil, nil
	}

	if err := r.attachConditionGroups(ctx, standards); err != nil {
		return nil, err
	}
	if err := r.attachExpenseEntries(ctx, standards); err != nil {
		return nil, err
	}
	return standards, nil
}

// GetByCode retrieves a single standard with its groups and entries.
// Returns nil when no standard has the code.
func (r *StandardRepository) GetByCode(ctx context.Context, code string) (*models.Standard, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, code, name, version, status, priority,
		       effective_date, expiry_date, created_at, updated_at
		FROM standards
		WHERE code = $1
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query standard: %w", err)
	}
	defer rows.Close()

	standards, err := scanStandards(rows)
	if err != nil {
		return nil, err
	}
	if len(standards) == 0 {
		return nil, nil
	}

	if err := r.attachConditionGroups(ctx, standards); err != nil {
		return nil, err
	}
	if err := r.attachExpenseEntries(ctx, standards); err != nil {
		return nil, err
	}
	return &standards[0], nil
}

// Create inserts a standard with its condition groups and expense entries
// in one transaction. New standards always start in draft regardless of the
// status on the input.
func (r *StandardRepository) Create(ctx context.Context, tx database.TxBeginner, std *models.Standard) error {
	dbTx, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	err = dbTx.QueryRow(ctx, `
		INSERT INTO standards (code, name, version, status, priority, effective_date, expiry_date)
		VALUES ($1, $2, $3, 'draft', $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, std.Code, std.Name, std.Version, std.Priority, std.EffectiveDate, std.ExpiryDate).
		Scan(&std.ID, &std.CreatedAt, &std.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert standard: %w", err)
	}
	std.Status = models.StandardStatusDraft

	for gi := range std.ConditionGroups {
		group := &std.ConditionGroups[gi]
		logicOp := group.LogicOperator
		if logicOp == "" {
			logicOp = "AND"
		}
		err = dbTx.QueryRow(ctx, `
			INSERT INTO condition_groups (standard_id, group_id, logic_operator, position)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, std.ID, group.GroupID, logicOp, gi).Scan(&group.ID)
		if err != nil {
			return fmt.Errorf("failed to insert condition group: %w", err)
		}

		for ci := range group.Conditions {
			cond := &group.Conditions[ci]
			locationIDs := cond.LocationIDs
			if locationIDs == nil {
				locationIDs = []int64{}
			}
			err = dbTx.QueryRow(ctx, `
				INSERT INTO conditions (group_id, type, operator, value, location_ids, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, group.ID, cond.Type, cond.Operator, cond.Value, locationIDs, ci).Scan(&cond.ID)
			if err != nil {
				return fmt.Errorf("failed to insert condition: %w", err)
			}
		}
	}

	for ei := range std.ExpenseEntries {
		entry := &std.ExpenseEntries[ei]
		calcUnit := entry.CalcUnit
		if calcUnit == "" {
			calcUnit = models.CalcPerDay
		}
		err = dbTx.QueryRow(ctx, `
			INSERT INTO standard_expense_entries
				(standard_id, expense_item_id, limit_type, limit_amount,
				 limit_min, limit_max, percentage, base_amount, calc_unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, std.ID, entry.ExpenseItemID, entry.LimitType, entry.LimitAmount,
			entry.LimitMin, entry.LimitMax, entry.Percentage, entry.BaseAmount, calcUnit).
			Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to insert expense entry: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit standard: %w", err)
	}
	return nil
}

// UpdateStatus moves a standard through its lifecycle. Allowed transitions:
// draft -> active, draft -> expired, active -> expired.
func (r *StandardRepository) UpdateStatus(ctx context.Context, code, status string) error {
	var current string
	err := r.db.QueryRow(ctx, `SELECT status FROM standards WHERE code = $1`, code).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("standard %s not found", code)
	}
	if err != nil {
		return fmt.Errorf("failed to get standard status: %w", err)
	}

	if !transitionAllowed(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE standards SET status = $2, updated_at = NOW() WHERE code = $1
	`, code, status)
	if err != nil {
		return fmt.Errorf("failed to update standard status: %w", err)
	}
	return nil
}

func transitionAllowed(from, to string) bool {
	switch from {
	case models.StandardStatusDraft:
		return to == models.StandardStatusActive || to == models.StandardStatusExpired
	case models.StandardStatusActive:
		return to == models.StandardStatusExpired
	default:
		return false
	}
}

func scanStandards(rows pgx.Rows) ([]models.Standard, error) {
	var standards []models.Standard
	for rows.Next() {
		var std models.Standard
		if err := rows.Scan(
			&std.ID, &std.Code, &std.Name, &std.Version, &std.Status, &std.Priority,
			&std.EffectiveDate, &std.ExpiryDate, &std.CreatedAt, &std.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan standard: %w", err)
		}
		standards = append(standards, std)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating standards: %w", err)
	}
	return standards, nil
}

// attachConditionGroups loads groups and their conditions for all listed
// standards in two queries to avoid per-standard round trips.
func (r *StandardRepository) attachConditionGroups(ctx context.Context, standards []models.Standard) error {
	ids := standardIDs(standards)

	rows, err := r.db.Query(ctx, `
		SELECT id, standard_id, group_id, logic_operator
		FROM condition_groups
		WHERE standard_id = ANY($1)
		ORDER BY standard_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query condition groups: %w", err)
	}
	defer rows.Close()

	groupsByStandard := make(map[int64][]models.ConditionGroup)
	groupIndex := make(map[int64]int) // group id -> index within its standard's slice
	groupOwner := make(map[int64]int64)
	for rows.Next() {
		var group models.ConditionGroup
		var standardID int64
		if err := rows.Scan(&group.ID, &standardID, &group.GroupID, &group.LogicOperator); err != nil {
			return fmt.Errorf("failed to scan condition group: %w", err)
		}
		groupIndex[group.ID] = len(groupsByStandard[standardID])
		groupOwner[group.ID] = standardID
		groupsByStandard[standardID] = append(groupsByStandard[standardID], group)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating condition groups: %w", err)
	}

	condRows, err := r.db.Query(ctx, `
		SELECT c.id, c.group_id, c.type, c.operator, c.value, c.location_ids
		FROM conditions c
		JOIN condition_groups g ON g.id = c.group_id
		WHERE g.standard_id = ANY($1)
		ORDER BY c.group_id, c.position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query conditions: %w", err)
	}
	defer condRows.Close()

	for condRows.Next() {
		var cond models.Condition
		var groupID int64
		if err := condRows.Scan(&cond.ID, &groupID, &cond.Type, &cond.Operator, &cond.Value, &cond.LocationIDs); err != nil {
			return fmt.Errorf("failed to scan condition: %w", err)
		}
		standardID := groupOwner[groupID]
		groups := groupsByStandard[standardID]
		groups[groupIndex[groupID]].Conditions = append(groups[groupIndex[groupID]].Conditions, cond)
	}
	if err := condRows.Err(); err != nil {
		return fmt.Errorf("error iterating conditions: %w", err)
	}

	for i := range standards {
		standards[i].ConditionGroups = groupsByStandard[standards[i].ID]
	}
	return nil
}

func (r *StandardRepository) attachExpenseEntries(ctx context.Context, standards []models.Standard) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, standard_id, expense_item_id, limit_type, limit_amount,
		       limit_min, limit_max, percentage, base_amount, calc_unit
		FROM standard_expense_entries
		WHERE standard_id = ANY($1)
		ORDER BY standard_id, expense_item_id
	`, standardIDs(standards))
	if err != nil {
		return fmt.Errorf("failed to query expense entries: %w", err)
	}
	defer rows.Close()

	entriesByStandard := make(map[int64][]models.ExpenseLimitEntry)
	for rows.Next() {
		var entry models.ExpenseLimitEntry
		var standardID int64
		if err := rows.Scan(
			&entry.ID, &standardID, &entry.ExpenseItemID, &entry.LimitType, &entry.LimitAmount,
			&entry.LimitMin, &entry.LimitMax, &entry.Percentage, &entry.BaseAmount, &entry.CalcUnit,
		); err != nil {
			return fmt.Errorf("failed to scan expense entry: %w", err)
		}
		entriesByStandard[standardID] = append(entriesByStandard[standardID], entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating expense entries: %w", err)
	}

	for i := range standards {
		standards[i].ExpenseEntries = entriesByStandard[standards[i].ID]
	}
	return nil
}

func standardIDs(standards []models.Standard) []int64 {
	ids := make([]int64, 0, len(standards))
	for i := range standards {
		ids = append(ids, standards[i].ID)
	}
	return ids
}
