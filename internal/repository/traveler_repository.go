package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gitlab.com/minqi/travel-standards/internal/database"
	"gitlab.com/minqi/travel-standards/internal/models"
)

// TravelerRepository handles traveler database operations.
type TravelerRepository struct {
	db database.PGXDB
}

// NewTravelerRepository creates a new TravelerRepository.
func NewTravelerRepository(db database.PGXDB) *TravelerRepository {
	return &TravelerRepository{db: db}
}

// GetByEmployeeNo retrieves a traveler's policy-relevant attributes.
// Returns nil when the employee number is unknown.
func (r *TravelerRepository) GetByEmployeeNo(ctx context.Context, employeeNo string) (*models.Traveler, error) {
	var t models.Traveler
	err := r.db.QueryRow(ctx, `
		SELECT employee_no, name, role, position, department, job_level, created_at, updated_at
		FROM travelers WHERE employee_no = $1
	`, employeeNo).Scan(&t.EmployeeNo, &t.Name, &t.Role, &t.Position, &t.Department, &t.JobLevel, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get traveler: %w", err)
	}
	return &t, nil
}

// Upsert creates or updates a traveler record.
func (r *TravelerRepository) Upsert(ctx context.Context, t *models.Traveler) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO travelers (employee_no, name, role, position, department, job_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (employee_no) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			position = EXCLUDED.position,
			department = EXCLUDED.department,
			job_level = EXCLUDED.job_level,
			updated_at = NOW()
	`, t.EmployeeNo, t.Name, t.Role, t.Position, t.Department, t.JobLevel)
	if err != nil {
		return fmt.Errorf("failed to upsert traveler: %w", err)
	}
	return nil
}
