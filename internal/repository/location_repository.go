package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"gitlab.com/minqi/travel-standards/internal/database"
	"gitlab.com/minqi/travel-standards/internal/models"
)

// LocationRepository resolves free-text city/country names against the
// location catalog. It implements policy.LocationResolver.
type LocationRepository struct {
	db database.PGXDB
}

// NewLocationRepository creates a new LocationRepository.
func NewLocationRepository(db database.PGXDB) *LocationRepository {
	return &LocationRepository{db: db}
}

// ResolveLocation finds a location of the given kind by name or alias,
// case-insensitively. A nil result with nil error means the name is not in
// the catalog; callers fall back to name-based matching.
func (r *LocationRepository) ResolveLocation(ctx context.Context, name string, kind models.LocationKind) (*models.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, nil
	}

	var loc models.Location
	err := r.db.QueryRow(ctx, `
		SELECT id, name, kind, aliases, city_tier, created_at
		FROM locations
		WHERE kind = $1
		  AND (LOWER(name) = LOWER($2)
		       OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE LOWER(a) = LOWER($2)))
		ORDER BY id
		LIMIT 1
	`, kind, trimmed).Scan(&loc.ID, &loc.Name, &loc.Kind, &loc.Aliases, &loc.CityTier, &loc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve location: %w", err)
	}
	return &loc, nil
}

// GetByID retrieves a location by its identifier.
func (r *LocationRepository) GetByID(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	err := r.db.QueryRow(ctx, `
		SELECT id, name, kind, aliases, city_tier, created_at
		FROM locations WHERE id = $1
	`, id).Scan(&loc.ID, &loc.Name, &loc.Kind, &loc.Aliases, &loc.CityTier, &loc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &loc, nil
}

// Create adds a location to the catalog.
func (r *LocationRepository) Create(ctx context.Context, loc *models.Location) error {
	aliases := loc.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO locations (name, kind, aliases, city_tier)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, loc.Name, loc.Kind, aliases, loc.CityTier).Scan(&loc.ID, &loc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}
