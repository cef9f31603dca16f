package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedExpenseItems inserts the default expense item catalog.
func SeedExpenseItems(ctx context.Context, pool *pgxpool.Pool) error {
	items := []struct {
		code string
		name string
	}{
		{"hotel", "Accommodation"},
		{"intercity_transport", "Intercity Transport"},
		{"city_transport", "Local Transport"},
		{"meals", "Meal Allowance"},
		{"communication", "Communication"},
		{"misc", "Miscellaneous"},
	}

	for _, item := range items {
		_, err := pool.Exec(ctx, `
			INSERT INTO expense_items (code, name) VALUES ($1, $2)
			ON CONFLICT (code) DO NOTHING
		`, item.code, item.name)
		if err != nil {
			return fmt.Errorf("failed to seed expense item %s: %w", item.code, err)
		}
	}
	return nil
}

// SeedLocations inserts a starter location catalog so identity-based
// matching works out of the box. Administrators extend it over time.
func SeedLocations(ctx context.Context, pool *pgxpool.Pool) error {
	locations := []struct {
		name     string
		kind     string
		aliases  []string
		cityTier int
	}{
		{"China", "country", []string{"PRC", "Mainland China"}, 0},
		{"United States", "country", []string{"USA", "US"}, 0},
		{"Singapore", "country", nil, 0},
		{"Japan", "country", nil, 0},
		{"Germany", "country", nil, 0},
		{"United Kingdom", "country", []string{"UK", "Britain"}, 0},
		{"Beijing", "city", []string{"Beijing City", "Peking"}, 1},
		{"Shanghai", "city", []string{"Shanghai City"}, 1},
		{"Guangzhou", "city", nil, 1},
		{"Shenzhen", "city", nil, 1},
		{"Hangzhou", "city", nil, 2},
		{"Chengdu", "city", nil, 2},
		{"Nanjing", "city", nil, 2},
		{"Wuhan", "city", nil, 2},
		{"Xiamen", "city", nil, 3},
		{"Kunming", "city", nil, 3},
	}

	for _, loc := range locations {
		aliases := loc.aliases
		if aliases == nil {
			aliases = []string{}
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO locations (name, kind, aliases, city_tier)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name, kind) DO NOTHING
		`, loc.name, loc.kind, aliases, loc.cityTier)
		if err != nil {
			return fmt.Errorf("failed to seed location %s: %w", loc.name, err)
		}
	}
	return nil
}
