package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gitlab.com/minqi/travel-standards/internal/models"
)

// Catalog fetches candidate standards. Implementations should return
// standards ordered by (priority desc, effective_date desc); the selector
// re-sorts in memory regardless.
type Catalog interface {
	FetchActiveAsOf(ctx context.Context, asOf time.Time) ([]models.Standard, error)
}

// Selector picks the standards applicable to a match request out of the
// catalog's active set.
type Selector struct {
	catalog Catalog
}

// NewSelector creates a Selector backed by the given catalog.
func NewSelector(catalog Catalog) *Selector {
	return &Selector{catalog: catalog}
}

// SelectCandidates returns all active standards whose effective window
// covers asOf, ordered by priority descending then effective date
// descending. That ordering is the tie-break used by the PRIORITY merge
// strategy and by primary-standard reporting.
func (s *Selector) SelectCandidates(ctx context.Context, asOf time.Time) ([]models.Standard, error) {
	fetched, err := s.catalog.FetchActiveAsOf(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate standards: %w", err)
	}

	// The window filter is applied here as well as in the catalog query so
	// the ordering contract does not depend on any particular Catalog
	// implementation.
	candidates := make([]models.Standard, 0, len(fetched))
	for _, std := range fetched {
		if !inEffectiveWindow(&std, asOf) {
			continue
		}
		candidates = append(candidates, std)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].EffectiveDate.After(candidates[j].EffectiveDate)
	})

	return candidates, nil
}

// Match filters the candidates through the condition evaluator, preserving
// the selector's ordering. Zero matches is a valid, reportable outcome.
func (s *Selector) Match(ctx context.Context, mc MatchContext, asOf time.Time) ([]models.Standard, error) {
	candidates, err := s.SelectCandidates(ctx, asOf)
	if err != nil {
		return nil, err
	}

	var matched []models.Standard
	for i := range candidates {
		if MatchesStandard(&candidates[i], mc) {
			matched = append(matched, candidates[i])
		}
	}
	return matched, nil
}

// inEffectiveWindow reports whether a standard is active and covers asOf.
// A nil expiry date means open-ended.
func inEffectiveWindow(std *models.Standard, asOf time.Time) bool {
	if std.Status != models.StandardStatusActive {
		return false
	}
	if std.EffectiveDate.After(asOf) {
		return false
	}
	if std.ExpiryDate != nil && std.ExpiryDate.Before(asOf) {
		return false
	}
	return true
}
