package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitlab.com/minqi/travel-standards/internal/logger"
	"gitlab.com/minqi/travel-standards/internal/models"
)

// LocationResolver resolves a free-text city or country name to a catalog
// location. A nil result with nil error means the name is simply not in the
// catalog, which is a normal, handled case: evaluation falls back to name
// matching.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, name string, kind models.LocationKind) (*models.Location, error)
}

// Engine composes standard selection, condition evaluation, merging and
// rendering. It is stateless per invocation; concurrent match requests are
// independent. Shared state lives only in the injected rate Converter.
type Engine struct {
	selector  *Selector
	rates     Converter
	locations LocationResolver // optional
}

// NewEngine creates an Engine. locations may be nil, in which case identity
// matching only uses IDs the caller pre-resolved.
func NewEngine(catalog Catalog, rates Converter, locations LocationResolver) *Engine {
	return &Engine{
		selector:  NewSelector(catalog),
		rates:     rates,
		locations: locations,
	}
}

// StandardSummary is the per-standard metadata returned for client display.
type StandardSummary struct {
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	Version       int        `json:"version"`
	Priority      int        `json:"priority"`
	EffectiveDate time.Time  `json:"effective_date"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
}

// MatchReport is the outcome of a match request. Matched false with an
// empty Standards list is a normal result, not an error.
//
// Matching always reads the current standards catalog; there is no
// point-in-time snapshot. MatchedAt and the standards' versions are carried
// so callers can persist resolved limits at submission time instead of
// re-deriving them later against possibly edited standards.
type MatchReport struct {
	Matched   bool              `json:"matched"`
	MatchedAt time.Time         `json:"matched_at"`
	Standards []models.Standard `json:"standards"`
}

// ComputeResult is the combined outcome of MatchAndCompute.
type ComputeResult struct {
	Report    MatchReport                     `json:"report"`
	Primary   *StandardSummary                `json:"primary_standard,omitempty"`
	Standards []StandardSummary               `json:"standards"`
	Limits    map[string]models.RenderedLimit `json:"limits"`
}

// MatchStandards selects the standards applicable to the traveler and trip
// as of the given date.
func (e *Engine) MatchStandards(ctx context.Context, traveler models.TravelerContext, trip models.TripContext, asOf time.Time) (MatchReport, error) {
	mc := e.buildContext(ctx, traveler, trip)

	matched, err := e.selector.Match(ctx, mc, asOf)
	if err != nil {
		return MatchReport{}, err
	}

	logger.Log.Debug().
		Str("traveler_hash", logger.HashEmployee(traveler.EmployeeNo)).
		Int("matched", len(matched)).
		Msg("Standard matching completed")

	return MatchReport{
		Matched:   len(matched) > 0,
		MatchedAt: time.Now().UTC(),
		Standards: matched,
	}, nil
}

// ComputeExpenses merges the matched standards' expense entries per the
// strategy and renders each limit in the target currency. The strategy is
// assumed validated at the API boundary; an empty currency renders in CNY.
func (e *Engine) ComputeExpenses(ctx context.Context, matched []models.Standard, strategy models.MergeStrategy, currency string) (map[string]models.RenderedLimit, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = models.BaseCurrency
	}

	resolved := mergeEntries(matched, strategy)

	limits := make(map[string]models.RenderedLimit, len(resolved))
	for key, rl := range resolved {
		limits[key] = renderLimit(ctx, e.rates, rl, code)
	}
	return limits, nil
}

// MatchAndCompute composes MatchStandards and ComputeExpenses, returning
// also the primary standard (first in priority order) and per-standard
// metadata for client display.
func (e *Engine) MatchAndCompute(ctx context.Context, traveler models.TravelerContext, trip models.TripContext, asOf time.Time, strategy models.MergeStrategy, currency string) (*ComputeResult, error) {
	report, err := e.MatchStandards(ctx, traveler, trip, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to match standards: %w", err)
	}

	limits, err := e.ComputeExpenses(ctx, report.Standards, strategy, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to compute expense limits: %w", err)
	}

	result := &ComputeResult{
		Report:    report,
		Standards: make([]StandardSummary, 0, len(report.Standards)),
		Limits:    limits,
	}
	for i := range report.Standards {
		result.Standards = append(result.Standards, summarize(&report.Standards[i]))
	}
	if len(result.Standards) > 0 {
		result.Primary = &result.Standards[0]
	}
	return result, nil
}

// buildContext assembles the evaluation context, resolving location
// identities by destination name when a resolver is available and the
// caller did not pre-resolve them. Resolution failures are logged and
// evaluation proceeds on names alone.
func (e *Engine) buildContext(ctx context.Context, traveler models.TravelerContext, trip models.TripContext) MatchContext {
	if e.locations != nil {
		if traveler.CityLocationID == nil && trip.DestinationCity != "" {
			traveler.CityLocationID = e.resolveID(ctx, trip.DestinationCity, models.LocationCity)
		}
		if traveler.CountryLocationID == nil && trip.DestinationCountry != "" {
			traveler.CountryLocationID = e.resolveID(ctx, trip.DestinationCountry, models.LocationCountry)
		}
	}
	return MatchContext{Traveler: traveler, Trip: trip}
}

func (e *Engine) resolveID(ctx context.Context, name string, kind models.LocationKind) *int64 {
	loc, err := e.locations.ResolveLocation(ctx, name, kind)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("kind", string(kind)).
			Msg("Location resolution failed, falling back to name matching")
		return nil
	}
	if loc == nil {
		return nil
	}
	return &loc.ID
}

func summarize(std *models.Standard) StandardSummary {
	return StandardSummary{
		Code:          std.Code,
		Name:          std.Name,
		Version:       std.Version,
		Priority:      std.Priority,
		EffectiveDate: std.EffectiveDate,
		ExpiryDate:    std.ExpiryDate,
	}
}
