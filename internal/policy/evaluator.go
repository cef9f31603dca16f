// Package policy implements travel standard matching and expense limit
// computation: selecting which policy standards apply to a traveler/trip,
// merging their expense entries, and rendering limits in a target currency.
package policy

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.com/minqi/travel-standards/internal/logger"
	"gitlab.com/minqi/travel-standards/internal/models"
)

// MatchContext combines the traveler and trip attributes a condition can
// inspect during evaluation.
type MatchContext struct {
	Traveler models.TravelerContext
	Trip     models.TripContext
}

// MatchesStandard reports whether a standard's condition expression is
// satisfied by the context.
//
// A standard with no condition groups matches unconditionally. Otherwise at
// least one group must hold. Within a group every condition must hold. This
// AND-within-group / OR-across-groups contract is fixed; the stored
// LogicOperator field on groups is informational only and never consulted.
func MatchesStandard(std *models.Standard, mc MatchContext) bool {
	if len(std.ConditionGroups) == 0 {
		return true
	}
	for i := range std.ConditionGroups {
		if matchesGroup(&std.ConditionGroups[i], mc) {
			return true
		}
	}
	return false
}

// matchesGroup reports whether every condition in the group holds.
// An empty group holds trivially.
func matchesGroup(group *models.ConditionGroup, mc MatchContext) bool {
	for i := range group.Conditions {
		if !matchesCondition(&group.Conditions[i], mc) {
			return false
		}
	}
	return true
}

// locationOutcome is the result of the identity-based matching phase.
type locationOutcome int

const (
	// locationInconclusive means identity matching could not decide and the
	// name-based phase should run.
	locationInconclusive locationOutcome = iota
	// locationMatched means the condition holds by identity.
	locationMatched
	// locationRejected means the condition fails hard, with no name fallback.
	locationRejected
)

// matchesCondition evaluates a single condition against the context.
// City/country conditions try identity matching first and fall back to
// name matching when inconclusive. Malformed conditions fail closed: they
// are logged and evaluate to false, never aborting the rest of the
// standard.
func matchesCondition(cond *models.Condition, mc MatchContext) bool {
	switch matchByLocationID(cond, mc) {
	case locationMatched:
		return true
	case locationRejected:
		return false
	}

	contextValue, ok := contextValueFor(cond.Type, mc)
	if !ok {
		logger.Log.Warn().
			Str("condition_type", string(cond.Type)).
			Msg("Unknown condition type, treating condition as not matched")
		return false
	}

	values := parseConditionValues(cond.Value)
	if len(values) == 0 {
		return false
	}

	switch cond.Operator {
	case models.OpIn:
		return anyValueMatches(values, contextValue)
	case models.OpNotIn:
		return !anyValueMatches(values, contextValue)
	case models.OpEqual:
		return anyValueEquals(values, contextValue)
	case models.OpGte, models.OpLte:
		return compareNumeric(cond.Operator, contextValue, values[0])
	default:
		logger.Log.Warn().
			Str("operator", string(cond.Operator)).
			Str("condition_type", string(cond.Type)).
			Msg("Unknown condition operator, treating condition as not matched")
		return false
	}
}

// matchByLocationID is the identity overlay for city/country conditions:
// when the condition carries location IDs and the context has a resolved ID
// of the matching kind, compare identities directly.
//
// IN/EQUAL hit by ID decides positively; a miss falls through to name
// matching so standards configured before identity linking keep working.
// NOT_IN hit by ID is a hard negative with no fallback. Other operators
// skip identity matching entirely.
func matchByLocationID(cond *models.Condition, mc MatchContext) locationOutcome {
	if len(cond.LocationIDs) == 0 {
		return locationInconclusive
	}

	var contextID *int64
	switch cond.Type {
	case models.ConditionCity:
		contextID = mc.Traveler.CityLocationID
	case models.ConditionCountry:
		contextID = mc.Traveler.CountryLocationID
	default:
		return locationInconclusive
	}
	if contextID == nil {
		return locationInconclusive
	}

	member := false
	for _, id := range cond.LocationIDs {
		if id == *contextID {
			member = true
			break
		}
	}

	switch cond.Operator {
	case models.OpIn, models.OpEqual:
		if member {
			return locationMatched
		}
		return locationInconclusive
	case models.OpNotIn:
		if member {
			return locationRejected
		}
		return locationMatched
	default:
		return locationInconclusive
	}
}

// contextValueFor extracts the context's value for a condition type.
// Numeric attributes are rendered as strings; the comparison operators
// parse them back.
func contextValueFor(t models.ConditionType, mc MatchContext) (string, bool) {
	switch t {
	case models.ConditionCountry:
		return mc.Trip.DestinationCountry, true
	case models.ConditionCity:
		return mc.Trip.DestinationCity, true
	case models.ConditionCityLevel:
		return strconv.Itoa(mc.Trip.CityTier), true
	case models.ConditionPositionLevel:
		return mc.Traveler.JobLevel, true
	case models.ConditionRole:
		return mc.Traveler.Role, true
	case models.ConditionPosition:
		return mc.Traveler.Position, true
	case models.ConditionDepartment:
		return mc.Traveler.Department, true
	case models.ConditionProjectCode:
		return mc.Traveler.ProjectCode, true
	default:
		return "", false
	}
}

// parseConditionValues splits a stored condition value into its literals:
// comma-separated, trimmed, empties dropped.
func parseConditionValues(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		values = append(values, part)
	}
	return values
}

// anyValueMatches reports whether the context value matches any literal
// under the IN rule: case-insensitive equality, or either string containing
// the other. The substring tolerance absorbs administrative naming variants
// ("Beijing" vs "Beijing City").
func anyValueMatches(values []string, contextValue string) bool {
	ctxLower := strings.ToLower(strings.TrimSpace(contextValue))
	if ctxLower == "" {
		return false
	}
	for _, v := range values {
		vLower := strings.ToLower(v)
		if vLower == ctxLower ||
			strings.Contains(ctxLower, vLower) ||
			strings.Contains(vLower, ctxLower) {
			return true
		}
	}
	return false
}

// anyValueEquals reports whether the context value equals any literal
// exactly, case-insensitively. No substring tolerance.
func anyValueEquals(values []string, contextValue string) bool {
	trimmed := strings.TrimSpace(contextValue)
	for _, v := range values {
		if strings.EqualFold(v, trimmed) {
			return true
		}
	}
	return false
}

// compareNumeric applies >= or <= between the context value and a single
// literal. Unparseable operands fail the condition with a warning.
func compareNumeric(op models.Operator, contextValue, literal string) bool {
	left, err := decimal.NewFromString(strings.TrimSpace(contextValue))
	if err != nil {
		logger.Log.Warn().
			Str("context_value", contextValue).
			Str("operator", string(op)).
			Msg("Non-numeric context value in numeric comparison, treating condition as not matched")
		return false
	}
	right, err := decimal.NewFromString(strings.TrimSpace(literal))
	if err != nil {
		logger.Log.Warn().
			Str("condition_value", literal).
			Str("operator", string(op)).
			Msg("Non-numeric condition value in numeric comparison, treating condition as not matched")
		return false
	}

	if op == models.OpGte {
		return left.GreaterThanOrEqual(right)
	}
	return left.LessThanOrEqual(right)
}
