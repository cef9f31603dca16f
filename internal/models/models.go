// Package models defines the domain entities for travel standard matching.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency all standard limits are denominated in.
// Exchange rates are expressed relative to it.
const BaseCurrency = "CNY"

// SupportedCurrencies lists all supported currency codes with display symbols.
var SupportedCurrencies = map[string]string{
	"CNY": "¥",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "JP¥",
	"HKD": "HK$",
	"SGD": "S$",
	"KRW": "₩",
	"THB": "฿",
	"MYR": "RM",
	"AUD": "A$",
	"CAD": "C$",
	"CHF": "Fr",
	"TWD": "NT$",
	"INR": "₹",
	"RUB": "₽",
}

// StandardStatus is the lifecycle state of a standard.
const (
	StandardStatusDraft   = "draft"
	StandardStatusActive  = "active"
	StandardStatusExpired = "expired"
)

// ConditionType identifies which traveler/trip attribute a condition inspects.
type ConditionType string

// Condition types.
const (
	ConditionCountry       ConditionType = "country"
	ConditionCity          ConditionType = "city"
	ConditionCityLevel     ConditionType = "city_level"
	ConditionPositionLevel ConditionType = "position_level"
	ConditionRole          ConditionType = "role"
	ConditionPosition      ConditionType = "position"
	ConditionDepartment    ConditionType = "department"
	ConditionProjectCode   ConditionType = "project_code"
)

// Operator is the comparison applied by a condition.
type Operator string

// Condition operators.
const (
	OpIn    Operator = "IN"
	OpNotIn Operator = "NOT_IN"
	OpEqual Operator = "EQUAL"
	OpGte   Operator = ">="
	OpLte   Operator = "<="
)

// LimitType is the shape of a monetary cap.
type LimitType string

// Limit types.
const (
	LimitFixed      LimitType = "FIXED"
	LimitRange      LimitType = "RANGE"
	LimitActual     LimitType = "ACTUAL"
	LimitPercentage LimitType = "PERCENTAGE"
)

// CalcUnit describes how a unit limit multiplies over a trip.
// Applying the multiplication is the caller's responsibility; the engine
// carries it through as metadata.
type CalcUnit string

// Calculation units.
const (
	CalcPerDay  CalcUnit = "PER_DAY"
	CalcPerTrip CalcUnit = "PER_TRIP"
	CalcPerKm   CalcUnit = "PER_KM"
)

// MergeStrategy selects how expense entries of multiple matched standards
// are combined.
type MergeStrategy string

// Merge strategies.
const (
	StrategyPriority  MergeStrategy = "PRIORITY"
	StrategyMergeBest MergeStrategy = "MERGE_BEST"
	StrategyMergeAll  MergeStrategy = "MERGE_ALL"
)

// DefaultStrategy is used when the caller does not specify one.
const DefaultStrategy = StrategyMergeBest

// ParseMergeStrategy validates a strategy string at the API boundary.
// An empty string resolves to DefaultStrategy; anything else unknown is an
// error so a typo never silently falls through to MERGE_BEST.
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(strings.ToUpper(strings.TrimSpace(s))) {
	case StrategyPriority:
		return StrategyPriority, nil
	case StrategyMergeBest:
		return StrategyMergeBest, nil
	case StrategyMergeAll:
		return StrategyMergeAll, nil
	case "":
		return DefaultStrategy, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", s)
	}
}

// LocationKind distinguishes city and country locations.
type LocationKind string

// Location kinds.
const (
	LocationCity    LocationKind = "city"
	LocationCountry LocationKind = "country"
)

// Location is an entry in the location catalog. Conditions may reference
// locations by ID so matching survives renames.
type Location struct {
	ID        int64
	Name      string
	Kind      LocationKind
	Aliases   []string
	CityTier  int
	CreatedAt time.Time
}

// Condition is a single comparison inside a condition group.
// Value holds one or more comma-separated literals. LocationIDs, when
// present on city/country conditions, enable identity-based matching.
type Condition struct {
	ID          int64
	Type        ConditionType
	Operator    Operator
	Value       string
	LocationIDs []int64
}

/// ConditionGroup is a conjunctive clause: every condition in the group must
// hold. Groups within a standard are disjunctive with each other.
//
// LogicOperator is stored for administrative display only. The evaluator
// applies fixed AND-within-group / OR-across-groups semantics regardless of
// its value.
type ConditionGroup struct {
	ID            int64
	GroupID       string
	LogicOperator string
	Conditions    []Condition
}

// ExpenseLimitEntry ties a limit to an expense item within a standard.
// All monetary fields are denominated in CNY.
type ExpenseLimitEntry struct {
	ID            int64
	ExpenseItemID int64
	LimitType     LimitType
	LimitAmount   decimal.Decimal // FIXED
	LimitMin      decimal.Decimal // RANGE
	LimitMax      decimal.Decimal // RANGE
	Percentage    decimal.Decimal // PERCENTAGE, a ratio, never converted
	BaseAmount    decimal.Decimal // PERCENTAGE
	CalcUnit      CalcUnit
}

// Standard is a versioned, date-bounded travel expense policy document.
type Standard struct {
	ID              int64
	Code            string
	Name            string
	Version         int
	Status          string
	Priority        int // 0-100, higher wins ties
	EffectiveDate   time.Time
	ExpiryDate      *time.Time // nil = open-ended
	ConditionGroups []ConditionGroup
	ExpenseEntries  []ExpenseLimitEntry
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExpenseItem is a catalog entry limits refer to (hotel, transport, meals...).
type ExpenseItem struct {
	ID        int64
	Code      string
	Name      string
	CreatedAt time.Time
}

// Traveler holds the policy-relevant attributes of an employee.
type Traveler struct {
	EmployeeNo string
	Name       string
	Role       string
	Position   string
	Department string
	JobLevel   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TravelerContext is the traveler side of a match request. The location IDs
// are optional pre-resolved identities for identity-based matching.
type TravelerContext struct {
	EmployeeNo        string
	Role              string
	Position          string
	Department        string
	JobLevel          string
	ProjectCode       string
	CityLocationID    *int64
	CountryLocationID *int64
}

// TripContext is the trip side of a match request. TripDays is consumed by
// callers applying PER_DAY limits, not by matching itself.
type TripContext struct {
	DestinationCountry string
	DestinationCity    string
	CityTier           int // 1-4, 0 = unknown
	TripDays           int
}

// RenderedLimit is a resolved limit presented in the requested currency.
// The original CNY figures are always retained; they are the audit source
// of truth.
type RenderedLimit struct {
	ExpenseItemID int64           `json:"expense_item_id"`
	LimitType     LimitType       `json:"limit_type"`
	CalcUnit      CalcUnit        `json:"calc_unit"`
	Currency      string          `json:"currency"`
	AtActualCost  bool            `json:"at_actual_cost"`
	Amount        decimal.Decimal `json:"amount"`
	AmountCNY     decimal.Decimal `json:"amount_cny"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	MinAmountCNY  decimal.Decimal `json:"min_amount_cny"`
	MaxAmount     decimal.Decimal `json:"max_amount"`
	MaxAmountCNY  decimal.Decimal `json:"max_amount_cny"`
	Percentage    decimal.Decimal `json:"percentage"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	BaseAmountCNY decimal.Decimal `json:"base_amount_cny"`

	// SourceStandards lists every standard code that contributed to, or was
	// considered for, this limit, in match order with duplicates removed.
	SourceStandards []string `json:"source_standards"`
}
