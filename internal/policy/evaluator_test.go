package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/minqi/travel-standards/internal/models"
)

func ptrInt64(v int64) *int64 { return &v }

func contextFor(trip models.TripContext, traveler models.TravelerContext) MatchContext {
	return MatchContext{Traveler: traveler, Trip: trip}
}

func TestMatchesStandard_EmptyConditionGroups(t *testing.T) {
	t.Parallel()

	std := &models.Standard{Code: "STD-UNCONSTRAINED"}

	contexts := []MatchContext{
		{},
		contextFor(models.TripContext{DestinationCity: "Beijing"}, models.TravelerContext{Role: "engineer"}),
		contextFor(models.TripContext{CityTier: 4}, models.TravelerContext{JobLevel: "12"}),
	}
	for _, mc := range contexts {
		require.True(t, MatchesStandard(std, mc), "unconstrained standard must match every context")
	}
}

func TestMatchesStandard_GroupSemantics(t *testing.T) {
	t.Parallel()

	// Group 1: city IN Beijing AND role EQUAL manager.
	// Group 2: department IN Sales.
	std := &models.Standard{
		Code: "STD-GROUPS",
		ConditionGroups: []models.ConditionGroup{
			{
				GroupID:       "g1",
				LogicOperator: "OR", // stored value is ignored: AND applies within a group
				Conditions: []models.Condition{
					{Type: models.ConditionCity, Operator: models.OpIn, Value: "Beijing"},
					{Type: models.ConditionRole, Operator: models.OpEqual, Value: "manager"},
				},
			},
			{
				GroupID: "g2",
				Conditions: []models.Condition{
					{Type: models.ConditionDepartment, Operator: models.OpIn, Value: "Sales"},
				},
			},
		},
	}

	t.Run("all conditions in one group hold", func(t *testing.T) {
		t.Parallel()
		mc := contextFor(
			models.TripContext{DestinationCity: "Beijing"},
			models.TravelerContext{Role: "manager", Department: "Engineering"},
		)
		require.True(t, MatchesStandard(std, mc))
	})

	t.Run("partial group fails but other group saves the match", func(t *testing.T) {
		t.Parallel()
		mc := contextFor(
			models.TripContext{DestinationCity: "Beijing"},
			models.TravelerContext{Role: "engineer", Department: "Sales"},
		)
		require.True(t, MatchesStandard(std, mc))
	})

	t.Run("no group fully holds", func(t *testing.T) {
		t.Parallel()
		mc := contextFor(
			models.TripContext{DestinationCity: "Beijing"},
			models.TravelerContext{Role: "engineer", Department: "Engineering"},
		)
		require.False(t, MatchesStandard(std, mc))
	})

	t.Run("empty group matches trivially", func(t *testing.T) {
		t.Parallel()
		empty := &models.Standard{
			ConditionGroups: []models.ConditionGroup{{GroupID: "g1"}},
		}
		require.True(t, MatchesStandard(empty, MatchContext{}))
	})
}

func TestMatchesCondition_InOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		city  string
		want  bool
	}{
		{"exact match", "Beijing", "Beijing", true},
		{"case insensitive", "BEIJING", "beijing", true},
		{"whitespace in value list", " Beijing , Shanghai ", "Shanghai", true},
		{"context contains value", "Shanghai,Beijing", "Shanghai Pudong", true},
		{"value contains context", "Beijing City", "Beijing", true},
		{"no match", "Shanghai,Beijing", "Chengdu", false},
		{"empty value list", " , ,", "Beijing", false},
		{"empty context value", "Beijing", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cond := &models.Condition{Type: models.ConditionCity, Operator: models.OpIn, Value: tt.value}
			mc := contextFor(models.TripContext{DestinationCity: tt.city}, models.TravelerContext{})
			require.Equal(t, tt.want, matchesCondition(cond, mc))
		})
	}
}

func TestMatchesCondition_NotInOperator(t *testing.T) {
	t.Parallel()

	cond := &models.Condition{Type: models.ConditionCity, Operator: models.OpNotIn, Value: "Beijing,Shanghai"}

	mc := contextFor(models.TripContext{DestinationCity: "Chengdu"}, models.TravelerContext{})
	require.True(t, matchesCondition(cond, mc))

	// Substring tolerance applies to NOT_IN with the same rule as IN.
	mc = contextFor(models.TripContext{DestinationCity: "Shanghai Pudong"}, models.TravelerContext{})
	require.False(t, matchesCondition(cond, mc))
}

func TestMatchesCondition_EqualOperator(t *testing.T) {
	t.Parallel()

	cond := &models.Condition{Type: models.ConditionRole, Operator: models.OpEqual, Value: "manager,director"}

	mc := contextFor(models.TripContext{}, models.TravelerContext{Role: "Manager"})
	require.True(t, matchesCondition(cond, mc), "EQUAL is case-insensitive")

	// No substring tolerance for EQUAL.
	mc = contextFor(models.TripContext{}, models.TravelerContext{Role: "senior manager"})
	require.False(t, matchesCondition(cond, mc))
}

func TestMatchesCondition_NumericOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		condType models.ConditionType
		op       models.Operator
		value    string
		trip     models.TripContext
		traveler models.TravelerContext
		want     bool
	}{
		{"city tier gte pass", models.ConditionCityLevel, models.OpGte, "2", models.TripContext{CityTier: 3}, models.TravelerContext{}, true},
		{"city tier gte exact", models.ConditionCityLevel, models.OpGte, "2", models.TripContext{CityTier: 2}, models.TravelerContext{}, true},
		{"city tier gte fail", models.ConditionCityLevel, models.OpGte, "2", models.TripContext{CityTier: 1}, models.TravelerContext{}, false},
		{"city tier lte pass", models.ConditionCityLevel, models.OpLte, "2", models.TripContext{CityTier: 1}, models.TravelerContext{}, true},
		{"job level gte", models.ConditionPositionLevel, models.OpGte, "10", models.TripContext{}, models.TravelerContext{JobLevel: "12"}, true},
		{"job level lte fail", models.ConditionPositionLevel, models.OpLte, "10", models.TripContext{}, models.TravelerContext{JobLevel: "12"}, false},
		{"unparseable context value", models.ConditionPositionLevel, models.OpGte, "10", models.TripContext{}, models.TravelerContext{JobLevel: "senior"}, false},
		{"unparseable condition value", models.ConditionPositionLevel, models.OpGte, "ten", models.TripContext{}, models.TravelerContext{JobLevel: "12"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cond := &models.Condition{Type: tt.condType, Operator: tt.op, Value: tt.value}
			require.Equal(t, tt.want, matchesCondition(cond, contextFor(tt.trip, tt.traveler)))
		})
	}
}

func TestMatchesCondition_UnknownTypeOrOperator(t *testing.T) {
	t.Parallel()

	cond := &models.Condition{Type: "weather", Operator: models.OpIn, Value: "sunny"}
	require.False(t, matchesCondition(cond, MatchContext{}), "unknown type fails, never panics")

	cond = &models.Condition{Type: models.ConditionCity, Operator: "BETWEEN", Value: "Beijing"}
	mc := contextFor(models.TripContext{DestinationCity: "Beijing"}, models.TravelerContext{})
	require.False(t, matchesCondition(cond, mc), "unknown operator fails, never panics")
}

func TestMatchByLocationID(t *testing.T) {
	t.Parallel()

	t.Run("IN hit by identity wins without name match", func(t *testing.T) {
		t.Parallel()
		cond := &models.Condition{
			Type:        models.ConditionCity,
			Operator:    models.OpIn,
			Value:       "Some Renamed City",
			LocationIDs: []int64{7, 8},
		}
		mc := contextFor(
			models.TripContext{DestinationCity: "Beijing"},
			models.TravelerContext{CityLocationID: ptrInt64(8)},
		)
		require.True(t, matchesCondition(cond, mc))
	})

	t.Run("IN miss by identity falls back to name", func(t *testing.T) {
		t.Parallel()
		cond := &models.Condition{
			Type:        models.ConditionCity,
			Operator:    models.OpIn,
			Value:       "Beijing",
			LocationIDs: []int64{7},
		}
		mc := contextFor(
			models.TripContext{DestinationCity: "Beijing"},
			models.TravelerContext{CityLocationID: ptrInt64(99)},
		)
		require.True(t, matchesCondition(cond, mc), "compatibility fallback for pre-identity standards")
	})

	t.Run("NOT_IN identity hit is a hard negative", func(t *testing.T) {
		t.Parallel()
		// Name matching alone would pass: "Chengdu" is not in the value list.
		cond := &models.Condition{
			Type:        models.ConditionCity,
			Operator:    models.OpNotIn,
			Value:       "Beijing,Shanghai",
			LocationIDs: []int64{42},
		}
		mc := contextFor(
			models.TripContext{DestinationCity: "Chengdu"},
			models.TravelerContext{CityLocationID: ptrInt64(42)},
		)
		require.False(t, matchesCondition(cond, mc), "identity short-circuit takes precedence over names")
	})

	t.Run("NOT_IN identity miss passes without name fallback", func(t *testing.T) {
		t.Parallel()
		// Names would reject: destination contains "Beijing". Identity decides.
		cond := &models.Condition{
			Type:        models.ConditionCity,
			Operator:    models.OpNotIn,
			Value:       "Beijing",
			LocationIDs: []int64{7},
		}
		mc := contextFor(
			models.TripContext{DestinationCity: "Beijing"},
			models.TravelerContext{CityLocationID: ptrInt64(99)},
		)
		require.True(t, matchesCondition(cond, mc))
	})

	t.Run("country conditions use the country location id", func(t *testing.T) {
		t.Parallel()
		cond := &models.Condition{
			Type:        models.ConditionCountry,
			Operator:    models.OpIn,
			Value:       "",
			LocationIDs: []int64{3},
		}
		mc := contextFor(
			models.TripContext{DestinationCountry: "China"},
			models.TravelerContext{CountryLocationID: ptrInt64(3)},
		)
		require.True(t, matchesCondition(cond, mc))
	})

	t.Run("numeric operator skips identity matching", func(t *testing.T) {
		t.Parallel()
		cond := &models.Condition{
			Type:        models.ConditionCity,
			Operator:    models.OpGte,
			Value:       "2",
			LocationIDs: []int64{1},
		}
		mc := contextFor(
			models.TripContext{DestinationCity: "3"},
			models.TravelerContext{CityLocationID: ptrInt64(1)},
		)
		// Falls through to the name path and compares numerically.
		require.True(t, matchesCondition(cond, mc))
	})

	t.Run("no context id is inconclusive", func(t *testing.T) {
		t.Parallel()
		cond := &models.Condition{
			Type:        models.ConditionCity,
			Operator:    models.OpIn,
			Value:       "Beijing",
			LocationIDs: []int64{7},
		}
		mc := contextFor(models.TripContext{DestinationCity: "Beijing"}, models.TravelerContext{})
		require.True(t, matchesCondition(cond, mc), "falls back to name matching")
	})
}

func TestParseConditionValues(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b"}, parseConditionValues(" a , b "))
	require.Equal(t, []string{"one"}, parseConditionValues("one"))
	require.Nil(t, parseConditionValues(" , ,, "))
	require.Nil(t, parseConditionValues(""))
}
