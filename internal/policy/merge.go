package policy

import (
	"strconv"

	"gitlab.com/minqi/travel-standards/internal/models"
)

// resolvedLimit is a CNY-denominated merged limit before currency rendering.
type resolvedLimit struct {
	entry   models.ExpenseLimitEntry
	sources []string // codes of every standard that contributed or was considered
}

// LimitKey builds the output map key for a resolved limit. Keys are the
// expense item ID, suffixed with the standard code under MERGE_ALL where
// entries from different standards sit side by side.
func LimitKey(expenseItemID int64, standardCode string) string {
	key := strconv.FormatInt(expenseItemID, 10)
	if standardCode != "" {
		key += ":" + standardCode
	}
	return key
}

// mergeEntries reduces the expense entries of the matched standards
// (ordered highest priority first) into one result set per the strategy.
func mergeEntries(matched []models.Standard, strategy models.MergeStrategy) map[string]*resolvedLimit {
	switch strategy {
	case models.StrategyPriority:
		return mergePriority(matched)
	case models.StrategyMergeAll:
		return mergeAll(matched)
	case models.StrategyMergeBest:
		return mergeBest(matched)
	default:
		// Strategy strings are validated at the API boundary
		// (models.ParseMergeStrategy); this default is the documented
		// MERGE_BEST fallback, made explicit rather than implicit.
		return mergeBest(matched)
	}
}

// mergePriority takes only the highest-priority matched standard's entries.
// Duplicate item IDs within that standard overwrite last-wins; item IDs are
// unique per standard so this is not defended against further.
func mergePriority(matched []models.Standard) map[string]*resolvedLimit {
	out := make(map[string]*resolvedLimit)
	if len(matched) == 0 {
		return out
	}

	top := matched[0]
	for _, entry := range top.ExpenseEntries {
		out[LimitKey(entry.ExpenseItemID, "")] = &resolvedLimit{
			entry:   entry,
			sources: []string{top.Code},
		}
	}
	return out
}

// mergeBest combines entries item-by-item, keeping whichever limit is most
// favorable to the traveler. A lower-priority standard can still win on a
// specific item if it is more generous. Losing standards stay recorded in
// sources for audit.
func mergeBest(matched []models.Standard) map[string]*resolvedLimit {
	out := make(map[string]*resolvedLimit)
	for _, std := range matched {
		for _, entry := range std.ExpenseEntries {
			key := LimitKey(entry.ExpenseItemID, "")
			existing, ok := out[key]
			if !ok {
				out[key] = &resolvedLimit{
					entry:   entry,
					sources: []string{std.Code},
				}
				continue
			}
			mergeBestEntry(existing, entry, std.Code)
		}
	}
	return out
}

// mergeBestEntry folds an incoming entry into an existing resolved limit.
// Rules, evaluated in order:
//  1. an incoming ACTUAL entry always wins (at-cost reimbursement is
//     maximally favorable and is never replaced);
//  2. FIXED vs FIXED keeps the larger CNY amount;
//  3. RANGE vs RANGE widens to min-of-mins, max-of-maxes;
//  4. any other combination keeps the existing entry unchanged.
//
// The incoming standard's code is recorded in sources in every case.
func mergeBestEntry(existing *resolvedLimit, incoming models.ExpenseLimitEntry, code string) {
	defer func() { existing.sources = appendSource(existing.sources, code) }()

	if existing.entry.LimitType == models.LimitActual {
		return
	}

	switch {
	case incoming.LimitType == models.LimitActual:
		existing.entry = incoming
	case existing.entry.LimitType == models.LimitFixed && incoming.LimitType == models.LimitFixed:
		if incoming.LimitAmount.GreaterThan(existing.entry.LimitAmount) {
			existing.entry = incoming
		}
	case existing.entry.LimitType == models.LimitRange && incoming.LimitType == models.LimitRange:
		if incoming.LimitMin.LessThan(existing.entry.LimitMin) {
			existing.entry.LimitMin = incoming.LimitMin
		}
		if incoming.LimitMax.GreaterThan(existing.entry.LimitMax) {
			existing.entry.LimitMax = incoming.LimitMax
		}
	}
}

// mergeAll keeps every matched standard's entries side by side, keyed by
// (expense item, standard code), each labeled with its source standard.
func mergeAll(matched []models.Standard) map[string]*resolvedLimit {
	out := make(map[string]*resolvedLimit)
	for _, std := range matched {
		for _, entry := range std.ExpenseEntries {
			out[LimitKey(entry.ExpenseItemID, std.Code)] = &resolvedLimit{
				entry:   entry,
				sources: []string{std.Code},
			}
		}
	}
	return out
}

// appendSource adds a standard code to the audit trail, deduplicated.
func appendSource(sources []string, code string) []string {
	for _, s := range sources {
		if s == code {
			return sources
		}
	}
	return append(sources, code)
}
