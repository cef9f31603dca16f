package policy

import (
	"context"

	"github.com/shopspring/decimal"

	"gitlab.com/minqi/travel-standards/internal/models"
)

// Converter converts CNY amounts into a display currency. Implemented by
// exchange.Provider; tests supply deterministic fakes.
type Converter interface {
	// ConvertFromCNY returns the converted amount rounded to 2 decimal
	// places along with the rate that was applied.
	ConvertFromCNY(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, decimal.Decimal)
}

// renderLimit converts a resolved CNY-denominated limit into the requested
// currency. The CNY figures are always carried through unchanged; they are
// the audit source of truth.
func renderLimit(ctx context.Context, conv Converter, rl *resolvedLimit, currency string) models.RenderedLimit {
	entry := rl.entry

	rendered := models.RenderedLimit{
		ExpenseItemID:   entry.ExpenseItemID,
		LimitType:       entry.LimitType,
		CalcUnit:        entry.CalcUnit,
		Currency:        currency,
		SourceStandards: rl.sources,
	}
	if rendered.CalcUnit == "" {
		rendered.CalcUnit = models.CalcPerDay
	}

	switch entry.LimitType {
	case models.LimitFixed:
		rendered.AmountCNY = entry.LimitAmount
		rendered.Amount, _ = conv.ConvertFromCNY(ctx, entry.LimitAmount, currency)
	case models.LimitRange:
		// Min and max convert independently, never the midpoint.
		rendered.MinAmountCNY = entry.LimitMin
		rendered.MaxAmountCNY = entry.LimitMax
		rendered.MinAmount, _ = conv.ConvertFromCNY(ctx, entry.LimitMin, currency)
		rendered.MaxAmount, _ = conv.ConvertFromCNY(ctx, entry.LimitMax, currency)
	case models.LimitActual:
		// Reimbursed at actual cost, no ceiling, nothing to convert.
		rendered.AtActualCost = true
	case models.LimitPercentage:
		// The percentage is a ratio, not a currency; only the base converts.
		rendered.Percentage = entry.Percentage
		rendered.BaseAmountCNY = entry.BaseAmount
		rendered.BaseAmount, _ = conv.ConvertFromCNY(ctx, entry.BaseAmount, currency)
	}

	return rendered
}
