package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/minqi/travel-standards/internal/logger"
	"gitlab.com/minqi/travel-standards/internal/models"
)

// DefaultTTL is how long a fetched rate table stays fresh.
const DefaultTTL = 5 * time.Minute

var one = decimal.NewFromInt(1)

type refreshCall struct {
	done chan struct{}
	err  error
}

// Provider serves CNY-relative exchange rates from an injected RateSource
// with TTL caching. Rates are eventually-consistent data; a refresh racing
// another refresh is harmless, last writer wins.
//
// Lookup never fails: an unknown currency converts at identity with a
// warning, because failing a policy lookup over a missing rate would block
// expense submission entirely.
type Provider struct {
	source RateSource
	ttl    time.Duration

	mu        sync.RWMutex
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
	inFlight  *refreshCall
}

// NewProvider returns a rate provider caching the source's table for ttl.
func NewProvider(source RateSource, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		source: source,
		ttl:    ttl,
	}
}

// Rate resolves a currency code to its CNY-relative rate.
// CNY always resolves to exactly 1. Unknown codes resolve to 1 (identity
// conversion) with a warning rather than an error.
func (p *Provider) Rate(ctx context.Context, currency string) decimal.Decimal {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || code == models.BaseCurrency {
		return one
	}

	p.ensureFresh(ctx)

	p.mu.RLock()
	table := p.rates
	p.mu.RUnlock()
	if table == nil {
		table = FallbackRates
	}

	rate, ok := table[code]
	if !ok {
		logger.Log.Warn().
			Str("currency", code).
			Msg("No exchange rate for currency, using unconverted CNY amount")
		return one
	}
	return rate
}

// ConvertFromCNY converts a CNY amount into the requested currency, rounded
// to 2 decimal places at the point of conversion. The applied rate is
// returned alongside for display.
func (p *Provider) ConvertFromCNY(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, decimal.Decimal) {
	rate := p.Rate(ctx, currency)
	return amount.Mul(rate).Round(2), rate
}

// ConvertToCNY converts an amount in the given currency back into CNY,
// rounded to 2 decimal places. Used when callers record expenses entered in
// the traveler's currency against CNY-denominated limits.
func (p *Provider) ConvertToCNY(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, decimal.Decimal) {
	rate := p.Rate(ctx, currency)
	return amount.Div(rate).Round(2), rate
}

// ForceRefresh reloads the rate table immediately, bypassing the TTL.
// Used by administrators correcting bad rates.
func (p *Provider) ForceRefresh(ctx context.Context) error {
	return p.refresh(ctx)
}

// ensureFresh refreshes the table when stale. A failed refresh keeps the
// last good table (or the static fallback) and only logs.
func (p *Provider) ensureFresh(ctx context.Context) {
	p.mu.RLock()
	fresh := p.rates != nil && time.Since(p.fetchedAt) < p.ttl
	p.mu.RUnlock()
	if fresh {
		return
	}

	if err := p.refresh(ctx); err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Exchange rate refresh failed, serving cached or fallback rates")
	}
}

// refresh loads rates from the source, deduplicating concurrent callers so
// a thundering herd on TTL expiry triggers one upstream call.
func (p *Provider) refresh(ctx context.Context) error {
	p.mu.Lock()
	if call := p.inFlight; call != nil {
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-call.done:
			return call.err
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	p.inFlight = call
	p.mu.Unlock()

	rates, err := p.source.LoadRates(ctx)

	p.mu.Lock()
	if err == nil {
		// The base rate is pinned regardless of what the source returned.
		rates[models.BaseCurrency] = one
		p.rates = rates
		p.fetchedAt = time.Now()
	}
	call.err = err
	p.inFlight = nil
	close(call.done)
	p.mu.Unlock()

	return err
}
