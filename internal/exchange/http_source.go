package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/minqi/travel-standards/internal/models"
)

// HTTPSource fetches CNY-based exchange rates from a frankfurter-compatible
// rates API.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

type ratesResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// NewHTTPSource creates a rates API client.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = "https://api.frankfurter.app"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPSource{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LoadRates fetches the latest rate table with base CNY.
// The base currency itself is always present in the result with rate 1.
func (s *HTTPSource) LoadRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/latest?from=%s", s.baseURL, url.QueryEscape(models.BaseCurrency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rates request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates API returned status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload ratesResponse
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}

	if len(payload.Rates) == 0 {
		return nil, errors.New("rates missing in response")
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates)+1)
	rates[models.BaseCurrency] = decimal.NewFromInt(1)

	for code, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", code)
		}
		rates[strings.ToUpper(code)] = rate
	}

	return rates, nil
}
