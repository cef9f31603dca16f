package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/minqi/travel-standards/internal/models"
	"gitlab.com/minqi/travel-standards/internal/policy"
)

type fakeCatalog struct {
	standards []models.Standard
	err       error
}

func (f *fakeCatalog) FetchActiveAsOf(_ context.Context, _ time.Time) ([]models.Standard, error) {
	return f.standards, f.err
}

type fakeConverter struct {
	rates map[string]decimal.Decimal
}

func (f *fakeConverter) ConvertFromCNY(_ context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, decimal.Decimal) {
	rate, ok := f.rates[currency]
	if !ok {
		rate = decimal.NewFromInt(1)
	}
	return amount.Mul(rate).Round(2), rate
}

type fakeTravelers struct {
	stored map[string]*models.Traveler
}

func (f *fakeTravelers) GetByEmployeeNo(_ context.Context, employeeNo string) (*models.Traveler, error) {
	return f.stored[employeeNo], nil
}

type fakeStandards struct {
	byCode map[string]*models.Standard
}

func (f *fakeStandards) GetByCode(_ context.Context, code string) (*models.Standard, error) {
	return f.byCode[code], nil
}

type fakeRefresher struct {
	err   error
	calls int
}

func (f *fakeRefresher) ForceRefresh(_ context.Context) error {
	f.calls++
	return f.err
}

func domesticStandard() models.Standard {
	return models.Standard{
		ID:            1,
		Code:          "DOM-STD",
		Name:          "Domestic travel",
		Version:       2,
		Status:        models.StandardStatusActive,
		Priority:      50,
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpenseEntries: []models.ExpenseLimitEntry{
			{
				ExpenseItemID: 1,
				LimitType:     models.LimitFixed,
				LimitAmount:   decimal.RequireFromString("1000"),
				CalcUnit:      models.CalcPerDay,
			},
		},
	}
}

func newTestServer(t *testing.T, catalog *fakeCatalog, standards *fakeStandards, rates *fakeRefresher) *Server {
	t.Helper()

	converter := &fakeConverter{rates: map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("0.14"),
	}}
	engine := policy.NewEngine(catalog, converter, nil)

	travelers := &fakeTravelers{stored: map[string]*models.Traveler{
		"E100": {EmployeeNo: "E100", Role: "manager", Department: "sales"},
	}}

	handlers := NewHandlers(engine, travelers, standards, rates, models.BaseCurrency)
	return NewServer(":0", handlers)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeCatalog{}, &fakeStandards{}, &fakeRefresher{})
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMatchStandards(t *testing.T) {
	t.Parallel()

	t.Run("unconditional standard matches", func(t *testing.T) {
		t.Parallel()
		std := domesticStandard()
		s := newTestServer(t, &fakeCatalog{standards: []models.Standard{std}}, &fakeStandards{}, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/match", map[string]any{
			"traveler": map[string]any{"employee_no": "E100"},
			"trip":     map[string]any{"destination_city": "Beijing", "trip_days": 3},
			"as_of":    "2025-06-01",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				Matched   bool              `json:"matched"`
				Standards []json.RawMessage `json:"standards"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.True(t, resp.Data.Matched)
		require.Len(t, resp.Data.Standards, 1)
	})

	t.Run("no matches is a success response", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, &fakeStandards{}, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/match", map[string]any{
			"traveler": map[string]any{},
			"trip":     map[string]any{},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				Matched bool `json:"matched"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.False(t, resp.Data.Matched)
	})

	t.Run("bad as_of date is rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, &fakeStandards{}, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/match", map[string]any{
			"traveler": map[string]any{},
			"trip":     map[string]any{},
			"as_of":    "June 1st",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("catalog failure surfaces as 500", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{err: errors.New("connection refused")}, &fakeStandards{}, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/match", map[string]any{
			"traveler": map[string]any{},
			"trip":     map[string]any{},
		})
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestComputeExpenses(t *testing.T) {
	t.Parallel()

	std := domesticStandard()
	loader := &fakeStandards{byCode: map[string]*models.Standard{"DOM-STD": &std}}

	t.Run("renders in requested currency", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, loader, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/compute", map[string]any{
			"standard_codes": []string{"DOM-STD"},
			"strategy":       "MERGE_BEST",
			"currency":       "USD",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    map[string]struct {
				Currency  string          `json:"currency"`
				Amount    decimal.Decimal `json:"amount"`
				AmountCNY decimal.Decimal `json:"amount_cny"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)

		limit, ok := resp.Data["1"]
		require.True(t, ok, "limit keyed by expense item id")
		require.Equal(t, "USD", limit.Currency)
		require.True(t, limit.Amount.Equal(decimal.RequireFromString("140.00")), "got %s", limit.Amount)
		require.True(t, limit.AmountCNY.Equal(decimal.RequireFromString("1000")))
	})

	t.Run("unknown strategy is rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, loader, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/compute", map[string]any{
			"standard_codes": []string{"DOM-STD"},
			"strategy":       "BEST_EFFORT",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown standard code is a 404", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, loader, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/compute", map[string]any{
			"standard_codes": []string{"NO-SUCH"},
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing standard_codes is rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, loader, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/compute", map[string]any{
			"strategy": "PRIORITY",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMatchAndCompute(t *testing.T) {
	t.Parallel()

	t.Run("full pipeline", func(t *testing.T) {
		t.Parallel()
		std := domesticStandard()
		s := newTestServer(t, &fakeCatalog{standards: []models.Standard{std}}, &fakeStandards{}, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/match-and-compute", map[string]any{
			"traveler": map[string]any{"employee_no": "E100"},
			"trip":     map[string]any{"destination_city": "Shanghai", "trip_days": 2},
			"as_of":    "2025-06-01",
			"currency": "usd",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				Primary *struct {
					Code string `json:"code"`
				} `json:"primary_standard"`
				Limits map[string]struct {
					Currency string          `json:"currency"`
					Amount   decimal.Decimal `json:"amount"`
				} `json:"limits"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.NotNil(t, resp.Data.Primary)
		require.Equal(t, "DOM-STD", resp.Data.Primary.Code)

		limit := resp.Data.Limits["1"]
		require.Equal(t, "USD", limit.Currency, "currency code is normalized")
		require.True(t, limit.Amount.Equal(decimal.RequireFromString("140.00")))
	})

	t.Run("no matches yields empty limits", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeCatalog{}, &fakeStandards{}, &fakeRefresher{})

		rec := doJSON(t, s, http.MethodPost, "/api/standards/match-and-compute", map[string]any{
			"traveler": map[string]any{},
			"trip":     map[string]any{},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Primary *json.RawMessage `json:"primary_standard"`
				Limits  map[string]any   `json:"limits"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Nil(t, resp.Data.Primary)
		require.Empty(t, resp.Data.Limits)
	})
}

func TestRefreshRates(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		rates := &fakeRefresher{}
		s := newTestServer(t, &fakeCatalog{}, &fakeStandards{}, rates)

		rec := doJSON(t, s, http.MethodPost, "/api/admin/rates/refresh", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, rates.calls)
	})

	t.Run("upstream failure is a bad gateway", func(t *testing.T) {
		t.Parallel()
		rates := &fakeRefresher{err: errors.New("upstream down")}
		s := newTestServer(t, &fakeCatalog{}, &fakeStandards{}, rates)

		rec := doJSON(t, s, http.MethodPost, "/api/admin/rates/refresh", nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestBuildTravelerContext(t *testing.T) {
	t.Parallel()

	travelers := &fakeTravelers{stored: map[string]*models.Traveler{
		"E100": {EmployeeNo: "E100", Role: "manager", Department: "sales", JobLevel: "7"},
	}}
	h := NewHandlers(nil, travelers, nil, nil, models.BaseCurrency)

	t.Run("stored attributes fill the blanks", func(t *testing.T) {
		t.Parallel()
		tc, err := h.buildTravelerContext(context.Background(), travelerPayload{EmployeeNo: "E100"})
		require.NoError(t, err)
		require.Equal(t, "manager", tc.Role)
		require.Equal(t, "sales", tc.Department)
		require.Equal(t, "7", tc.JobLevel)
	})

	t.Run("inline attributes win over stored", func(t *testing.T) {
		t.Parallel()
		tc, err := h.buildTravelerContext(context.Background(), travelerPayload{
			EmployeeNo: "E100",
			Role:       "director",
		})
		require.NoError(t, err)
		require.Equal(t, "director", tc.Role, "what-if overrides keep the inline value")
		require.Equal(t, "sales", tc.Department)
	})

	t.Run("unknown employee keeps inline attributes", func(t *testing.T) {
		t.Parallel()
		tc, err := h.buildTravelerContext(context.Background(), travelerPayload{
			EmployeeNo: "E999",
			Role:       "contractor",
		})
		require.NoError(t, err)
		require.Equal(t, "contractor", tc.Role)
	})
}
