package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gitlab.com/minqi/travel-standards/internal/models"
	"gitlab.com/minqi/travel-standards/internal/policy"
)

// TravelerLookup fetches a traveler's stored attributes by employee number.
type TravelerLookup interface {
	GetByEmployeeNo(ctx context.Context, employeeNo string) (*models.Traveler, error)
}

// StandardLoader fetches a standard by code for compute-only requests.
type StandardLoader interface {
	GetByCode(ctx context.Context, code string) (*models.Standard, error)
}

// RateRefresher forces an exchange rate table reload.
type RateRefresher interface {
	ForceRefresh(ctx context.Context) error
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	engine          *policy.Engine
	travelers       TravelerLookup
	standards       StandardLoader
	rates           RateRefresher
	defaultCurrency string
}

// NewHandlers creates a Handlers instance.
func NewHandlers(engine *policy.Engine, travelers TravelerLookup, standards StandardLoader, rates RateRefresher, defaultCurrency string) *Handlers {
	if defaultCurrency == "" {
		defaultCurrency = models.BaseCurrency
	}
	return &Handlers{
		engine:          engine,
		travelers:       travelers,
		standards:       standards,
		rates:           rates,
		defaultCurrency: defaultCurrency,
	}
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type travelerPayload struct {
	EmployeeNo        string `json:"employee_no"`
	Role              string `json:"role"`
	Position          string `json:"position"`
	Department        string `json:"department"`
	JobLevel          string `json:"job_level"`
	ProjectCode       string `json:"project_code"`
	CityLocationID    *int64 `json:"city_location_id"`
	CountryLocationID *int64 `json:"country_location_id"`
}

type tripPayload struct {
	DestinationCountry string `json:"destination_country"`
	DestinationCity    string `json:"destination_city"`
	CityTier           int    `json:"city_tier"`
	TripDays           int    `json:"trip_days"`
}

type matchRequest struct {
	Traveler travelerPayload `json:"traveler"`
	Trip     tripPayload     `json:"trip"`
	AsOf     string          `json:"as_of"` // YYYY-MM-DD, defaults to today
}

type computeRequest struct {
	StandardCodes []string `json:"standard_codes" binding:"required"`
	Strategy      string   `json:"strategy"`
	Currency      string   `json:"currency"`
}

type matchAndComputeRequest struct {
	Traveler travelerPayload `json:"traveler"`
	Trip     tripPayload     `json:"trip"`
	AsOf     string          `json:"as_of"`
	Strategy string          `json:"strategy"`
	Currency string          `json:"currency"`
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// MatchStandards returns the standards applicable to a traveler/trip.
func (h *Handlers) MatchStandards(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	traveler, err := h.buildTravelerContext(c.Request.Context(), req.Traveler)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	report, err := h.engine.MatchStandards(c.Request.Context(), traveler, tripContext(req.Trip), asOf)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ComputeExpenses merges and renders limits for an explicit standard set.
func (h *Handlers) ComputeExpenses(c *gin.Context) {
	var req computeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	strategy, err := models.ParseMergeStrategy(req.Strategy)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var standards []models.Standard
	for _, code := range req.StandardCodes {
		std, err := h.standards.GetByCode(c.Request.Context(), code)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if std == nil {
			respondError(c, http.StatusNotFound, fmt.Sprintf("standard %s not found", code))
			return
		}
		standards = append(standards, *std)
	}

	limits, err := h.engine.ComputeExpenses(c.Request.Context(), standards, strategy, h.currency(req.Currency))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: limits})
}

// MatchAndCompute runs the full pipeline: match, merge, render.
func (h *Handlers) MatchAndCompute(c *gin.Context) {
	var req matchAndComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	asOf, err := parseAsOf(req.AsOf)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	strategy, err := models.ParseMergeStrategy(req.Strategy)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	traveler, err := h.buildTravelerContext(c.Request.Context(), req.Traveler)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.engine.MatchAndCompute(
		c.Request.Context(), traveler, tripContext(req.Trip), asOf, strategy, h.currency(req.Currency))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// RefreshRates reloads the exchange rate table immediately.
func (h *Handlers) RefreshRates(c *gin.Context) {
	if err := h.rates.ForceRefresh(c.Request.Context()); err != nil {
		respondError(c, http.StatusBadGateway, fmt.Sprintf("rate refresh failed: %v", err))
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// buildTravelerContext fills attributes from the traveler store when the
// request names an employee but omits attributes. Inline attributes win so
// callers can override stored data for what-if requests.
func (h *Handlers) buildTravelerContext(ctx context.Context, p travelerPayload) (models.TravelerContext, error) {
	tc := models.TravelerContext{
		EmployeeNo:        p.EmployeeNo,
		Role:              p.Role,
		Position:          p.Position,
		Department:        p.Department,
		JobLevel:          p.JobLevel,
		ProjectCode:       p.ProjectCode,
		CityLocationID:    p.CityLocationID,
		CountryLocationID: p.CountryLocationID,
	}

	if p.EmployeeNo == "" || h.travelers == nil {
		return tc, nil
	}

	stored, err := h.travelers.GetByEmployeeNo(ctx, p.EmployeeNo)
	if err != nil {
		return tc, fmt.Errorf("traveler lookup failed: %w", err)
	}
	if stored == nil {
		return tc, nil
	}

	if tc.Role == "" {
		tc.Role = stored.Role
	}
	if tc.Position == "" {
		tc.Position = stored.Position
	}
	if tc.Department == "" {
		tc.Department = stored.Department
	}
	if tc.JobLevel == "" {
		tc.JobLevel = stored.JobLevel
	}
	return tc, nil
}

func (h *Handlers) currency(requested string) string {
	code := strings.ToUpper(strings.TrimSpace(requested))
	if code == "" {
		return h.defaultCurrency
	}
	return code
}

func tripContext(p tripPayload) models.TripContext {
	return models.TripContext{
		DestinationCountry: p.DestinationCountry,
		DestinationCity:    p.DestinationCity,
		CityTier:           p.CityTier,
		TripDays:           p.TripDays,
	}
}

func parseAsOf(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Now().UTC(), nil
	}
	asOf, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of date %q, expected YYYY-MM-DD", raw)
	}
	return asOf, nil
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}
