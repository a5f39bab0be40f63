package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/observability"
	"liquor-dashboard/internal/rings"
	"liquor-dashboard/internal/services"
)

const (
	defaultBreakdownLimit = 20
	defaultStoreLimit     = 100
	cacheShort            = "private, max-age=60"
)

type APIHandlers struct {
	analytics     *services.Analytics
	logger        *slog.Logger
	defaultPeriod rings.PeriodScheme
	forecast      forecast.Params
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, defaultPeriod rings.PeriodScheme, forecastDefaults forecast.Params) *APIHandlers {
	return &APIHandlers{
		analytics:     analytics,
		logger:        logger,
		defaultPeriod: defaultPeriod,
		forecast:      forecastDefaults,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Options(), map[string]string{
		"Cache-Control": "public, max-age=300",
	})
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilters(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	kpis, err := h.analytics.KPIs(f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, kpis, map[string]string{"Cache-Control": cacheShort})
}

// HandleRings builds the ring document for the query's filters.
func (h *APIHandlers) HandleRings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseFilters(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	period, err := parsePeriod(q.Get("period"), h.defaultPeriod)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.analytics.RingDocument(r.Context(), f, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, res)
}

// HandlePublishedRings serves a document from the hand-off store by key.
func (h *APIHandlers) HandlePublishedRings(w http.ResponseWriter, r *http.Request) {
	doc, err := h.analytics.PublishedRingDocument(r.Context(), r.PathValue("key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, doc)
}

func (h *APIHandlers) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseFilters(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	groupBy, err := parseGroupBy(q.Get("group_by"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	measure, err := parseMeasure(q.Get("measure"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := parseLimit(q.Get("limit"), defaultBreakdownLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	groups, err := h.analytics.Breakdown(f, groupBy, measure, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, map[string]any{
		"group_by": groupBy,
		"measure":  measure,
		"groups":   groups,
	}, map[string]string{"Cache-Control": cacheShort})
}

func (h *APIHandlers) HandleStores(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseFilters(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := parseLimit(q.Get("limit"), defaultStoreLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	points, err := h.analytics.StoreLocations(f, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, points)
}

func (h *APIHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ParseFilters(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	measure, err := parseMeasure(q.Get("measure"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	params, withHolidays, err := forecastParams(q, h.forecast)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.analytics.Forecast(f, measure, params, withHolidays)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, map[string]any{
		"measure": measure,
		"label":   measure.Label(),
		"result":  res,
	})
}
