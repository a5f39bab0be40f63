package handlers

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/samber/lo"
	"github.com/starfederation/datastar-go/datastar"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/observability"
	"liquor-dashboard/internal/pipeline"
	"liquor-dashboard/internal/rings"
	"liquor-dashboard/internal/services"
	"liquor-dashboard/internal/ui/templates"
)

const (
	maxTableRows = 50
	noDataNotice = "No data for the selected filters"
)

type SSEHandlers struct {
	analytics     *services.Analytics
	logger        *slog.Logger
	defaultPeriod rings.PeriodScheme
	forecast      forecast.Params
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, defaultPeriod rings.PeriodScheme, forecastDefaults forecast.Params) *SSEHandlers {
	return &SSEHandlers{
		analytics:     analytics,
		logger:        logger,
		defaultPeriod: defaultPeriod,
		forecast:      forecastDefaults,
	}
}

// readSignals must run before datastar.NewSSE, which takes over the response.
func (h *SSEHandlers) readSignals(w http.ResponseWriter, r *http.Request) (Signals, pipeline.Filters, bool) {
	var s Signals
	if err := datastar.ReadSignals(r, &s); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequest("malformed datastar signals"), observability.GetRequestID(r.Context()))
		return s, pipeline.Filters{}, false
	}
	f, err := s.Filters()
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return s, f, false
	}
	return s, f, true
}

type stream struct {
	sse    *datastar.ServerSentEventGenerator
	w      http.ResponseWriter
	logger *slog.Logger
}

func (h *SSEHandlers) open(w http.ResponseWriter, r *http.Request) *stream {
	return &stream{sse: datastar.NewSSE(w, r), w: w, logger: h.logger}
}

func (s *stream) element(html string, err error) {
	if err != nil {
		s.logger.Error("render fragment", "error", err)
		return
	}
	if err := s.sse.PatchElements(html); err != nil {
		s.logger.Warn("patch elements", "error", err)
	}
}

func (s *stream) signals(v map[string]any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal signals", "error", err)
		return
	}
	if err := s.sse.PatchSignals(data); err != nil {
		s.logger.Warn("patch signals", "error", err)
	}
}

func (s *stream) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// notice shows err to the user when it is worth showing and reports whether
// the stream should go on.
func (s *stream) notice(r *http.Request, err error) bool {
	if err == nil {
		s.element(templates.Render(r.Context(), templates.Notice("")))
		return true
	}
	if errors.Is(err, errors.CodeEmptyResult) {
		s.element(templates.Render(r.Context(), templates.Notice(noDataNotice)))
		return false
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		s.element(templates.Render(r.Context(), templates.Notice(appErr.Message)))
		return false
	}
	s.logger.Error("dashboard update failed", "error", err)
	s.element(templates.Render(r.Context(), templates.Notice("Something went wrong, try again")))
	return false
}

func (h *SSEHandlers) sendRings(st *stream, r *http.Request, s Signals, f pipeline.Filters) bool {
	period, err := parsePeriod(s.Period, h.defaultPeriod)
	if err != nil {
		return st.notice(r, err)
	}
	res, err := h.analytics.RingDocument(r.Context(), f, period)
	if err != nil {
		st.signals(map[string]any{"rings": nil, "ringKey": ""})
		return st.notice(r, err)
	}
	st.signals(map[string]any{"rings": res.Document, "ringKey": res.Key})
	return true
}

func (h *SSEHandlers) sendKPIs(st *stream, r *http.Request, f pipeline.Filters) bool {
	kpis, err := h.analytics.KPIs(f)
	if err != nil {
		st.element(templates.Render(r.Context(), templates.KPICards(models.KPIs{})))
		return st.notice(r, err)
	}
	st.element(templates.Render(r.Context(), templates.KPICards(kpis)))
	return true
}

func (h *SSEHandlers) sendBreakdown(st *stream, r *http.Request, s Signals, f pipeline.Filters) bool {
	groupBy, err := parseGroupBy(s.GroupBy)
	if err != nil {
		return st.notice(r, err)
	}
	measure, err := parseMeasure(s.Measure)
	if err != nil {
		return st.notice(r, err)
	}
	limit := s.Limit
	if limit <= 0 || limit > maxTableRows {
		limit = maxTableRows
	}

	groups, err := h.analytics.Breakdown(f, groupBy, measure, limit)
	if err != nil {
		return st.notice(r, err)
	}
	columns := lo.Map(groupBy, func(d models.Dimension, _ int) string { return string(d) })
	st.element(templates.Render(r.Context(), templates.BreakdownTable(columns, measure.Label(), groups)))
	return true
}

func (h *SSEHandlers) sendForecast(st *stream, r *http.Request, s Signals, f pipeline.Filters) bool {
	measure, err := parseMeasure(s.Measure)
	if err != nil {
		return st.notice(r, err)
	}
	params, withHolidays := s.ForecastParams(h.forecast)

	res, err := h.analytics.Forecast(f, measure, params, withHolidays)
	if err != nil {
		st.signals(map[string]any{"forecast": nil})
		st.element(templates.Render(r.Context(), templates.ForecastSummary(measure.Label(), nil)))
		return st.notice(r, err)
	}
	st.signals(map[string]any{"forecast": map[string]any{
		"measure": measure,
		"label":   measure.Label(),
		"result":  res,
	}})
	st.element(templates.Render(r.Context(), templates.ForecastSummary(measure.Label(), res)))
	return true
}

// HandleForecast fits the forecast controls to the filtered daily series and
// patches the projection into the forecast signal.
func (h *SSEHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	s, f, ok := h.readSignals(w, r)
	if !ok {
		return
	}
	st := h.open(w, r)
	if h.sendForecast(st, r, s, f) {
		st.notice(r, nil)
	}
	st.flush()
}

// HandleRings patches the ring document into the rings signal.
func (h *SSEHandlers) HandleRings(w http.ResponseWriter, r *http.Request) {
	s, f, ok := h.readSignals(w, r)
	if !ok {
		return
	}
	st := h.open(w, r)
	if h.sendRings(st, r, s, f) {
		st.notice(r, nil)
	}
	st.flush()
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	_, f, ok := h.readSignals(w, r)
	if !ok {
		return
	}
	st := h.open(w, r)
	if h.sendKPIs(st, r, f) {
		st.notice(r, nil)
	}
	st.flush()
}

func (h *SSEHandlers) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	s, f, ok := h.readSignals(w, r)
	if !ok {
		return
	}
	st := h.open(w, r)
	if h.sendBreakdown(st, r, s, f) {
		st.notice(r, nil)
	}
	st.flush()
}

// HandleRefreshAll updates every dashboard section for the current filters.
// An empty selection stops after the first section that reports it.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	s, f, ok := h.readSignals(w, r)
	if !ok {
		return
	}
	st := h.open(w, r)
	if !h.sendKPIs(st, r, f) {
		st.signals(map[string]any{"rings": nil, "ringKey": ""})
		st.flush()
		return
	}
	if h.sendRings(st, r, s, f) && h.sendBreakdown(st, r, s, f) {
		st.notice(r, nil)
	}
	st.flush()
}
