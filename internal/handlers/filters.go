package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/pipeline"
	"liquor-dashboard/internal/rings"
)

// allLiquorTypes is the radio choice that disables the liquor type filter.
const allLiquorTypes = "Both"

// Signals is the dashboard state datastar sends with every SSE request.
type Signals struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Counties    []string `json:"counties"`
	Cities      []string `json:"cities"`
	Categories  []string `json:"categories"`
	Vendors     []string `json:"vendors"`
	LiquorType  string   `json:"liquorType"`
	Period      string   `json:"period"`
	GroupBy     string   `json:"groupBy"`
	Measure     string   `json:"measure"`
	Limit       int      `json:"limit"`
	Months      float64  `json:"months"`
	Interval    float64  `json:"interval"`
	Weekly      *bool    `json:"weekly"`
	Monthly     *bool    `json:"monthly"`
	Yearly      *bool    `json:"yearly"`
	UseHolidays *bool    `json:"holidays"`
}

func (s Signals) Filters() (pipeline.Filters, error) {
	f := pipeline.Filters{
		Counties:    cleanValues(s.Counties),
		Cities:      cleanValues(s.Cities),
		Categories:  cleanValues(s.Categories),
		Vendors:     cleanValues(s.Vendors),
		LiquorTypes: liquorTypes([]string{s.LiquorType}),
	}
	var err error
	if f.Start, err = parseDate("start", s.Start); err != nil {
		return f, err
	}
	if f.End, err = parseDate("end", s.End); err != nil {
		return f, err
	}
	return f, checkRange(f)
}

// ForecastParams overlays the forecast controls on defaults. Unset or zero
// controls keep the default value.
func (s Signals) ForecastParams(defaults forecast.Params) (forecast.Params, bool) {
	p := defaults
	if s.Months > 0 {
		p.Months = s.Months
	}
	if s.Interval > 0 {
		p.IntervalWidth = normalizeInterval(s.Interval)
	}
	flags := []struct {
		src *bool
		dst *bool
	}{
		{s.Weekly, &p.WeeklySeasonality},
		{s.Monthly, &p.MonthlySeasonality},
		{s.Yearly, &p.YearlySeasonality},
	}
	for _, f := range flags {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return p, s.UseHolidays != nil && *s.UseHolidays
}

// ParseFilters reads the filter query parameters. List parameters may repeat
// or hold comma separated values.
func ParseFilters(q url.Values) (pipeline.Filters, error) {
	f := pipeline.Filters{
		Counties:    listParam(q, "county"),
		Cities:      listParam(q, "city"),
		Categories:  listParam(q, "category"),
		Vendors:     listParam(q, "vendor"),
		LiquorTypes: liquorTypes(listParam(q, "type")),
	}
	var err error
	if f.Start, err = parseDate("start", q.Get("start")); err != nil {
		return f, err
	}
	if f.End, err = parseDate("end", q.Get("end")); err != nil {
		return f, err
	}
	return f, checkRange(f)
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		out = append(out, strings.Split(v, ",")...)
	}
	return cleanValues(out)
}

func cleanValues(values []string) []string {
	out := lo.Uniq(lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	}))
	if len(out) == 0 {
		return nil
	}
	return out
}

func liquorTypes(values []string) []string {
	values = cleanValues(values)
	if lo.Contains(values, allLiquorTypes) {
		return nil
	}
	return values
}

func parseDate(name, s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, errors.BadRequest(fmt.Sprintf("%s must be a YYYY-MM-DD date, got %q", name, s))
	}
	return d, nil
}

func checkRange(f pipeline.Filters) error {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return errors.BadRequest("end date is before start date")
	}
	return nil
}

func parsePeriod(s string, fallback rings.PeriodScheme) (rings.PeriodScheme, error) {
	if s == "" {
		return fallback, nil
	}
	p, ok := rings.ParsePeriodScheme(s)
	if !ok {
		return "", errors.BadRequest(fmt.Sprintf("unknown period %q, use week or month", s))
	}
	return p, nil
}

func parseMeasure(s string) (models.Measure, error) {
	if s == "" {
		return models.MeasureSaleDollars, nil
	}
	m, ok := models.ParseMeasure(s)
	if !ok {
		return "", errors.BadRequest(fmt.Sprintf("unknown measure %q", s))
	}
	return m, nil
}

func parseGroupBy(s string) ([]models.Dimension, error) {
	if s == "" {
		return []models.Dimension{models.DimCounty}, nil
	}
	var dims []models.Dimension
	for _, name := range cleanValues(strings.Split(s, ",")) {
		d, ok := models.ParseDimension(name)
		if !ok {
			return nil, errors.BadRequest(fmt.Sprintf("unknown group-by column %q", name))
		}
		dims = append(dims, d)
	}
	return dims, nil
}

func parseLimit(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.BadRequest(fmt.Sprintf("limit must be a non-negative integer, got %q", s))
	}
	return n, nil
}

// normalizeInterval accepts a width either as a fraction or as a percentage.
func normalizeInterval(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

func forecastParams(q url.Values, defaults forecast.Params) (forecast.Params, bool, error) {
	p := defaults
	if s := q.Get("months"); s != "" {
		months, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, false, errors.BadRequest(fmt.Sprintf("months must be a number, got %q", s))
		}
		p.Months = months
	}
	if s := q.Get("interval"); s != "" {
		width, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return p, false, errors.BadRequest(fmt.Sprintf("interval must be a number, got %q", s))
		}
		p.IntervalWidth = normalizeInterval(width)
	}

	flags := map[string]*bool{
		"weekly":  &p.WeeklySeasonality,
		"monthly": &p.MonthlySeasonality,
		"yearly":  &p.YearlySeasonality,
	}
	for name, dst := range flags {
		if s := q.Get(name); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return p, false, errors.BadRequest(fmt.Sprintf("%s must be true or false, got %q", name, s))
			}
			*dst = v
		}
	}

	withHolidays := false
	if s := q.Get("holidays"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return p, false, errors.BadRequest(fmt.Sprintf("holidays must be true or false, got %q", s))
		}
		withHolidays = v
	}
	return p, withHolidays, nil
}
