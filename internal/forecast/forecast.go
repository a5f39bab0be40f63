// Package forecast projects a daily series forward with a confidence band.
package forecast

import (
	"fmt"
	"math"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/holidays"
)

const (
	DaysPerMonth         = 30.5
	DefaultIntervalWidth = 0.95
	DefaultHoldoutDays   = 30
)

// Point is one observed day.
type Point struct {
	Date  civil.Date `json:"ds"`
	Value float64    `json:"y"`
}

// Prediction is the fitted or projected value of one day.
type Prediction struct {
	Date  civil.Date `json:"ds"`
	YHat  float64    `json:"yhat"`
	Lower float64    `json:"yhat_lower"`
	Upper float64    `json:"yhat_upper"`
}

type Params struct {
	Months             float64
	IntervalWidth      float64
	WeeklySeasonality  bool
	MonthlySeasonality bool
	// YearlySeasonality adds a day-of-year effect. Only days seen in at least
	// two years of history get one.
	YearlySeasonality bool
	// Holidays adds a single additive effect for days found in the calendar.
	Holidays *holidays.Calendar
}

// DefaultParams mirrors the dashboard's initial control values.
func DefaultParams() Params {
	return Params{Months: 3, IntervalWidth: DefaultIntervalWidth, WeeklySeasonality: true}
}

func (p Params) validate() error {
	if p.Months <= 0 || p.Months > 24 {
		return errors.Validation(fmt.Sprintf("forecast months must be in (0, 24], got %v", p.Months))
	}
	if p.IntervalWidth <= 0 || p.IntervalWidth >= 1 {
		return errors.Validation(fmt.Sprintf("interval width must be in (0, 1), got %v", p.IntervalWidth))
	}
	return nil
}

// HorizonDays converts a month count into forecast days. Halves round to even.
func HorizonDays(months float64) int {
	return int(math.RoundToEven(months * DaysPerMonth))
}

// Forecaster fits a history and projects it.
type Forecaster interface {
	Fit(history []Point) error
	Forecast(horizon int) ([]Prediction, error)
}

// Model is a least-squares linear trend with optional additive day-of-week,
// day-of-month, holiday and day-of-year effects. The band is a normal interval over the
// residual spread.
type Model struct {
	params Params

	fitted    bool
	history   []Point
	origin    civil.Date
	intercept float64
	slope     float64
	weekly    [7]float64
	monthly   [31]float64
	yearly    [366]float64
	holiday   float64
	sigma     float64
}

var _ Forecaster = (*Model)(nil)

func NewModel(params Params) *Model {
	return &Model{params: params}
}

func (m *Model) Fit(history []Point) error {
	if len(history) < 2 {
		return errors.Validation("forecasting needs at least two days of history")
	}

	pts := sortedCopy(history)
	m.history = pts
	m.origin = pts[0].Date
	m.weekly = [7]float64{}
	m.monthly = [31]float64{}
	m.yearly = [366]float64{}
	m.holiday = 0

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = m.x(p.Date)
		ys[i] = p.Value
	}
	m.slope = 0
	m.intercept = stat.Mean(ys, nil)
	if stat.PopVariance(xs, nil) > 0 {
		m.intercept, m.slope = stat.LinearRegression(xs, ys, nil, false)
	}

	residuals := make([]float64, len(pts))
	for i, p := range pts {
		residuals[i] = p.Value - m.trend(p.Date)
	}

	if m.params.WeeklySeasonality {
		copy(m.weekly[:], meanBy(pts, residuals, weekdayIndex, len(m.weekly), 1))
		for i, p := range pts {
			residuals[i] -= m.weekly[weekdayIndex(p.Date)]
		}
	}
	if m.params.MonthlySeasonality {
		copy(m.monthly[:], meanBy(pts, residuals, monthDayIndex, len(m.monthly), 1))
		for i, p := range pts {
			residuals[i] -= m.monthly[monthDayIndex(p.Date)]
		}
	}
	if m.params.Holidays != nil {
		var onHolidays []float64
		for i, p := range pts {
			if m.isHoliday(p.Date) {
				onHolidays = append(onHolidays, residuals[i])
			}
		}
		if len(onHolidays) > 0 {
			m.holiday = stat.Mean(onHolidays, nil)
			for i, p := range pts {
				if m.isHoliday(p.Date) {
					residuals[i] -= m.holiday
				}
			}
		}
	}
	if m.params.YearlySeasonality {
		copy(m.yearly[:], meanBy(pts, residuals, yearDayIndex, len(m.yearly), 2))
		for i, p := range pts {
			residuals[i] -= m.yearly[yearDayIndex(p.Date)]
		}
	}

	m.sigma = stat.PopStdDev(residuals, nil)
	m.fitted = true
	return nil
}

// Forecast returns the fitted history followed by horizon projected days.
func (m *Model) Forecast(horizon int) ([]Prediction, error) {
	if !m.fitted {
		return nil, errors.Internal("forecast requested before fit")
	}
	if horizon < 0 {
		return nil, errors.Validation("forecast horizon cannot be negative")
	}

	width := m.params.IntervalWidth
	if width <= 0 || width >= 1 {
		width = DefaultIntervalWidth
	}
	z := distuv.UnitNormal.Quantile(0.5 + width/2)
	band := z * m.sigma

	out := make([]Prediction, 0, len(m.history)+horizon)
	emit := func(d civil.Date) {
		yhat := m.Predict(d)
		out = append(out, Prediction{Date: d, YHat: round2(yhat), Lower: round2(yhat - band), Upper: round2(yhat + band)})
	}
	for _, p := range m.history {
		emit(p.Date)
	}
	last := m.history[len(m.history)-1].Date
	for i := 1; i <= horizon; i++ {
		emit(last.AddDays(i))
	}
	return out, nil
}

// Predict is the point estimate for d.
func (m *Model) Predict(d civil.Date) float64 {
	y := m.trend(d) + m.weekly[weekdayIndex(d)] + m.monthly[monthDayIndex(d)] + m.yearly[yearDayIndex(d)]
	if m.isHoliday(d) {
		y += m.holiday
	}
	return y
}

// Slope is the fitted trend per day.
func (m *Model) Slope() float64 {
	return m.slope
}

func (m *Model) x(d civil.Date) float64 {
	return float64(d.DaysSince(m.origin))
}

func (m *Model) trend(d civil.Date) float64 {
	return m.intercept + m.slope*m.x(d)
}

func (m *Model) isHoliday(d civil.Date) bool {
	if m.params.Holidays == nil {
		return false
	}
	_, ok := m.params.Holidays.Lookup(d)
	return ok
}

func weekdayIndex(d civil.Date) int {
	return int(d.In(time.UTC).Weekday())
}

func monthDayIndex(d civil.Date) int {
	return d.Day - 1
}

func yearDayIndex(d civil.Date) int {
	return d.In(time.UTC).YearDay() - 1
}

func sortedCopy(pts []Point) []Point {
	out := slices.Clone(pts)
	slices.SortStableFunc(out, func(a, b Point) int { return a.Date.DaysSince(b.Date) })
	return out
}

// meanBy averages residuals per bucket. Buckets with fewer than minCount
// points stay zero.
func meanBy(pts []Point, residuals []float64, index func(civil.Date) int, size, minCount int) []float64 {
	buckets := make([][]float64, size)
	for i, p := range pts {
		k := index(p.Date)
		buckets[k] = append(buckets[k], residuals[i])
	}
	means := make([]float64, size)
	for k, values := range buckets {
		if len(values) >= minCount && len(values) > 0 {
			means[k] = stat.Mean(values, nil)
		}
	}
	return means
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
