// Package rings builds the calendar-ring document: a base layout of period
// blocks plus text, heatmap and holiday tracks positioned inside them.
package rings

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/normalize"
)

// PeriodScheme selects the column that splits the ring into blocks.
type PeriodScheme string

const (
	PeriodWeek  PeriodScheme = "week"
	PeriodMonth PeriodScheme = "month"
)

// ParsePeriodScheme accepts "week"/"month" and the column names they stand for.
func ParsePeriodScheme(s string) (PeriodScheme, bool) {
	switch s {
	case "week", string(models.DimYearWeek):
		return PeriodWeek, true
	case "month", string(models.DimYearMonth):
		return PeriodMonth, true
	default:
		return "", false
	}
}

// Column is the Row dimension holding the scheme's period key.
func (p PeriodScheme) Column() models.Dimension {
	if p == PeriodMonth {
		return models.DimYearMonth
	}
	return models.DimYearWeek
}

// KeyFunc computes the period key of a calendar day.
type KeyFunc func(civil.Date) string

// KeyFuncFor returns the key function of scheme. Week keys go through n so
// its override table applies to gap-filled days too.
func KeyFuncFor(scheme PeriodScheme, n *normalize.Normalizer) KeyFunc {
	if scheme == PeriodMonth {
		return normalize.MonthKey
	}
	return n.WeekKey
}

// DailyBucket is the summed measure of one calendar day.
type DailyBucket struct {
	Date    civil.Date
	BlockID string
	Value   float64
}

// Bucketize sums measure per day and returns one bucket for every day from
// the earliest to the latest row date, zero-filled, ascending. Rows need
// not be sorted. Empty input yields an empty slice.
func Bucketize(rows []models.Row, key KeyFunc, measure models.Measure) []DailyBucket {
	if len(rows) == 0 {
		return []DailyBucket{}
	}

	first, last := rows[0].Date, rows[0].Date
	sums := make(map[civil.Date]decimal.Decimal)
	for i := range rows {
		d := rows[i].Date
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
		sums[d] = sums[d].Add(decimal.NewFromFloat(rows[i].Value(measure)))
	}

	buckets := make([]DailyBucket, 0, last.DaysSince(first)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		buckets = append(buckets, DailyBucket{
			Date:    d,
			BlockID: key(d),
			Value:   sums[d].Round(2).InexactFloat64(),
		})
	}
	return buckets
}
