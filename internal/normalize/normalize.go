// Package normalize turns raw transaction records into typed rows with the
// calendar keys the dashboard groups by.
package normalize

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"cloud.google.com/go/civil"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/models"
)

// SourceDateLayout is the only accepted transaction date format (MM/DD/YYYY).
const SourceDateLayout = "01/02/2006"

// DefaultWeekKeyOverrides re-keys the days of ISO week 53 that fall in
// January 2021 into the December 2020 block, so the week straddling the
// year boundary is one block instead of a trailing 3-day block.
//
// Only this year pair is covered. Other year ranges are not re-keyed.
func DefaultWeekKeyOverrides() map[string]string {
	return map[string]string{
		"2021-W53": "2020-W53",
	}
}

// DefaultGeocodeOverrides maps store locations that are known to be wrong in
// the source data to the corrected point.
func DefaultGeocodeOverrides() map[string]string {
	return map[string]string{
		"POINT (-95.79728 45.009612)":           "POINT (-91.11346 40.80724)",
		"POINT (-73.982421 40.305231000000006)": "POINT (-94.44483 42.95923)",
	}
}

// Normalizer derives Rows from Transactions. The override tables are
// exported so callers can inspect or replace them.
type Normalizer struct {
	WeekKeyOverrides map[string]string
	GeocodeOverrides map[string]string
}

// New returns a Normalizer with the default override tables.
func New() *Normalizer {
	return &Normalizer{
		WeekKeyOverrides: DefaultWeekKeyOverrides(),
		GeocodeOverrides: DefaultGeocodeOverrides(),
	}
}

// ParseDate parses a MM/DD/YYYY date strictly. Surrounding whitespace is
// rejected; the CSV loader trims cells before they get here.
func ParseDate(s string) (civil.Date, error) {
	t, err := time.Parse(SourceDateLayout, s)
	if err != nil {
		return civil.Date{}, errors.ParseWrap(err, fmt.Sprintf("invalid transaction date %q", s))
	}
	return civil.DateOf(t), nil
}

// WeekKey returns "{year}-W{isoweek}" for d after applying the override table.
// The year is the calendar year of d, not the ISO year.
func (n *Normalizer) WeekKey(d civil.Date) string {
	_, week := d.In(time.UTC).ISOWeek()
	key := fmt.Sprintf("%d-W%d", d.Year, week)
	if override, ok := n.WeekKeyOverrides[key]; ok {
		return override
	}
	return key
}

// MonthKey returns "{year}-{month}" with no zero padding.
func MonthKey(d civil.Date) string {
	return fmt.Sprintf("%d-%d", d.Year, int(d.Month))
}

// WeekStart returns the Monday of d's ISO week.
func WeekStart(d civil.Date) civil.Date {
	offset := (int(d.In(time.UTC).Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// ParsePoint extracts latitude and longitude from "POINT (lon lat)".
// An empty string reports ok=false without an error.
func (n *Normalizer) ParsePoint(s string) (lat, lon float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false, nil
	}
	if fixed, found := n.GeocodeOverrides[s]; found {
		s = fixed
	}

	inner, found := strings.CutPrefix(s, "POINT (")
	if !found {
		return 0, 0, false, errors.Parse(fmt.Sprintf("invalid store location %q", s))
	}
	inner, found = strings.CutSuffix(inner, ")")
	if !found {
		return 0, 0, false, errors.Parse(fmt.Sprintf("invalid store location %q", s))
	}

	parts := strings.Fields(inner)
	if len(parts) != 2 {
		return 0, 0, false, errors.Parse(fmt.Sprintf("invalid store location %q", s))
	}

	lon, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false, errors.ParseWrap(err, fmt.Sprintf("invalid longitude in %q", s))
	}
	lat, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false, errors.ParseWrap(err, fmt.Sprintf("invalid latitude in %q", s))
	}
	return lat, lon, true, nil
}

// Row derives the normalized row for a single transaction.
func (n *Normalizer) Row(tx models.Transaction) (models.Row, error) {
	date, err := ParseDate(tx.RawDate)
	if err != nil {
		return models.Row{}, err
	}

	lat, lon, hasLocation, err := n.ParsePoint(tx.StoreLocation)
	if err != nil {
		return models.Row{}, err
	}

	tx.County = Capitalize(tx.County)

	return models.Row{
		Transaction: tx,
		Date:        date,
		Weekday:     date.In(time.UTC).Weekday().String(),
		Day:         date.Day,
		Month:       int(date.Month),
		Year:        date.Year,
		MonthYear:   fmt.Sprintf("%d-%d", int(date.Month), date.Year),
		YearMonth:   MonthKey(date),
		YearWeek:    n.WeekKey(date),
		WeekStart:   WeekStart(date),
		Lat:         lat,
		Lon:         lon,
		HasLocation: hasLocation,
	}, nil
}

// Normalize converts all transactions and returns the rows sorted by date.
// The first failing record aborts the run.
func (n *Normalizer) Normalize(txs []models.Transaction) ([]models.Row, error) {
	rows := make([]models.Row, 0, len(txs))
	for i, tx := range txs {
		row, err := n.Row(tx)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	SortByDate(rows)
	return rows, nil
}

// SortByDate orders rows ascending by date, keeping input order for ties.
func SortByDate(rows []models.Row) {
	slices.SortStableFunc(rows, func(a, b models.Row) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		default:
			return 0
		}
	})
}
