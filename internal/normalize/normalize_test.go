package normalize

import (
	"math"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/models"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("03/07/2021")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if got != date(2021, time.March, 7) {
		t.Errorf("ParseDate() = %v, want 2021-03-07", got)
	}

	for _, bad := range []string{"2021-03-07", "3/7/21", "13/01/2021", "", "03/07/2021 10:00", " 03/07/2021", "03/07/2021\n"} {
		t.Run(bad, func(t *testing.T) {
			if _, err := ParseDate(bad); !errors.Is(err, errors.CodeParse) {
				t.Errorf("ParseDate(%q) error = %v, want a parse error", bad, err)
			}
		})
	}
}

func TestWeekKey_YearBoundaryOverride(t *testing.T) {
	n := New()

	// Dec 28 2020 (Monday) .. Jan 3 2021 (Sunday) is ISO week 53 of 2020.
	for d := date(2020, time.December, 28); !d.After(date(2021, time.January, 3)); d = d.AddDays(1) {
		if got := n.WeekKey(d); got != "2020-W53" {
			t.Errorf("WeekKey(%v) = %q, want 2020-W53", d, got)
		}
	}

	tests := []struct {
		d    civil.Date
		want string
	}{
		{date(2021, time.January, 4), "2021-W1"},
		{date(2020, time.December, 27), "2020-W52"},
		{date(2021, time.March, 1), "2021-W9"},
	}
	for _, tt := range tests {
		if got := n.WeekKey(tt.d); got != tt.want {
			t.Errorf("WeekKey(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestWeekKey_NoOverrides(t *testing.T) {
	n := &Normalizer{}
	if got := n.WeekKey(date(2021, time.January, 2)); got != "2021-W53" {
		t.Errorf("WeekKey() = %q, want 2021-W53", got)
	}
}

func TestWeekKey_OtherYearsNotRekeyed(t *testing.T) {
	n := New()
	// Jan 1 2016 is in ISO week 53 of 2015; only the 2020/2021 pair is merged.
	if got := n.WeekKey(date(2016, time.January, 1)); got != "2016-W53" {
		t.Errorf("WeekKey() = %q, want 2016-W53", got)
	}
}

func TestMonthKeyAndWeekStart(t *testing.T) {
	if got := MonthKey(date(2021, time.March, 15)); got != "2021-3" {
		t.Errorf("MonthKey() = %q, want 2021-3", got)
	}
	if got := MonthKey(date(2020, time.December, 1)); got != "2020-12" {
		t.Errorf("MonthKey() = %q, want 2020-12", got)
	}

	if got := WeekStart(date(2021, time.January, 3)); got != date(2020, time.December, 28) {
		t.Errorf("WeekStart(Sunday) = %v", got)
	}
	if got := WeekStart(date(2021, time.January, 4)); got != date(2021, time.January, 4) {
		t.Errorf("WeekStart(Monday) = %v", got)
	}
}

func TestCapitalize(t *testing.T) {
	for in, want := range map[string]string{
		"POLK":       "Polk",
		"des MOINES": "Des moines",
		"":           "",
	} {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePoint(t *testing.T) {
	n := New()

	tests := []struct {
		name    string
		in      string
		lat     float64
		lon     float64
		ok      bool
		wantErr bool
	}{
		{"point", "POINT (-93.61912 41.60022)", 41.60022, -93.61912, true, false},
		{"geocode override", "POINT (-95.79728 45.009612)", 40.80724, -91.11346, true, false},
		{"empty", "", 0, 0, false, false},
		{"bad number", "POINT (abc 41.1)", 0, 0, false, true},
		{"not wkt", "41.1,-93.2", 0, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok, err := n.ParsePoint(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errors.CodeParse) {
					t.Errorf("ParsePoint(%q) error = %v, want a parse error", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePoint(%q) error = %v", tt.in, err)
			}
			if ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
			if math.Abs(lat-tt.lat) > 1e-9 || math.Abs(lon-tt.lon) > 1e-9 {
				t.Errorf("ParsePoint(%q) = %v,%v, want %v,%v", tt.in, lat, lon, tt.lat, tt.lon)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	n := New()
	rows, err := n.Normalize([]models.Transaction{
		{RawDate: "01/02/2021", County: "POLK", StoreLocation: "POINT (-93.6 41.6)", BottlesSold: 3},
		{RawDate: "12/30/2020", County: "linn", BottlesSold: 1},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.Date != date(2020, time.December, 30) {
		t.Errorf("rows should be sorted by date, first = %v", first.Date)
	}
	if first.County != "Linn" || first.Weekday != "Wednesday" {
		t.Errorf("first = %s on %s", first.County, first.Weekday)
	}
	if first.MonthYear != "12-2020" || first.YearMonth != "2020-12" || first.YearWeek != "2020-W53" {
		t.Errorf("first keys = %s %s %s", first.MonthYear, first.YearMonth, first.YearWeek)
	}
	if first.HasLocation {
		t.Error("first row has no location")
	}

	second := rows[1]
	if second.County != "Polk" || second.YearWeek != "2020-W53" {
		t.Errorf("second = %s in %s", second.County, second.YearWeek)
	}
	if second.WeekStart != date(2020, time.December, 28) {
		t.Errorf("week start = %v", second.WeekStart)
	}
	if second.Day != 2 || second.Month != 1 || second.Year != 2021 {
		t.Errorf("day parts = %d/%d/%d", second.Day, second.Month, second.Year)
	}
	if !second.HasLocation {
		t.Error("second row should carry its location")
	}
}

func TestNormalize_PropagatesParseError(t *testing.T) {
	_, err := New().Normalize([]models.Transaction{
		{RawDate: "01/02/2021"},
		{RawDate: "2021-01-03"},
	})
	if !errors.Is(err, errors.CodeParse) {
		t.Fatalf("Normalize() error = %v, want a parse error", err)
	}
	if !strings.Contains(err.Error(), "record 1") {
		t.Errorf("error should name the record: %v", err)
	}
}
