package handlers

import (
	"net/url"
	"slices"
	"testing"

	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/rings"
)

func TestParseFilters(t *testing.T) {
	q, _ := url.ParseQuery("county=Polk,%20Story&county=Polk&city=&type=Spirits&start=2021-01-01&end=2021-01-31")

	f, err := ParseFilters(q)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(f.Counties, []string{"Polk", "Story"}) {
		t.Errorf("counties = %q", f.Counties)
	}
	if f.Cities != nil {
		t.Errorf("blank city should not filter, got %q", f.Cities)
	}
	if !slices.Equal(f.LiquorTypes, []string{"Spirits"}) {
		t.Errorf("liquor types = %q", f.LiquorTypes)
	}
	if f.Start.String() != "2021-01-01" || f.End.String() != "2021-01-31" {
		t.Errorf("range = %v..%v", f.Start, f.End)
	}

	f, err = ParseFilters(url.Values{"type": {"Both"}})
	if err != nil || f.LiquorTypes != nil {
		t.Errorf("Both should disable the liquor type filter, got %q (%v)", f.LiquorTypes, err)
	}
}

func TestSignalsFilters(t *testing.T) {
	s := Signals{Counties: []string{" Polk ", ""}, LiquorType: "Wine", Start: "2021-02-01"}

	f, err := s.Filters()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(f.Counties, []string{"Polk"}) || !slices.Equal(f.LiquorTypes, []string{"Wine"}) {
		t.Errorf("filters = %+v", f)
	}
	if !f.End.IsZero() {
		t.Errorf("unset end should stay open, got %v", f.End)
	}

	if _, err := (Signals{Start: "2021-03-01", End: "2021-02-01"}).Filters(); err == nil {
		t.Error("expected an error for an inverted range")
	}
}

func TestRequestOptionParsers(t *testing.T) {
	if p, err := parsePeriod("", rings.PeriodMonth); err != nil || p != rings.PeriodMonth {
		t.Errorf("empty period = %q, %v", p, err)
	}
	if p, err := parsePeriod("year_weeknumber", rings.PeriodMonth); err != nil || p != rings.PeriodWeek {
		t.Errorf("column name period = %q, %v", p, err)
	}

	dims, err := parseGroupBy("county, city")
	if err != nil || !slices.Equal(dims, []models.Dimension{models.DimCounty, models.DimCity}) {
		t.Errorf("group by = %v, %v", dims, err)
	}

	if n, err := parseLimit("", 7); err != nil || n != 7 {
		t.Errorf("default limit = %d, %v", n, err)
	}
}

func TestForecastParams(t *testing.T) {
	defaults := forecast.DefaultParams()

	tests := []struct {
		name     string
		query    string
		months   float64
		width    float64
		weekly   bool
		monthly  bool
		yearly   bool
		holidays bool
		wantErr  bool
	}{
		{"defaults", "", 3, 0.95, true, false, false, false, false},
		{"fraction", "months=6&interval=0.8", 6, 0.8, true, false, false, false, false},
		{"percentage", "interval=80", 3, 0.8, true, false, false, false, false},
		{"flags", "weekly=false&monthly=true&holidays=1", 3, 0.95, false, true, false, true, false},
		{"yearly", "yearly=true", 3, 0.95, true, false, true, false, false},
		{"bad months", "months=six", 0, 0, false, false, false, false, true},
		{"bad flag", "monthly=sometimes", 0, 0, false, false, false, false, true},
		{"bad yearly", "yearly=often", 0, 0, false, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p, withHolidays, err := forecastParams(q, defaults)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Months != tt.months || p.IntervalWidth != tt.width {
				t.Errorf("months/width = %v/%v", p.Months, p.IntervalWidth)
			}
			if p.WeeklySeasonality != tt.weekly || p.MonthlySeasonality != tt.monthly || p.YearlySeasonality != tt.yearly || withHolidays != tt.holidays {
				t.Errorf("flags = %v/%v/%v/%v", p.WeeklySeasonality, p.MonthlySeasonality, p.YearlySeasonality, withHolidays)
			}
		})
	}
}

func TestSignalsForecastParams(t *testing.T) {
	defaults := forecast.DefaultParams()
	yes, no := true, false

	p, withHolidays := Signals{}.ForecastParams(defaults)
	if p != defaults || withHolidays {
		t.Errorf("unset controls = %+v, %v, want the defaults", p, withHolidays)
	}

	s := Signals{Months: 6, Interval: 80, Weekly: &no, Monthly: &yes, Yearly: &yes, UseHolidays: &yes}
	p, withHolidays = s.ForecastParams(defaults)
	if p.Months != 6 || p.IntervalWidth != 0.8 {
		t.Errorf("months/width = %v/%v", p.Months, p.IntervalWidth)
	}
	if p.WeeklySeasonality || !p.MonthlySeasonality || !p.YearlySeasonality || !withHolidays {
		t.Errorf("flags = %+v, holidays %v", p, withHolidays)
	}
}
