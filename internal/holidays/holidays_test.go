package holidays

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"liquor-dashboard/internal/errors"
)

func TestDefault(t *testing.T) {
	cal := Default()
	if cal.Len() != 26 {
		t.Fatalf("Len() = %d, want 26", cal.Len())
	}

	name, ok := cal.Lookup(civil.Date{Year: 2020, Month: time.December, Day: 25})
	if !ok || name != "Christmas Day" {
		t.Errorf("Lookup(Christmas) = %q, %v", name, ok)
	}

	if _, ok := cal.Lookup(civil.Date{Year: 2020, Month: time.December, Day: 26}); ok {
		t.Error("Dec 26 should not be a holiday")
	}

	entries := cal.Entries()
	if entries[0].Date != (civil.Date{Year: 2020, Month: time.January, Day: 1}) {
		t.Errorf("first entry = %v", entries[0].Date)
	}
	if last := entries[len(entries)-1].Date; last != (civil.Date{Year: 2021, Month: time.December, Day: 31}) {
		t.Errorf("last entry = %v", last)
	}
}

func TestParse_ColumnOrderAndDuplicates(t *testing.T) {
	cal, err := Parse(strings.NewReader("holiday,Date,source\nA,2021-03-01,x\nB,2021-03-01,y\nC,2021-03-02,z\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cal.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cal.Len())
	}

	name, ok := cal.Lookup(civil.Date{Year: 2021, Month: time.March, Day: 1})
	if !ok || name != "A / B" {
		t.Errorf("Lookup() = %q, %v, want joined names", name, ok)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"missing column": "Date,name\n2021-01-01,X\n",
		"bad date":       "Date,holiday\n01/01/2021,X\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(input)); !errors.Is(err, errors.CodeParse) {
				t.Errorf("Parse() error = %v, want a parse error", err)
			}
		})
	}

	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("Parse(empty) succeeded, want error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holidays.csv")
	if err := os.WriteFile(path, []byte("Date,holiday\n2021-07-04,Independence Day\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cal, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cal.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cal.Len())
	}

	cal, err = Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cal.Len() != Default().Len() {
		t.Errorf("empty path should load the default calendar, got %d entries", cal.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Load(missing) succeeded, want error")
	}
}

func TestNilCalendar(t *testing.T) {
	var cal *Calendar
	if _, ok := cal.Lookup(civil.Date{Year: 2021, Month: time.January, Day: 1}); ok {
		t.Error("nil calendar should have no holidays")
	}
	if cal.Len() != 0 {
		t.Errorf("Len() = %d", cal.Len())
	}
	if cal.Entries() != nil {
		t.Errorf("Entries() = %v, want nil", cal.Entries())
	}
}
