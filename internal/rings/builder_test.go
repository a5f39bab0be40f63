package rings

import (
	"maps"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"liquor-dashboard/internal/holidays"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/normalize"
)

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func saleRow(t *testing.T, n *normalize.Normalizer, d civil.Date, dollars float64, bottles int) models.Row {
	t.Helper()
	row, err := n.Row(models.Transaction{
		RawDate:     d.In(time.UTC).Format(normalize.SourceDateLayout),
		County:      "polk",
		SaleDollars: dollars,
		BottlesSold: bottles,
	})
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	return row
}

func TestBucketize_FillsGaps(t *testing.T) {
	n := normalize.New()
	rows := []models.Row{
		saleRow(t, n, day(2021, time.January, 8), 3.333, 1),
		saleRow(t, n, day(2021, time.January, 4), 1.10, 1),
		saleRow(t, n, day(2021, time.January, 4), 2.20, 1),
	}

	buckets := Bucketize(rows, n.WeekKey, models.MeasureSaleDollars)
	if len(buckets) != 5 {
		t.Fatalf("got %d buckets, want 5", len(buckets))
	}
	if buckets[0].Date != day(2021, time.January, 4) {
		t.Errorf("first bucket date = %v", buckets[0].Date)
	}

	wantValues := []float64{3.3, 0, 0, 0, 3.33}
	for i, b := range buckets {
		if b.Value != wantValues[i] {
			t.Errorf("bucket %d value = %v, want %v", i, b.Value, wantValues[i])
		}
		if b.BlockID != "2021-W1" {
			t.Errorf("bucket %d block = %q, want 2021-W1", i, b.BlockID)
		}
	}
}

func TestBucketize_Empty(t *testing.T) {
	buckets := Bucketize(nil, normalize.MonthKey, models.MeasureBottlesSold)
	if buckets == nil || len(buckets) != 0 {
		t.Errorf("Bucketize(nil) = %#v, want an empty slice", buckets)
	}
}

func TestBucketize_FilledDaysGetWeek53Override(t *testing.T) {
	n := normalize.New()
	rows := []models.Row{
		saleRow(t, n, day(2020, time.December, 28), 1, 1),
		saleRow(t, n, day(2021, time.January, 4), 1, 1),
	}

	buckets := Bucketize(rows, n.WeekKey, models.MeasureBottlesSold)
	if len(buckets) != 8 {
		t.Fatalf("got %d buckets, want 8", len(buckets))
	}
	for _, b := range buckets[:7] {
		if b.BlockID != "2020-W53" {
			t.Errorf("%v block = %q, want 2020-W53", b.Date, b.BlockID)
		}
	}
	if buckets[7].BlockID != "2021-W1" {
		t.Errorf("last block = %q, want 2021-W1", buckets[7].BlockID)
	}
}

func TestAssignPositions(t *testing.T) {
	buckets := []DailyBucket{
		{BlockID: "A"}, {BlockID: "A"}, {BlockID: "A"},
		{BlockID: "B"},
		{BlockID: "C"}, {BlockID: "C"},
	}
	want := []Position{
		{0, 1, 0.5}, {1, 2, 1.5}, {2, 3, 2.5},
		{0, 1, 0.5},
		{0, 1, 0.5}, {1, 2, 1.5},
	}
	if got := AssignPositions(buckets); !slices.Equal(got, want) {
		t.Errorf("AssignPositions() = %v, want %v", got, want)
	}
	if got := AssignPositions(nil); len(got) != 0 {
		t.Errorf("AssignPositions(nil) = %v", got)
	}
}

func TestBuild_TwoWeeks(t *testing.T) {
	n := normalize.New()
	cal := holidays.New(holidays.Holiday{Date: day(2021, time.January, 6), Name: "Test Day"})
	b := NewBuilder(n, cal)

	blockA := []float64{10, 0, 0, 5, 0, 0, 20}
	blockB := []float64{1, 2, 3, 4, 5, 6, 7}
	var rows []models.Row
	start := day(2021, time.January, 4)
	for i, v := range append(append([]float64{}, blockA...), blockB...) {
		if v == 0 {
			continue
		}
		rows = append(rows, saleRow(t, n, start.AddDays(i), v, int(v)))
	}

	doc := b.Build(rows, PeriodWeek, models.MeasureSaleDollars, models.MeasureBottlesSold)

	wantCalendar := []CalendarSegment{
		{ID: "2021-W1", Label: "2021-W1", Color: "#ffffff", Len: 7},
		{ID: "2021-W2", Label: "2021-W2", Color: "#ffffff", Len: 7},
	}
	if !slices.Equal(doc.Calendar, wantCalendar) {
		t.Errorf("calendar = %+v", doc.Calendar)
	}

	income := doc.Histogram("income")
	if len(income) != 14 {
		t.Fatalf("income ring has %d records, want 14", len(income))
	}
	for i := 0; i < 7; i++ {
		want := HeatmapRecord{BlockID: "2021-W1", Date: start.AddDays(i), Start: i, End: i + 1, Value: blockA[i]}
		if income[i] != want {
			t.Errorf("income[%d] = %+v, want %+v", i, income[i], want)
		}
	}
	for i := 0; i < 7; i++ {
		rec := income[7+i]
		if rec.BlockID != "2021-W2" || rec.Start != i || rec.Value != blockB[i] {
			t.Errorf("income[%d] = %+v", 7+i, rec)
		}
	}
	if got := len(doc.Histogram("sales")); got != 14 {
		t.Errorf("sales ring has %d records, want 14", got)
	}
	if doc.Histogram("volume") != nil {
		t.Error("volume ring should not be built when not requested")
	}

	if len(doc.Text) != 14 {
		t.Fatalf("text ring has %d records, want 14", len(doc.Text))
	}
	for i := 0; i < 7; i++ {
		if doc.Text[i].Position != float64(i)+0.5 || doc.Text[7+i].Position != float64(i)+0.5 {
			t.Errorf("text positions at %d = %v/%v", i, doc.Text[i].Position, doc.Text[7+i].Position)
		}
	}
	if doc.Text[7].Value != day(2021, time.January, 11) {
		t.Errorf("second block starts at %v", doc.Text[7].Value)
	}

	wantHoliday := HolidayRecord{
		BlockID: "2021-W1",
		Date:    day(2021, time.January, 6),
		Holiday: "Test Day",
		Start:   2,
		End:     3,
		Color:   "red",
	}
	if len(doc.Holidays) != 1 || doc.Holidays[0] != wantHoliday {
		t.Errorf("holidays = %+v, want [%+v]", doc.Holidays, wantHoliday)
	}
}

func TestBuild_YearBoundaryBlock(t *testing.T) {
	n := normalize.New()
	b := NewBuilder(n, holidays.Default())

	rows := []models.Row{
		saleRow(t, n, day(2020, time.December, 27), 1, 1),
		saleRow(t, n, day(2020, time.December, 28), 1, 1),
		saleRow(t, n, day(2021, time.January, 3), 1, 1),
		saleRow(t, n, day(2021, time.January, 4), 1, 1),
	}
	doc := b.Build(rows, PeriodWeek)

	wantIDs := []string{"2020-W52", "2020-W53", "2021-W1"}
	wantLens := []int{1, 7, 1}
	if len(doc.Calendar) != len(wantIDs) {
		t.Fatalf("calendar = %+v", doc.Calendar)
	}
	for i, seg := range doc.Calendar {
		if seg.ID != wantIDs[i] || seg.Len != wantLens[i] {
			t.Errorf("calendar[%d] = %+v, want %s of %d days", i, seg, wantIDs[i], wantLens[i])
		}
	}

	sales := doc.Histogram("sales")
	if len(sales) != 9 {
		t.Fatalf("sales ring has %d records, want 9", len(sales))
	}
	for i := 1; i <= 7; i++ {
		if sales[i].BlockID != "2020-W53" || sales[i].Start != i-1 {
			t.Errorf("sales[%d] = %+v", i, sales[i])
		}
	}
	if sales[8].Start != 0 {
		t.Errorf("week 1 should restart at 0, got %d", sales[8].Start)
	}

	// Christmas is outside the range; New Year's Day 2021 is inside.
	if len(doc.Holidays) != 1 {
		t.Fatalf("holidays = %+v", doc.Holidays)
	}
	h := doc.Holidays[0]
	if h.Holiday != "New Year's Day" || h.BlockID != "2020-W53" || h.Start != 4 {
		t.Errorf("holiday = %+v", h)
	}

	if len(doc.Histograms) != 3 {
		t.Errorf("got %d heatmap rings, want all 3", len(doc.Histograms))
	}
}

func TestBuild_WeekOrderingIsNumeric(t *testing.T) {
	n := normalize.New()
	rows := []models.Row{
		saleRow(t, n, day(2021, time.March, 1), 1, 1),
		saleRow(t, n, day(2021, time.March, 14), 1, 1),
	}
	doc := NewBuilder(n, nil).Build(rows, PeriodWeek, models.MeasureBottlesSold)

	if len(doc.Calendar) != 2 || doc.Calendar[0].ID != "2021-W9" || doc.Calendar[1].ID != "2021-W10" {
		t.Errorf("calendar = %+v, want W9 before W10", doc.Calendar)
	}
	if len(doc.Holidays) != 0 {
		t.Errorf("holidays = %+v, want none without a calendar", doc.Holidays)
	}
}

func TestBuild_MonthScheme(t *testing.T) {
	n := normalize.New()
	rows := []models.Row{
		saleRow(t, n, day(2021, time.January, 30), 1, 1),
		saleRow(t, n, day(2021, time.February, 2), 1, 1),
	}
	doc := NewBuilder(n, nil).Build(rows, PeriodMonth, models.MeasureBottlesSold)

	wantCalendar := []CalendarSegment{
		{ID: "2021-1", Label: "2021-1", Color: "#ffffff", Len: 2},
		{ID: "2021-2", Label: "2021-2", Color: "#ffffff", Len: 2},
	}
	if !slices.Equal(doc.Calendar, wantCalendar) {
		t.Errorf("calendar = %+v", doc.Calendar)
	}

	sales := doc.Histogram("sales")
	var starts []int
	for _, rec := range sales {
		starts = append(starts, rec.Start)
	}
	if !slices.Equal(starts, []int{0, 1, 0, 1}) {
		t.Errorf("starts = %v", starts)
	}
}

func TestBuild_Empty(t *testing.T) {
	doc := NewBuilder(nil, holidays.Default()).Build(nil, PeriodWeek)

	if !doc.IsEmpty() {
		t.Error("expected an empty document")
	}
	if doc.Text == nil || doc.Holidays == nil || doc.Calendar == nil {
		t.Error("empty rings should be non-nil slices")
	}
	if len(doc.Calendar) != 0 {
		t.Errorf("calendar = %+v", doc.Calendar)
	}
	if len(doc.Histograms) != 3 {
		t.Errorf("got %d heatmap rings, want 3", len(doc.Histograms))
	}
	if len(doc.Histogram("income")) != 0 {
		t.Errorf("income = %+v", doc.Histogram("income"))
	}
}

func TestBuild_Properties(t *testing.T) {
	n := normalize.New()
	b := NewBuilder(n, holidays.Default())
	rng := rand.New(rand.NewPCG(7, 11))
	rangeStart := day(2020, time.January, 1)

	for iter := 0; iter < 25; iter++ {
		first := rangeStart.AddDays(rng.IntN(500))
		span := 1 + rng.IntN(200)
		last := first.AddDays(span - 1)

		rows := []models.Row{saleRow(t, n, first, 1, 1), saleRow(t, n, last, 1, 1)}
		for i := 0; i < span/3; i++ {
			rows = append(rows, saleRow(t, n, first.AddDays(rng.IntN(span)), float64(rng.IntN(100)), 1))
		}

		for _, scheme := range []PeriodScheme{PeriodWeek, PeriodMonth} {
			doc := b.Build(rows, scheme, models.MeasureSaleDollars)
			income := doc.Histogram("income")

			// One record per calendar day, no gaps or duplicates.
			if len(income) != last.DaysSince(first)+1 {
				t.Fatalf("%s %v..%v: %d records", scheme, first, last, len(income))
			}
			for i, rec := range income {
				if rec.Date != first.AddDays(i) {
					t.Fatalf("%s: record %d is %v, want %v", scheme, i, rec.Date, first.AddDays(i))
				}
			}

			// Positions within each block are exactly 0..len-1 in date order.
			lengths := make(map[string]int)
			total := 0
			for _, seg := range doc.Calendar {
				lengths[seg.ID] = seg.Len
				total += seg.Len
			}
			seen := make(map[string]int)
			for _, rec := range income {
				if rec.Start != seen[rec.BlockID] || rec.End != rec.Start+1 {
					t.Errorf("%s: %v at %d..%d, want start %d", scheme, rec.Date, rec.Start, rec.End, seen[rec.BlockID])
				}
				seen[rec.BlockID]++
			}
			if !maps.Equal(lengths, seen) {
				t.Errorf("%s: block lengths %v, positions %v", scheme, lengths, seen)
			}
			if total != len(income) {
				t.Errorf("%s: calendar covers %d days, ring has %d", scheme, total, len(income))
			}

			// Holidays are a subset of the covered days.
			if len(doc.Holidays) > len(income) {
				t.Errorf("%s: %d holidays for %d days", scheme, len(doc.Holidays), len(income))
			}
			for _, h := range doc.Holidays {
				if name, ok := holidays.Default().Lookup(h.Date); !ok || name != h.Holiday {
					t.Errorf("%s: holiday %+v not in the calendar", scheme, h)
				}
			}
		}
	}
}

func TestParsePeriodScheme(t *testing.T) {
	for in, want := range map[string]PeriodScheme{
		"week":            PeriodWeek,
		"year_weeknumber": PeriodWeek,
		"month":           PeriodMonth,
		"year_month":      PeriodMonth,
	} {
		if got, ok := ParsePeriodScheme(in); !ok || got != want {
			t.Errorf("ParsePeriodScheme(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParsePeriodScheme("quarter"); ok {
		t.Error("quarter should not parse")
	}
	if PeriodMonth.Column() != models.DimYearMonth {
		t.Errorf("month column = %q", PeriodMonth.Column())
	}
}

func TestCompareWeekKeys(t *testing.T) {
	tests := []struct {
		a, b string
		sign int
	}{
		{"2020-W9", "2020-W10", -1},
		{"2020-W53", "2021-W1", -1},
		{"2021-W1", "2020-W52", 1},
		{"2021-W5", "2021-W5", 0},
		{"2021-W5", "garbage", -1},
	}
	for _, tt := range tests {
		got := compareWeekKeys(tt.a, tt.b)
		if sign(got) != tt.sign {
			t.Errorf("compareWeekKeys(%q, %q) = %d, want sign %d", tt.a, tt.b, got, tt.sign)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
