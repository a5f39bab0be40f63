package rings

import (
	"slices"
	"strconv"
	"strings"

	"liquor-dashboard/internal/holidays"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/normalize"
)

const (
	HolidayColor  = "red"
	CalendarColor = "#ffffff"
)

// Builder assembles ring documents. It is safe for concurrent use.
type Builder struct {
	normalizer *normalize.Normalizer
	holidays   *holidays.Calendar
}

func NewBuilder(n *normalize.Normalizer, cal *holidays.Calendar) *Builder {
	if n == nil {
		n = normalize.New()
	}
	return &Builder{normalizer: n, holidays: cal}
}

// Build computes every ring for rows. With no measures given, one heatmap is
// built per known measure. Rows are expected to be filtered already.
func (b *Builder) Build(rows []models.Row, scheme PeriodScheme, measures ...models.Measure) *Document {
	if len(measures) == 0 {
		measures = models.Measures()
	}
	key := KeyFuncFor(scheme, b.normalizer)

	doc := &Document{
		Text:       []TextRecord{},
		Histograms: make(map[string][]HeatmapRecord, len(measures)),
		Holidays:   []HolidayRecord{},
		Calendar:   []CalendarSegment{},
	}

	var days []DailyBucket
	var positions []Position
	for i, m := range measures {
		buckets := Bucketize(rows, key, m)
		if i == 0 {
			// The dense day sequence is the same for every measure.
			days = buckets
			positions = AssignPositions(buckets)
		}
		doc.Histograms[m.RingName()] = heatmap(buckets, positions)
	}

	doc.Text = textRing(days, positions)
	doc.Holidays = b.holidayRing(days, positions)
	doc.Calendar = calendarLayout(days, scheme)
	return doc
}

func heatmap(buckets []DailyBucket, positions []Position) []HeatmapRecord {
	out := make([]HeatmapRecord, len(buckets))
	for i, bucket := range buckets {
		out[i] = HeatmapRecord{
			BlockID: bucket.BlockID,
			Date:    bucket.Date,
			Start:   positions[i].Start,
			End:     positions[i].End,
			Value:   bucket.Value,
		}
	}
	return out
}

func textRing(days []DailyBucket, positions []Position) []TextRecord {
	out := make([]TextRecord, len(days))
	for i, day := range days {
		out[i] = TextRecord{
			BlockID:  day.BlockID,
			Position: positions[i].TextPosition,
			Value:    day.Date,
		}
	}
	return out
}

func (b *Builder) holidayRing(days []DailyBucket, positions []Position) []HolidayRecord {
	out := []HolidayRecord{}
	for i, day := range days {
		name, ok := b.holidays.Lookup(day.Date)
		if !ok {
			continue
		}
		out = append(out, HolidayRecord{
			BlockID: day.BlockID,
			Date:    day.Date,
			Holiday: name,
			Start:   positions[i].Start,
			End:     positions[i].End,
			Color:   HolidayColor,
		})
	}
	return out
}

func calendarLayout(days []DailyBucket, scheme PeriodScheme) []CalendarSegment {
	counts := make(map[string]int)
	for _, day := range days {
		counts[day.BlockID]++
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	if scheme == PeriodMonth {
		slices.Sort(ids)
	} else {
		slices.SortFunc(ids, compareWeekKeys)
	}

	out := make([]CalendarSegment, len(ids))
	for i, id := range ids {
		out[i] = CalendarSegment{ID: id, Label: id, Color: CalendarColor, Len: counts[id]}
	}
	return out
}

// compareWeekKeys orders "YYYY-Wn" keys by year, then by numeric week, so
// "2020-W9" sorts before "2020-W10". Keys that do not parse sort last,
// lexicographically.
func compareWeekKeys(a, b string) int {
	ay, aw, aok := splitWeekKey(a)
	by, bw, bok := splitWeekKey(b)
	switch {
	case aok && bok:
		if ay != by {
			return ay - by
		}
		if aw != bw {
			return aw - bw
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func splitWeekKey(key string) (year, week int, ok bool) {
	y, w, found := strings.Cut(key, "-W")
	if !found {
		return 0, 0, false
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, false
	}
	week, err = strconv.Atoi(w)
	if err != nil {
		return 0, 0, false
	}
	return year, week, true
}
