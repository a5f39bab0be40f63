// Package pipeline holds the filter and group-and-sum operations shared by
// every dashboard view.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"liquor-dashboard/internal/models"
)

// FilterByValues keeps rows whose dimension value is in selected.
// An empty selection returns rows unchanged.
func FilterByValues(rows []models.Row, dim models.Dimension, selected []string) []models.Row {
	if len(selected) == 0 {
		return rows
	}
	set := lo.SliceToMap(selected, func(s string) (string, struct{}) { return s, struct{}{} })
	return lo.Filter(rows, func(r models.Row, _ int) bool {
		_, ok := set[r.Dimension(dim)]
		return ok
	})
}

// FilterByDateRange keeps rows with start <= date <= end. A zero bound is open.
func FilterByDateRange(rows []models.Row, start, end civil.Date) []models.Row {
	if start.IsZero() && end.IsZero() {
		return rows
	}
	return lo.Filter(rows, func(r models.Row, _ int) bool {
		if !start.IsZero() && r.Date.Before(start) {
			return false
		}
		if !end.IsZero() && r.Date.After(end) {
			return false
		}
		return true
	})
}

// Filters is the set of active dashboard selections. Zero value selects all.
type Filters struct {
	Start       civil.Date `json:"start"`
	End         civil.Date `json:"end"`
	Counties    []string   `json:"counties,omitempty"`
	Cities      []string   `json:"cities,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Vendors     []string   `json:"vendors,omitempty"`
	LiquorTypes []string   `json:"liquor_types,omitempty"`
}

func (f Filters) dimensions() []struct {
	dim    models.Dimension
	values []string
} {
	return []struct {
		dim    models.Dimension
		values []string
	}{
		{models.DimCounty, f.Counties},
		{models.DimCity, f.Cities},
		{models.DimCategory, f.Categories},
		{models.DimVendor, f.Vendors},
		{models.DimLiquorType, f.LiquorTypes},
	}
}

// Apply narrows rows by the date range and then by every dimension selection.
func (f Filters) Apply(rows []models.Row) []models.Row {
	out := FilterByDateRange(rows, f.Start, f.End)
	for _, d := range f.dimensions() {
		out = FilterByValues(out, d.dim, d.values)
	}
	return out
}

// IsEmpty reports whether no selection is active.
func (f Filters) IsEmpty() bool {
	if !f.Start.IsZero() || !f.End.IsZero() {
		return false
	}
	for _, d := range f.dimensions() {
		if len(d.values) > 0 {
			return false
		}
	}
	return true
}

// Key is a stable fingerprint of the selection. Value order and duplicates
// within a dimension do not change it.
func (f Filters) Key() string {
	var b strings.Builder
	b.WriteString("start=")
	if !f.Start.IsZero() {
		b.WriteString(f.Start.String())
	}
	b.WriteString(";end=")
	if !f.End.IsZero() {
		b.WriteString(f.End.String())
	}
	for _, d := range f.dimensions() {
		values := lo.Uniq(d.values)
		slices.Sort(values)
		b.WriteString(";")
		b.WriteString(string(d.dim))
		b.WriteString("=")
		b.WriteString(strings.Join(values, "\x1f"))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:12])
}

// GroupAndSum sums measure per distinct combination of groupBy values.
// Groups are ordered by their key tuple; sums are rounded to 2 decimals.
func GroupAndSum(rows []models.Row, groupBy []models.Dimension, measure models.Measure) []models.Group {
	type acc struct {
		keys  []string
		sum   decimal.Decimal
		count int
	}

	groups := make(map[string]*acc)
	for i := range rows {
		keys := make([]string, len(groupBy))
		for j, dim := range groupBy {
			keys[j] = rows[i].Dimension(dim)
		}
		id := strings.Join(keys, "\x1f")

		g, ok := groups[id]
		if !ok {
			g = &acc{keys: keys}
			groups[id] = g
		}
		g.sum = g.sum.Add(decimal.NewFromFloat(rows[i].Value(measure)))
		g.count++
	}

	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.Group{
			Keys:  g.keys,
			Value: g.sum.Round(2).InexactFloat64(),
			Count: g.count,
		})
	}
	slices.SortFunc(out, func(a, b models.Group) int {
		return slices.Compare(a.Keys, b.Keys)
	})
	return out
}

// SortByValueDesc re-orders groups for ranking displays. Ties keep key order.
func SortByValueDesc(groups []models.Group) {
	slices.SortStableFunc(groups, func(a, b models.Group) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		default:
			return 0
		}
	})
}

// Top returns at most n groups. n <= 0 means all.
func Top(groups []models.Group, n int) []models.Group {
	if n <= 0 || len(groups) <= n {
		return groups
	}
	return groups[:n]
}

// Summarize computes the KPI cards of a filtered view.
func Summarize(rows []models.Row) models.KPIs {
	var dollars, liters decimal.Decimal
	bottles := 0
	for i := range rows {
		dollars = dollars.Add(decimal.NewFromFloat(rows[i].SaleDollars))
		liters = liters.Add(decimal.NewFromFloat(rows[i].VolumeSoldLiters))
		bottles += rows[i].BottlesSold
	}
	return models.KPIs{
		Orders:       len(rows),
		SaleDollars:  dollars.Round(2).InexactFloat64(),
		BottlesSold:  bottles,
		VolumeLiters: liters.Round(2).InexactFloat64(),
	}
}

// DistinctValues lists the values of dim in first-seen order.
func DistinctValues(rows []models.Row, dim models.Dimension) []string {
	return lo.Uniq(lo.Map(rows, func(r models.Row, _ int) string {
		return r.Dimension(dim)
	}))
}

// DailyPoint is one day of a per-day total series.
type DailyPoint struct {
	Date  civil.Date `json:"date"`
	Value float64    `json:"value"`
}

// DailySeries sums measure per date, ascending. Days with no rows are absent.
func DailySeries(rows []models.Row, measure models.Measure) []DailyPoint {
	sums := make(map[civil.Date]decimal.Decimal)
	for i := range rows {
		sums[rows[i].Date] = sums[rows[i].Date].Add(decimal.NewFromFloat(rows[i].Value(measure)))
	}

	out := make([]DailyPoint, 0, len(sums))
	for d, v := range sums {
		out = append(out, DailyPoint{Date: d, Value: v.Round(2).InexactFloat64()})
	}
	slices.SortFunc(out, func(a, b DailyPoint) int {
		return a.Date.DaysSince(b.Date)
	})
	return out
}
