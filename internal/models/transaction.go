package models

import (
	"cloud.google.com/go/civil"
)

// Transaction is one sale line as it appears in the source CSV.
type Transaction struct {
	InvoiceID        string
	RawDate          string
	StoreName        string
	Address          string
	City             string
	County           string
	StoreLocation    string
	CategoryName     string
	VendorName       string
	ItemDescription  string
	LiquorType       string
	BottlesSold      int
	SaleDollars      float64
	VolumeSoldLiters float64
}

// Row is a Transaction with its calendar fields and coordinates derived.
// Rows are never mutated once the data context is built.
type Row struct {
	Transaction

	Date      civil.Date
	Weekday   string
	Day       int
	Month     int
	Year      int
	MonthYear string
	YearMonth string
	YearWeek  string
	WeekStart civil.Date

	Lat         float64
	Lon         float64
	HasLocation bool
}

// Dimension names a categorical column of Row.
type Dimension string

const (
	DimCounty     Dimension = "county"
	DimCity       Dimension = "city"
	DimCategory   Dimension = "category_name"
	DimVendor     Dimension = "vendor_name"
	DimLiquorType Dimension = "liquor_type"
	DimStore      Dimension = "store_name"
	DimWeekday    Dimension = "weekday"
	DimYearMonth  Dimension = "year_month"
	DimMonthYear  Dimension = "month_year"
	DimYearWeek   Dimension = "year_weeknumber"
	DimDate       Dimension = "date"
)

var dimensions = []Dimension{
	DimCounty, DimCity, DimCategory, DimVendor, DimLiquorType, DimStore,
	DimWeekday, DimYearMonth, DimMonthYear, DimYearWeek, DimDate,
}

// Dimensions lists every dimension a Row can be grouped or filtered by.
func Dimensions() []Dimension {
	out := make([]Dimension, len(dimensions))
	copy(out, dimensions)
	return out
}

// ParseDimension returns the dimension named s.
func ParseDimension(s string) (Dimension, bool) {
	for _, d := range dimensions {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Dimension returns the value of a categorical column.
func (r *Row) Dimension(d Dimension) string {
	switch d {
	case DimCounty:
		return r.County
	case DimCity:
		return r.City
	case DimCategory:
		return r.CategoryName
	case DimVendor:
		return r.VendorName
	case DimLiquorType:
		return r.LiquorType
	case DimStore:
		return r.StoreName
	case DimWeekday:
		return r.Weekday
	case DimYearMonth:
		return r.YearMonth
	case DimMonthYear:
		return r.MonthYear
	case DimYearWeek:
		return r.YearWeek
	case DimDate:
		return r.Date.String()
	default:
		return ""
	}
}

// Measure names a numeric column of Row.
type Measure string

const (
	MeasureSaleDollars Measure = "sale_dollars"
	MeasureBottlesSold Measure = "bottles_sold"
	MeasureVolume      Measure = "volume_sold_liters"
)

var measures = []Measure{MeasureSaleDollars, MeasureBottlesSold, MeasureVolume}

// Measures lists the numeric columns in the order the rings are drawn.
func Measures() []Measure {
	out := make([]Measure, len(measures))
	copy(out, measures)
	return out
}

// ParseMeasure returns the measure named s.
func ParseMeasure(s string) (Measure, bool) {
	for _, m := range measures {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// RingName is the prefix of the measure's histogram key in a ring document.
func (m Measure) RingName() string {
	switch m {
	case MeasureSaleDollars:
		return "income"
	case MeasureBottlesSold:
		return "sales"
	case MeasureVolume:
		return "volume"
	default:
		return string(m)
	}
}

// Label is the human readable name used in forecast and chart titles.
func (m Measure) Label() string {
	switch m {
	case MeasureSaleDollars:
		return "Sale (in dollars)"
	case MeasureBottlesSold:
		return "Bottles sold"
	case MeasureVolume:
		return "Volume sold (in litres)"
	default:
		return string(m)
	}
}

// Value returns the row's value for a measure.
func (r *Row) Value(m Measure) float64 {
	switch m {
	case MeasureSaleDollars:
		return r.SaleDollars
	case MeasureBottlesSold:
		return float64(r.BottlesSold)
	case MeasureVolume:
		return r.VolumeSoldLiters
	default:
		return 0
	}
}

// KPIs are the headline numbers of a filtered view.
type KPIs struct {
	Orders       int     `json:"orders"`
	SaleDollars  float64 `json:"sale_dollars"`
	BottlesSold  int     `json:"bottles_sold"`
	VolumeLiters float64 `json:"volume_sold_liters"`
}

// Group is one row of a group-and-sum result.
type Group struct {
	Keys  []string `json:"keys"`
	Value float64  `json:"value"`
	Count int      `json:"count"`
}

// Options are the distinct values offered by the dashboard filters.
type Options struct {
	Counties    []string   `json:"counties"`
	Cities      []string   `json:"cities"`
	Categories  []string   `json:"categories"`
	Vendors     []string   `json:"vendors"`
	LiquorTypes []string   `json:"liquor_types"`
	MinDate     civil.Date `json:"min_date"`
	MaxDate     civil.Date `json:"max_date"`
}
