package rings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
)

// Document keys. Each heatmap is stored under "{ring name}_histogram".
const (
	KeyText         = "text"
	KeyHolidays     = "holidays"
	KeyCalendar     = "calendar"
	HistogramSuffix = "_histogram"
)

type TextRecord struct {
	BlockID  string     `json:"block_id"`
	Position float64    `json:"position"`
	Value    civil.Date `json:"value"`
}

type HeatmapRecord struct {
	BlockID string     `json:"block_id"`
	Date    civil.Date `json:"date"`
	Start   int        `json:"start"`
	End     int        `json:"end"`
	Value   float64    `json:"value"`
}

type HolidayRecord struct {
	BlockID string     `json:"block_id"`
	Date    civil.Date `json:"date"`
	Holiday string     `json:"holiday"`
	Start   int        `json:"start"`
	End     int        `json:"end"`
	Color   string     `json:"color"`
}

// CalendarSegment is one block of the ring's base layout.
type CalendarSegment struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Len   int    `json:"len"`
}

// Document is the full set of rings handed to the visualization.
// Histograms is keyed by measure ring name ("income", "sales", "volume").
type Document struct {
	Text       []TextRecord
	Histograms map[string][]HeatmapRecord
	Holidays   []HolidayRecord
	Calendar   []CalendarSegment
}

// Histogram returns the heatmap ring stored under name.
func (d *Document) Histogram(name string) []HeatmapRecord {
	return d.Histograms[name]
}

// IsEmpty reports whether the document covers no days.
func (d *Document) IsEmpty() bool {
	return len(d.Text) == 0
}

// Days returns the calendar days covered by the text ring, in order.
func (d *Document) Days() []civil.Date {
	out := make([]civil.Date, len(d.Text))
	for i, t := range d.Text {
		out[i] = t.Value
	}
	return out
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Histograms)+3)
	out[KeyText] = orEmpty(d.Text)
	out[KeyHolidays] = orEmpty(d.Holidays)
	out[KeyCalendar] = orEmpty(d.Calendar)
	for name, records := range d.Histograms {
		out[name+HistogramSuffix] = orEmpty(records)
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Document{
		Text:       []TextRecord{},
		Histograms: make(map[string][]HeatmapRecord),
		Holidays:   []HolidayRecord{},
		Calendar:   []CalendarSegment{},
	}

	for key, msg := range raw {
		var err error
		switch key {
		case KeyText:
			err = decodeArray(msg, &d.Text)
		case KeyHolidays:
			err = decodeArray(msg, &d.Holidays)
		case KeyCalendar:
			err = decodeArray(msg, &d.Calendar)
		default:
			name, ok := strings.CutSuffix(key, HistogramSuffix)
			if !ok {
				continue
			}
			records := []HeatmapRecord{}
			err = decodeArray(msg, &records)
			d.Histograms[name] = records
		}
		if err != nil {
			return fmt.Errorf("decode %q ring: %w", key, err)
		}
	}
	return nil
}

// decodeArray leaves dst untouched for a JSON null.
func decodeArray[T any](msg json.RawMessage, dst *[]T) error {
	if string(msg) == "null" {
		return nil
	}
	return json.Unmarshal(msg, dst)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Marshal encodes doc in one structured call.
func Marshal(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// MarshalIndent is Marshal for documents written to disk for inspection.
func MarshalIndent(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "    ")
}

// numericKeys are the record fields typed as numbers. Only these are read
// back from strings; labels and holiday names stay as written.
var numericKeys = map[string]bool{
	"position": true,
	"start":    true,
	"end":      true,
	"value":    true,
	"len":      true,
}

// Unmarshal decodes a ring document, first turning numeric-looking strings
// under the numeric record fields back into numbers. Producers that
// stringified all values ("start": "0", "len": "7") decode to the same
// document as typed ones.
func Unmarshal(data []byte) (*Document, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decode ring document: %w", err)
	}

	coerced, err := json.Marshal(CoerceNumbers(generic))
	if err != nil {
		return nil, fmt.Errorf("re-encode ring document: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(coerced, doc); err != nil {
		return nil, fmt.Errorf("decode ring document: %w", err)
	}
	return doc, nil
}

// CoerceNumbers walks a decoded JSON value and, inside every object, replaces
// a string under one of the numeric keys with the finite float it parses as.
// Anything else passes through unchanged.
func CoerceNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if str, ok := item.(string); ok && numericKeys[k] {
				out[k] = parseNumber(str)
				continue
			}
			out[k] = CoerceNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CoerceNumbers(item)
		}
		return out
	default:
		return v
	}
}

// parseNumber leaves s as is unless it holds a finite number.
func parseNumber(s string) any {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}
