// Package holidays loads the date -> holiday name calendar that drives the
// holiday ring.
package holidays

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"cloud.google.com/go/civil"

	"liquor-dashboard/internal/errors"
)

//go:embed us_2020_2021.csv
var defaultCalendar []byte

type Holiday struct {
	Date civil.Date `json:"date"`
	Name string     `json:"holiday"`
}

// Calendar maps a calendar day to its holiday name. Two entries for the same
// day are merged into one name joined by " / ".
type Calendar struct {
	byDate map[civil.Date]string
}

// Default returns the embedded US federal holiday calendar for 2020-2021.
func Default() *Calendar {
	cal, err := Parse(bytes.NewReader(defaultCalendar))
	if err != nil {
		panic(fmt.Sprintf("embedded holiday calendar: %v", err))
	}
	return cal
}

// Load reads a holiday calendar file. An empty path returns Default().
func Load(path string) (*Calendar, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holiday calendar: %w", err)
	}
	defer f.Close()

	cal, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cal, nil
}

// Parse reads "Date,holiday" rows with YYYY-MM-DD dates. Extra columns and
// column order are tolerated; the two named columns are required.
func Parse(r io.Reader) (*Calendar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read holiday header: %w", err)
	}

	dateCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "holiday":
			nameCol = i
		}
	}
	if dateCol < 0 || nameCol < 0 {
		return nil, errors.Parse("holiday calendar needs Date and holiday columns")
	}

	cal := &Calendar{byDate: make(map[civil.Date]string)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.ParseWrap(err, fmt.Sprintf("holiday calendar line %d", line))
		}
		if len(record) <= dateCol || len(record) <= nameCol {
			return nil, errors.Parse(fmt.Sprintf("holiday calendar line %d: missing columns", line))
		}

		d, err := civil.ParseDate(strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, errors.ParseWrap(err, fmt.Sprintf("holiday calendar line %d: invalid date %q", line, record[dateCol]))
		}
		cal.add(d, strings.TrimSpace(record[nameCol]))
	}
	return cal, nil
}

// New builds a calendar from explicit entries.
func New(entries ...Holiday) *Calendar {
	cal := &Calendar{byDate: make(map[civil.Date]string, len(entries))}
	for _, h := range entries {
		cal.add(h.Date, h.Name)
	}
	return cal
}

func (c *Calendar) add(d civil.Date, name string) {
	if existing, ok := c.byDate[d]; ok && existing != name {
		name = existing + " / " + name
	}
	c.byDate[d] = name
}

// Lookup returns the holiday on d, matching the calendar day exactly.
func (c *Calendar) Lookup(d civil.Date) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.byDate[d]
	return name, ok
}

func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byDate)
}

// Entries lists the calendar ascending by date.
func (c *Calendar) Entries() []Holiday {
	if c == nil {
		return nil
	}
	out := make([]Holiday, 0, len(c.byDate))
	for d, name := range c.byDate {
		out = append(out, Holiday{Date: d, Name: name})
	}
	slices.SortFunc(out, func(a, b Holiday) int {
		return a.Date.DaysSince(b.Date)
	})
	return out
}
