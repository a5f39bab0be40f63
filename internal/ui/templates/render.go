// Package templates renders the dashboard shell and the HTML fragments
// patched in over SSE. The components live in dashboard.templ; run
// `templ generate` after editing it.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"liquor-dashboard/internal/models"
)

// Element ids patched by the SSE handlers.
const (
	KPIsID      = "kpis"
	BreakdownID = "breakdown"
	NoticeID    = "notice"
	ForecastID  = "forecast-summary"
)

// ShellSignals are the initial datastar signals of the page.
type ShellSignals struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Counties   []string `json:"counties"`
	Cities     []string `json:"cities"`
	Categories []string `json:"categories"`
	Vendors    []string `json:"vendors"`
	LiquorType string   `json:"liquorType"`
	Period     string   `json:"period"`
	GroupBy    string   `json:"groupBy"`
	Measure    string   `json:"measure"`
	Limit      int      `json:"limit"`
	Months     float64  `json:"months"`
	Interval   float64  `json:"interval"`
	Weekly     bool     `json:"weekly"`
	Monthly    bool     `json:"monthly"`
	Yearly     bool     `json:"yearly"`
	Holidays   bool     `json:"holidays"`
	Rings      any      `json:"rings"`
	RingKey    string   `json:"ringKey"`
	Forecast   any      `json:"forecast"`
}

// Render renders c to a string for SSE element patches.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func shellState(signals ShellSignals) (string, error) {
	state, err := json.Marshal(signals)
	if err != nil {
		return "", fmt.Errorf("encode signals: %w", err)
	}
	return string(state), nil
}

func liquorTypeChoices(opts models.Options) []string {
	return append([]string{"Both"}, opts.LiquorTypes...)
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func money(v float64) string {
	return "$" + fixed2(v)
}
