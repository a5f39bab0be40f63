package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/models"
)

func TestDashboard(t *testing.T) {
	opts := models.Options{
		Counties:    []string{"Polk", "<script>"},
		LiquorTypes: []string{"Spirits", "Wine"},
		MinDate:     civil.Date{Year: 2021, Month: time.January, Day: 1},
		MaxDate:     civil.Date{Year: 2021, Month: time.December, Day: 31},
	}

	html, err := Render(context.Background(), Dashboard(opts, ShellSignals{Period: "week"}))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`<!doctype html>`,
		`min="2021-01-01"`,
		`<option value="Polk">Polk</option>`,
		`value="Both"`,
		`value="Wine"`,
		`&#34;period&#34;:&#34;week&#34;`,
		`@get('/sse/refresh-all')`,
		`<option value="&lt;script&gt;">`,
		`data-bind="counties"`,
		`@get('/sse/forecast')`,
		`data-bind-yearly`,
		`<section id="forecast-summary"></section>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestKPICards(t *testing.T) {
	html, err := Render(context.Background(), KPICards(models.KPIs{Orders: 3, SaleDollars: 12.5, BottlesSold: 7, VolumeLiters: 1.25}))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`id="kpis"`, `<strong>3</strong>`, `$12.50`, `1.25 L`} {
		if !strings.Contains(html, want) {
			t.Errorf("kpi cards missing %q in %s", want, html)
		}
	}
}

func TestBreakdownTable(t *testing.T) {
	groups := []models.Group{{Keys: []string{"Polk", "A&B"}, Value: 10.5, Count: 2}}
	html, err := Render(context.Background(), BreakdownTable([]string{"county", "city"}, "Sale (in dollars)", groups))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<th>county</th>`, `<td>A&amp;B</td>`, `<td>10.50</td><td>2</td>`} {
		if !strings.Contains(html, want) {
			t.Errorf("table missing %q in %s", want, html)
		}
	}
}

func TestNotice(t *testing.T) {
	html, _ := Render(context.Background(), Notice(""))
	if html != `<div id="notice"></div>` {
		t.Errorf("empty notice = %s", html)
	}
	html, _ = Render(context.Background(), Notice("No data"))
	if !strings.Contains(html, `class="notice">No data<`) {
		t.Errorf("notice = %s", html)
	}
}

func TestShellSignals(t *testing.T) {
	html, err := Render(context.Background(), Dashboard(models.Options{}, ShellSignals{Yearly: true, Months: 3}))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`&#34;yearly&#34;:true`, `&#34;months&#34;:3`, `&#34;forecast&#34;:null`} {
		if !strings.Contains(html, want) {
			t.Errorf("signals missing %q", want)
		}
	}
}

func TestForecastSummary(t *testing.T) {
	html, err := Render(context.Background(), ForecastSummary("Bottles sold", nil))
	if err != nil {
		t.Fatal(err)
	}
	if html != `<section id="forecast-summary"></section>` {
		t.Errorf("empty summary = %s", html)
	}

	res := &forecast.Result{HorizonDays: 30, Slope: 1.5}
	html, err = Render(context.Background(), ForecastSummary("Bottles sold", res))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<h2>Bottles sold</h2>`, `<dd>30 days</dd>`, `<dd>1.50 per day</dd>`} {
		if !strings.Contains(html, want) {
			t.Errorf("summary missing %q in %s", want, html)
		}
	}
	if strings.Contains(html, "MAPE") {
		t.Errorf("summary without metrics shows scores: %s", html)
	}

	res.Metrics = &forecast.Metrics{HoldoutDays: 28, MAPE: 12.345, RMSE: 4}
	html, err = Render(context.Background(), ForecastSummary("Bottles sold", res))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<dt>MAPE</dt><dd>12.35</dd>`, `<dt>RMSE</dt><dd>4.00</dd>`} {
		if !strings.Contains(html, want) {
			t.Errorf("summary missing %q in %s", want, html)
		}
	}
}
