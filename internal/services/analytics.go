// Package services holds the process-wide data context: the normalized rows
// loaded once at startup and the per-request views computed from them.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/forecast"
	"liquor-dashboard/internal/holidays"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/normalize"
	"liquor-dashboard/internal/observability"
	"liquor-dashboard/internal/pipeline"
	"liquor-dashboard/internal/rings"
)

type Config struct {
	Logger     *slog.Logger
	Normalizer *normalize.Normalizer
	Holidays   *holidays.Calendar
	// Store receives every built ring document. Nil disables publishing.
	Store rings.Store
	// CacheDir holds the normalized-row cache. Empty disables it.
	CacheDir string
}

// Analytics owns the normalized rows. Rows are replaced wholesale on load
// and never mutated, so readers share the slice without copying.
type Analytics struct {
	mu        sync.RWMutex
	rows      []models.Row
	source    string
	loadedAt  time.Time
	fromCache bool

	normalizer *normalize.Normalizer
	holidays   *holidays.Calendar
	builder    *rings.Builder
	store      rings.Store
	cacheDir   string
	logger     *slog.Logger

	ringsBuilt     atomic.Int64
	ringsPublished atomic.Int64
}

func NewAnalytics(cfg Config) *Analytics {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.New()
	}
	if cfg.Holidays == nil {
		cfg.Holidays = holidays.Default()
	}
	return &Analytics{
		rows:       []models.Row{},
		normalizer: cfg.Normalizer,
		holidays:   cfg.Holidays,
		builder:    rings.NewBuilder(cfg.Normalizer, cfg.Holidays),
		store:      cfg.Store,
		cacheDir:   cfg.CacheDir,
		logger:     cfg.Logger,
	}
}

// SetRows replaces the data set. rows is sorted by date in place.
func (a *Analytics) SetRows(rows []models.Row) {
	normalize.SortByDate(rows)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = rows
	a.source = "memory"
	a.loadedAt = time.Now()
	a.fromCache = false
}

// SetTransactions normalizes txs and replaces the data set.
func (a *Analytics) SetTransactions(txs []models.Transaction) error {
	rows, err := a.normalizer.Normalize(txs)
	if err != nil {
		return err
	}
	a.SetRows(rows)
	return nil
}

// LoadFromCSV loads and normalizes filename, or reuses the row cache when it
// was built from the file's current contents.
func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	if a.cacheDir != "" {
		if rows, err := loadCache(a.cacheDir, filename, info); err == nil {
			a.replace(rows, filename, true)
			a.logger.Info("loaded rows from cache", "records", len(rows), "source", filename)
			return nil
		} else if !os.IsNotExist(err) {
			a.logger.Debug("row cache unusable", "error", err)
		}
	}

	start := time.Now()
	a.logger.Info("processing CSV file", "filename", filename)

	rows, err := readCSV(ctx, filename, a.normalizer)
	if err != nil {
		return fmt.Errorf("process csv: %w", err)
	}
	a.replace(rows, filename, false)

	if a.cacheDir != "" {
		if err := saveCache(a.cacheDir, filename, info, rows); err != nil {
			a.logger.Warn("failed to save row cache", "error", err)
		}
	}

	duration := time.Since(start)
	a.logger.Info("csv processing complete",
		"records", len(rows),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(rows))/duration.Seconds()))

	return nil
}

func (a *Analytics) replace(rows []models.Row, source string, fromCache bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = rows
	a.source = source
	a.loadedAt = time.Now()
	a.fromCache = fromCache
}

func (a *Analytics) snapshot() []models.Row {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rows
}

// filtered applies f and reports an EmptyResult error when nothing matches.
func (a *Analytics) filtered(f pipeline.Filters) ([]models.Row, error) {
	rows := f.Apply(a.snapshot())
	if len(rows) == 0 {
		return nil, errors.EmptyResult("no sales match the selected filters")
	}
	return rows, nil
}

// Options lists the filter choices over the whole data set.
func (a *Analytics) Options() models.Options {
	rows := a.snapshot()

	distinct := func(d models.Dimension) []string {
		values := pipeline.DistinctValues(rows, d)
		slices.Sort(values)
		return values
	}

	opts := models.Options{
		Counties:    distinct(models.DimCounty),
		Cities:      distinct(models.DimCity),
		Categories:  distinct(models.DimCategory),
		Vendors:     distinct(models.DimVendor),
		LiquorTypes: distinct(models.DimLiquorType),
	}
	if len(rows) > 0 {
		opts.MinDate = rows[0].Date
		opts.MaxDate = rows[len(rows)-1].Date
	}
	return opts
}

func (a *Analytics) KPIs(f pipeline.Filters) (models.KPIs, error) {
	rows, err := a.filtered(f)
	if err != nil {
		return models.KPIs{}, err
	}
	return pipeline.Summarize(rows), nil
}

// Breakdown groups the filtered rows and returns the largest limit groups,
// biggest first. limit <= 0 returns every group.
func (a *Analytics) Breakdown(f pipeline.Filters, groupBy []models.Dimension, measure models.Measure, limit int) ([]models.Group, error) {
	if len(groupBy) == 0 {
		return nil, errors.Validation("at least one group-by column is required")
	}
	rows, err := a.filtered(f)
	if err != nil {
		return nil, err
	}
	groups := pipeline.GroupAndSum(rows, groupBy, measure)
	pipeline.SortByValueDesc(groups)
	return pipeline.Top(groups, limit), nil
}

// RingResult is a built ring document and the key it was published under.
type RingResult struct {
	Key       string          `json:"key"`
	Period    string          `json:"period"`
	Published bool            `json:"published"`
	Document  *rings.Document `json:"document"`
}

// RingDocument builds the rings for f. The returned document is the one to
// render; publishing to the hand-off store happens after it is complete and
// a store failure fails the request.
func (a *Analytics) RingDocument(ctx context.Context, f pipeline.Filters, scheme rings.PeriodScheme) (*RingResult, error) {
	ctx, span := observability.StartSpan(ctx, "rings.build")
	defer span.End(a.logger)
	span.SetTag("period", string(scheme))

	rows, err := a.filtered(f)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	doc := a.builder.Build(rows, scheme)
	a.ringsBuilt.Add(1)
	span.SetTag("days", fmt.Sprint(len(doc.Text)))

	res := &RingResult{Key: RingKey(f, scheme), Period: string(scheme), Document: doc}
	if a.store == nil {
		return res, nil
	}
	if err := a.store.Put(ctx, res.Key, doc); err != nil {
		span.SetError(err)
		return nil, err
	}
	a.ringsPublished.Add(1)
	res.Published = true
	return res, nil
}

// RingKey names the published document for f built with scheme.
func RingKey(f pipeline.Filters, scheme rings.PeriodScheme) string {
	return string(scheme) + "-" + f.Key()
}

// PublishedRingDocument reads back a document published by RingDocument.
func (a *Analytics) PublishedRingDocument(ctx context.Context, key string) (*rings.Document, error) {
	if a.store == nil {
		return nil, errors.ServiceUnavailable("ring document hand-off is disabled")
	}
	return a.store.Get(ctx, key)
}

// Forecast projects the daily totals of measure over the filtered rows.
func (a *Analytics) Forecast(f pipeline.Filters, measure models.Measure, params forecast.Params, withHolidays bool) (*forecast.Result, error) {
	rows, err := a.filtered(f)
	if err != nil {
		return nil, err
	}

	series := pipeline.DailySeries(rows, measure)
	history := make([]forecast.Point, len(series))
	for i, p := range series {
		history[i] = forecast.Point{Date: p.Date, Value: p.Value}
	}
	if withHolidays {
		params.Holidays = a.holidays
	}
	return forecast.Run(history, params)
}

// StorePoint is one store's total with its map coordinates.
type StorePoint struct {
	Store       string  `json:"store_name"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	SaleDollars float64 `json:"sale_dollars"`
	Orders      int     `json:"orders"`
}

// StoreLocations sums sales per located store, largest first. Rows without
// coordinates are left out.
func (a *Analytics) StoreLocations(f pipeline.Filters, limit int) ([]StorePoint, error) {
	rows, err := a.filtered(f)
	if err != nil {
		return nil, err
	}

	located := make([]models.Row, 0, len(rows))
	coords := make(map[string][2]float64)
	for _, r := range rows {
		if !r.HasLocation {
			continue
		}
		located = append(located, r)
		if _, ok := coords[r.StoreName]; !ok {
			coords[r.StoreName] = [2]float64{r.Lat, r.Lon}
		}
	}

	groups := pipeline.GroupAndSum(located, []models.Dimension{models.DimStore, models.DimCity}, models.MeasureSaleDollars)
	pipeline.SortByValueDesc(groups)
	groups = pipeline.Top(groups, limit)

	out := make([]StorePoint, len(groups))
	for i, g := range groups {
		c := coords[g.Keys[0]]
		out[i] = StorePoint{
			Store:       g.Keys[0],
			City:        g.Keys[1],
			Lat:         c[0],
			Lon:         c[1],
			SaleDollars: g.Value,
			Orders:      g.Count,
		}
	}
	return out, nil
}

// Stats is the admin summary of the loaded data set.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	rows, source, loadedAt, fromCache := a.rows, a.source, a.loadedAt, a.fromCache
	a.mu.RUnlock()

	stats := map[string]any{
		"record_count":    len(rows),
		"source":          source,
		"loaded_at":       loadedAt,
		"from_cache":      fromCache,
		"holidays":        a.holidays.Len(),
		"rings_built":     a.ringsBuilt.Load(),
		"rings_published": a.ringsPublished.Load(),
	}
	if len(rows) > 0 {
		stats["first_date"] = rows[0].Date
		stats["last_date"] = rows[len(rows)-1].Date
		stats["counties"] = len(pipeline.DistinctValues(rows, models.DimCounty))
		stats["weeks"] = len(pipeline.DistinctValues(rows, models.DimYearWeek))
	}
	return stats
}

