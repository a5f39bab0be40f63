package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/gob"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"liquor-dashboard/internal/errors"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/normalize"
)

const (
	batchSize    = 10000
	maxWorkers   = 10
	cacheVersion = "v2"
)

// Source CSV columns.
const (
	colDate        = "date"
	colSaleDollars = "sale_dollars"
	colBottles     = "bottles_sold"
	colVolume      = "volume_sold_liters"
	colCounty      = "county"
	colCity        = "city"
	colCategory    = "category_name"
	colVendor      = "vendor_name"
	colLiquorType  = "liquor_type"
	colLocation    = "store_location"
	colStore       = "store_name"
	colAddress     = "address"
	colInvoice     = "invoice_and_item_number"
	colItem        = "im_desc"
)

var requiredColumns = []string{
	colDate, colSaleDollars, colBottles, colCounty, colCity,
	colCategory, colVendor, colLiquorType, colLocation,
}

// columnIndex maps a column name to its position in the header.
type columnIndex map[string]int

func mapColumns(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Parse(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	return idx, nil
}

func (c columnIndex) get(record []string, col string) string {
	i, ok := c[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

type rawRecord struct {
	line   int
	fields []string
}

// parseRecord converts one CSV record into a Transaction. Empty numeric
// fields read as zero; anything else that does not parse is a ParseError.
func parseRecord(cols columnIndex, record []string) (models.Transaction, error) {
	tx := models.Transaction{
		InvoiceID:       cols.get(record, colInvoice),
		RawDate:         cols.get(record, colDate),
		StoreName:       cols.get(record, colStore),
		Address:         cols.get(record, colAddress),
		City:            cols.get(record, colCity),
		County:          cols.get(record, colCounty),
		StoreLocation:   cols.get(record, colLocation),
		CategoryName:    cols.get(record, colCategory),
		VendorName:      cols.get(record, colVendor),
		ItemDescription: cols.get(record, colItem),
		LiquorType:      cols.get(record, colLiquorType),
	}

	var err error
	if tx.SaleDollars, err = parseFloat(cols.get(record, colSaleDollars), colSaleDollars); err != nil {
		return tx, err
	}
	if tx.VolumeSoldLiters, err = parseFloat(cols.get(record, colVolume), colVolume); err != nil {
		return tx, err
	}
	bottles, err := parseFloat(cols.get(record, colBottles), colBottles)
	if err != nil {
		return tx, err
	}
	tx.BottlesSold = int(bottles)
	return tx, nil
}

func parseFloat(s, col string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil {
		return 0, errors.ParseWrap(err, fmt.Sprintf("invalid %s %q", col, s))
	}
	return v, nil
}

// readCSV streams path in batches that are parsed and normalized
// concurrently. The first bad record aborts the load.
func readCSV(ctx context.Context, path string, n *normalize.Normalizer) ([]models.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReaderSize(file, 1024*1024))
	header, err := r.Read()
	if stderrors.Is(err, io.EOF) {
		return nil, errors.Parse("empty file")
	}
	if err != nil {
		return nil, errors.ParseWrap(err, "read header")
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	var results []*[]models.Row
	dispatch := func(batch []rawRecord) {
		out := new([]models.Row)
		results = append(results, out)
		g.Go(func() error {
			rows, err := parseBatch(gctx, cols, n, batch)
			*out = rows
			return err
		})
	}

	batch := make([]rawRecord, 0, batchSize)
	var readErr error
	for {
		if gctx.Err() != nil {
			break
		}
		record, err := r.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = errors.ParseWrap(err, "read csv")
			break
		}
		line, _ := r.FieldPos(0)
		batch = append(batch, rawRecord{line: line, fields: record})
		if len(batch) == batchSize {
			dispatch(batch)
			batch = make([]rawRecord, 0, batchSize)
		}
	}
	if readErr == nil && len(batch) > 0 {
		dispatch(batch)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, rows := range results {
		total += len(*rows)
	}
	rows := make([]models.Row, 0, total)
	for _, batch := range results {
		rows = append(rows, *batch...)
	}
	normalize.SortByDate(rows)
	return rows, nil
}

func parseBatch(ctx context.Context, cols columnIndex, n *normalize.Normalizer, batch []rawRecord) ([]models.Row, error) {
	rows := make([]models.Row, 0, len(batch))
	for i, rec := range batch {
		if i%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		tx, err := parseRecord(cols, rec.fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rec.line, err)
		}
		row, err := n.Row(tx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rec.line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// rowCache is the on-disk form of a loaded data set.
type rowCache struct {
	Version       string
	Source        string
	SourceModTime time.Time
	SourceSize    int64
	Rows          []models.Row
}

func cacheFilename(dir, csvPath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.Clean(csvPath))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

// loadCache returns the cached rows for csvPath if they were built from the
// file as it is now.
func loadCache(dir, csvPath string, info os.FileInfo) ([]models.Row, error) {
	file, err := os.Open(cacheFilename(dir, csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cached rowCache
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&cached); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	if cached.Version != cacheVersion || !cached.SourceModTime.Equal(info.ModTime()) || cached.SourceSize != info.Size() {
		return nil, fmt.Errorf("cache is stale")
	}
	return cached.Rows, nil
}

func saveCache(dir, csvPath string, info os.FileInfo, rows []models.Row) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "rows-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	err = gob.NewEncoder(w).Encode(rowCache{
		Version:       cacheVersion,
		Source:        csvPath,
		SourceModTime: info.ModTime(),
		SourceSize:    info.Size(),
		Rows:          rows,
	})
	if err == nil {
		err = w.Flush()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), cacheFilename(dir, csvPath))
}
