package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

const csvSourceName = "csv"

// PriceColumns is the column order written by WritePriceCSV
var PriceColumns = []string{"Date", "Close", "High", "Low", "Open", "Volume"}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"01/02/2006",
}

// CSVFileSource reads bars from a local CSV file
type CSVFileSource struct {
	path string
}

// NewCSVFileSource creates a file source for path
func NewCSVFileSource(path string) *CSVFileSource {
	return &CSVFileSource{path: path}
}

// Name returns the data source name
func (c *CSVFileSource) Name() string {
	return csvSourceName
}

// FetchSeries reads the file and keeps the bars inside the request range
func (c *CSVFileSource) FetchSeries(ctx context.Context, req FetchRequest) (*models.PriceSeries, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewDataSourceError(csvSourceName, ErrCodeNotFound, c.path, err)
		}
		return nil, NewDataSourceError(csvSourceName, ErrCodeNetworkError, "failed to open file", err)
	}
	defer f.Close()

	bars, err := ReadPriceCSV(f)
	if err != nil {
		return nil, NewDataSourceError(csvSourceName, ErrCodeInvalidData, c.path, err)
	}

	bars = FilterRange(bars, req.Start, req.End)
	if len(bars) == 0 {
		return nil, NewDataSourceError(csvSourceName, ErrCodeNotFound, "no bars in range", ErrNoData)
	}
	return models.NewPriceSeries(req.Symbol, bars)
}

// ReadPriceCSV parses bars from a CSV with a Date and Close column.
// Header names are trimmed and matched case-insensitively; rows whose date
// does not parse, such as ticker banner rows, are skipped. The result is
// sorted by date with duplicates removed.
func ReadPriceCSV(r io.Reader) ([]models.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeColumn(name)] = i
	}
	// older exports label the date column "Price"
	if _, ok := index["Date"]; !ok {
		if i, ok := index["Price"]; ok {
			index["Date"] = i
		}
	}
	for _, col := range []string{"Date", "Close"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var bars []models.PriceBar
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		bar, ok := parseBar(row, index)
		if ok {
			bars = append(bars, bar)
		}
	}
	return NormalizeBars(bars), nil
}

func parseBar(row []string, index map[string]int) (models.PriceBar, bool) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(name string) float64 {
		v, err := strconv.ParseFloat(cell(name), 64)
		if err != nil {
			return 0
		}
		return v
	}

	date, ok := parseBarDate(cell("Date"))
	if !ok {
		return models.PriceBar{}, false
	}
	closePrice, err := strconv.ParseFloat(cell("Close"), 64)
	if err != nil {
		return models.PriceBar{}, false
	}
	return models.PriceBar{
		Date:   date,
		Open:   num("Open"),
		High:   num("High"),
		Low:    num("Low"),
		Close:  closePrice,
		Volume: num("Volume"),
	}, true
}

func parseBarDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// normalizeColumn trims and title-cases a header, "adj close" -> "Adj Close"
func normalizeColumn(name string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// NormalizeBars sorts bars by date and keeps the last bar for a repeated date
func NormalizeBars(bars []models.PriceBar) []models.PriceBar {
	sorted := append([]models.PriceBar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	out := sorted[:0]
	for _, bar := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(bar.Date) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

// FilterRange keeps bars within [start, end]; zero bounds are open
func FilterRange(bars []models.PriceBar, start, end time.Time) []models.PriceBar {
	out := make([]models.PriceBar, 0, len(bars))
	for _, bar := range bars {
		if !start.IsZero() && bar.Date.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Date.After(end) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// WritePriceCSV writes a series as Date,Close,High,Low,Open,Volume
func WritePriceCSV(w io.Writer, series *models.PriceSeries) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(PriceColumns); err != nil {
		return err
	}
	for _, bar := range series.Bars {
		row := []string{
			bar.Date.Format(models.DateLayout),
			strconv.FormatFloat(bar.Close, 'f', -1, 64),
			strconv.FormatFloat(bar.High, 'f', -1, 64),
			strconv.FormatFloat(bar.Low, 'f', -1, 64),
			strconv.FormatFloat(bar.Open, 'f', -1, 64),
			strconv.FormatFloat(bar.Volume, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SavePriceCSV writes a series to path, creating parent directories
func SavePriceCSV(path string, series *models.PriceSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePriceCSV(f, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
