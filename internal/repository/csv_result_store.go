package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
)

// ResultColumns is the header of every result table
var ResultColumns = []string{
	"Start_Date", "End_Date",
	"MACD_Fast", "MACD_Slow", "MACD_Signal", "RSI_Window", "RSI_Buy", "RSI_Sell",
	"Final_Value", "Annual_Return", "Annual_Volatility", "Sharpe", "Max_Drawdown",
}

// CSVResultStore writes the full, best and high performer tables as CSV files
type CSVResultStore struct {
	mu                 sync.Mutex
	resultsPath        string
	bestPath           string
	highPerformersPath string
}

// NewCSVResultStore creates a CSV store for the three table paths
func NewCSVResultStore(resultsPath, bestPath, highPerformersPath string) *CSVResultStore {
	return &CSVResultStore{
		resultsPath:        resultsPath,
		bestPath:           bestPath,
		highPerformersPath: highPerformersPath,
	}
}

// Load reads the full results table. A missing file yields no records.
func (s *CSVResultStore) Load(ctx context.Context) ([]models.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.resultsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open results: %w", err)
	}
	defer f.Close()

	return ReadRecords(f)
}

// Save rewrites all three tables; each file is replaced atomically
func (s *CSVResultStore) Save(ctx context.Context, snapshot *models.ResultSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var best []models.ResultRecord
	if snapshot.Best != nil {
		best = []models.ResultRecord{*snapshot.Best}
	}

	if err := writeAtomic(s.resultsPath, snapshot.Records); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	if err := writeAtomic(s.bestPath, best); err != nil {
		return fmt.Errorf("failed to save best result: %w", err)
	}
	if err := writeAtomic(s.highPerformersPath, snapshot.HighPerformers); err != nil {
		return fmt.Errorf("failed to save high performers: %w", err)
	}
	return nil
}

func writeAtomic(path string, records []models.ResultRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := WriteRecords(tmp, records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteRecords writes records with a header row
func WriteRecords(w io.Writer, records []models.ResultRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultColumns); err != nil {
		return err
	}
	for _, r := range records {
		p := r.Params
		row := []string{
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			strconv.Itoa(p.MACDFast),
			strconv.Itoa(p.MACDSlow),
			strconv.Itoa(p.MACDSignal),
			strconv.Itoa(p.RSIWindow),
			formatFloat(p.RSIBuyThreshold),
			formatFloat(p.RSISellThreshold),
			formatFloat(r.FinalValue),
			formatFloat(r.AnnualReturn),
			formatFloat(r.AnnualVolatility),
			formatFloat(r.SharpeRatio),
			formatFloat(r.MaxDrawdown),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadRecords parses a result table, matching columns by header name
func ReadRecords(r io.Reader) ([]models.ResultRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range ResultColumns {
		if _, ok := index[col]; !ok && col != "Annual_Volatility" {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var records []models.ResultRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		record, err := parseRecord(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func parseRecord(row []string, index map[string]int) (models.ResultRecord, error) {
	var rec models.ResultRecord
	var err error
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	if rec.StartDate, err = parseDate(cell("Start_Date")); err != nil {
		return rec, err
	}
	if rec.EndDate, err = parseDate(cell("End_Date")); err != nil {
		return rec, err
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"MACD_Fast", &rec.Params.MACDFast},
		{"MACD_Slow", &rec.Params.MACDSlow},
		{"MACD_Signal", &rec.Params.MACDSignal},
		{"RSI_Window", &rec.Params.RSIWindow},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(cell(f.name)); err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"RSI_Buy", &rec.Params.RSIBuyThreshold},
		{"RSI_Sell", &rec.Params.RSISellThreshold},
		{"Final_Value", &rec.FinalValue},
		{"Annual_Return", &rec.AnnualReturn},
		{"Annual_Volatility", &rec.AnnualVolatility},
		{"Sharpe", &rec.SharpeRatio},
		{"Max_Drawdown", &rec.MaxDrawdown},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloat(cell(f.name)); err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	// tolerate timestamps written as "2006-01-02 00:00:00"
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	return time.Parse(models.DateLayout, s)
}

// parseInt accepts integral floats such as "12.0"
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %s", s)
	}
	return int(f), nil
}

// parseFloat reads empty cells as NaN
func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
