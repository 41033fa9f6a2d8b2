package repository

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/database"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(day int, finalValue float64) models.ResultRecord {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	return models.ResultRecord{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 90),
		Params: models.StrategyParameters{
			MACDFast: 3, MACDSlow: 8, MACDSignal: 4, RSIWindow: 14, RSIBuyThreshold: 65.5, RSISellThreshold: 30,
		},
		FinalValue:       finalValue,
		AnnualReturn:     0.42,
		AnnualVolatility: 0.8,
		SharpeRatio:      1.25,
		MaxDrawdown:      -0.33,
	}
}

func newTestStore(t *testing.T) (*CSVResultStore, string) {
	dir := filepath.Join(t.TempDir(), "results")
	return NewCSVResultStore(
		filepath.Join(dir, "all_3month_strategies.csv"),
		filepath.Join(dir, "explosive_strategy_result.csv"),
		filepath.Join(dir, "explosive_over_16x.csv"),
	), dir
}

func TestCSVStoreRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	nanRecord := sampleRecord(1, 10000)
	nanRecord.AnnualReturn = math.NaN()
	nanRecord.SharpeRatio = math.NaN()
	high := sampleRecord(2, 170000)

	snapshot := &models.ResultSnapshot{
		Records:        []models.ResultRecord{sampleRecord(0, 12000), nanRecord, high},
		Best:           &high,
		HighPerformers: []models.ResultRecord{high},
	}
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, snapshot.Records[0], loaded[0])
	assert.Equal(t, snapshot.Records[0].Params, loaded[0].Params)
	assert.True(t, math.IsNaN(loaded[1].AnnualReturn))
	assert.True(t, math.IsNaN(loaded[1].SharpeRatio))
	assert.Equal(t, nanRecord.Key(), loaded[1].Key())

	best, err := os.ReadFile(filepath.Join(dir, "explosive_strategy_result.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(best)), "\n"), 2)
	assert.Contains(t, string(best), "170000")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCSVStoreLoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCSVStoreSaveOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.ResultSnapshot{Records: []models.ResultRecord{sampleRecord(0, 1)}}))
	require.NoError(t, store.Save(ctx, &models.ResultSnapshot{Records: []models.ResultRecord{sampleRecord(0, 1), sampleRecord(1, 2)}}))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadRecordsLegacyFormat(t *testing.T) {
	legacy := "Start_Date,End_Date,MACD_Fast,MACD_Slow,MACD_Signal,RSI_Window,RSI_Buy,RSI_Sell,Final_Value,Annual_Return,Sharpe,Max_Drawdown\n" +
		"2019-03-04,2019-06-03,3.0,6,2,7,65,30,10000.0,,,0.0\n"

	records, err := ReadRecords(strings.NewReader(legacy))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, 3, r.Params.MACDFast)
	assert.Equal(t, 65.0, r.Params.RSIBuyThreshold)
	assert.True(t, math.IsNaN(r.AnnualReturn))
	assert.True(t, math.IsNaN(r.AnnualVolatility))
	assert.Equal(t, "2019-03-04|3|6|2|7|65|30", r.Key().String())
}

func TestReadRecordsErrors(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("Start_Date,End_Date\n2020-01-01,2020-02-01\n"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, []models.ResultRecord{sampleRecord(0, 1)}))
	broken := strings.Replace(buf.String(), ",3,8,", ",x,8,", 1)
	_, err = ReadRecords(strings.NewReader(broken))
	assert.Error(t, err)

	records, err := ReadRecords(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestCompletedKeys(t *testing.T) {
	keys := CompletedKeys([]models.ResultRecord{sampleRecord(0, 1), sampleRecord(0, 2), sampleRecord(1, 3)})
	assert.Len(t, keys, 2)
	_, ok := keys[sampleRecord(1, 0).Key().String()]
	assert.True(t, ok)
}

func TestPostgresResultStoreUpsertArgs(t *testing.T) {
	runID := uuid.New()
	r := sampleRecord(0, 12000)
	key := r.Key().String()

	grid := NewPostgresResultStore(nil, "TQQQ", "", runID)
	assert.Equal(t, GridResults, grid.kind)
	args := grid.upsertArgs(key, r, true)
	require.Len(t, args, 18)
	assert.Equal(t, []interface{}{"TQQQ", "grid", key, runID}, args[:4])
	assert.Equal(t, true, args[17])

	sweep := NewPostgresResultStore(nil, "SQQQ", SweepResults, runID)
	args = sweep.upsertArgs(key, r, false)
	assert.Equal(t, []interface{}{"SQQQ", "sweep", key, runID}, args[:4])
}

func TestPostgresResultStoreIntegration(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db, "TEST", "TEST2")

	ctx := context.Background()
	store := NewPostgresResultStore(db, "TEST", GridResults, uuid.New())
	high := sampleRecord(1, 200000)
	nanRecord := sampleRecord(2, 10000)
	nanRecord.SharpeRatio = math.NaN()

	snapshot := &models.ResultSnapshot{
		Records:        []models.ResultRecord{sampleRecord(0, 11000), high},
		Best:           &high,
		HighPerformers: []models.ResultRecord{high},
	}
	require.NoError(t, store.Save(ctx, snapshot))
	snapshot.Records = append(snapshot.Records, nanRecord)
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := NewPostgresResultStore(db, "TEST", GridResults, uuid.New()).Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, high.Params, loaded[1].Params)
	assert.True(t, math.IsNaN(loaded[2].SharpeRatio))

	best, err := store.Best(ctx)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 200000.0, best.FinalValue)
	assert.Equal(t, high.StartDate, best.StartDate)
}

func TestPostgresResultStoreSeparatesSymbolsAndKinds(t *testing.T) {
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db, "TEST", "TEST2")

	ctx := context.Background()
	// identical task keys across symbols and kinds
	first := sampleRecord(0, 15000)
	second := sampleRecord(0, 9000)
	sweep := sampleRecord(0, 30000)

	require.NoError(t, NewPostgresResultStore(db, "TEST", GridResults, uuid.New()).Save(ctx,
		&models.ResultSnapshot{Records: []models.ResultRecord{first}}))
	require.NoError(t, NewPostgresResultStore(db, "TEST2", GridResults, uuid.New()).Save(ctx,
		&models.ResultSnapshot{Records: []models.ResultRecord{second}}))
	require.NoError(t, NewPostgresResultStore(db, "TEST", SweepResults, uuid.New()).Save(ctx,
		&models.ResultSnapshot{Records: []models.ResultRecord{sweep}}))

	tests := []struct {
		symbol string
		kind   ResultKind
		want   float64
	}{
		{symbol: "TEST", kind: GridResults, want: 15000},
		{symbol: "TEST2", kind: GridResults, want: 9000},
		{symbol: "TEST", kind: SweepResults, want: 30000},
	}
	for _, tt := range tests {
		t.Run(tt.symbol+"/"+string(tt.kind), func(t *testing.T) {
			store := NewPostgresResultStore(db, tt.symbol, tt.kind, uuid.New())
			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			require.Len(t, loaded, 1)
			assert.Equal(t, tt.want, loaded[0].FinalValue)

			best, err := store.Best(ctx)
			require.NoError(t, err)
			require.NotNil(t, best)
			assert.Equal(t, tt.want, best.FinalValue)
		})
	}

	best, err := NewPostgresResultStore(db, "TEST2", SweepResults, uuid.New()).Best(ctx)
	require.NoError(t, err)
	assert.Nil(t, best)
}
