package main

import (
	"fmt"
	"math"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/backtest"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/grid"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/models"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/service"
	"github.com/spf13/cobra"
)

// paramFlags binds one StrategyParameters tuple to command flags
type paramFlags struct {
	models.StrategyParameters
}

func (p *paramFlags) bind(cmd *cobra.Command) {
	p.StrategyParameters = models.StrategyParameters{
		MACDFast:         5,
		MACDSlow:         10,
		MACDSignal:       4,
		RSIWindow:        14,
		RSIBuyThreshold:  65,
		RSISellThreshold: 30,
	}
	f := cmd.Flags()
	f.IntVar(&p.MACDFast, "macd-fast", p.MACDFast, "MACD fast EMA span")
	f.IntVar(&p.MACDSlow, "macd-slow", p.MACDSlow, "MACD slow EMA span")
	f.IntVar(&p.MACDSignal, "macd-signal", p.MACDSignal, "MACD signal EMA span")
	f.IntVar(&p.RSIWindow, "rsi-window", p.RSIWindow, "RSI averaging window")
	f.Float64Var(&p.RSIBuyThreshold, "rsi-buy", p.RSIBuyThreshold, "RSI must be below this to buy")
	f.Float64Var(&p.RSISellThreshold, "rsi-sell", p.RSISellThreshold, "RSI must be above this to sell")
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run the parameter grid over every sliding window",
	Long: `Evaluates every valid parameter combination on every sliding window of the
configured price series. Results already in the store are skipped, so an
interrupted search resumes where it stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := service.NewSearchService(cfg, appLog)
		startHealth(ctx, svc)

		series, err := svc.LoadSeries(ctx)
		if err != nil {
			return err
		}
		summary, err := svc.Search(ctx, series)
		printSummary(summary)
		return err
	},
}

var sweepParams paramFlags

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one fixed parameter tuple over every sliding window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := service.NewSearchService(cfg, appLog)
		startHealth(ctx, svc)

		series, err := svc.LoadSeries(ctx)
		if err != nil {
			return err
		}
		summary, err := svc.Sweep(ctx, series, sweepParams.StrategyParameters)
		printSummary(summary)
		return err
	},
}

var (
	backtestParams paramFlags
	backtestGrid   bool
	backtestTop    int
	backtestRank   string
	backtestFrom   string
	backtestTrace  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest over the whole price series",
	Long: `Without flags, backtests one parameter tuple over the whole series.
--grid evaluates every combination of the configured grid once and saves a
timestamped results CSV. --top N re-runs the N best stored results and writes
their signal and portfolio traces.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := service.NewSearchService(cfg, appLog)
		series, err := svc.LoadSeries(ctx)
		if err != nil {
			return err
		}

		switch {
		case backtestGrid:
			top := backtestTop
			if top <= 0 {
				top = 5
			}
			report, err := svc.FullRange(ctx, series, top)
			if err != nil {
				return err
			}
			fmt.Printf("Evaluated %d combinations (%d failed), saved to %s\n", len(report.Records), report.Failed, report.Path)
			printRecords(fmt.Sprintf("Top %d Strategies", len(report.Top)), report.Top)
			return nil

		case backtestTop > 0:
			rank, ok := grid.ParseRank(backtestRank)
			if !ok {
				return fmt.Errorf("unknown rank %q, want final_value or sharpe", backtestRank)
			}
			records, err := svc.LoadResults(ctx, backtestFrom)
			if err != nil {
				return err
			}
			results, err := svc.TopBacktests(ctx, series, records, backtestTop, rank)
			for i, r := range results {
				fmt.Printf("\n#%d\n%s", i+1, backtest.GenerateConsoleReport(r))
			}
			return err

		default:
			engine, err := svc.Engine()
			if err != nil {
				return err
			}
			result, err := engine.Run(series, backtestParams.StrategyParameters)
			if err != nil {
				return err
			}
			fmt.Print(backtest.GenerateConsoleReport(result))
			if backtestTrace != "" {
				return backtest.GenerateTraceCSV(result, backtestTrace)
			}
			return nil
		}
	},
}

func init() {
	sweepParams.bind(sweepCmd)
	backtestParams.bind(backtestCmd)

	f := backtestCmd.Flags()
	f.BoolVar(&backtestGrid, "grid", false, "Evaluate the configured grid over the whole series")
	f.IntVar(&backtestTop, "top", 0, "Number of top strategies to report")
	f.StringVar(&backtestRank, "rank", string(grid.RankSharpe), "Ranking for --top: final_value or sharpe")
	f.StringVar(&backtestFrom, "results", "", "Results CSV for --top; defaults to the configured store")
	f.StringVar(&backtestTrace, "trace", "", "Write the single run's trace CSV to this path")
}

func printSummary(s *grid.Summary) {
	if s == nil {
		return
	}
	fmt.Printf("\nRun %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Printf("  Windows       : %d\n", s.Plan.Windows)
	fmt.Printf("  Evaluated     : %d succeeded, %d failed\n", s.Succeeded, s.Failed)
	fmt.Printf("  Resumed       : %d\n", s.Plan.Resumed)
	fmt.Printf("  Skipped       : %d (macd_fast >= macd_slow)\n", s.Plan.SkippedInvalid)
	fmt.Printf("  Records       : %d\n", s.Records)
	fmt.Printf("  High perf.    : %d\n", s.HighPerformers)
	if s.Best != nil {
		printRecords("Best Strategy", []models.ResultRecord{*s.Best})
	}
}

func printRecords(title string, records []models.ResultRecord) {
	fmt.Printf("\n=== %s ===\n", title)
	fmt.Printf("%-10s %-10s %-22s %12s %10s %8s %10s\n", "Start", "End", "Params", "Final", "Annual", "Sharpe", "MaxDD")
	for _, r := range records {
		fmt.Printf("%-10s %-10s %-22s %12.2f %10s %8s %9.2f%%\n",
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			r.Params.String(),
			r.FinalValue,
			orNA(r.AnnualReturn*100, "%.2f%%"),
			orNA(r.SharpeRatio, "%.2f"),
			r.MaxDrawdown*100,
		)
	}
}

func orNA(v float64, format string) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}
