// Package main provides the brokerage command line tool.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/broker"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/config"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/logger"
	"github.com/DreamVanMH/tqqq-sqqq-strategy/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
	client     *broker.AlpacaBroker
)

var (
	orderSide    string
	orderQty     string
	orderSymbol  string
	orderConfirm bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigPath, "Path to configuration file")

	orderCmd.Flags().StringVar(&orderSide, "side", "buy", "Order side: buy or sell")
	orderCmd.Flags().StringVar(&orderQty, "qty", "", "Share quantity")
	orderCmd.Flags().StringVar(&orderSymbol, "symbol", "", "Symbol (default broker.symbol)")
	orderCmd.Flags().BoolVar(&orderConfirm, "confirm", false, "Required to place an order on a live account")
	_ = orderCmd.MarkFlagRequired("qty")

	rootCmd.AddCommand(positionsCmd, quoteCmd, orderCmd, accountCmd)
}

var rootCmd = &cobra.Command{
	Use:          "broker",
	Short:        "Inspect the brokerage account and place market orders",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		var err error
		client, err = broker.Connect(ctx, cfg, appLog)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if client == nil {
			return nil
		}
		return client.Close()
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		positions, err := client.Positions(cmd.Context())
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			fmt.Println("No open positions")
			return nil
		}
		fmt.Printf("%-8s %12s %12s %14s\n", "Symbol", "Qty", "AvgEntry", "MarketValue")
		for _, p := range positions {
			fmt.Printf("%-8s %12s %12s %14s\n", p.Symbol, p.Qty.String(), p.AvgEntry.StringFixed(2), p.MarketValue.StringFixed(2))
		}
		return nil
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote [symbol]",
	Short: "Show the last trade price",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := cfg.Broker.Symbol
		if len(args) == 1 {
			symbol = args[0]
		}
		symbol = strings.ToUpper(symbol)
		if symbol == "" {
			return fmt.Errorf("symbol is required")
		}
		price, err := client.LastPrice(cmd.Context(), symbol)
		if err != nil {
			return err
		}
		fmt.Printf("%s last price: %s\n", symbol, price.StringFixed(2))
		return nil
	},
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Submit a market order",
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := broker.ParseSide(orderSide)
		if err != nil {
			return err
		}
		qty, err := decimal.NewFromString(orderQty)
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", orderQty, err)
		}
		symbol := orderSymbol
		if symbol == "" {
			symbol = cfg.Broker.Symbol
		}
		if !cfg.Broker.Paper && !orderConfirm {
			return fmt.Errorf("refusing to place a live order without --confirm")
		}

		ref, err := client.SubmitMarketOrder(cmd.Context(), broker.OrderRequest{
			Symbol: strings.ToUpper(symbol),
			Qty:    qty,
			Side:   side,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Order %s (%s) %s: %s %s %s\n", ref.ID, ref.ClientOrderID, ref.Status, side, qty.String(), strings.ToUpper(symbol))
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := client.Account(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Account      : %s\n", acct.ID)
		fmt.Printf("Paper        : %v\n", cfg.Broker.Paper)
		fmt.Printf("Equity       : %s %s\n", acct.Equity.StringFixed(2), acct.Currency)
		fmt.Printf("Cash         : %s %s\n", acct.Cash.StringFixed(2), acct.Currency)
		fmt.Printf("Buying power : %s %s\n", acct.BuyingPower.StringFixed(2), acct.Currency)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	appLog = logger.NewLogger(cfg.App.LogLevel)
	metrics.InitRegistry()
	return nil
}
