// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/backtest"
	"github.com/sip-vault/sip-api/common"
	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/database"
	"github.com/sip-vault/sip-api/portfolio"
	"github.com/sip-vault/sip-api/strategies"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	navCSVs   []string
	vixCSV    string
	beginStr  string
	endStr    string
	sellAll   bool
	sipAmount float64
	frequency string
)

func init() {
	backtestCmd.Flags().StringArrayVar(&navCSVs, "nav-csv", nil, "NAV series as FUND=path (repeatable); bare paths use the fund name NIFTY")
	backtestCmd.Flags().StringVar(&vixCSV, "vix-csv", "", "Volatility index CSV with Date and Close columns")
	backtestCmd.Flags().StringVar(&beginStr, "begin", "", "First simulation date (YYYY-MM-DD); defaults to the start of the data")
	backtestCmd.Flags().StringVar(&endStr, "end", "", "Last simulation date (YYYY-MM-DD); defaults to the end of the data")
	backtestCmd.Flags().BoolVar(&sellAll, "sell-all", false, "Liquidate all units on the final date and print the lot depletion log")
	backtestCmd.Flags().Float64Var(&sipAmount, "sip", 1000, "Amount deposited each period")
	backtestCmd.Flags().StringVar(&frequency, "frequency", "daily", "Deposit frequency: daily, weekly, or monthly")

	rootCmd.AddCommand(backtestCmd)
}

var backtestCmd = &cobra.Command{
	Use:        "backtest [flags] [StrategyShortcode [StrategyArguments]]",
	Short:      "Run a backtest of a strategy",
	Long:       `Run a strategy against NAV series loaded from CSV files or the NAV database and print its performance.`,
	Args:       cobra.MaximumNArgs(2),
	ArgAliases: []string{"StrategyShortcode", "StrategyArguments"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		strategies.InitializeStrategyMap()

		ctx := context.Background()
		tz := common.GetTimezone()

		shortcode := "sip"
		if len(args) > 0 {
			shortcode = args[0]
		}

		params := map[string]json.RawMessage{}
		if len(args) > 1 {
			if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
				log.Fatal().Err(err).Msg("could not unmarshal strategy arguments")
			}
		}

		begin, end := parseDateRange(tz)

		manager := data.NewManager()
		loadSeries(ctx, manager, params, begin, end)

		if _, ok := params["funds"]; !ok {
			raw, err := json.Marshal(manager.Funds())
			if err != nil {
				log.Fatal().Err(err).Msg("could not marshal fund list")
			}
			params["funds"] = raw
		}
		if _, ok := params["sip"]; !ok {
			params["sip"] = json.RawMessage(fmt.Sprintf("%f", sipAmount))
		}
		if _, ok := params["frequency"]; !ok {
			params["frequency"] = json.RawMessage(fmt.Sprintf("%q", frequency))
		}

		cfg := backtest.DefaultConfig()
		cfg.InitialBalance = viper.GetFloat64("backtest.initial_balance")
		if turnoverCap := viper.GetFloat64("backtest.turnover_cap"); turnoverCap > 0 {
			cfg.TurnoverCap = turnoverCap
		}
		cfg.SellAll = sellAll
		cfg.ShowProgress = true

		b, err := backtest.New(ctx, shortcode, params, begin, end, manager, cfg)
		if err != nil {
			log.Fatal().Stack().Err(err).Str("Shortcode", shortcode).Msg("backtest failed")
		}

		printSummary(b, manager)
	},
}

func parseDateRange(tz *time.Location) (time.Time, time.Time) {
	var begin, end time.Time
	var err error
	if beginStr != "" {
		begin, err = time.ParseInLocation("2006-01-02", beginStr, tz)
		if err != nil {
			log.Fatal().Err(err).Str("Begin", beginStr).Msg("could not parse begin date")
		}
	}
	if endStr != "" {
		end, err = time.ParseInLocation("2006-01-02", endStr, tz)
		if err != nil {
			log.Fatal().Err(err).Str("End", endStr).Msg("could not parse end date")
		}
	}
	return begin, end
}

// loadSeries populates the manager from CSV files when any are given,
// otherwise from the NAV database using the strategy's fund list.
func loadSeries(ctx context.Context, manager *data.Manager, params map[string]json.RawMessage, begin time.Time, end time.Time) {
	if len(navCSVs) > 0 {
		for _, spec := range navCSVs {
			fund := "NIFTY"
			path := spec
			if idx := strings.Index(spec, "="); idx >= 0 {
				fund = spec[:idx]
				path = spec[idx+1:]
			}
			h, err := data.LoadNAVCSV(path)
			if err != nil {
				log.Fatal().Err(err).Str("Path", path).Msg("could not load NAV csv")
			}
			manager.SetNAVHistory(fund, h)
		}
	} else {
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		funds := []string{}
		if raw, ok := params["funds"]; ok {
			if err := json.Unmarshal(raw, &funds); err != nil {
				log.Fatal().Err(err).Msg("could not unmarshal funds argument")
			}
		}
		if len(funds) == 0 {
			log.Fatal().Msg("no NAV csv given and no funds named in strategy arguments")
		}
		for _, fund := range funds {
			if err := manager.LoadFund(ctx, fund, begin, end); err != nil {
				log.Fatal().Err(err).Str("Fund", fund).Msg("could not load fund NAV series")
			}
		}
	}

	if vixCSV != "" {
		vix, err := data.LoadVIXCSV(vixCSV)
		if err != nil {
			log.Fatal().Err(err).Str("Path", vixCSV).Msg("could not load VIX csv")
		}
		manager.SetVIXHistory(vix)
	}
}

func printSummary(b *backtest.Backtest, manager *data.Manager) {
	var invested float64
	for _, t := range b.Portfolio.TradeLog {
		if t.Kind == portfolio.DepositTrade {
			invested += t.GrossValue
		}
	}

	fmt.Println("\nSIP summary")
	fmt.Printf("Periods: %d\n", len(b.Performance.Measurements))
	fmt.Printf("Total invested: %.2f\n", invested)
	for _, fund := range manager.Funds() {
		fmt.Printf("Units held (%s): %.2f\n", fund, b.Portfolio.PositionUnits(fund))
	}
	if sellAll {
		fmt.Printf("Cash after liquidation: %.2f\n", b.Portfolio.Cash)
	}

	metrics := b.Performance.PortfolioMetrics
	fmt.Println("Metrics:")
	printMetric("CAGR", metrics.CAGR)
	printMetric("AnnVol", metrics.AnnualizedVolatility)
	printMetric("Sharpe", metrics.SharpeRatio)
	printMetric("Sortino", metrics.SortinoRatio)
	printMetric("MaxDrawDown", metrics.MaxDrawDown)
	printMetric("CVaR95", metrics.CVaR95)
	printMetric("FinalBalance", metrics.FinalBalance)

	if n := len(b.Portfolio.TradeLog); n > 0 {
		last := b.Portfolio.TradeLog[n-1]
		if len(last.FIFOLog) > 0 {
			fmt.Println("\nFIFO depletion log from final sale:")
			for _, line := range last.FIFOLog {
				fmt.Println(" -", line)
			}
		}
	}
}

func printMetric(name string, value float64) {
	if math.IsNaN(value) {
		fmt.Printf("  %s: nan\n", name)
		return
	}
	fmt.Printf("  %s: %.4f\n", name, value)
}
