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
	"fmt"
	"os"

	"github.com/sip-vault/sip-api/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Logging configuration
	viper.BindEnv("log.level", "SV_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "SV_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "SV_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "SV_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Print human readable logs instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Simulation knobs
	rootCmd.PersistentFlags().Float64("turnover-cap", 0.25, "Fraction of portfolio value that may turn over per rebalance phase")
	viper.BindPFlag("backtest.turnover_cap", rootCmd.PersistentFlags().Lookup("turnover-cap"))

	rootCmd.PersistentFlags().Float64("initial-balance", 0, "Starting cash balance for backtests")
	viper.BindPFlag("backtest.initial_balance", rootCmd.PersistentFlags().Lookup("initial-balance"))
}

var rootCmd = &cobra.Command{
	Use:     "sipapi",
	Version: common.CurrentVersion.String(),
	Short:   "SIP Vault simulates systematic investment plans with lot-level accounting",
	Long: `SIP Vault backtests systematic investment plans against mutual fund NAV
series, tracking individual purchase lots so exit loads, securities
transaction tax, and transaction costs are charged the way a fund house
would charge them.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
