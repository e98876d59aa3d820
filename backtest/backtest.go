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

// Package backtest drives a strategy's plan through a portfolio simulation
// and summarizes the resulting equity curve.
package backtest

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/observability/opentelemetry"
	"github.com/sip-vault/sip-api/portfolio"
	"github.com/sip-vault/sip-api/strategies"
	"go.opentelemetry.io/otel"
)

var (
	ErrStrategyNotFound = errors.New("strategy not found")
	ErrEmptyPlan        = errors.New("strategy produced an empty plan")
)

// Config carries the simulation knobs that are not part of the strategy
// itself.
type Config struct {
	InitialBalance float64                 `json:"initialBalance"`
	TurnoverCap    float64                 `json:"turnoverCap"`
	SellAll        bool                    `json:"sellAll"`
	RiskFreeDaily  float64                 `json:"riskFreeDaily"`
	Costs          portfolio.CostConfig    `json:"costs"`
	Regime         strategies.RegimeConfig `json:"regime"`
	ShowProgress   bool                    `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		InitialBalance: 0,
		TurnoverCap:    0.25,
		SellAll:        false,
		RiskFreeDaily:  0,
		Costs:          portfolio.DefaultCostConfig(),
		Regime:         strategies.DefaultRegimeConfig(),
	}
}

type Backtest struct {
	Portfolio   *portfolio.Portfolio
	Performance *portfolio.Performance
}

// New resolves the strategy by shortcode, computes its plan over the
// manager's loaded data, and simulates it between begin and end.
func New(ctx context.Context, shortcode string, params map[string]json.RawMessage, begin time.Time, end time.Time, manager *data.Manager, cfg Config) (*Backtest, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Backtest")
	defer span.End()

	strat, ok := strategies.StrategyMap[shortcode]
	if !ok {
		log.Error().Str("Shortcode", shortcode).Msg("strategy not found")
		return nil, ErrStrategyNotFound
	}

	stratObject, err := strat.Factory(params)
	if err != nil {
		log.Error().Stack().Err(err).Str("Shortcode", shortcode).Msg("could not construct strategy")
		return nil, err
	}

	start := time.Now()
	plan, err := stratObject.Compute(ctx, manager)
	if err != nil {
		log.Error().Stack().Err(err).Str("Shortcode", shortcode).Msg("strategy computation failed")
		return nil, err
	}
	stratComputeDur := time.Since(start).Round(time.Millisecond)

	if len(plan) == 0 {
		return nil, ErrEmptyPlan
	}

	p := portfolio.NewPortfolio(strat.Name, manager.Funds(), begin, cfg.InitialBalance, cfg.Costs)

	start = time.Now()
	performance, err := simulate(ctx, p, plan, begin, end, manager, cfg)
	if err != nil {
		return nil, err
	}
	simulateDur := time.Since(start).Round(time.Millisecond)

	performance.Summarize(cfg.RiskFreeDaily)

	log.Info().
		Dur("StratComputeDur", stratComputeDur).
		Dur("SimulateDur", simulateDur).
		Int("NumTrades", len(p.TradeLog)).
		Msg("backtest runtime performance")

	return &Backtest{
		Portfolio:   p,
		Performance: performance,
	}, nil
}

// simulate walks every trading date in [begin, end], applying the plan's
// deposits and rebalances on their dates and recording an equity measurement
// on every date.
func simulate(ctx context.Context, p *portfolio.Portfolio, plan data.PortfolioPlan, begin time.Time, end time.Time, manager *data.Manager, cfg Config) (*portfolio.Performance, error) {
	dates := tradingDatesBetween(manager, begin, end)
	if len(dates) == 0 {
		return nil, data.ErrNoData
	}

	allocations := make(map[time.Time]*data.Allocation, len(plan))
	for _, alloc := range plan {
		allocations[alloc.Date] = alloc
	}

	var bar *progressbar.ProgressBar
	if cfg.ShowProgress {
		bar = progressbar.Default(int64(len(dates)), "simulating")
	}

	performance := portfolio.NewPerformance(p)
	vix := manager.VIXHistory()

	for _, date := range dates {
		navs, err := manager.NAVRow(date)
		if err != nil {
			return nil, err
		}

		if alloc, ok := allocations[date]; ok {
			p.Deposit(date, alloc.Deposit)
			weights, indexValue := strategies.RegimeAdjustWeights(alloc.TargetWeights, vix, date, cfg.Regime)
			if vix != nil && alloc.Justifications == nil {
				alloc.Justifications = map[string]float64{"vix": indexValue}
			}
			if err := p.Rebalance(ctx, date, navs, weights, cfg.TurnoverCap); err != nil {
				return nil, err
			}
		}

		value, err := p.TotalValue(navs)
		if err != nil {
			return nil, err
		}
		performance.AddMeasurement(date, value)

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Warn().Err(err).Msg("progress bar update failed")
			}
		}
	}

	if cfg.SellAll {
		if err := liquidate(p, performance, dates[len(dates)-1], manager); err != nil {
			return nil, err
		}
	}

	return performance, nil
}

// liquidate sells every position at the final date's NAVs with lot tracing
// enabled and restates the final equity measurement as the cash proceeds.
func liquidate(p *portfolio.Portfolio, performance *portfolio.Performance, last time.Time, manager *data.Manager) error {
	navs, err := manager.NAVRow(last)
	if err != nil {
		return err
	}
	for _, fund := range p.Funds {
		units := p.PositionUnits(fund)
		if units <= 0 {
			continue
		}
		p.Sell(last, fund, units, navs[fund], true)
	}

	total, err := p.TotalValue(navs)
	if err != nil {
		return err
	}
	if n := len(performance.Measurements); n > 0 {
		performance.Measurements[n-1].Value = total
	}

	log.Info().Time("Date", last).Float64("Cash", p.Cash).Msg("liquidated all positions")
	return nil
}

func tradingDatesBetween(manager *data.Manager, begin time.Time, end time.Time) []time.Time {
	all := manager.TradingDates()
	dates := make([]time.Time, 0, len(all))
	for _, date := range all {
		if !begin.IsZero() && date.Before(begin) {
			continue
		}
		if !end.IsZero() && date.After(end) {
			continue
		}
		dates = append(dates, date)
	}
	return dates
}
