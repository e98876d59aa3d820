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

package backtest_test

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sip-vault/sip-api/backtest"
	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/portfolio"
)

var _ = Describe("Backtest", func() {
	var (
		manager *data.Manager
		params  map[string]json.RawMessage
		cfg     backtest.Config
		dates   []time.Time
	)

	BeforeEach(func() {
		dates = nil
		observations := []data.Observation{}
		date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		nav := 100.0
		for ii := 0; ii < 10; ii++ {
			observations = append(observations, data.Observation{Date: date, Value: nav})
			dates = append(dates, date)
			date = date.AddDate(0, 0, 1)
			nav += 1
		}
		manager = data.NewManager()
		manager.SetNAVHistory("NIFTY", data.NewHistory(observations))

		params = map[string]json.RawMessage{}
		Expect(json.Unmarshal([]byte(`{"funds": ["NIFTY"], "sip": 1000, "frequency": "daily"}`), &params)).To(Succeed())

		cfg = backtest.DefaultConfig()
		cfg.TurnoverCap = 1.0
		cfg.Costs = portfolio.CostConfig{}
	})

	It("should record one equity measurement per trading date", func() {
		b, err := backtest.New(context.Background(), "sip", params, time.Time{}, time.Time{}, manager, cfg)
		Expect(err).To(BeNil())
		Expect(b.Performance.Measurements).To(HaveLen(len(dates)))
	})

	It("should deposit the sip amount on every allocation date", func() {
		b, err := backtest.New(context.Background(), "sip", params, time.Time{}, time.Time{}, manager, cfg)
		Expect(err).To(BeNil())
		var invested float64
		for _, t := range b.Portfolio.TradeLog {
			if t.Kind == portfolio.DepositTrade {
				invested += t.GrossValue
			}
		}
		Expect(invested).To(BeNumerically("~", 1000.0*float64(len(dates)), 1e-6))
	})

	It("should invest all deposited cash when nothing caps turnover", func() {
		b, err := backtest.New(context.Background(), "sip", params, time.Time{}, time.Time{}, manager, cfg)
		Expect(err).To(BeNil())
		Expect(b.Portfolio.Cash).To(BeNumerically("~", 0, 1e-6))
		Expect(b.Portfolio.PositionUnits("NIFTY")).To(BeNumerically(">", 0))
	})

	It("should honor the requested date range", func() {
		b, err := backtest.New(context.Background(), "sip", params, dates[2], dates[5], manager, cfg)
		Expect(err).To(BeNil())
		Expect(b.Performance.Measurements).To(HaveLen(4))
		Expect(b.Performance.Measurements[0].Time).To(Equal(dates[2]))
	})

	It("should summarize metrics over the run", func() {
		b, err := backtest.New(context.Background(), "sip", params, time.Time{}, time.Time{}, manager, cfg)
		Expect(err).To(BeNil())
		Expect(b.Performance.PortfolioMetrics).ToNot(BeNil())
		Expect(b.Performance.PortfolioMetrics.FinalBalance).To(BeNumerically(">", 0))
	})

	Describe("with final liquidation", func() {
		BeforeEach(func() {
			cfg.SellAll = true
			cfg.Costs = portfolio.DefaultCostConfig()
		})

		It("should sell every unit and trace the lot depletion", func() {
			b, err := backtest.New(context.Background(), "sip", params, time.Time{}, time.Time{}, manager, cfg)
			Expect(err).To(BeNil())
			Expect(b.Portfolio.PositionUnits("NIFTY")).To(Equal(0.0))

			last := b.Portfolio.TradeLog[len(b.Portfolio.TradeLog)-1]
			Expect(last.Kind).To(Equal(portfolio.SellTrade))
			Expect(last.FIFOLog).ToNot(BeEmpty())
		})

		It("should restate the final measurement as the liquidation proceeds", func() {
			b, err := backtest.New(context.Background(), "sip", params, time.Time{}, time.Time{}, manager, cfg)
			Expect(err).To(BeNil())
			final := b.Performance.Measurements[len(b.Performance.Measurements)-1]
			Expect(final.Value).To(BeNumerically("~", b.Portfolio.Cash, 1e-6))
		})
	})

	It("should reject unknown strategy shortcodes", func() {
		_, err := backtest.New(context.Background(), "nope", params, time.Time{}, time.Time{}, manager, cfg)
		Expect(err).To(MatchError(backtest.ErrStrategyNotFound))
	})
})
