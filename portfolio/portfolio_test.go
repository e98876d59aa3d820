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

package portfolio_test

import (
	"context"
	"math"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sip-vault/sip-api/portfolio"
)

var _ = Describe("Portfolio", func() {
	var (
		p       *portfolio.Portfolio
		jan     time.Time
		feb     time.Time
		mar     time.Time
		apr     time.Time
		noCosts portfolio.CostConfig
	)

	BeforeEach(func() {
		jan = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		feb = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		mar = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		apr = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
		noCosts = portfolio.CostConfig{}
	})

	Describe("when depositing cash", func() {
		BeforeEach(func() {
			p = portfolio.NewPortfolio("Test", []string{"NIFTY"}, jan, 0, portfolio.DefaultCostConfig())
		})

		It("should add the amount to the cash balance", func() {
			p.Deposit(jan, 1000)
			Expect(p.Cash).To(Equal(1000.0))
		})

		It("should record a DEPOSIT trade", func() {
			p.Deposit(jan, 1000)
			Expect(p.TradeLog).To(HaveLen(1))
			Expect(p.TradeLog[0].Kind).To(Equal(portfolio.DepositTrade))
			Expect(p.TradeLog[0].Fund).To(Equal(portfolio.CashFund))
			Expect(p.TradeLog[0].NetCashFlow).To(Equal(1000.0))
		})

		It("should ignore non-positive amounts", func() {
			p.Deposit(jan, 0)
			p.Deposit(jan, -50)
			Expect(p.Cash).To(Equal(0.0))
			Expect(p.TradeLog).To(BeEmpty())
		})
	})

	Describe("when buying units", func() {
		BeforeEach(func() {
			p = portfolio.NewPortfolio("Test", []string{"NIFTY"}, jan, 10_000, portfolio.DefaultCostConfig())
		})

		It("should carve the transaction fee out of the spend", func() {
			p.Buy(jan, "NIFTY", 1000, 10)
			fee := 1000 * 2.0 / 1e4
			Expect(p.PositionUnits("NIFTY")).To(BeNumerically("~", (1000-fee)/10, 1e-9))
		})

		It("should deduct the full spend from cash", func() {
			p.Buy(jan, "NIFTY", 1000, 10)
			Expect(p.Cash).To(BeNumerically("~", 9000, 1e-9))
		})

		It("should append one lot per buy in acquisition order", func() {
			p.Buy(jan, "NIFTY", 1000, 10)
			p.Buy(feb, "NIFTY", 1000, 10)
			p.Buy(mar, "NIFTY", 1000, 10)
			lots := p.LotLedger("NIFTY")
			Expect(lots).To(HaveLen(3))
			Expect(lots[0].Date).To(Equal(jan))
			Expect(lots[1].Date).To(Equal(feb))
			Expect(lots[2].Date).To(Equal(mar))
		})

		It("should record a BUY trade with the fee", func() {
			p.Buy(jan, "NIFTY", 1000, 10)
			Expect(p.TradeLog).To(HaveLen(2))
			t := p.TradeLog[1]
			Expect(t.Kind).To(Equal(portfolio.BuyTrade))
			Expect(t.GrossValue).To(Equal(1000.0))
			Expect(t.TxnFee).To(BeNumerically("~", 0.2, 1e-9))
			Expect(t.ExitLoad).To(Equal(0.0))
			Expect(t.TaxFee).To(Equal(0.0))
			Expect(t.NetCashFlow).To(Equal(-1000.0))
		})

		It("should ignore non-positive spends", func() {
			p.Buy(jan, "NIFTY", 0, 10)
			p.Buy(jan, "NIFTY", -100, 10)
			Expect(p.PositionUnits("NIFTY")).To(Equal(0.0))
			Expect(p.Cash).To(Equal(10_000.0))
		})
	})

	Describe("when selling units FIFO", func() {
		BeforeEach(func() {
			p = portfolio.NewPortfolio("Test", []string{"NIFTY"}, jan, 0, portfolio.DefaultCostConfig())
			p.Deposit(jan, 3000)
			p.Buy(jan, "NIFTY", 1000, 10)
			p.Buy(feb, "NIFTY", 1000, 10)
			p.Buy(mar, "NIFTY", 1000, 10)
		})

		It("should deplete the oldest lot first", func() {
			p.Sell(apr, "NIFTY", 150, 12, true)
			lots := p.LotLedger("NIFTY")
			Expect(lots).To(HaveLen(2))
			Expect(lots[0].Date).To(Equal(feb))
			Expect(lots[1].Date).To(Equal(mar))
		})

		It("should leave the partially consumed lot with the remainder", func() {
			unitsPerLot := (1000 - 0.2) / 10
			p.Sell(apr, "NIFTY", 150, 12, false)
			lots := p.LotLedger("NIFTY")
			Expect(lots[0].Units).To(BeNumerically("~", 2*unitsPerLot-150, 1e-9))
		})

		It("should conserve units across the sale", func() {
			before := p.PositionUnits("NIFTY")
			p.Sell(apr, "NIFTY", 150, 12, false)
			Expect(p.PositionUnits("NIFTY")).To(BeNumerically("~", before-150, 1e-9))
		})

		It("should charge exit load, tax, and transaction fees per slice", func() {
			p.Sell(apr, "NIFTY", 150, 12, false)
			t := p.TradeLog[len(p.TradeLog)-1]
			gross := 150 * 12.0
			Expect(t.Kind).To(Equal(portfolio.SellTrade))
			Expect(t.GrossValue).To(BeNumerically("~", gross, 1e-9))
			Expect(t.ExitLoad).To(BeNumerically("~", gross*100/1e4, 1e-9))
			Expect(t.TaxFee).To(BeNumerically("~", gross*10/1e4, 1e-9))
			Expect(t.TxnFee).To(BeNumerically("~", gross*2/1e4, 1e-9))
			Expect(t.NetCashFlow).To(BeNumerically("~", gross-t.ExitLoad-t.TaxFee-t.TxnFee, 1e-9))
		})

		It("should add the net proceeds to cash", func() {
			before := p.Cash
			p.Sell(apr, "NIFTY", 150, 12, false)
			gross := 150 * 12.0
			net := gross - gross*(100+10+2)/1e4
			Expect(p.Cash).To(BeNumerically("~", before+net, 1e-9))
		})

		It("should attach one trace line per depleted slice when requested", func() {
			p.Sell(apr, "NIFTY", 150, 12, true)
			t := p.TradeLog[len(p.TradeLog)-1]
			Expect(t.FIFOLog).To(HaveLen(2))
			Expect(t.FIFOLog[0]).To(HavePrefix("Lot 2025-01-01"))
			Expect(t.FIFOLog[1]).To(HavePrefix("Lot 2025-02-01"))
			Expect(strings.Contains(t.FIFOLog[0], "exit_load=")).To(BeTrue())
		})

		It("should omit trace lines when not requested", func() {
			p.Sell(apr, "NIFTY", 150, 12, false)
			t := p.TradeLog[len(p.TradeLog)-1]
			Expect(t.FIFOLog).To(BeEmpty())
		})

		It("should clamp oversells to the available inventory", func() {
			held := p.PositionUnits("NIFTY")
			p.Sell(apr, "NIFTY", held*10, 12, false)
			Expect(p.PositionUnits("NIFTY")).To(Equal(0.0))
			t := p.TradeLog[len(p.TradeLog)-1]
			Expect(t.Units).To(BeNumerically("~", held, 1e-9))
		})

		It("should treat a sale from an empty ledger as a no-op", func() {
			held := p.PositionUnits("NIFTY")
			p.Sell(apr, "NIFTY", held, 12, false)
			n := len(p.TradeLog)
			p.Sell(apr, "NIFTY", 10, 12, false)
			Expect(p.TradeLog).To(HaveLen(n))
		})

		It("should treat non-positive unit requests as a no-op", func() {
			n := len(p.TradeLog)
			cash := p.Cash
			p.Sell(apr, "NIFTY", 0, 12, false)
			p.Sell(apr, "NIFTY", -5, 12, false)
			Expect(p.TradeLog).To(HaveLen(n))
			Expect(p.Cash).To(Equal(cash))
		})
	})

	Describe("when valuing the portfolio", func() {
		BeforeEach(func() {
			p = portfolio.NewPortfolio("Test", []string{"A", "B"}, jan, 0, noCosts)
			p.Deposit(jan, 1000)
			p.Buy(jan, "A", 500, 10)
		})

		It("should compute cash plus position values", func() {
			total, err := p.TotalValue(map[string]float64{"A": 12, "B": 1})
			Expect(err).To(BeNil())
			Expect(total).To(BeNumerically("~", 500+50*12, 1e-9))
		})

		It("should error when a fund NAV is missing", func() {
			_, err := p.TotalValue(map[string]float64{"A": 12})
			Expect(err).To(MatchError(portfolio.ErrNAVNotAvailable))
		})

		It("should error when a fund NAV is NaN", func() {
			_, err := p.TotalValue(map[string]float64{"A": 12, "B": math.NaN()})
			Expect(err).To(MatchError(portfolio.ErrNAVNotAvailable))
		})

		It("should compute current weights", func() {
			weights, err := p.CurrentWeights(map[string]float64{"A": 10, "B": 1})
			Expect(err).To(BeNil())
			Expect(weights["A"]).To(BeNumerically("~", 0.5, 1e-9))
			Expect(weights["B"]).To(Equal(0.0))
		})

		It("should return all-zero weights for an empty portfolio", func() {
			empty := portfolio.NewPortfolio("Empty", []string{"A"}, jan, 0, noCosts)
			weights, err := empty.CurrentWeights(map[string]float64{"A": 10})
			Expect(err).To(BeNil())
			Expect(weights["A"]).To(Equal(0.0))
		})
	})

	Describe("when rebalancing with a turnover cap", func() {
		var navs map[string]float64

		BeforeEach(func() {
			p = portfolio.NewPortfolio("Test", []string{"A", "B"}, jan, 0, noCosts)
			p.Deposit(jan, 10_000)
			p.Buy(jan, "A", 10_000, 10)
			navs = map[string]float64{"A": 10, "B": 25}
		})

		It("should cap the value sold at totalValue times the cap", func() {
			err := p.Rebalance(context.Background(), feb, navs, map[string]float64{"A": 0, "B": 1}, 0.25)
			Expect(err).To(BeNil())
			// 2500 of A sold at 10
			Expect(p.PositionUnits("A")).To(BeNumerically("~", 750, 1e-9))
		})

		It("should cap the value bought at min(cash, totalValue times cap)", func() {
			err := p.Rebalance(context.Background(), feb, navs, map[string]float64{"A": 0, "B": 1}, 0.25)
			Expect(err).To(BeNil())
			// sale proceeds of 2500 all go to B at 25
			Expect(p.PositionUnits("B")).To(BeNumerically("~", 100, 1e-9))
			Expect(p.Cash).To(BeNumerically("~", 0, 1e-9))
		})

		It("should consume the sell budget first-come-first-served in fund order", func() {
			multi := portfolio.NewPortfolio("Multi", []string{"A", "B", "C"}, jan, 0, noCosts)
			multi.Deposit(jan, 10_000)
			multi.Buy(jan, "A", 5_000, 10)
			multi.Buy(jan, "B", 5_000, 10)
			n := map[string]float64{"A": 10, "B": 10, "C": 10}
			err := multi.Rebalance(context.Background(), feb, n, map[string]float64{"A": 0, "B": 0, "C": 1}, 0.3)
			Expect(err).To(BeNil())
			// budget of 3000 exhausted entirely on A before B is reached
			Expect(multi.PositionUnits("A")).To(BeNumerically("~", 200, 1e-9))
			Expect(multi.PositionUnits("B")).To(BeNumerically("~", 500, 1e-9))
		})

		It("should leave a fully balanced portfolio untouched", func() {
			weights, err := p.CurrentWeights(navs)
			Expect(err).To(BeNil())
			n := len(p.TradeLog)
			err = p.Rebalance(context.Background(), feb, navs, weights, 0.25)
			Expect(err).To(BeNil())
			Expect(p.TradeLog).To(HaveLen(n))
		})

		It("should propagate missing NAV errors", func() {
			err := p.Rebalance(context.Background(), feb, map[string]float64{"A": 10}, map[string]float64{"A": 1, "B": 0}, 0.25)
			Expect(err).To(MatchError(portfolio.ErrNAVNotAvailable))
		})
	})
})
