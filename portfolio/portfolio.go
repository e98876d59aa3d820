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

package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNAVNotAvailable   = errors.New("fund nav not available for date")
	ErrGenerateHash      = errors.New("could not create a new hash")
	ErrPortfolioNotFound = errors.New("could not find portfolio ID in database")
)

// Portfolio owns a cash balance, per-fund FIFO lot ledgers, and an
// append-only trade log. It is mutable state for the duration of a single
// backtest run and expects one sequential caller; run concurrent strategies
// against independent instances.
type Portfolio struct {
	ID        []byte
	Name      string
	Funds     []string
	Cash      float64
	StartDate time.Time
	EndDate   time.Time
	Costs     CostConfig
	TradeLog  []*Trade

	lots map[string][]*Lot
}

// NewPortfolio creates a portfolio holding the given funds. A positive
// initial balance is recorded as a DEPOSIT trade dated at startDate.
func NewPortfolio(name string, funds []string, startDate time.Time, initial float64, costs CostConfig) *Portfolio {
	id, _ := uuid.New().MarshalBinary()
	p := &Portfolio{
		ID:        id,
		Name:      name,
		Funds:     funds,
		StartDate: startDate,
		Costs:     costs,
		TradeLog:  []*Trade{},
		lots:      make(map[string][]*Lot, len(funds)),
	}
	for _, fund := range funds {
		p.lots[fund] = []*Lot{}
	}
	if initial > 0 {
		p.Deposit(startDate, initial)
	}
	return p
}

// Deposit adds external cash to the portfolio and records a DEPOSIT trade.
// Non-positive amounts are a no-op.
func (p *Portfolio) Deposit(date time.Time, amount float64) {
	if amount <= 0 {
		return
	}
	t := newTrade(date, CashFund, DepositTrade, amount, 1.0)
	t.GrossValue = amount
	t.NetCashFlow = amount
	if err := computeTradeSourceID(t); err != nil {
		log.Warn().Stack().Err(err).Time("TradeDate", date).Str("TradeKind", DepositTrade).Msg("couldn't compute SourceID for deposit")
	}
	p.Cash += amount
	p.TradeLog = append(p.TradeLog, t)
}

// PositionUnits returns the units currently held in fund.
func (p *Portfolio) PositionUnits(fund string) float64 {
	return totalUnits(p.lots[fund])
}

// PositionValue returns the value of the fund position at the given NAV.
func (p *Portfolio) PositionValue(fund string, nav float64) float64 {
	return p.PositionUnits(fund) * nav
}

// LotLedger returns a snapshot of the fund's remaining lots, oldest first.
// Intended for diagnostics; mutating the returned lots has no effect on the
// portfolio.
func (p *Portfolio) LotLedger(fund string) []Lot {
	lots := p.lots[fund]
	snapshot := make([]Lot, 0, len(lots))
	for _, lot := range lots {
		snapshot = append(snapshot, *lot)
	}
	return snapshot
}

// TotalValue computes cash plus the value of every fund position. navs must
// carry a price for every fund in the portfolio; a missing fund is an error
// rather than a silent zero because substituting a default would corrupt the
// valuation.
func (p *Portfolio) TotalValue(navs map[string]float64) (float64, error) {
	value := p.Cash
	for _, fund := range p.Funds {
		nav, ok := navs[fund]
		if !ok || math.IsNaN(nav) {
			log.Warn().Stack().Str("Fund", fund).Msg("fund nav not available")
			return 0, ErrNAVNotAvailable
		}
		value += p.PositionValue(fund, nav)
	}
	return value, nil
}

// CurrentWeights returns each fund's fraction of total portfolio value. When
// total value is zero or negative every weight is zero, which keeps callers
// out of division-by-zero territory on an empty portfolio.
func (p *Portfolio) CurrentWeights(navs map[string]float64) (map[string]float64, error) {
	total, err := p.TotalValue(navs)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(p.Funds))
	for _, fund := range p.Funds {
		weights[fund] = 0
	}
	if total <= 0 {
		return weights, nil
	}
	for _, fund := range p.Funds {
		weights[fund] = p.PositionValue(fund, navs[fund]) / total
	}
	return weights, nil
}

// Buy converts cashToSpend into fund units at the given NAV. The transaction
// fee is carved out of the spend so the full cashToSpend leaves the cash
// balance while only the net amount buys units. Non-positive spends and
// degenerate unit counts are silent no-ops.
func (p *Portfolio) Buy(date time.Time, fund string, cashToSpend float64, nav float64) {
	if cashToSpend <= 0 {
		return
	}
	txnFee := feeFromBPS(cashToSpend, p.Costs.TxnCostBPS)
	netCash := cashToSpend - txnFee
	units := netCash / nav
	if units <= 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		log.Warn().Stack().Str("Fund", fund).Float64("NAV", nav).Float64("CashToSpend", cashToSpend).Msg("refusing to buy 0 units")
		return
	}

	p.lots[fund] = append(p.lots[fund], &Lot{Date: date, Fund: fund, Units: units, NAVAtBuy: nav})
	p.Cash -= cashToSpend

	t := newTrade(date, fund, BuyTrade, units, nav)
	t.GrossValue = cashToSpend
	t.TxnFee = txnFee
	t.NetCashFlow = -cashToSpend
	if err := computeTradeSourceID(t); err != nil {
		log.Warn().Stack().Err(err).Time("TradeDate", date).Str("TradeFund", fund).Str("TradeKind", BuyTrade).Msg("couldn't compute SourceID for trade")
	}
	p.TradeLog = append(p.TradeLog, t)
	p.extendEndDate(date)
}

type saleResult struct {
	units    float64
	gross    float64
	exitLoad float64
	taxFee   float64
	txnFee   float64
	netCash  float64
	fifoLog  []string
}

// applyCostsOnSell depletes the fund's lot ledger oldest-first, charging exit
// load, tax, and transaction fees on the gross value of each depleted slice.
// Fees are per slice because one sale can span lots with different holding
// periods and therefore different exit-load tiers.
func (p *Portfolio) applyCostsOnSell(date time.Time, fund string, unitsToSell float64, nav float64, trace bool) saleResult {
	var res saleResult
	unitsLeft := unitsToSell

	remaining := make([]*Lot, 0, len(p.lots[fund]))
	for _, lot := range p.lots[fund] {
		if unitsLeft <= 0 {
			remaining = append(remaining, lot)
			continue
		}

		useUnits := math.Min(lot.Units, unitsLeft)
		sliceValue := useUnits * nav
		holdingDays := int(date.Sub(lot.Date).Hours() / 24)

		exitFee := feeFromBPS(sliceValue, p.Costs.ExitLoadSchedule.RateBPS(holdingDays))
		taxFee := feeFromBPS(sliceValue, p.Costs.TaxSellBPS)
		txnFee := feeFromBPS(sliceValue, p.Costs.TxnCostBPS)

		res.gross += sliceValue
		res.exitLoad += exitFee
		res.taxFee += taxFee
		res.txnFee += txnFee
		res.units += useUnits

		if trace {
			res.fifoLog = append(res.fifoLog, fmt.Sprintf(
				"Lot %s -> sold %.2f units @ %.2f; exit_load=%.2f, stt=%.2f, txn=%.2f",
				lot.Date.Format("2006-01-02"), useUnits, nav, exitFee, taxFee, txnFee))
		}

		if left := lot.Units - useUnits; left > 0 {
			remaining = append(remaining, &Lot{Date: lot.Date, Fund: lot.Fund, Units: left, NAVAtBuy: lot.NAVAtBuy})
		}
		unitsLeft -= useUnits
	}

	p.lots[fund] = remaining
	res.netCash = res.gross - (res.exitLoad + res.taxFee + res.txnFee)
	return res
}

// Sell disposes of up to units of the fund at the given NAV, FIFO. Requests
// beyond the available inventory sell everything held; the engine never
// shorts. Selling from an empty ledger is a silent no-op. On success exactly
// one SELL trade summarizing the whole order is appended, carrying the
// per-lot trace lines when trace is set.
func (p *Portfolio) Sell(date time.Time, fund string, units float64, nav float64, trace bool) {
	res := p.applyCostsOnSell(date, fund, units, nav, trace)
	if res.units <= 0 {
		return
	}

	p.Cash += res.netCash

	t := newTrade(date, fund, SellTrade, res.units, nav)
	t.GrossValue = res.gross
	t.ExitLoad = res.exitLoad
	t.TaxFee = res.taxFee
	t.TxnFee = res.txnFee
	t.NetCashFlow = res.netCash
	if trace {
		t.FIFOLog = res.fifoLog
	}
	if err := computeTradeSourceID(t); err != nil {
		log.Warn().Stack().Err(err).Time("TradeDate", date).Str("TradeFund", fund).Str("TradeKind", SellTrade).Msg("couldn't compute SourceID for trade")
	}
	p.TradeLog = append(p.TradeLog, t)
	p.extendEndDate(date)
}

// Rebalance moves the portfolio toward targetWeights, bounded by
// turnoverCap. Sells run first against an aggregate budget of total value
// times the cap, consumed first-come-first-served in fund order; buys then
// spend up to min(cash, total value times cap) the same way. The two phases
// are capped independently -- a known simplification preserved for
// compatibility with prior runs.
func (p *Portfolio) Rebalance(ctx context.Context, date time.Time, navs map[string]float64, targetWeights map[string]float64, turnoverCap float64) error {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Rebalance")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "date",
		Value: attribute.StringValue(date.Format("2006-01-02")),
	})

	totalValue, err := p.TotalValue(navs)
	if err != nil {
		return err
	}
	currWeights, err := p.CurrentWeights(navs)
	if err != nil {
		return err
	}

	targetValue := make(map[string]float64, len(p.Funds))
	currValue := make(map[string]float64, len(p.Funds))
	for _, fund := range p.Funds {
		targetValue[fund] = targetWeights[fund] * totalValue
		currValue[fund] = currWeights[fund] * totalValue
	}

	sellBudget := totalValue * turnoverCap
	for _, fund := range p.Funds {
		delta := targetValue[fund] - currValue[fund]
		if delta >= 0 || sellBudget <= 0 {
			continue
		}
		valueToSell := math.Min(-delta, sellBudget)
		unitsToSell := valueToSell / navs[fund]
		p.Sell(date, fund, unitsToSell, navs[fund], false)
		sellBudget -= valueToSell
	}

	cashAvailable := math.Min(p.Cash, totalValue*turnoverCap)
	for _, fund := range p.Funds {
		delta := targetValue[fund] - currValue[fund]
		if delta <= 0 || cashAvailable <= 0 {
			continue
		}
		spend := math.Min(delta, cashAvailable)
		p.Buy(date, fund, spend, navs[fund])
		cashAvailable -= spend
	}

	return nil
}

func (p *Portfolio) extendEndDate(date time.Time) {
	if date.After(p.EndDate) {
		p.EndDate = date
	}
}
