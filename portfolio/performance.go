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
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization scale for daily return series.
const TradingDaysPerYear = 252

// Measurement is one point on the portfolio equity curve.
type Measurement struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Metrics summarizes a backtest run. Degenerate inputs (empty curve, zero
// variance) yield NaN rather than a fabricated number.
type Metrics struct {
	CAGR                 float64 `json:"cagr"`
	AnnualizedVolatility float64 `json:"annualizedVolatility"`
	SharpeRatio          float64 `json:"sharpeRatio"`
	SortinoRatio         float64 `json:"sortinoRatio"`
	MaxDrawDown          float64 `json:"maxDrawDown"`
	CVaR95               float64 `json:"cvar95"`
	FinalBalance         float64 `json:"finalBalance"`
	Days                 int     `json:"days"`
}

// Performance accumulates equity measurements for a portfolio and computes
// summary metrics over them.
type Performance struct {
	PortfolioID      []byte         `json:"portfolioId"`
	Measurements     []*Measurement `json:"measurements"`
	PortfolioMetrics *Metrics       `json:"metrics"`
}

// NewPerformance creates an empty performance series for the portfolio.
func NewPerformance(p *Portfolio) *Performance {
	return &Performance{
		PortfolioID:  p.ID,
		Measurements: make([]*Measurement, 0, 252),
	}
}

// AddMeasurement appends an equity observation. Measurements are expected in
// chronological order, one per NAV date.
func (perf *Performance) AddMeasurement(date time.Time, value float64) {
	perf.Measurements = append(perf.Measurements, &Measurement{Time: date, Value: value})
}

// DailyReturns computes period-over-period percentage change of the equity
// curve; the first element is 0 so the series lines up with the curve.
func (perf *Performance) DailyReturns() []float64 {
	n := len(perf.Measurements)
	if n == 0 {
		return nil
	}
	returns := make([]float64, n)
	for ii := 1; ii < n; ii++ {
		prev := perf.Measurements[ii-1].Value
		if prev == 0 {
			returns[ii] = 0
			continue
		}
		returns[ii] = perf.Measurements[ii].Value/prev - 1
	}
	return returns
}

// CAGR is the compound annual growth rate of the equity curve using
// 365.25-day years.
func (perf *Performance) CAGR() float64 {
	n := len(perf.Measurements)
	if n == 0 {
		return math.NaN()
	}
	startV := perf.Measurements[0].Value
	endV := perf.Measurements[n-1].Value
	if startV <= 0 || endV <= 0 {
		return math.NaN()
	}
	days := perf.Measurements[n-1].Time.Sub(perf.Measurements[0].Time).Hours() / 24
	years := days / 365.25
	if years <= 0 {
		return math.NaN()
	}
	return math.Pow(endV/startV, 1/years) - 1
}

// MaxDrawDown is the deepest peak-to-trough loss of the equity curve,
// expressed as a negative fraction.
func (perf *Performance) MaxDrawDown() float64 {
	if len(perf.Measurements) == 0 {
		return math.NaN()
	}
	rollMax := math.Inf(-1)
	minDD := 0.0
	for _, meas := range perf.Measurements {
		if meas.Value > rollMax {
			rollMax = meas.Value
		}
		if rollMax > 0 {
			dd := meas.Value/rollMax - 1
			if dd < minDD {
				minDD = dd
			}
		}
	}
	return minDD
}

// AnnualizedVolatility scales the population standard deviation of daily
// returns by sqrt(TradingDaysPerYear).
func (perf *Performance) AnnualizedVolatility() float64 {
	returns := perf.DailyReturns()
	if len(returns) == 0 {
		return math.NaN()
	}
	return popStdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio computes the annualized sharpe ratio of daily returns over the
// daily risk-free rate rf.
func (perf *Performance) SharpeRatio(rf float64) float64 {
	returns := perf.DailyReturns()
	if len(returns) == 0 {
		return math.NaN()
	}
	excess := make([]float64, len(returns))
	for ii, r := range returns {
		excess[ii] = r - rf
	}
	std := popStdDev(excess)
	if std == 0 {
		return math.NaN()
	}
	return stat.Mean(excess, nil) / std * math.Sqrt(TradingDaysPerYear)
}

// SortinoRatio penalizes only downside deviation below rf.
func (perf *Performance) SortinoRatio(rf float64) float64 {
	returns := perf.DailyReturns()
	if len(returns) == 0 {
		return math.NaN()
	}
	var downsideSq float64
	var downsideN int
	for _, r := range returns {
		if r < rf {
			d := r - rf
			downsideSq += d * d
			downsideN++
		}
	}
	if downsideN == 0 {
		return math.NaN()
	}
	denom := math.Sqrt(downsideSq / float64(downsideN))
	if denom == 0 || math.IsNaN(denom) {
		return math.NaN()
	}
	return (stat.Mean(returns, nil) - rf) / denom * math.Sqrt(TradingDaysPerYear)
}

// CVaR is the conditional value-at-risk of daily returns: the mean of the
// tail at or below the empirical (1-alpha) quantile.
func (perf *Performance) CVaR(alpha float64) float64 {
	returns := perf.DailyReturns()
	if len(returns) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	cutoff := stat.Quantile(1-alpha, stat.Empirical, sorted, nil)

	var tailSum float64
	var tailN int
	for _, r := range sorted {
		if r <= cutoff {
			tailSum += r
			tailN++
		}
	}
	if tailN == 0 {
		return math.NaN()
	}
	return tailSum / float64(tailN)
}

// Summarize computes all summary metrics over the measurement series.
func (perf *Performance) Summarize(rfDaily float64) *Metrics {
	metrics := &Metrics{
		CAGR:                 perf.CAGR(),
		AnnualizedVolatility: perf.AnnualizedVolatility(),
		SharpeRatio:          perf.SharpeRatio(rfDaily),
		SortinoRatio:         perf.SortinoRatio(rfDaily),
		MaxDrawDown:          perf.MaxDrawDown(),
		CVaR95:               perf.CVaR(0.95),
	}
	if n := len(perf.Measurements); n > 0 {
		metrics.FinalBalance = perf.Measurements[n-1].Value
		metrics.Days = int(perf.Measurements[n-1].Time.Sub(perf.Measurements[0].Time).Hours() / 24)
	}
	perf.PortfolioMetrics = metrics
	return metrics
}

// popStdDev is the population (ddof=0) standard deviation.
func popStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(xs, nil)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
