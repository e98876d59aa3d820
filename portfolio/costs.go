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

// ExitLoadTier charges BPS on the gross value of units sold within MaxDays
// of their acquisition.
type ExitLoadTier struct {
	MaxDays int     `json:"maxDays" toml:"max_days"`
	BPS     float64 `json:"bps" toml:"bps"`
}

// ExitLoadSchedule is an ordered list of tiers, ascending by MaxDays. The
// first tier whose MaxDays is >= the holding period wins; holding periods
// beyond every tier pay no exit load. The schedule is used as given -- it is
// the caller's responsibility to supply it pre-sorted.
type ExitLoadSchedule []ExitLoadTier

// RateBPS returns the exit-load rate in basis points for a holding period of
// holdingDays whole days.
func (schedule ExitLoadSchedule) RateBPS(holdingDays int) float64 {
	for _, tier := range schedule {
		if holdingDays <= tier.MaxDays {
			return tier.BPS
		}
	}
	return 0
}

// CostConfig captures the fee rates applied to trades. Rates are fixed at
// portfolio construction and are not validated; garbage in, garbage out.
type CostConfig struct {
	ExitLoadSchedule ExitLoadSchedule `json:"exitLoadSchedule" toml:"exit_load_schedule"`
	TaxSellBPS       float64          `json:"taxSellBps" toml:"tax_sell_bps"`
	TxnCostBPS       float64          `json:"txnCostBps" toml:"txn_cost_bps"`
}

// DefaultCostConfig mirrors a typical Indian mutual-fund fee structure: 100
// bps exit load inside one year, 10 bps STT on sells, and 2 bps transaction
// cost each way.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		ExitLoadSchedule: ExitLoadSchedule{{MaxDays: 365, BPS: 100}},
		TaxSellBPS:       10,
		TxnCostBPS:       2,
	}
}

// feeFromBPS converts a basis-point rate to a fee on grossValue.
func feeFromBPS(grossValue, bps float64) float64 {
	return grossValue * (bps / 1e4)
}
