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

package data

import "time"

// Allocation is a single step of a portfolio plan: cash deposited on Date
// and the fund weights the portfolio should hold afterwards. Justifications
// carry the indicator values the strategy used, for reporting.
type Allocation struct {
	Date           time.Time          `json:"date"`
	Deposit        float64            `json:"deposit"`
	TargetWeights  map[string]float64 `json:"targetWeights"`
	Justifications map[string]float64 `json:"justifications,omitempty"`
}

// PortfolioPlan is the chronological schedule a strategy hands the backtest
// runner.
type PortfolioPlan []*Allocation
