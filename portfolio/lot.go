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

import "time"

// Lot records units of a fund acquired at a specific date and NAV. Lots are
// tracked separately per fund so holding-period fees and cost basis can be
// computed when units are sold. A lot never carries zero units: fully
// depleted lots are dropped from the ledger and partially depleted lots are
// replaced with a reduced-unit copy.
type Lot struct {
	Date     time.Time
	Fund     string
	Units    float64
	NAVAtBuy float64
}

// totalUnits sums the remaining units across a fund's ledger.
func totalUnits(lots []*Lot) float64 {
	var units float64
	for _, lot := range lots {
		units += lot.Units
	}
	return units
}
