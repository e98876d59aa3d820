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
	"encoding/hex"

	"github.com/rs/zerolog"
)

func (o *Lot) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Date", o.Date).Str("Fund", o.Fund).Float64("Units", o.Units).Float64("NAVAtBuy", o.NAVAtBuy)
}

func (o *Trade) MarshalZerologObject(e *zerolog.Event) {
	e.Str("TradeID", hex.EncodeToString(o.ID)).
		Time("Date", o.Date).
		Str("Kind", o.Kind).
		Str("Fund", o.Fund).
		Float64("Units", o.Units).
		Float64("NAV", o.NAV).
		Float64("GrossValue", o.GrossValue).
		Float64("ExitLoad", o.ExitLoad).
		Float64("TaxFee", o.TaxFee).
		Float64("TxnFee", o.TxnFee).
		Float64("NetCashFlow", o.NetCashFlow)
}

func (metrics *Metrics) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("CAGR", metrics.CAGR)
	e.Float64("AnnualizedVolatility", metrics.AnnualizedVolatility)
	e.Float64("SharpeRatio", metrics.SharpeRatio)
	e.Float64("SortinoRatio", metrics.SortinoRatio)
	e.Float64("MaxDrawDown", metrics.MaxDrawDown)
	e.Float64("CVaR95", metrics.CVaR95)
	e.Float64("FinalBalance", metrics.FinalBalance)
	e.Int("Days", metrics.Days)
}
