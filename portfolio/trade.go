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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

const (
	SourceName = "SV"
)

const (
	BuyTrade     = "BUY"
	SellTrade    = "SELL"
	DepositTrade = "DEPOSIT"
)

// CashFund is the pseudo-fund deposits are recorded against.
const CashFund = "$CASH"

// Trade is an immutable record of a completed portfolio operation. BUY and
// SELL trades summarize a whole order; the per-lot breakdown of a sell is
// attached as FIFOLog lines when tracing was requested. Net cash flow is
// negative for buys and positive for sells and deposits.
type Trade struct {
	ID          []byte    `json:"id"`
	Date        time.Time `json:"date"`
	Fund        string    `json:"fund"`
	Kind        string    `json:"kind"`
	Units       float64   `json:"units"`
	NAV         float64   `json:"nav"`
	GrossValue  float64   `json:"grossValue"`
	ExitLoad    float64   `json:"exitLoad"`
	TaxFee      float64   `json:"taxFee"`
	TxnFee      float64   `json:"txnFee"`
	NetCashFlow float64   `json:"netCashFlow"`
	FIFOLog     []string  `json:"fifoLog,omitempty"`
	Source      string    `json:"source"`
	SourceID    string    `json:"sourceId"`
}

func newTrade(date time.Time, fund string, kind string, units float64, nav float64) *Trade {
	trxID, err := uuid.New().MarshalBinary()
	if err != nil {
		log.Warn().Stack().Err(err).Msg("could not marshal uuid to binary")
	}
	t := &Trade{
		ID:     trxID,
		Date:   date,
		Fund:   fund,
		Kind:   kind,
		Units:  units,
		NAV:    nav,
		Source: SourceName,
	}
	return t
}

// computeTradeSourceID calculates a 16-byte blake3 hash over the fields that
// identify a trade so replayed runs produce stable identifiers.
func computeTradeSourceID(t *Trade) error {
	h := blake3.New()

	d, err := t.Date.UTC().MarshalText()
	if err != nil {
		return err
	}

	if _, err := h.Write(d); err != nil {
		log.Error().Stack().Err(err).Msg("could not write date to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(t.Source)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write source to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(t.Fund)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write fund to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(t.Kind)); err != nil {
		log.Error().Stack().Err(err).Msg("could not write kind to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", t.NAV))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write nav to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", t.Units))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write units to blake3 hasher")
		return err
	}

	if _, err := h.Write([]byte(fmt.Sprintf("%.5f", t.GrossValue))); err != nil {
		log.Error().Stack().Err(err).Msg("could not write gross value to blake3 hasher")
		return err
	}

	digest := h.Digest()
	buf := make([]byte, 16)
	n, err := digest.Read(buf)
	if err != nil {
		return err
	}
	if n != 16 {
		return ErrGenerateHash
	}

	t.SourceID = hex.EncodeToString(buf)
	return nil
}
