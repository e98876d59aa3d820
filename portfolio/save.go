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
	"encoding/hex"

	"github.com/goccy/go-json"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/common"
	"github.com/sip-vault/sip-api/database"
)

// Save persists the portfolio and its trade log to the database.
func (p *Portfolio) Save(ctx context.Context) error {
	subLog := log.With().Str("PortfolioID", hex.EncodeToString(p.ID)).Str("Name", p.Name).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("unable to get database transaction")
		return err
	}

	if err := p.SaveWithTransaction(ctx, trx); err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to save portfolio")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("failed to commit portfolio transaction")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	return nil
}

// SaveWithTransaction upserts the portfolio row and every trade inside an
// existing transaction.
func (p *Portfolio) SaveWithTransaction(ctx context.Context, trx pgx.Tx) error {
	portfolioSQL := `
	INSERT INTO portfolios (
		"id",
		"name",
		"funds",
		"cash",
		"start_date",
		"end_date",
		"cost_config",
		"lots"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	) ON CONFLICT ON CONSTRAINT portfolios_pkey
	DO UPDATE SET
		name=$2,
		funds=$3,
		cash=$4,
		start_date=$5,
		end_date=$6,
		cost_config=$7,
		lots=$8`

	costConfig, err := json.Marshal(p.Costs)
	if err != nil {
		log.Error().Stack().Err(err).Msg("failed to marshal cost config")
		return err
	}
	lots, err := json.Marshal(p.lots)
	if err != nil {
		log.Error().Stack().Err(err).Msg("failed to marshal lot ledgers")
		return err
	}

	if _, err := trx.Exec(ctx, portfolioSQL, p.ID, p.Name, p.Funds, p.Cash,
		p.StartDate, p.EndDate, costConfig, lots); err != nil {
		log.Error().Stack().Err(err).Str("Query", portfolioSQL).Msg("failed to save portfolio")
		return err
	}

	return p.saveTrades(ctx, trx)
}

func (p *Portfolio) saveTrades(ctx context.Context, trx pgx.Tx) error {
	log.Info().
		Str("PortfolioID", hex.EncodeToString(p.ID)).
		Str("PortfolioName", p.Name).
		Int("NumTrades", len(p.TradeLog)).
		Msg("saving portfolio trades")

	tradeSQL := `
	INSERT INTO portfolio_trades (
		"id",
		"portfolio_id",
		"event_date",
		"fund",
		"kind",
		"units",
		"nav",
		"gross_value",
		"exit_load",
		"tax_fee",
		"txn_fee",
		"net_cash_flow",
		"fifo_log",
		"source",
		"source_id",
		"sequence_num"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, decode($15, 'hex'), $16
	) ON CONFLICT ON CONSTRAINT portfolio_trades_pkey
	DO UPDATE SET
		event_date=$3,
		fund=$4,
		kind=$5,
		units=$6,
		nav=$7,
		gross_value=$8,
		exit_load=$9,
		tax_fee=$10,
		txn_fee=$11,
		net_cash_flow=$12,
		fifo_log=$13,
		source=$14,
		source_id=decode($15, 'hex'),
		sequence_num=$16`

	for idx, t := range p.TradeLog {
		var fifoBlob []byte
		if len(t.FIFOLog) > 0 {
			raw, err := json.Marshal(t.FIFOLog)
			if err != nil {
				log.Error().Err(err).Msg("could not marshal fifo log")
				return err
			}
			fifoBlob, err = common.Compress(raw)
			if err != nil {
				return err
			}
		}

		if _, err := trx.Exec(ctx, tradeSQL,
			t.ID,          // 1
			p.ID,          // 2
			t.Date,        // 3
			t.Fund,        // 4
			t.Kind,        // 5
			t.Units,       // 6
			t.NAV,         // 7
			t.GrossValue,  // 8
			t.ExitLoad,    // 9
			t.TaxFee,      // 10
			t.TxnFee,      // 11
			t.NetCashFlow, // 12
			fifoBlob,      // 13
			t.Source,      // 14
			t.SourceID,    // 15
			idx,           // 16
		); err != nil {
			log.Warn().Stack().Err(err).
				Str("PortfolioID", hex.EncodeToString(p.ID)).
				Str("TradeID", hex.EncodeToString(t.ID)).
				Str("Kind", t.Kind).
				Str("Fund", t.Fund).
				Int("Idx", idx).
				Msg("failed to save trade")
			return err
		}
	}

	return nil
}

// LoadFromDB restores a portfolio and its trade log from the database.
func LoadFromDB(ctx context.Context, portfolioID []byte) (*Portfolio, error) {
	subLog := log.With().Str("PortfolioID", hex.EncodeToString(portfolioID)).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("unable to get database transaction")
		return nil, err
	}

	portfolioSQL := `SELECT
		id,
		name,
		funds,
		cash,
		start_date,
		end_date,
		cost_config,
		lots
	FROM portfolios
	WHERE id=$1`

	p := &Portfolio{
		TradeLog: []*Trade{},
		lots:     make(map[string][]*Lot),
	}
	var costConfig []byte
	var lots []byte
	row := trx.QueryRow(ctx, portfolioSQL, portfolioID)
	if err := row.Scan(&p.ID, &p.Name, &p.Funds, &p.Cash, &p.StartDate, &p.EndDate, &costConfig, &lots); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not load portfolio from database")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrPortfolioNotFound
	}
	if err := json.Unmarshal(costConfig, &p.Costs); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not unmarshal cost config")
		return nil, err
	}
	if err := json.Unmarshal(lots, &p.lots); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not unmarshal lot ledgers")
		return nil, err
	}

	if err := p.loadTrades(ctx, trx); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction to database")
	}
	return p, nil
}

func (p *Portfolio) loadTrades(ctx context.Context, trx pgx.Tx) error {
	tradeSQL := `SELECT
		id,
		event_date,
		fund,
		kind,
		units,
		nav,
		gross_value,
		exit_load,
		tax_fee,
		txn_fee,
		net_cash_flow,
		fifo_log,
		source,
		encode(source_id, 'hex')
	FROM portfolio_trades
	WHERE portfolio_id=$1
	ORDER BY sequence_num`

	rows, err := trx.Query(ctx, tradeSQL, p.ID)
	if err != nil {
		log.Error().Stack().Err(err).Str("Query", tradeSQL).Msg("could not load portfolio trades from database")
		return err
	}

	trades := make([]*Trade, 0, 1000)
	for rows.Next() {
		t := &Trade{}
		var fifoBlob []byte
		var sourceID pgtype.Text

		if err := rows.Scan(&t.ID, &t.Date, &t.Fund, &t.Kind, &t.Units, &t.NAV,
			&t.GrossValue, &t.ExitLoad, &t.TaxFee, &t.TxnFee, &t.NetCashFlow,
			&fifoBlob, &t.Source, &sourceID); err != nil {
			log.Warn().Stack().Err(err).Msg("failed scanning row into trade fields")
			return err
		}

		if sourceID.Status == pgtype.Present {
			t.SourceID = sourceID.String
		}
		if len(fifoBlob) > 0 {
			raw, err := common.Decompress(fifoBlob)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &t.FIFOLog); err != nil {
				log.Warn().Stack().Err(err).Msg("could not unmarshal fifo log")
				return err
			}
		}

		trades = append(trades, t)
	}
	p.TradeLog = trades
	return nil
}
