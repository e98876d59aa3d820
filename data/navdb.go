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

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/database"
)

// NavDB loads end-of-day NAV series from the eod_nav Postgres table.
type NavDB struct{}

func NewNavDB() *NavDB {
	return &NavDB{}
}

// GetEOD fetches the NAV series for fund over [begin, end] inclusive.
func (db *NavDB) GetEOD(ctx context.Context, fund string, begin, end time.Time) (*History, error) {
	subLog := log.With().Str("Fund", fund).Time("Begin", begin).Time("End", end).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not begin transaction for eod query")
		return nil, err
	}

	navSQL := `SELECT
		event_date,
		nav::double precision
	FROM eod_nav
	WHERE fund=$1 AND event_date BETWEEN $2 AND $3
	ORDER BY event_date`
	rows, err := trx.Query(ctx, navSQL, fund, begin, end)
	if err != nil {
		subLog.Error().Stack().Err(err).Str("Query", navSQL).Msg("could not load NAV series from database")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	observations := make([]Observation, 0, 1000)
	for rows.Next() {
		var obs Observation
		if err := rows.Scan(&obs.Date, &obs.Value); err != nil {
			subLog.Warn().Stack().Err(err).Msg("failed scanning row into observation")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		observations = append(observations, obs)
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit transaction to database")
	}

	if len(observations) == 0 {
		return nil, ErrNoData
	}
	return NewHistory(observations), nil
}
