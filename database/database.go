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

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrNotConnected = errors.New("database connection not initialized")

// Beginner is the slice of the pgx API needed to open transactions;
// satisfied by *pgxpool.Pool and by pgxmock connections in tests.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var conn Beginner

// Connect establishes the application connection pool from the database.url
// config key.
func Connect(ctx context.Context) error {
	pool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to database")
		return err
	}
	conn = pool
	return nil
}

// SetPool replaces the connection used for new transactions; tests install a
// pgxmock connection here.
func SetPool(p Beginner) {
	conn = p
}

// Trx starts a new database transaction.
func Trx(ctx context.Context) (pgx.Tx, error) {
	if conn == nil {
		log.Error().Stack().Msg("database connection not initialized")
		return nil, ErrNotConnected
	}
	trx, err := conn.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin database transaction")
		return nil, err
	}
	return trx, nil
}
