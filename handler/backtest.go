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

package handler

import (
	"errors"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/backtest"
	"github.com/sip-vault/sip-api/common"
	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/portfolio"
	"github.com/spf13/viper"
)

// BacktestResponse is the JSON payload returned from a backtest run.
type BacktestResponse struct {
	Metrics      *portfolio.Metrics       `json:"metrics"`
	Measurements []*portfolio.Measurement `json:"measurements"`
	Trades       []*portfolio.Trade       `json:"trades"`
}

// RunBacktest executes the strategy named by the shortcode parameter over the
// query date range and returns its performance.
func RunBacktest(c *fiber.Ctx) (resp error) {
	shortcode := c.Params("shortcode")
	startDateStr := c.Query("startDate", "1990-01-01")
	endDateStr := c.Query("endDate", "now")

	tz := common.GetTimezone()

	startDate, err := time.ParseInLocation("2006-01-02", startDateStr, tz)
	if err != nil {
		log.Error().Err(err).
			Str("Strategy", shortcode).
			Str("StartDateStr", startDateStr).
			Msg("cannot parse start date query parameter")
		return fiber.ErrNotAcceptable
	}

	var endDate time.Time
	if endDateStr == "now" {
		endDate = time.Now()
		year, month, day := endDate.Date()
		endDate = time.Date(year, month, day, 0, 0, 0, 0, tz)
	} else {
		endDate, err = time.ParseInLocation("2006-01-02", endDateStr, tz)
		if err != nil {
			log.Error().Err(err).
				Str("Strategy", shortcode).
				Str("EndDateStr", endDateStr).
				Msg("cannot parse end date query parameter")
			return fiber.ErrNotAcceptable
		}
	}

	defer func() {
		if err := recover(); err != nil {
			log.Error().Interface("Panic", err).Msg("caught panic in /v1/backtest")
			debug.PrintStack()
			resp = fiber.ErrInternalServerError
		}
	}()

	params := map[string]json.RawMessage{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		log.Warn().Err(err).Msg("could not unmarshal backtest arguments")
		return fiber.ErrBadRequest
	}

	manager, err := buildManager(c, params, startDate, endDate)
	if err != nil {
		return fiber.ErrBadRequest
	}

	cfg := backtest.DefaultConfig()
	cfg.InitialBalance = viper.GetFloat64("backtest.initial_balance")
	if turnoverCap := viper.GetFloat64("backtest.turnover_cap"); turnoverCap > 0 {
		cfg.TurnoverCap = turnoverCap
	}
	if sellAll, err := strconv.ParseBool(c.Query("sellAll", "false")); err == nil {
		cfg.SellAll = sellAll
	}

	b, err := backtest.New(c.Context(), shortcode, params, startDate, endDate, manager, cfg)
	if err != nil {
		if errors.Is(err, backtest.ErrStrategyNotFound) {
			return fiber.ErrNotFound
		}
		log.Error().Stack().Err(err).Str("Strategy", shortcode).Msg("backtest failed")
		return fiber.ErrBadRequest
	}

	if save, err := strconv.ParseBool(c.Query("save", "false")); err == nil && save {
		if err := b.Portfolio.Save(c.Context()); err != nil {
			log.Error().Stack().Err(err).Msg("could not save backtest portfolio")
		}
	}

	return c.JSON(BacktestResponse{
		Metrics:      b.Performance.PortfolioMetrics,
		Measurements: b.Performance.Measurements,
		Trades:       b.Portfolio.TradeLog,
	})
}

// buildManager loads the NAV series for the funds named in the strategy
// arguments, plus the volatility index when one is configured.
func buildManager(c *fiber.Ctx, params map[string]json.RawMessage, startDate time.Time, endDate time.Time) (*data.Manager, error) {
	funds := []string{}
	if raw, ok := params["funds"]; ok {
		if err := json.Unmarshal(raw, &funds); err != nil {
			log.Warn().Err(err).Msg("could not unmarshal funds argument")
			return nil, err
		}
	}

	manager := data.NewManager()
	for _, fund := range funds {
		if err := manager.LoadFund(c.Context(), fund, startDate, endDate); err != nil {
			log.Error().Stack().Err(err).Str("Fund", fund).Msg("could not load fund NAV series")
			return nil, err
		}
	}

	if vixFund := viper.GetString("regime.vix_fund"); vixFund != "" {
		vix, err := data.NewNavDB().GetEOD(c.Context(), vixFund, startDate, endDate)
		if err != nil {
			log.Warn().Err(err).Str("Fund", vixFund).Msg("could not load volatility index; regime gating disabled")
		} else {
			manager.SetVIXHistory(vix)
		}
	}

	return manager, nil
}
