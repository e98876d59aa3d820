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

// Package sip implements a systematic investment plan: deposit a fixed
// amount at a fixed calendar frequency and hold the configured fund weights.
package sip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/strategies/strategy"
)

var (
	ErrNoFunds          = errors.New("sip strategy requires at least one fund")
	ErrBadFrequency     = errors.New("frequency must be one of daily, weekly, monthly")
	ErrNoTradingDates   = errors.New("no trading dates available for the configured funds")
	ErrNegativeSip      = errors.New("sip amount must be positive")
	ErrWeightFundsMatch = errors.New("weights must be keyed by configured funds")
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// SystematicInvestmentPlan deposits sipAmount at each period boundary and
// targets the configured weights.
type SystematicInvestmentPlan struct {
	funds     []string
	weights   map[string]float64
	sipAmount float64
	frequency string
}

// New builds a SIP strategy from JSON arguments.
func New(args map[string]json.RawMessage) (strategy.Strategy, error) {
	funds := []string{}
	if err := json.Unmarshal(args["funds"], &funds); err != nil {
		return nil, err
	}
	if len(funds) == 0 {
		return nil, ErrNoFunds
	}

	sipAmount := 1000.0
	if raw, ok := args["sip"]; ok {
		if err := json.Unmarshal(raw, &sipAmount); err != nil {
			return nil, err
		}
	}
	if sipAmount <= 0 {
		return nil, ErrNegativeSip
	}

	frequency := FrequencyDaily
	if raw, ok := args["frequency"]; ok {
		if err := json.Unmarshal(raw, &frequency); err != nil {
			return nil, err
		}
	}
	switch frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return nil, ErrBadFrequency
	}

	weights := make(map[string]float64, len(funds))
	if raw, ok := args["weights"]; ok {
		if err := json.Unmarshal(raw, &weights); err != nil {
			return nil, err
		}
		for fund := range weights {
			if !contains(funds, fund) {
				return nil, ErrWeightFundsMatch
			}
		}
	} else {
		// equal weight when not specified
		for _, fund := range funds {
			weights[fund] = 1.0 / float64(len(funds))
		}
	}

	return &SystematicInvestmentPlan{
		funds:     funds,
		weights:   weights,
		sipAmount: sipAmount,
		frequency: frequency,
	}, nil
}

// Compute builds the deposit-and-allocation schedule over the trading dates
// the manager has loaded.
func (s *SystematicInvestmentPlan) Compute(_ context.Context, manager *data.Manager) (data.PortfolioPlan, error) {
	dates := manager.TradingDates()
	if len(dates) == 0 {
		return nil, ErrNoTradingDates
	}

	plan := make(data.PortfolioPlan, 0, len(dates))
	var lastPeriod string
	for _, date := range dates {
		period := s.periodKey(date)
		if period == lastPeriod {
			continue
		}
		lastPeriod = period

		weights := make(map[string]float64, len(s.weights))
		for fund, weight := range s.weights {
			weights[fund] = weight
		}
		plan = append(plan, &data.Allocation{
			Date:          date,
			Deposit:       s.sipAmount,
			TargetWeights: weights,
		})
	}

	log.Info().
		Str("Frequency", s.frequency).
		Float64("SipAmount", s.sipAmount).
		Int("NumAllocations", len(plan)).
		Msg("computed sip plan")
	return plan, nil
}

// periodKey collapses dates into their deposit period; the first trading
// date of each period carries the deposit.
func (s *SystematicInvestmentPlan) periodKey(date time.Time) string {
	switch s.frequency {
	case FrequencyWeekly:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-w%02d", year, week)
	case FrequencyMonthly:
		return date.Format("2006-01")
	default:
		return date.Format("2006-01-02")
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
