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

package sip_test

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/strategies/sip"
)

var _ = Describe("SIP strategy", func() {
	args := func(raw string) map[string]json.RawMessage {
		params := map[string]json.RawMessage{}
		Expect(json.Unmarshal([]byte(raw), &params)).To(Succeed())
		return params
	}

	Describe("construction", func() {
		It("should require at least one fund", func() {
			_, err := sip.New(args(`{"funds": []}`))
			Expect(err).To(MatchError(sip.ErrNoFunds))
		})

		It("should reject unknown frequencies", func() {
			_, err := sip.New(args(`{"funds": ["NIFTY"], "frequency": "hourly"}`))
			Expect(err).To(MatchError(sip.ErrBadFrequency))
		})

		It("should reject non-positive sip amounts", func() {
			_, err := sip.New(args(`{"funds": ["NIFTY"], "sip": -100}`))
			Expect(err).To(MatchError(sip.ErrNegativeSip))
		})

		It("should reject weights for unconfigured funds", func() {
			_, err := sip.New(args(`{"funds": ["NIFTY"], "weights": {"GOLD": 1.0}}`))
			Expect(err).To(MatchError(sip.ErrWeightFundsMatch))
		})

		It("should default to equal weights", func() {
			strat, err := sip.New(args(`{"funds": ["A", "B"]}`))
			Expect(err).To(BeNil())
			Expect(strat).ToNot(BeNil())
		})
	})

	Describe("plan computation", func() {
		var manager *data.Manager

		BeforeEach(func() {
			observations := []data.Observation{}
			// trading dates spanning three months with gaps
			for _, d := range []time.Time{
				time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			} {
				observations = append(observations, data.Observation{Date: d, Value: 100})
			}
			manager = data.NewManager()
			manager.SetNAVHistory("NIFTY", data.NewHistory(observations))
		})

		It("should deposit on the first trading date of each month", func() {
			strat, err := sip.New(args(`{"funds": ["NIFTY"], "sip": 5000, "frequency": "monthly"}`))
			Expect(err).To(BeNil())
			plan, err := strat.Compute(context.Background(), manager)
			Expect(err).To(BeNil())
			Expect(plan).To(HaveLen(3))
			Expect(plan[0].Date).To(Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
			Expect(plan[1].Date).To(Equal(time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)))
			Expect(plan[2].Date).To(Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
			Expect(plan[0].Deposit).To(Equal(5000.0))
		})

		It("should deposit on every trading date at daily frequency", func() {
			strat, err := sip.New(args(`{"funds": ["NIFTY"], "frequency": "daily"}`))
			Expect(err).To(BeNil())
			plan, err := strat.Compute(context.Background(), manager)
			Expect(err).To(BeNil())
			Expect(plan).To(HaveLen(5))
		})

		It("should carry the configured weights on every allocation", func() {
			strat, err := sip.New(args(`{"funds": ["NIFTY"], "weights": {"NIFTY": 1.0}}`))
			Expect(err).To(BeNil())
			plan, err := strat.Compute(context.Background(), manager)
			Expect(err).To(BeNil())
			for _, alloc := range plan {
				Expect(alloc.TargetWeights).To(Equal(map[string]float64{"NIFTY": 1.0}))
			}
		})

		It("should error when no trading dates are loaded", func() {
			strat, err := sip.New(args(`{"funds": ["NIFTY"]}`))
			Expect(err).To(BeNil())
			_, err = strat.Compute(context.Background(), data.NewManager())
			Expect(err).To(MatchError(sip.ErrNoTradingDates))
		})
	})
})
