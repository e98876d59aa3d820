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

package portfolio_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sip-vault/sip-api/portfolio"
)

var _ = Describe("ExitLoadSchedule", func() {
	var schedule portfolio.ExitLoadSchedule

	Describe("with an ascending multi-tier schedule", func() {
		BeforeEach(func() {
			schedule = portfolio.ExitLoadSchedule{
				{MaxDays: 90, BPS: 200},
				{MaxDays: 365, BPS: 100},
			}
		})

		It("should charge the first tier inside its window", func() {
			Expect(schedule.RateBPS(30)).To(Equal(200.0))
		})

		It("should charge the first tier on the boundary day", func() {
			Expect(schedule.RateBPS(90)).To(Equal(200.0))
		})

		It("should fall through to the next tier past the boundary", func() {
			Expect(schedule.RateBPS(91)).To(Equal(100.0))
			Expect(schedule.RateBPS(365)).To(Equal(100.0))
		})

		It("should charge nothing beyond the last tier", func() {
			Expect(schedule.RateBPS(366)).To(Equal(0.0))
		})
	})

	Describe("with an unordered schedule", func() {
		It("should take the first matching tier as given", func() {
			schedule = portfolio.ExitLoadSchedule{
				{MaxDays: 365, BPS: 100},
				{MaxDays: 90, BPS: 200},
			}
			// the 365-day tier shadows the 90-day tier; the schedule is
			// used exactly as supplied
			Expect(schedule.RateBPS(30)).To(Equal(100.0))
		})
	})

	Describe("with an empty schedule", func() {
		It("should charge nothing", func() {
			schedule = portfolio.ExitLoadSchedule{}
			Expect(schedule.RateBPS(0)).To(Equal(0.0))
		})
	})
})
