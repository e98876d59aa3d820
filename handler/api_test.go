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

package handler_test

import (
	"io"
	"net/http/httptest"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sip-vault/sip-api/handler"
	"github.com/sip-vault/sip-api/router"
	"github.com/sip-vault/sip-api/strategies/strategy"
)

var _ = Describe("API", func() {
	var app *fiber.App

	BeforeEach(func() {
		app = fiber.New()
		router.SetupRoutes(app)
	})

	Describe("ping", func() {
		It("should report the API alive", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/v1/", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			var ping handler.PingResponse
			Expect(json.Unmarshal(body, &ping)).To(Succeed())
			Expect(ping.Status).To(Equal("success"))
		})
	})

	Describe("strategy listing", func() {
		It("should list registered strategies", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/v1/strategy/", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			var list []strategy.Info
			Expect(json.Unmarshal(body, &list)).To(Succeed())
			Expect(list).ToNot(BeEmpty())
			Expect(list[0].Shortcode).To(Equal("sip"))
		})

		It("should fetch a strategy by shortcode", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/v1/strategy/sip", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("should 404 for unknown shortcodes", func() {
			resp, err := app.Test(httptest.NewRequest("GET", "/v1/strategy/nope", nil))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})
