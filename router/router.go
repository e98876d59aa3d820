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

package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sip-vault/sip-api/handler"
)

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	api := app.Group("/v1")
	api.Get("/", handler.Ping)

	// Strategy
	strategy := api.Group("/strategy")
	strategy.Get("/", handler.ListStrategies)
	strategy.Get("/:shortcode", handler.GetStrategy)

	// Backtest
	api.Post("/backtest/:shortcode", handler.RunBacktest)
}
