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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/common"
	"github.com/sip-vault/sip-api/data"
	"github.com/sip-vault/sip-api/database"
	"github.com/sip-vault/sip-api/middleware"
	"github.com/sip-vault/sip-api/observability/opentelemetry"
	"github.com/sip-vault/sip-api/router"
	"github.com/sip-vault/sip-api/strategies"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sip-api server",
	Long:  `Run HTTP server that implements the SIP Vault API`,
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		if viper.GetString("otlp.endpoint") != "" {
			shutdown, err := opentelemetry.Setup()
			if err != nil {
				log.Error().Stack().Err(err).Msg("could not initialize tracing")
			} else {
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						log.Error().Stack().Err(err).Msg("error shutting down tracer")
					}
				}()
			}
		}

		// setup database
		if err := database.Connect(context.Background()); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		// initialize strategies
		strategies.InitializeStrategyMap()

		// Create new Fiber instance
		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("error shutting down server")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		}
		app.Use(cors.New(corsConfig))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app)

		// Warm the NAV cache nightly after fund houses publish end-of-day NAVs
		scheduler := gocron.NewScheduler(common.GetTimezone())
		scheduler.Every(1).Day().At("23:30").Do(warmNavCache)
		scheduler.StartAsync()

		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Fatal().Err(err).Msg("server exited with error")
		}
	},
}

// warmNavCache reloads the configured funds so the first request of the day
// is not stuck behind a database fetch.
func warmNavCache() {
	funds := viper.GetStringSlice("server.preload_funds")
	if len(funds) == 0 {
		return
	}

	ctx := context.Background()
	end := time.Now()
	begin := end.AddDate(-10, 0, 0)
	manager := data.NewManager()
	for _, fund := range funds {
		if err := manager.LoadFund(ctx, fund, begin, end); err != nil {
			log.Warn().Err(err).Str("Fund", fund).Msg("could not warm NAV cache")
		}
	}
	log.Info().Int("NumFunds", len(funds)).Msg("warmed NAV cache")
}
