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

package strategies

import (
	"embed"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/strategies/sip"
	"github.com/sip-vault/sip-api/strategies/strategy"
)

//go:embed **/*.md **/*.toml
var resources embed.FS

// StrategyList list of all registered strategies
var StrategyList = []strategy.Info{}

// StrategyMap map of strategies keyed by shortcode
var StrategyMap = make(map[string]*strategy.Info)

// InitializeStrategyMap configure the strategy map
func InitializeStrategyMap() {
	Register("sip", sip.New)
}

// Register loads a strategy's description and config from the embedded
// resources and adds it to the registry.
func Register(strategyPkg string, factory strategy.Factory) {
	fn := fmt.Sprintf("%s/description.md", strategyPkg)
	file, err := resources.Open(fn)
	if err != nil {
		log.Error().Stack().Err(err).Str("File", fn).Msg("failed to open file")
		return
	}
	defer file.Close()
	doc, err := io.ReadAll(file)
	if err != nil {
		log.Error().Stack().Err(err).Str("File", fn).Msg("failed to read file")
		return
	}
	longDescription := string(doc)

	fn = fmt.Sprintf("%s/strategy.toml", strategyPkg)
	file, err = resources.Open(fn)
	if err != nil {
		log.Error().Stack().Err(err).Str("File", fn).Msg("failed to open file")
		return
	}
	defer file.Close()
	doc, err = io.ReadAll(file)
	if err != nil {
		log.Error().Stack().Err(err).Str("File", fn).Msg("failed to read file")
		return
	}

	var strat strategy.Info
	if err := toml.Unmarshal(doc, &strat); err != nil {
		log.Error().Stack().Err(err).Str("File", fn).Msg("failed to parse toml file")
		return
	}

	strat.LongDescription = longDescription
	strat.Factory = factory

	StrategyList = append(StrategyList, strat)
	StrategyMap[strat.Shortcode] = &strat
}
