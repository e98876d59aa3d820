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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/data"
)

// RegimeConfig gates allocations on an external volatility index rather than
// realized portfolio volatility.
type RegimeConfig struct {
	Threshold    float64 `json:"threshold"`
	RiskOffScale float64 `json:"riskOffScale"`
	MinWeight    float64 `json:"minWeight"`
	MaxWeight    float64 `json:"maxWeight"`
}

func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		Threshold:    25.0,
		RiskOffScale: 0.5,
		MinWeight:    0.0,
		MaxWeight:    1.0,
	}
}

// RegimeAdjustWeights scales target weights when the volatility index closes
// above the threshold. The index is forward-filled: the latest observation at
// or before date applies. A nil or empty history, or a date before the first
// observation, leaves the weights unchanged. Returns the adjusted weights and
// the index value used.
func RegimeAdjustWeights(targetWeights map[string]float64, vix *data.History, date time.Time, cfg RegimeConfig) (map[string]float64, float64) {
	if vix == nil || vix.Empty() {
		return targetWeights, 0
	}

	current, obsDate, err := vix.OnOrBefore(date)
	if err != nil {
		return targetWeights, 0
	}

	if current > cfg.Threshold {
		log.Debug().
			Float64("Index", current).
			Time("IndexDate", obsDate).
			Float64("Threshold", cfg.Threshold).
			Msg("risk-off regime active")
		scaled := make(map[string]float64, len(targetWeights))
		for fund, weight := range targetWeights {
			scaled[fund] = weight * cfg.RiskOffScale
		}
		return NormalizeWeights(scaled, cfg.MinWeight, cfg.MaxWeight), current
	}
	return targetWeights, current
}

// NormalizeWeights clips weights to [minWeight, maxWeight] and rescales them
// to sum to one. Clipping runs before and after the rescale so a capped
// weight cannot push the sum above one.
func NormalizeWeights(weights map[string]float64, minWeight, maxWeight float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	var sum float64
	for fund, weight := range weights {
		if weight < minWeight {
			weight = minWeight
		}
		out[fund] = weight
		sum += weight
	}
	if sum > 0 {
		for fund := range out {
			out[fund] /= sum
		}
	}

	sum = 0
	for fund, weight := range out {
		if weight > maxWeight {
			weight = maxWeight
		}
		out[fund] = weight
		sum += weight
	}
	if sum > 0 {
		for fund := range out {
			out[fund] /= sum
		}
	}
	return out
}
