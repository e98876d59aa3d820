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

package strategy

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/sip-vault/sip-api/data"
)

// Factory builds a strategy from its JSON-encoded arguments.
type Factory func(map[string]json.RawMessage) (Strategy, error)

// Argument an argument to a strategy
type Argument struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Typecode    string   `json:"typecode"`
	Default     string   `json:"default"`
	Advanced    bool     `json:"advanced"`
	Options     []string `json:"options"`
}

// Info information about a strategy
type Info struct {
	Name            string              `json:"name"`
	Shortcode       string              `json:"shortcode"`
	Description     string              `json:"description"`
	LongDescription string              `json:"longDescription"`
	Source          string              `json:"source"`
	Version         string              `json:"version"`
	Benchmark       string              `json:"benchmark"`
	Arguments       map[string]Argument `json:"arguments"`
	Factory         Factory             `json:"-"`
}

// Strategy computes the deposit-and-allocation schedule a simulation should
// follow.
type Strategy interface {
	Compute(ctx context.Context, manager *data.Manager) (data.PortfolioPlan, error)
}
