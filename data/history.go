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

package data

import (
	"sort"
	"time"
)

// Observation is one (date, value) point of a time series.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// History is an ordered time series with strictly increasing dates. It backs
// both NAV series and the volatility index.
type History struct {
	Observations []Observation `json:"observations"`
}

// NewHistory builds a History from observations, sorting them by date.
func NewHistory(observations []Observation) *History {
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Date.Before(observations[j].Date)
	})
	return &History{Observations: observations}
}

func (h *History) Len() int {
	return len(h.Observations)
}

func (h *History) Empty() bool {
	return h == nil || len(h.Observations) == 0
}

// Dates returns the observation dates in ascending order.
func (h *History) Dates() []time.Time {
	dates := make([]time.Time, len(h.Observations))
	for ii, obs := range h.Observations {
		dates[ii] = obs.Date
	}
	return dates
}

// At returns the value recorded exactly on date.
func (h *History) At(date time.Time) (float64, error) {
	idx := sort.Search(len(h.Observations), func(i int) bool {
		return !h.Observations[i].Date.Before(date)
	})
	if idx < len(h.Observations) && h.Observations[idx].Date.Equal(date) {
		return h.Observations[idx].Value, nil
	}
	return 0, ErrDateOutOfRange
}

// OnOrBefore returns the latest observation at or before date -- a
// forward-filled lookup for series that publish less often than the
// portfolio trades.
func (h *History) OnOrBefore(date time.Time) (float64, time.Time, error) {
	if h.Empty() {
		return 0, time.Time{}, ErrNoData
	}
	idx := sort.Search(len(h.Observations), func(i int) bool {
		return h.Observations[i].Date.After(date)
	})
	if idx == 0 {
		return 0, time.Time{}, ErrDateOutOfRange
	}
	obs := h.Observations[idx-1]
	return obs.Value, obs.Date, nil
}

// Trim returns the sub-series within [begin, end] inclusive.
func (h *History) Trim(begin, end time.Time) *History {
	trimmed := make([]Observation, 0, len(h.Observations))
	for _, obs := range h.Observations {
		if obs.Date.Before(begin) || obs.Date.After(end) {
			continue
		}
		trimmed = append(trimmed, obs)
	}
	return &History{Observations: trimmed}
}
