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
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var csvDateFormats = []string{"2006-01-02", "02-Jan-2006", "01/02/2006", time.RFC3339}

// LoadNAVCSV reads a NAV series from a CSV file with a date column and a
// close column. Column matching is forgiving: a column named "date" (any
// case) or the first column supplies dates, a column named "close"/"nav" or
// the last column supplies prices. Rows that fail to parse are dropped.
func LoadNAVCSV(path string) (*History, error) {
	fh, err := os.Open(path)
	if err != nil {
		log.Error().Stack().Err(err).Str("Path", path).Msg("could not open NAV csv")
		return nil, err
	}
	defer fh.Close()
	return parseSeriesCSV(fh, []string{"close", "nav"}, lastColumn)
}

// LoadVIXCSV reads a volatility-index history from a CSV with Date and Close
// columns.
func LoadVIXCSV(path string) (*History, error) {
	fh, err := os.Open(path)
	if err != nil {
		log.Error().Stack().Err(err).Str("Path", path).Msg("could not open VIX csv")
		return nil, err
	}
	defer fh.Close()
	return parseSeriesCSV(fh, []string{"close", "vix"}, secondColumn)
}

const (
	lastColumn = iota
	secondColumn
)

// ParseSeriesCSV parses a (date, value) series from r. Exposed so handlers
// and tests can load series from request bodies and strings.
func ParseSeriesCSV(r io.Reader) (*History, error) {
	return parseSeriesCSV(r, []string{"close", "nav", "vix"}, lastColumn)
}

func parseSeriesCSV(r io.Reader, valueNames []string, fallback int) (*History, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not parse csv")
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptySeries
	}

	header := rows[0]
	dateIdx := 0
	valueIdx := len(header) - 1
	if fallback == secondColumn && len(header) > 1 {
		valueIdx = 1
	}
	for ii, name := range header {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		if trimmed == "date" {
			dateIdx = ii
		}
		for _, candidate := range valueNames {
			if trimmed == candidate {
				valueIdx = ii
			}
		}
	}

	observations := make([]Observation, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= dateIdx || len(row) <= valueIdx {
			continue
		}
		date, ok := parseDate(row[dateIdx])
		if !ok {
			continue
		}
		raw := strings.ReplaceAll(strings.TrimSpace(row[valueIdx]), ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		observations = append(observations, Observation{Date: date, Value: value})
	}
	if len(observations) == 0 {
		return nil, ErrEmptySeries
	}
	return NewHistory(observations), nil
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, format := range csvDateFormats {
		if date, err := time.Parse(format, raw); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}
