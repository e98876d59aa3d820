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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/sip-vault/sip-api/common"
)

// Manager owns the NAV series for every fund a run touches plus the optional
// volatility-index history. Series arrive either from CSV files (offline
// runs) or the NAV database, with loaded series cached through the common
// cache tiers.
type Manager struct {
	locker sync.RWMutex
	navs   map[string]*History
	vix    *History
	navdb  *NavDB
}

func NewManager() *Manager {
	return &Manager{
		navs:  make(map[string]*History),
		navdb: NewNavDB(),
	}
}

// SetNAVHistory installs a NAV series for fund, replacing any prior series.
func (m *Manager) SetNAVHistory(fund string, h *History) {
	m.locker.Lock()
	defer m.locker.Unlock()
	m.navs[fund] = h
}

// SetVIXHistory installs the volatility-index history.
func (m *Manager) SetVIXHistory(h *History) {
	m.locker.Lock()
	defer m.locker.Unlock()
	m.vix = h
}

// VIXHistory returns the volatility-index history; may be nil when no regime
// data was configured.
func (m *Manager) VIXHistory() *History {
	m.locker.RLock()
	defer m.locker.RUnlock()
	return m.vix
}

// NAVHistory returns the loaded series for fund.
func (m *Manager) NAVHistory(fund string) (*History, error) {
	m.locker.RLock()
	defer m.locker.RUnlock()
	h, ok := m.navs[fund]
	if !ok {
		return nil, ErrFundNotFound
	}
	return h, nil
}

// Funds lists the funds with loaded series, sorted for deterministic
// iteration.
func (m *Manager) Funds() []string {
	m.locker.RLock()
	defer m.locker.RUnlock()
	funds := make([]string, 0, len(m.navs))
	for fund := range m.navs {
		funds = append(funds, fund)
	}
	sort.Strings(funds)
	return funds
}

// LoadFund ensures a NAV series for fund covering [begin, end] is resident,
// consulting the cache before the NAV database.
func (m *Manager) LoadFund(ctx context.Context, fund string, begin, end time.Time) error {
	m.locker.RLock()
	_, resident := m.navs[fund]
	m.locker.RUnlock()
	if resident {
		return nil
	}

	key := fmt.Sprintf("nav:%s:%s:%s", fund, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	if raw, err := common.CacheGet(key); err == nil {
		var h History
		if err := json.Unmarshal(raw, &h); err == nil {
			m.SetNAVHistory(fund, &h)
			return nil
		}
		log.Warn().Str("Key", key).Msg("discarding unreadable cached NAV series")
	}

	h, err := m.navdb.GetEOD(ctx, fund, begin, end)
	if err != nil {
		log.Error().Stack().Err(err).Str("Fund", fund).Msg("could not load NAV series")
		return err
	}
	m.SetNAVHistory(fund, h)

	if raw, err := json.Marshal(h); err == nil {
		if err := common.CacheSet(key, raw); err != nil {
			log.Warn().Err(err).Str("Key", key).Msg("could not cache NAV series")
		}
	}
	return nil
}

// Get returns the NAV recorded for fund exactly on date.
func (m *Manager) Get(fund string, date time.Time) (float64, error) {
	h, err := m.NAVHistory(fund)
	if err != nil {
		return 0, err
	}
	return h.At(date)
}

// GetOnOrBefore returns the latest NAV at or before date.
func (m *Manager) GetOnOrBefore(fund string, date time.Time) (float64, time.Time, error) {
	h, err := m.NAVHistory(fund)
	if err != nil {
		return 0, time.Time{}, err
	}
	return h.OnOrBefore(date)
}

// NAVRow assembles the complete fund -> NAV map for date. Every loaded fund
// must have an observation on date, otherwise the lookup error propagates --
// valuation against a partial row would be silently wrong.
func (m *Manager) NAVRow(date time.Time) (map[string]float64, error) {
	funds := m.Funds()
	row := make(map[string]float64, len(funds))
	for _, fund := range funds {
		nav, err := m.Get(fund, date)
		if err != nil {
			log.Warn().Str("Fund", fund).Time("Date", date).Msg("missing NAV for date")
			return nil, err
		}
		row[fund] = nav
	}
	return row, nil
}

// TradingDates returns the dates on which every loaded fund has an
// observation, ascending.
func (m *Manager) TradingDates() []time.Time {
	funds := m.Funds()
	if len(funds) == 0 {
		return nil
	}

	m.locker.RLock()
	defer m.locker.RUnlock()

	counts := make(map[time.Time]int)
	for _, fund := range funds {
		for _, obs := range m.navs[fund].Observations {
			counts[obs.Date]++
		}
	}

	dates := make([]time.Time, 0, len(counts))
	for date, n := range counts {
		if n == len(funds) {
			dates = append(dates, date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
