// Copyright (c) 2026 Scott McLesly
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package sensorstate polls the tank probes and keeps the latest
// calibrated readings. Polling continues untouched while a firmware
// update streams in; the two managers share nothing but the overlord.
package sensorstate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/metrics"
)

const defaultInterval = 5 * time.Second

// Reading is one calibrated sensor sample.
type Reading struct {
	Sensor string    `json:"sensor"`
	Unit   string    `json:"unit"`
	Value  float64   `json:"value"`
	Time   time.Time `json:"time"`
}

type sensor struct {
	name     string
	unit     string
	driver   Driver
	cal      *calibration
	interval time.Duration
}

// ManagerConfig carries the sensor set and its collaborators.
type ManagerConfig struct {
	Sensors []config.Sensor

	// Drivers supplies a driver per sensor name. Sensors without an
	// entry get a simulated driver for their kind.
	Drivers map[string]Driver

	// Notify, when set, is called with every new reading (telemetry,
	// websocket fan-out). Called from the poll goroutines.
	Notify func(Reading)
}

// SensorManager owns the poll loops and the latest-readings snapshot.
type SensorManager struct {
	tomb    tomb.Tomb
	sensors []*sensor
	notify  func(Reading)

	mu     sync.Mutex
	latest map[string]Reading
}

// NewManager builds a manager for the configured sensors. It does not
// start polling; the overlord calls Start once the boot guard has run.
func NewManager(cfg ManagerConfig) (*SensorManager, error) {
	m := &SensorManager{
		notify: cfg.Notify,
		latest: make(map[string]Reading),
	}
	for _, sc := range cfg.Sensors {
		driver := cfg.Drivers[sc.Name]
		if driver == nil {
			var err error
			driver, err = newSimDriver(sc.Kind)
			if err != nil {
				return nil, fmt.Errorf("cannot set up sensor %q: %w", sc.Name, err)
			}
		}
		interval := defaultInterval
		if sc.Interval.IsSet {
			interval = sc.Interval.Value
		}
		m.sensors = append(m.sensors, &sensor{
			name:     sc.Name,
			unit:     sc.Unit,
			driver:   driver,
			cal:      newCalibration(sc.Calibration),
			interval: interval,
		})
	}
	return m, nil
}

// Start launches one poll loop per sensor. Each sensor is sampled once
// immediately so the status page has data from the first request.
func (m *SensorManager) Start() {
	for _, s := range m.sensors {
		s := s
		m.tomb.Go(func() error {
			m.sample(s)
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.sample(s)
				case <-m.tomb.Dying():
					return nil
				}
			}
		})
	}
}

// sample reads one sensor, applies its calibration and publishes the
// result. A failing probe keeps its last good reading; the failure is
// logged, not fatal.
func (m *SensorManager) sample(s *sensor) {
	raw, err := s.driver.Read()
	if err != nil {
		logger.Noticef("Cannot read sensor %q: %v", s.name, err)
		return
	}
	r := Reading{
		Sensor: s.name,
		Unit:   s.unit,
		Value:  s.cal.apply(raw),
		Time:   time.Now(),
	}

	m.mu.Lock()
	m.latest[s.name] = r
	m.mu.Unlock()

	metrics.SensorReading.WithLabelValues(s.name, s.unit).Set(r.Value)
	if m.notify != nil {
		m.notify(r)
	}
}

// Readings returns the latest reading per sensor, sorted by name.
func (m *SensorManager) Readings() []Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Reading, 0, len(m.latest))
	for _, r := range m.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sensor < out[j].Sensor })
	return out
}

// Stop terminates the poll loops and waits for them.
func (m *SensorManager) Stop() error {
	if len(m.sensors) == 0 {
		return nil
	}
	m.tomb.Kill(nil)
	return m.tomb.Wait()
}
