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

package sensorstate

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
)

// Driver reads a raw, uncalibrated value from a probe.
type Driver interface {
	Read() (float64, error)
}

// calibration maps raw driver values onto the reference scale through
// two measured points.
type calibration struct {
	rawLow, rawHigh float64
	refLow, refHigh float64
}

func newCalibration(c *config.Calibration) *calibration {
	if c == nil {
		return nil
	}
	return &calibration{
		rawLow: c.RawLow, rawHigh: c.RawHigh,
		refLow: c.RefLow, refHigh: c.RefHigh,
	}
}

func (c *calibration) apply(raw float64) float64 {
	if c == nil {
		return raw
	}
	return c.refLow + (raw-c.rawLow)*(c.refHigh-c.refLow)/(c.rawHigh-c.rawLow)
}

// simDriver synthesises a plausible reading for development setups with
// no probe attached: a slow sine swing around a base value plus jitter.
type simDriver struct {
	base      float64
	amplitude float64
	period    time.Duration
	jitter    float64
	start     time.Time
}

func (d *simDriver) Read() (float64, error) {
	phase := 2 * math.Pi * float64(time.Since(d.start)) / float64(d.period)
	return d.base + d.amplitude*math.Sin(phase) + d.jitter*(rand.Float64()-0.5), nil
}

// newSimDriver returns a simulated driver for the given sensor kind.
func newSimDriver(kind string) (Driver, error) {
	now := time.Now()
	switch kind {
	case "temperature":
		return &simDriver{base: 25.0, amplitude: 0.8, period: 20 * time.Minute, jitter: 0.1, start: now}, nil
	case "ph":
		return &simDriver{base: 7.0, amplitude: 0.2, period: time.Hour, jitter: 0.05, start: now}, nil
	}
	return nil, fmt.Errorf("cannot simulate sensor kind %q", kind)
}
