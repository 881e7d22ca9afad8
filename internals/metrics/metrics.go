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

// Package metrics holds the Prometheus instrumentation exposed on the
// daemon's /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OTABytesWritten counts firmware bytes programmed into the
	// inactive slot across all update sessions.
	OTABytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tankd_ota_bytes_written_total",
			Help: "Total firmware bytes written to the inactive partition.",
		},
	)

	// OTAUpdatesTotal counts finished update sessions by outcome.
	OTAUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankd_ota_updates_total",
			Help: "Total update sessions by outcome (accepted, failed, aborted).",
		},
		[]string{"outcome"},
	)

	// OTARollbacksTotal counts rollbacks by trigger.
	OTARollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tankd_ota_rollbacks_total",
			Help: "Total rollbacks to the previous firmware by trigger (auto, manual).",
		},
		[]string{"trigger"},
	)

	// SensorReading reports the latest calibrated reading per sensor.
	SensorReading = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tankd_sensor_reading",
			Help: "Latest calibrated sensor reading.",
		},
		[]string{"sensor", "unit"},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(OTABytesWritten)
	registry.MustRegister(OTAUpdatesTotal)
	registry.MustRegister(OTARollbacksTotal)
	registry.MustRegister(SensorReading)
}

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
