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

package client

import "time"

// Reading is one calibrated sensor sample as reported by the daemon.
type Reading struct {
	Sensor string    `json:"sensor"`
	Unit   string    `json:"unit"`
	Value  float64   `json:"value"`
	Time   time.Time `json:"time"`
}

// Sensors fetches the latest reading per sensor.
func (c *Client) Sensors() ([]Reading, error) {
	var readings []Reading
	if err := c.doSync("GET", "/api/sensors", nil, nil, 0, &readings); err != nil {
		return nil, err
	}
	return readings, nil
}
