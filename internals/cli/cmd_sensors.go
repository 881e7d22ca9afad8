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

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/canonical/go-flags"

	"github.com/scottmclesly/fishtankcontroller-sub000/client"
)

const cmdSensorsSummary = "Show the latest sensor readings"
const cmdSensorsDescription = `
The sensors command lists the latest calibrated reading per sensor.
`

type cmdSensors struct {
	client *client.Client
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "sensors",
		Summary:     cmdSensorsSummary,
		Description: cmdSensorsDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdSensors{client: opts.Client}
		},
	})
}

func (cmd *cmdSensors) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	readings, err := cmd.client.Sensors()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "Sensor\tValue\tTime")
	for _, r := range readings {
		fmt.Fprintf(w, "%s\t%.2f %s\t%s\n", r.Sensor, r.Value, r.Unit, r.Time.Format("15:04:05"))
	}
	return w.Flush()
}
