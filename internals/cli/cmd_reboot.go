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

	"github.com/canonical/go-flags"

	"github.com/scottmclesly/fishtankcontroller-sub000/client"
)

const cmdRebootSummary = "Reboot into a staged update"
const cmdRebootDescription = `
The reboot command resets the device so it boots into firmware staged
by a previous update or upload.
`

type cmdReboot struct {
	client *client.Client
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "reboot",
		Summary:     cmdRebootSummary,
		Description: cmdRebootDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdReboot{client: opts.Client}
		},
	})
}

func (cmd *cmdReboot) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	if err := cmd.client.Reboot(); err != nil {
		return err
	}
	fmt.Fprintln(Stdout, "Device is resetting into the new firmware.")
	return nil
}
