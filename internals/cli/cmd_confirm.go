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

const cmdConfirmSummary = "Confirm the running firmware as healthy"
const cmdConfirmDescription = `
The confirm command marks the running firmware healthy, ending its
probation. Without confirmation an updated device rolls back to the
previous firmware after a few boots.
`

type cmdConfirm struct {
	client *client.Client
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "confirm",
		Summary:     cmdConfirmSummary,
		Description: cmdConfirmDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdConfirm{client: opts.Client}
		},
	})
}

func (cmd *cmdConfirm) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	if err := cmd.client.Confirm(); err != nil {
		return err
	}
	fmt.Fprintln(Stdout, "Firmware confirmed.")
	return nil
}
