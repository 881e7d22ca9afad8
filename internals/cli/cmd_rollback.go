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

const cmdRollbackSummary = "Revert to the previous firmware"
const cmdRollbackDescription = `
The rollback command reverts the device to the previously running
firmware and resets it.
`

type cmdRollback struct {
	client *client.Client
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "rollback",
		Summary:     cmdRollbackSummary,
		Description: cmdRollbackDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdRollback{client: opts.Client}
		},
	})
}

func (cmd *cmdRollback) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	if err := cmd.client.Rollback(); err != nil {
		return err
	}
	fmt.Fprintln(Stdout, "Rolling back, device is resetting.")
	return nil
}
