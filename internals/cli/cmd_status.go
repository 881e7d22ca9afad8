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

const cmdStatusSummary = "Show firmware and update status"
const cmdStatusDescription = `
The status command shows the running firmware version and the state of
any update in progress.
`

type cmdStatus struct {
	client *client.Client
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "status",
		Summary:     cmdStatusSummary,
		Description: cmdStatusDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdStatus{client: opts.Client}
		},
	})
}

func (cmd *cmdStatus) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	st, err := cmd.client.OTAStatus()
	if err != nil {
		return err
	}

	fmt.Fprintf(Stdout, "project:  %s\n", st.Project)
	fmt.Fprintf(Stdout, "version:  %s (built %s %s, %s)\n", st.Version, st.CompileDate, st.CompileTime, st.SDKVersion)
	fmt.Fprintf(Stdout, "state:    %s\n", st.Status)
	switch st.Status {
	case "downloading":
		if st.TotalBytes > 0 {
			fmt.Fprintf(Stdout, "progress: %d%% (%d/%d bytes)\n", st.Progress, st.BytesWritten, st.TotalBytes)
		} else {
			fmt.Fprintf(Stdout, "progress: %d bytes\n", st.BytesWritten)
		}
	case "pending_verify":
		fmt.Fprintf(Stdout, "pending:  confirm within %d more boots or the device rolls back\n", st.RollbackRemaining)
	}
	if st.Err != "" {
		fmt.Fprintf(Stdout, "error:    %s\n", st.Err)
	}
	fmt.Fprintf(Stdout, "rollback: ")
	if st.CanRollback {
		fmt.Fprintf(Stdout, "available\n")
	} else {
		fmt.Fprintf(Stdout, "not available\n")
	}
	return nil
}
