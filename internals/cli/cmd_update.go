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
	"time"

	"github.com/canonical/go-flags"

	"github.com/scottmclesly/fishtankcontroller-sub000/client"
)

var statusPollTime = 500 * time.Millisecond

const cmdUpdateSummary = "Update firmware from a URL"
const cmdUpdateDescription = `
The update command asks the device to download new firmware from the
given URL, waits for it to be written and verified, and reports the
result. Run "tankd reboot" afterwards to boot into it.
`

type cmdUpdate struct {
	client *client.Client

	NoWait bool `long:"no-wait" description:"Start the download and return immediately"`

	Positional struct {
		URL string `positional-arg-name:"<url>" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "update",
		Summary:     cmdUpdateSummary,
		Description: cmdUpdateDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdUpdate{client: opts.Client}
		},
	})
}

func (cmd *cmdUpdate) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	if err := cmd.client.Update(cmd.Positional.URL); err != nil {
		return err
	}
	if cmd.NoWait {
		fmt.Fprintln(Stdout, "Update started.")
		return nil
	}

	for {
		st, err := cmd.client.OTAStatus()
		if err != nil {
			return err
		}
		switch st.Status {
		case "ready_to_reboot":
			fmt.Fprintln(Stdout, "Update written and verified, run \"tankd reboot\" to apply.")
			return nil
		case "error":
			return fmt.Errorf("update failed: %s", st.Err)
		case "downloading", "verifying":
			if st.TotalBytes > 0 {
				fmt.Fprintf(Stdout, "\r%d%% (%d/%d bytes)", st.Progress, st.BytesWritten, st.TotalBytes)
			}
		default:
			return fmt.Errorf("update session vanished in state %q", st.Status)
		}
		time.Sleep(statusPollTime)
	}
}
