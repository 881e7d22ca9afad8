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
	"os"

	"github.com/canonical/go-flags"

	"github.com/scottmclesly/fishtankcontroller-sub000/client"
)

const cmdUploadSummary = "Upload a local firmware image"
const cmdUploadDescription = `
The upload command streams a local firmware image to the device, which
writes and verifies it. Run "tankd reboot" afterwards to boot into it.
`

type cmdUpload struct {
	client *client.Client

	Positional struct {
		LocalPath string `positional-arg-name:"<local-path>" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "upload",
		Summary:     cmdUploadSummary,
		Description: cmdUploadDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdUpload{client: opts.Client}
		},
	})
}

func (cmd *cmdUpload) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	f, err := os.Open(cmd.Positional.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	if err := cmd.client.Upload(f, st.Size()); err != nil {
		return err
	}
	fmt.Fprintln(Stdout, "Update written and verified, run \"tankd reboot\" to apply.")
	return nil
}
