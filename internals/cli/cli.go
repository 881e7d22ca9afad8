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

// Package cli implements the tankd command line: the daemon itself
// (tankd run) and the client subcommands that talk to a running one.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/canonical/go-flags"

	"github.com/scottmclesly/fishtankcontroller-sub000/client"
)

// Stdout and Stderr are swappable for tests.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// ErrExtraArgs is returned when a command receives arguments it does
// not take.
var ErrExtraArgs = errors.New("too many arguments for command")

const defaultAddr = "http://127.0.0.1:8080"

// CmdOptions is what a command constructor receives.
type CmdOptions struct {
	Client *client.Client
}

// CmdInfo describes one subcommand for registration.
type CmdInfo struct {
	Name        string
	Summary     string
	Description string
	New         func(opts *CmdOptions) flags.Commander
}

var commands []*CmdInfo

// AddCommand registers a subcommand; called from each cmd_*.go init.
func AddCommand(info *CmdInfo) {
	commands = append(commands, info)
}

// clientAddr resolves the daemon address: $TANKD_ADDR or the local
// default.
func clientAddr() string {
	if addr := os.Getenv("TANKD_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// Run parses the command line and executes the selected command.
func Run() error {
	cl, err := client.New(&client.Config{BaseURL: clientAddr()})
	if err != nil {
		return err
	}

	parser := flags.NewNamedParser("tankd", flags.HelpFlag|flags.PassDoubleDash)
	opts := &CmdOptions{Client: cl}
	for _, info := range commands {
		if _, err := parser.AddCommand(info.Name, info.Summary, info.Description, info.New(opts)); err != nil {
			return fmt.Errorf("cannot add command %q: %w", info.Name, err)
		}
	}

	_, err = parser.Parse()
	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		parser.WriteHelp(Stdout)
		return nil
	}
	return err
}
