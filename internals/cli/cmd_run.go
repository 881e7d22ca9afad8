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
	"os"
	"os/signal"
	"syscall"

	"github.com/canonical/go-flags"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/daemon"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/profiler"
)

const cmdRunSummary = "Run the tank controller daemon"
const cmdRunDescription = `
The run command starts the controller: it executes the boot-time
rollback check, begins sensor polling, and serves the HTTP API.
`

type cmdRun struct {
	Config  string `long:"config" description:"Path to tank.yaml" default:"/etc/tankd/tank.yaml"`
	Verbose bool   `short:"v" long:"verbose" description:"Log debug messages"`
}

func init() {
	AddCommand(&CmdInfo{
		Name:        "run",
		Summary:     cmdRunSummary,
		Description: cmdRunDescription,
		New: func(opts *CmdOptions) flags.Commander {
			return &cmdRun{}
		},
	})
}

func (cmd *cmdRun) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	if cmd.Verbose {
		logger.SetDebug(true)
	}

	profiler.StartupStartMarker()

	cfg, err := config.Read(cmd.Config)
	if err != nil {
		return err
	}

	rebooter := daemon.SystemRebooter{}
	ovld, err := overlord.New(&overlord.Options{
		Config:   cfg,
		Rebooter: rebooter,
	})
	if err != nil {
		return err
	}

	// The guard runs strictly before anything else starts. When it
	// rolled the device back a reset is already on its way; starting
	// normal operation would run the very image that was just revoked.
	rolledBack, err := ovld.RunGuard()
	if err != nil {
		return err
	}
	if rolledBack {
		logger.Noticef("Rolled back to previous firmware, awaiting reset")
		return nil
	}

	if err := ovld.StartUp(); err != nil {
		return err
	}
	d := daemon.New(&daemon.Options{
		Config:   cfg,
		Overlord: ovld,
		Rebooter: rebooter,
	})
	if err := d.Start(); err != nil {
		ovld.Stop()
		return err
	}
	profiler.StartupStopMarker()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Noticef("Exiting on %s signal", sig)

	profiler.ShutdownStartMarker()
	if err := d.Stop(); err != nil {
		logger.Noticef("Cannot stop daemon: %v", err)
	}
	err = ovld.Stop()
	profiler.ShutdownStopMarker()
	return err
}
