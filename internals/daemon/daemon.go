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

// Package daemon serves the device's HTTP surface: the OTA endpoints,
// sensor readings, the websocket stream, Prometheus metrics and the
// embedded status page.
package daemon

import (
	"context"
	"net"
	"net/http"
	"os/exec"
	"time"

	"github.com/gorilla/mux"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/metrics"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord"
)

// rebootDelay gives the HTTP response time to reach the client before
// the device resets.
const rebootDelay = 200 * time.Millisecond

// Rebooter resets the device after a reboot or rollback request.
type Rebooter interface {
	Reboot() error
}

// SystemRebooter resets the machine through the system reboot command.
type SystemRebooter struct{}

func (SystemRebooter) Reboot() error {
	return exec.Command("reboot").Run()
}

// Options configures the daemon.
type Options struct {
	Config   *config.Config
	Overlord *overlord.Overlord
	Rebooter Rebooter
}

// Daemon is the device's HTTP server.
type Daemon struct {
	cfg      *config.Config
	overlord *overlord.Overlord
	rebooter Rebooter
	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// New builds the daemon and its router. Nothing is listening yet.
func New(opts *Options) *Daemon {
	d := &Daemon{
		cfg:      opts.Config,
		overlord: opts.Overlord,
		rebooter: opts.Rebooter,
	}
	d.router = mux.NewRouter()
	for _, c := range api {
		c.d = d
		d.router.Handle(c.Path, c)
	}
	d.router.Handle("/api/ws", http.HandlerFunc(d.serveWebsocket))
	d.router.Handle("/metrics", metrics.Handler())
	d.router.Handle("/", http.HandlerFunc(serveUI))
	d.server = &http.Server{Handler: d.router}
	return d
}

// Router exposes the handler, for tests.
func (d *Daemon) Router() http.Handler {
	return d.router
}

// Start begins serving on the configured address.
func (d *Daemon) Start() error {
	listener, err := net.Listen("tcp", d.cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	d.listener = listener
	logger.Noticef("Serving on %s", listener.Addr())
	go func() {
		if err := d.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Noticef("HTTP server stopped: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, letting in-flight requests finish.
func (d *Daemon) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.server.Shutdown(ctx)
}

// rebootAfterReply resets the device shortly after the current response
// is sent. Response delivery races the reset by design; the client may
// or may not see the body.
func (d *Daemon) rebootAfterReply() {
	time.AfterFunc(rebootDelay, func() {
		logger.Noticef("Resetting device")
		if err := d.rebooter.Reboot(); err != nil {
			logger.Noticef("Cannot reboot device: %v", err)
		}
	})
}
