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

// Package overlord assembles the device's managers over the shared boot
// environment and flash device, and sequences their lifecycle: the boot
// guard runs first, strictly before anything else starts.
package overlord

import (
	"fmt"
	"os"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/boot"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/flash"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/metrics"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/otastate"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/sensorstate"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/telemetry"
)

// Options configures the overlord.
type Options struct {
	Config *config.Config

	// Rebooter resets the device; the guard and the daemon share it.
	Rebooter boot.Rebooter

	// Drivers overrides sensor drivers by name (tests, real hardware).
	Drivers map[string]sensorstate.Driver
}

// Overlord owns the managers and their shared substrate.
type Overlord struct {
	cfg       *config.Config
	dev       flash.Device
	fileDev   *flash.FileDevice
	env       *boot.Env
	sel       *boot.Selector
	guard     *boot.Guard
	publisher *telemetry.Publisher
	updateMgr *otastate.UpdateManager
	sensorMgr *sensorstate.SensorManager
}

// New builds the overlord: flash device, boot environment, guard, and
// the managers. Nothing is started and the guard has not run yet.
func New(opts *Options) (*Overlord, error) {
	cfg := opts.Config
	o := &Overlord{cfg: cfg}

	table, err := boot.NewTable(cfg.Partitions.SlotA, cfg.Partitions.SlotB, cfg.Partitions.Factory)
	if err != nil {
		return nil, err
	}

	if cfg.Flash.Image != "" {
		fileDev, err := flash.OpenFileDevice(cfg.Flash.Image, cfg.FlashSize(), cfg.Flash.EraseBlockSize)
		if err != nil {
			return nil, err
		}
		o.fileDev = fileDev
		o.dev = fileDev
	} else {
		logger.Noticef("No flash image configured, using in-memory device")
		o.dev = flash.NewMemDevice(cfg.FlashSize(), cfg.Flash.EraseBlockSize)
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create state directory: %w", err)
	}
	o.env, err = boot.OpenEnv(cfg.EnvPath(), table.SlotA.ID)
	if err != nil {
		return nil, err
	}
	o.sel, err = boot.NewSelector(table, o.env)
	if err != nil {
		return nil, err
	}
	o.guard = boot.NewGuard(o.env, o.sel, opts.Rebooter, boot.GuardConfig{
		Attempts:      cfg.Update.BootAttempts,
		ConfirmWindow: cfg.Update.ConfirmWindow.Value,
	})

	o.publisher = telemetry.NewPublisher(cfg.MQTT)

	o.updateMgr = otastate.NewManager(otastate.ManagerConfig{
		Device:   o.dev,
		Selector: o.sel,
		Guard:    o.guard,
		Notify:   o.publisher.PublishUpdateState,
	})

	o.sensorMgr, err = sensorstate.NewManager(sensorstate.ManagerConfig{
		Sensors: cfg.Sensors,
		Drivers: opts.Drivers,
		Notify:  o.publisher.PublishReading,
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// RunGuard executes the boot-time rollback check. It must be called
// before StartUp; when it reports a rollback the caller shuts down
// instead of starting.
func (o *Overlord) RunGuard() (rolledBack bool, err error) {
	rolledBack, err = o.guard.Run()
	if rolledBack {
		metrics.OTARollbacksTotal.WithLabelValues("auto").Inc()
	}
	return rolledBack, err
}

// StartUp starts the managers and the telemetry connection.
func (o *Overlord) StartUp() error {
	if err := o.publisher.Start(); err != nil {
		// The tank runs fine without a broker.
		logger.Noticef("Cannot start telemetry: %v", err)
	}
	o.sensorMgr.Start()
	return nil
}

// Stop shuts the managers down in reverse start order.
func (o *Overlord) Stop() error {
	o.updateMgr.Stop()
	err := o.sensorMgr.Stop()
	o.publisher.Stop()
	if o.fileDev != nil {
		if cerr := o.fileDev.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// UpdateManager returns the firmware update manager.
func (o *Overlord) UpdateManager() *otastate.UpdateManager {
	return o.updateMgr
}

// SensorManager returns the sensor polling manager.
func (o *Overlord) SensorManager() *sensorstate.SensorManager {
	return o.sensorMgr
}

// Guard returns the boot-confirmation guard.
func (o *Overlord) Guard() *boot.Guard {
	return o.guard
}

// Selector returns the boot slot selector.
func (o *Overlord) Selector() *boot.Selector {
	return o.sel
}
