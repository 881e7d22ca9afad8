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

// Package profiler records CPU and block profiles around daemon startup
// and shutdown, selected with the TANKD_PROF environment variable
// (startup, shutdown or all). Disabled unless the variable is set.
package profiler

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
)

var (
	cpuProfile *os.File
	profMode   = "none"
	started    time.Time
)

func init() {
	if mode := os.Getenv("TANKD_PROF"); mode != "" {
		profMode = mode
	}
}

// StartupStartMarker begins profiling before startup in the startup and
// all modes.
func StartupStartMarker() {
	if profMode == "startup" || profMode == "all" {
		start()
	}
}

// StartupStopMarker ends profiling once startup completes, in startup
// mode only.
func StartupStopMarker() {
	if profMode == "startup" {
		stop()
	}
}

// ShutdownStartMarker begins profiling when shutdown starts.
func ShutdownStartMarker() {
	if profMode == "shutdown" {
		start()
	}
}

// ShutdownStopMarker ends profiling once shutdown completes.
func ShutdownStopMarker() {
	if profMode == "shutdown" || profMode == "all" {
		stop()
	}
}

func start() {
	runtime.SetBlockProfileRate(1)

	var err error
	cpuProfile, err = os.Create(fmt.Sprintf("cpu-%s.pprof", profMode))
	if err != nil {
		logger.Noticef("Cannot create CPU profile file: %v", err)
		return
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		logger.Noticef("Cannot start CPU profile recording: %v", err)
		return
	}
	started = time.Now()
}

func stop() {
	blockProfile, err := os.Create(fmt.Sprintf("block-%s.pprof", profMode))
	if err != nil {
		logger.Noticef("Cannot create block profile file: %v", err)
		return
	}
	pprof.Lookup("block").WriteTo(blockProfile, 0)
	blockProfile.Close()

	pprof.StopCPUProfile()
	cpuProfile.Close()

	logger.Noticef("Profile %q covered %.2fs", profMode, time.Since(started).Seconds())
}
