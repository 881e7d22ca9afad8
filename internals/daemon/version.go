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

package daemon

import "runtime"

// Project identifies the firmware on the status endpoint and in
// telemetry. Version and the compile stamps are overridden at build
// time with -ldflags.
const Project = "fishtankcontroller"

var (
	Version     = "unknown"
	CompileDate = "unknown"
	CompileTime = "unknown"
)

// SDKVersion reports the toolchain the firmware was built with.
func SDKVersion() string {
	return runtime.Version()
}
