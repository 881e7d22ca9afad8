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

package osutil

import (
	_ "unsafe"
)

// KernelRuntime returns the nanosecond duration since the kernel started.
// It uses CLOCK_MONOTONIC through the runtime's own nanotime binding,
// which is not publicly exposed.
//
// This is not a replacement for the time package, which already provides
// monotonic durations. It exists for the status endpoint, which reports
// uptime since boot rather than since the daemon started.
//
//go:noescape
//go:linkname KernelRuntime runtime.nanotime
func KernelRuntime() int64
