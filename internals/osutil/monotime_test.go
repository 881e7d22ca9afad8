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

package osutil_test

import (
	"time"

	. "gopkg.in/check.v1"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/osutil"
)

type monotimeSuite struct{}

var _ = Suite(&monotimeSuite{})

func (m *monotimeSuite) TestKernelRuntime(c *C) {
	t1 := osutil.KernelRuntime()
	time.Sleep(100 * time.Millisecond)
	t2 := osutil.KernelRuntime()

	// Assume the test machine has been up for more than a second.
	if t1 < int64(time.Second) {
		c.Errorf("kernel runtime does not reflect time since boot: %d", t1)
	}
	if t2-t1 < int64(100*time.Millisecond) {
		c.Errorf("kernel runtime did not advance: %d -> %d", t1, t2)
	}
}
