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
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/osutil"
)

// Hook up check.v1 into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type atomicFileSuite struct{}

var _ = Suite(&atomicFileSuite{})

func (s *atomicFileSuite) TestWriteNew(c *C) {
	path := filepath.Join(c.MkDir(), "bootenv.json")
	err := osutil.AtomicWriteFile(path, []byte(`{"active":"app-a"}`), 0o600)
	c.Assert(err, IsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, `{"active":"app-a"}`)

	info, err := os.Stat(path)
	c.Assert(err, IsNil)
	c.Assert(info.Mode().Perm(), Equals, os.FileMode(0o600))
}

func (s *atomicFileSuite) TestOverwrite(c *C) {
	path := filepath.Join(c.MkDir(), "bootenv.json")
	c.Assert(os.WriteFile(path, []byte("old"), 0o600), IsNil)

	err := osutil.AtomicWriteFile(path, []byte("new"), 0o600)
	c.Assert(err, IsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, "new")
}

func (s *atomicFileSuite) TestNoTempFileLeftBehind(c *C) {
	dir := c.MkDir()
	path := filepath.Join(dir, "bootenv.json")
	err := osutil.AtomicWriteFile(path, []byte("data"), 0o600)
	c.Assert(err, IsNil)

	entries, err := os.ReadDir(dir)
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 1)
	c.Assert(entries[0].Name(), Equals, "bootenv.json")
}
