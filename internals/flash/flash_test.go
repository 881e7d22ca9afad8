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

package flash_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/flash"
)

// Hook up check.v1 into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type memSuite struct{}

var _ = Suite(&memSuite{})

func (s *memSuite) TestProgramRequiresErase(c *C) {
	dev := flash.NewMemDevice(4096*4, 4096)

	_, err := dev.WriteAt([]byte("data"), 0)
	c.Assert(err, ErrorMatches, "cannot program flash at 0x0: erase block 0 not erased")

	c.Assert(dev.EraseRange(0, 4096), IsNil)
	n, err := dev.WriteAt([]byte("data"), 0)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 4)

	got := make([]byte, 4)
	_, err = dev.ReadAt(got, 0)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, []byte("data"))
}

func (s *memSuite) TestEraseFillsFF(c *C) {
	dev := flash.NewMemDevice(4096*2, 4096)
	c.Assert(dev.EraseRange(4096, 4096), IsNil)
	c.Assert(dev.Bytes(4096, 4), DeepEquals, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	// First block untouched.
	c.Assert(dev.Bytes(0, 4), DeepEquals, []byte{0, 0, 0, 0})
}

func (s *memSuite) TestEraseAlignment(c *C) {
	dev := flash.NewMemDevice(4096*2, 4096)
	err := dev.EraseRange(100, 4096)
	c.Assert(err, ErrorMatches, `cannot erase flash range .*: not aligned to 0x1000-byte erase blocks`)
}

func (s *memSuite) TestBounds(c *C) {
	dev := flash.NewMemDevice(4096, 4096)
	_, err := dev.ReadAt(make([]byte, 8), 4092)
	c.Assert(err, ErrorMatches, `cannot read flash range .*: outside device of size 0x1000`)
	err = dev.EraseRange(4096, 4096)
	c.Assert(err, ErrorMatches, `cannot erase flash range .*: outside device of size 0x1000`)
}

func (s *memSuite) TestInjectedWriteError(c *C) {
	dev := flash.NewMemDevice(4096, 4096)
	c.Assert(dev.EraseRange(0, 4096), IsNil)
	dev.WriteErr = errors.New("flash program timeout")
	_, err := dev.WriteAt([]byte("x"), 0)
	c.Assert(err, ErrorMatches, "flash program timeout")
	// One-shot: subsequent writes succeed.
	_, err = dev.WriteAt([]byte("x"), 0)
	c.Assert(err, IsNil)
}

type fileSuite struct{}

var _ = Suite(&fileSuite{})

func (s *fileSuite) TestRoundTrip(c *C) {
	path := filepath.Join(c.MkDir(), "flash.img")
	dev, err := flash.OpenFileDevice(path, 4096*4, 4096)
	c.Assert(err, IsNil)
	defer dev.Close()

	c.Assert(dev.Size(), Equals, int64(4096*4))
	c.Assert(dev.EraseBlockSize(), Equals, int64(4096))

	c.Assert(dev.EraseRange(0, 4096), IsNil)
	_, err = dev.WriteAt([]byte("firmware"), 0)
	c.Assert(err, IsNil)

	got := make([]byte, 8)
	_, err = dev.ReadAt(got, 0)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, []byte("firmware"))

	// Erased area reads back 0xFF.
	_, err = dev.ReadAt(got, 8)
	c.Assert(err, IsNil)
	c.Assert(bytes.Count(got, []byte{0xFF}), Equals, 8)
}

func (s *fileSuite) TestReopenKeepsContents(c *C) {
	path := filepath.Join(c.MkDir(), "flash.img")
	dev, err := flash.OpenFileDevice(path, 4096, 4096)
	c.Assert(err, IsNil)
	c.Assert(dev.EraseRange(0, 4096), IsNil)
	_, err = dev.WriteAt([]byte("keep"), 0)
	c.Assert(err, IsNil)
	c.Assert(dev.Sync(), IsNil)
	c.Assert(dev.Close(), IsNil)

	dev, err = flash.OpenFileDevice(path, 4096, 4096)
	c.Assert(err, IsNil)
	defer dev.Close()
	got := make([]byte, 4)
	_, err = dev.ReadAt(got, 0)
	c.Assert(err, IsNil)
	c.Assert(got, DeepEquals, []byte("keep"))
}

func (s *fileSuite) TestBadGeometry(c *C) {
	_, err := flash.OpenFileDevice(filepath.Join(c.MkDir(), "flash.img"), 5000, 4096)
	c.Assert(err, ErrorMatches, "invalid flash geometry: .*")
}
