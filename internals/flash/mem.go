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

package flash

import (
	"fmt"
	"sync"
)

// MemDevice is an in-memory flash device. It models the two properties
// real NOR flash imposes on the writer: erase granularity, and the rule
// that a cell must be erased (0xFF) before it is programmed.
type MemDevice struct {
	mu        sync.Mutex
	data      []byte
	erased    []bool // per erase block
	blockSize int64

	// WriteErr, when set, makes the next WriteAt fail with it. Used by
	// tests to exercise the session error path.
	WriteErr error

	// EraseCount counts EraseRange calls, per block index.
	EraseCount map[int64]int
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice returns a device of the given size, fully unerased
// (all zero bytes, erased flags false), mimicking a part holding
// stale data.
func NewMemDevice(size, blockSize int64) *MemDevice {
	if size <= 0 || blockSize <= 0 || size%blockSize != 0 {
		panic(fmt.Sprintf("invalid mem device geometry: size %#x, block %#x", size, blockSize))
	}
	return &MemDevice{
		data:       make([]byte, size),
		erased:     make([]bool, size/blockSize),
		blockSize:  blockSize,
		EraseCount: make(map[int64]int),
	}
}

func (d *MemDevice) Size() int64 {
	return int64(len(d.data))
}

func (d *MemDevice) EraseBlockSize() int64 {
	return d.blockSize
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkBounds("read", d.Size(), off, int64(len(p))); err != nil {
		return 0, err
	}
	return copy(p, d.data[off:]), nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WriteErr != nil {
		err := d.WriteErr
		d.WriteErr = nil
		return 0, err
	}
	if err := checkBounds("program", d.Size(), off, int64(len(p))); err != nil {
		return 0, err
	}
	for block := off / d.blockSize; block <= (off+int64(len(p))-1)/d.blockSize; block++ {
		if !d.erased[block] {
			return 0, fmt.Errorf("cannot program flash at %#x: erase block %d not erased", off, block)
		}
	}
	return copy(d.data[off:], p), nil
}

func (d *MemDevice) EraseRange(off, length int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkBounds("erase", d.Size(), off, length); err != nil {
		return err
	}
	if err := checkAligned("erase", d.blockSize, off, length); err != nil {
		return err
	}
	for i := off; i < off+length; i++ {
		d.data[i] = 0xFF
	}
	for block := off / d.blockSize; block < (off+length)/d.blockSize; block++ {
		d.erased[block] = true
		d.EraseCount[block]++
	}
	return nil
}

// Bytes returns a copy of the given device range, for test assertions.
func (d *MemDevice) Bytes(off, length int64) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, length)
	copy(out, d.data[off:off+length])
	return out
}
