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

// Package flash abstracts the raw flash device holding the firmware
// partitions. The image writer is the only component that performs
// erase/program cycles; everything else only reads.
package flash

import (
	"fmt"
)

// Device is the narrow interface over a flash part. Offsets are absolute
// device offsets; partition-relative addressing is the caller's concern.
type Device interface {
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt programs len(p) bytes starting at off. The target range
	// must have been erased first; flash programming can only clear bits.
	WriteAt(p []byte, off int64) (int, error)

	// EraseRange erases the given range. Both off and length must be
	// multiples of EraseBlockSize.
	EraseRange(off, length int64) error

	// Size returns the device size in bytes.
	Size() int64

	// EraseBlockSize returns the erase granularity in bytes.
	EraseBlockSize() int64
}

func checkBounds(op string, size, off, length int64) error {
	if off < 0 || length < 0 || off+length > size {
		return fmt.Errorf("cannot %s flash range [%#x, %#x): outside device of size %#x", op, off, off+length, size)
	}
	return nil
}

func checkAligned(op string, blockSize, off, length int64) error {
	if off%blockSize != 0 || length%blockSize != 0 {
		return fmt.Errorf("cannot %s flash range [%#x, %#x): not aligned to %#x-byte erase blocks", op, off, off+length, blockSize)
	}
	return nil
}
