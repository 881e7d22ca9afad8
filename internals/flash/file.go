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
	"os"
)

// FileDevice backs the flash device with a single image file on the
// host filesystem. This is what runs on the device itself, where the
// kernel exposes the flash part as a block device, and in dev mode,
// where the "flash" is just a scratch file.
type FileDevice struct {
	f         *os.File
	size      int64
	blockSize int64
}

var _ Device = (*FileDevice)(nil)

// OpenFileDevice opens (creating and sizing if necessary) the image file
// at path as a flash device of the given geometry.
func OpenFileDevice(path string, size, blockSize int64) (*FileDevice, error) {
	if size <= 0 || blockSize <= 0 || size%blockSize != 0 {
		return nil, fmt.Errorf("invalid flash geometry: size %#x, erase block %#x", size, blockSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot open flash image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("cannot size flash image to %#x bytes: %w", size, err)
		}
	}
	return &FileDevice{f: f, size: size, blockSize: blockSize}, nil
}

func (d *FileDevice) Size() int64 {
	return d.size
}

func (d *FileDevice) EraseBlockSize() int64 {
	return d.blockSize
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	if err := checkBounds("read", d.size, off, int64(len(p))); err != nil {
		return 0, err
	}
	return d.f.ReadAt(p, off)
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	if err := checkBounds("program", d.size, off, int64(len(p))); err != nil {
		return 0, err
	}
	return d.f.WriteAt(p, off)
}

func (d *FileDevice) EraseRange(off, length int64) error {
	if err := checkBounds("erase", d.size, off, length); err != nil {
		return err
	}
	if err := checkAligned("erase", d.blockSize, off, length); err != nil {
		return err
	}
	blank := make([]byte, d.blockSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	for pos := off; pos < off+length; pos += d.blockSize {
		if _, err := d.f.WriteAt(blank, pos); err != nil {
			return fmt.Errorf("cannot erase flash at %#x: %w", pos, err)
		}
	}
	return nil
}

// Sync flushes programmed data to stable storage.
func (d *FileDevice) Sync() error {
	return d.f.Sync()
}

// Close closes the underlying image file.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
