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

package otastate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/boot"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/flash"
)

// WrittenImage describes a fully streamed firmware image, as handed to
// the verifier.
type WrittenImage struct {
	// Slot is the application slot the image was written into.
	Slot string
	// Size is what was actually written.
	Size int64
	// Declared is the size announced at session start, or -1 for a
	// stream of unknown length.
	Declared int64
	// SHA256 is the hex digest of the written bytes. Recorded for
	// diagnostics and for checksum-verifier hooks; the stock verifier
	// does not enforce it.
	SHA256 string
	// Header holds the first bytes of the image for structural checks.
	Header []byte
}

const headerLen = 4

// imageWriter streams byte chunks into the inactive partition, erasing
// ahead of the write offset as needed. It is the only component that
// performs flash erase/program cycles.
type imageWriter struct {
	dev      flash.Device
	part     boot.Partition
	declared int64 // -1 when unknown
	written  int64
	erased   int64 // bytes erased from the start of the partition
	digest   hash.Hash
	header   []byte
	done     bool
}

// newImageWriter prepares the inactive partition for an image of the
// declared size, erasing the whole needed range up front. With an
// unknown size (declared < 0) erasing happens incrementally ahead of
// each write instead.
func newImageWriter(dev flash.Device, part boot.Partition, declared int64) (*imageWriter, error) {
	blockSize := dev.EraseBlockSize()
	if part.Offset%blockSize != 0 || part.Size%blockSize != 0 {
		return nil, fmt.Errorf("internal error: slot %q not aligned to %#x-byte erase blocks", part.ID, blockSize)
	}
	if declared > part.Size {
		return nil, fmt.Errorf("cannot write %d-byte image: slot %q holds at most %d bytes", declared, part.ID, part.Size)
	}
	w := &imageWriter{
		dev:      dev,
		part:     part,
		declared: declared,
		digest:   sha256.New(),
	}
	if declared >= 0 {
		if err := w.eraseAhead(declared); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// eraseAhead makes sure at least limit bytes from the start of the
// partition are erased, rounding up to whole erase blocks.
func (w *imageWriter) eraseAhead(limit int64) error {
	blockSize := w.dev.EraseBlockSize()
	needed := (limit + blockSize - 1) / blockSize * blockSize
	if needed > w.part.Size {
		needed = w.part.Size
	}
	if needed <= w.erased {
		return nil
	}
	if err := w.dev.EraseRange(w.part.Offset+w.erased, needed-w.erased); err != nil {
		return &WriteError{Err: err}
	}
	w.erased = needed
	return nil
}

// Write appends p at the current offset. A chunk that would exceed the
// declared size or the slot's physical size is rejected, not truncated.
func (w *imageWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("internal error: write after finish")
	}
	limit := w.part.Size
	if w.declared >= 0 && w.declared < limit {
		limit = w.declared
	}
	if w.written+int64(len(p)) > limit {
		return 0, fmt.Errorf("cannot write %d bytes at offset %d: image limit is %d bytes", len(p), w.written, limit)
	}
	if err := w.eraseAhead(w.written + int64(len(p))); err != nil {
		return 0, err
	}
	n, err := w.dev.WriteAt(p, w.part.Offset+w.written)
	if n > 0 {
		w.digest.Write(p[:n])
		if len(w.header) < headerLen {
			w.header = append(w.header, p[:n]...)
			if len(w.header) > headerLen {
				w.header = w.header[:headerLen]
			}
		}
		w.written += int64(n)
	}
	if err != nil {
		return n, &WriteError{Err: err}
	}
	return n, nil
}

// Finish closes the write region and returns what was actually written.
// It does not make the image bootable; that is the verifier's gate and
// the session controller's decision.
func (w *imageWriter) Finish() (*WrittenImage, error) {
	if w.done {
		return nil, fmt.Errorf("internal error: image already finished")
	}
	w.done = true
	return &WrittenImage{
		Slot:     w.part.ID,
		Size:     w.written,
		Declared: w.declared,
		SHA256:   hex.EncodeToString(w.digest.Sum(nil)),
		Header:   append([]byte(nil), w.header...),
	}, nil
}
