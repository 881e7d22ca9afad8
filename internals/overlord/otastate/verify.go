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
	"fmt"
)

// Verifier gates the transition from a fully written image to a bootable
// one. It is an injectable seam: deployments that need checksum or
// signature enforcement install their own implementation. The stock
// verifier performs length and structural sanity checks only, and that
// remains the default.
type Verifier interface {
	Verify(img *WrittenImage) error
}

// DefaultVerifier returns the stock verifier.
func DefaultVerifier() Verifier {
	return sizeVerifier{}
}

type sizeVerifier struct{}

func (sizeVerifier) Verify(img *WrittenImage) error {
	if img.Size == 0 {
		return &VerifyError{Reason: "image is empty"}
	}
	if img.Declared >= 0 && img.Size != img.Declared {
		return &VerifyError{Reason: fmt.Sprintf("image is %d bytes, expected %d", img.Size, img.Declared)}
	}
	if len(img.Header) >= headerLen && allErased(img.Header) {
		return &VerifyError{Reason: "image header is blank flash"}
	}
	return nil
}

func allErased(p []byte) bool {
	for _, b := range p {
		if b != 0xFF {
			return false
		}
	}
	return true
}
