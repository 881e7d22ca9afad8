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
	"errors"
	"fmt"
)

// ErrAlreadyInProgress is returned by Begin/BeginUpload while another
// update session is open. The in-flight session is never discarded
// implicitly.
var ErrAlreadyInProgress = errors.New("cannot start update: another update is already in progress")

// WrongStateError reports an operation that is invalid in the session's
// current state. Such calls are rejected, never silently ignored, so
// callers observe state transitions.
type WrongStateError struct {
	Op    string
	State string
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("cannot %s in state %q", e.Op, e.State)
}

// VerifyError reports a written image that failed verification. The
// session is held in the error state for diagnostics and the inactive
// partition is left as written.
type VerifyError struct {
	Reason string
}

func (e *VerifyError) Error() string {
	return "firmware verification failed: " + e.Reason
}

// WriteError reports a failed flash erase or program cycle. It is
// recorded into the session error state and not retried automatically.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "firmware write failed: " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
