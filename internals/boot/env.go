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

package boot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/osutil"
)

// BootRecord marks a partition that is running on probation: it was made
// active by an update and has not yet confirmed itself healthy. At most
// one record is live at a time. It survives resets by design; that is its
// entire purpose.
type BootRecord struct {
	// RunningSlot is the slot on probation.
	RunningSlot string `json:"running-slot"`

	// Confirmed is terminal: once true the guard no longer acts.
	Confirmed bool `json:"confirmed"`

	// AttemptsRemaining decreases by one per boot into the unconfirmed
	// slot. Zero forces rollback regardless of elapsed time.
	AttemptsRemaining uint8 `json:"attempts-remaining"`

	// OpenedAt is when the update was accepted.
	OpenedAt time.Time `json:"opened-at"`

	// Deadline is the confirmation deadline. Zero until the guard arms
	// it on the first boot into the slot.
	Deadline time.Time `json:"deadline,omitempty"`
}

type envData struct {
	ActiveSlot   string      `json:"active-slot"`
	PreviousSlot string      `json:"previous-slot,omitempty"`
	Record       *BootRecord `json:"boot-record,omitempty"`
}

// Env is the persisted boot environment: which slot the bootloader picks
// next, which confirmed-good slot a rollback would return to, and the
// live boot record. Writes are atomic; a reset mid-save finds either the
// old environment or the new one, never a torn file.
type Env struct {
	path string
	data envData
}

// OpenEnv loads the boot environment from path, initialising it to boot
// from defaultActive when no environment exists yet (first boot from the
// factory).
func OpenEnv(path, defaultActive string) (*Env, error) {
	e := &Env{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		e.data.ActiveSlot = defaultActive
		if err := e.save(); err != nil {
			return nil, err
		}
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read boot environment: %w", err)
	}
	if err := json.Unmarshal(data, &e.data); err != nil {
		return nil, fmt.Errorf("cannot parse boot environment: %w", err)
	}
	if e.data.ActiveSlot == "" {
		return nil, fmt.Errorf("cannot use boot environment: no active slot recorded")
	}
	return e, nil
}

func (e *Env) save() error {
	data, err := json.Marshal(&e.data)
	if err != nil {
		return fmt.Errorf("internal error: cannot marshal boot environment: %v", err)
	}
	if err := osutil.AtomicWriteFile(e.path, data, 0o600); err != nil {
		return fmt.Errorf("cannot save boot environment: %w", err)
	}
	return nil
}

// ActiveSlot returns the slot the bootloader will pick next.
func (e *Env) ActiveSlot() string {
	return e.data.ActiveSlot
}

// PreviousSlot returns the confirmed-good slot a rollback would return
// to, or "" if there is none.
func (e *Env) PreviousSlot() string {
	return e.data.PreviousSlot
}

// Accept records active as the boot slot, the former active slot as the
// rollback target, and rec as the live boot record, all in one save. A
// reset can therefore never observe the slot switch without its record,
// or the record without the switch.
func (e *Env) Accept(active string, rec *BootRecord) error {
	if active != e.data.ActiveSlot {
		e.data.PreviousSlot = e.data.ActiveSlot
		e.data.ActiveSlot = active
	}
	if rec != nil {
		copied := *rec
		e.data.Record = &copied
	} else {
		e.data.Record = nil
	}
	return e.save()
}

// Revert flips the boot slot back to the rollback target and clears both
// the target and the boot record in the same save, so the slot holding
// the reverted image can never itself become a rollback destination, not
// even through a reset landing between the two.
func (e *Env) Revert() error {
	if e.data.PreviousSlot == "" {
		return ErrNoRollback
	}
	e.data.ActiveSlot = e.data.PreviousSlot
	e.data.PreviousSlot = ""
	e.data.Record = nil
	return e.save()
}

// Record returns a copy of the live boot record, or nil.
func (e *Env) Record() *BootRecord {
	if e.data.Record == nil {
		return nil
	}
	rec := *e.data.Record
	return &rec
}

// SetRecord persists rec as the live boot record. A nil rec clears it.
func (e *Env) SetRecord(rec *BootRecord) error {
	if rec != nil {
		copied := *rec
		e.data.Record = &copied
	} else {
		e.data.Record = nil
	}
	return e.save()
}
