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
	"fmt"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
)

// Selector resolves the two application slots against the boot
// environment: which one the bootloader will pick and which is the write
// target. Accept and Revert are the only operations in the firmware that
// flip the boot slot; the update manager accepts once per update and the
// guard reverts once per rollback.
type Selector struct {
	table *Table
	env   *Env
}

// NewSelector checks that the recorded active slot exists in the table
// and returns a selector over it.
func NewSelector(table *Table, env *Env) (*Selector, error) {
	if _, ok := table.Slot(env.ActiveSlot()); !ok {
		return nil, fmt.Errorf("cannot use boot environment: active slot %q not in partition table", env.ActiveSlot())
	}
	return &Selector{table: table, env: env}, nil
}

// Active returns the slot the bootloader will select on the next boot.
// Outside an update window this is also the slot the device is executing
// from; between an accepted update and the reboot into it, it is the
// freshly written slot.
func (s *Selector) Active() Partition {
	p, ok := s.table.Slot(s.env.ActiveSlot())
	if !ok {
		// NewSelector validated the slot and Accept refuses unknown
		// ids, so this means the bookkeeping was corrupted in memory.
		logger.Panicf("internal error: active slot %q not in partition table", s.env.ActiveSlot())
	}
	p.Role = RoleActive
	return p
}

// Inactive returns the other application slot, the write target for the
// next update.
func (s *Selector) Inactive() Partition {
	p, ok := s.table.Other(s.env.ActiveSlot())
	if !ok {
		logger.Panicf("internal error: active slot %q not in partition table", s.env.ActiveSlot())
	}
	p.Role = RoleInactive
	return p
}

// Accept makes the bootloader pick slot id on the next boot, records the
// former active slot as the rollback target, and opens rec as the live
// boot record, all in a single environment save. An unknown id is fatal:
// it indicates corrupted bookkeeping, not a recoverable input error, and
// flipping the boot pointer to it would brick the device.
func (s *Selector) Accept(id string, rec *BootRecord) error {
	if _, ok := s.table.Slot(id); !ok {
		logger.Panicf("cannot set boot slot: %q not in partition table", id)
	}
	if err := s.env.Accept(id, rec); err != nil {
		return err
	}
	logger.Noticef("Boot slot set to %q (rollback target %q)", id, s.env.PreviousSlot())
	return nil
}

// Revert flips the bootloader back to the recorded rollback target,
// dropping the target and the boot record in the same save.
func (s *Selector) Revert() error {
	prev := s.env.PreviousSlot()
	if prev == "" {
		return ErrNoRollback
	}
	if _, ok := s.table.Slot(prev); !ok {
		logger.Panicf("cannot roll back: slot %q not in partition table", prev)
	}
	if err := s.env.Revert(); err != nil {
		return err
	}
	logger.Noticef("Boot slot reverted to %q", prev)
	return nil
}
