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

// Package boot owns which firmware partition the device boots from: the
// partition table geometry, the persisted boot environment, the slot
// selector, and the boot-confirmation guard that rolls back unconfirmed
// updates.
package boot

import (
	"fmt"
)

// Role describes how a partition is currently used. Roles are not part
// of the table geometry; they are derived from the boot environment.
type Role string

const (
	// RoleActive is the partition the device is executing from.
	RoleActive Role = "active"
	// RoleInactive is the write target for the next update.
	RoleInactive Role = "inactive"
	// RoleFactory holds the immutable factory image, if present.
	RoleFactory Role = "factory"
)

// Partition is a fixed flash region holding one full firmware image.
type Partition struct {
	ID     string `yaml:"id" json:"id"`
	Offset int64  `yaml:"offset" json:"offset"`
	Size   int64  `yaml:"size" json:"size"`
	Role   Role   `yaml:"-" json:"role,omitempty"`
}

// Table describes the device's partition layout: two equally sized
// application slots that alternate between active and inactive, plus an
// optional factory slot that is never written.
type Table struct {
	SlotA   Partition
	SlotB   Partition
	Factory *Partition
}

// NewTable validates the slot geometry and returns a table.
func NewTable(a, b Partition, factory *Partition) (*Table, error) {
	if a.ID == "" || b.ID == "" {
		return nil, fmt.Errorf("cannot use partition table: slot without an id")
	}
	if a.ID == b.ID {
		return nil, fmt.Errorf("cannot use partition table: duplicate slot id %q", a.ID)
	}
	if a.Size <= 0 || a.Size != b.Size {
		return nil, fmt.Errorf("cannot use partition table: slots %q and %q must have the same non-zero size", a.ID, b.ID)
	}
	if overlaps(a, b) {
		return nil, fmt.Errorf("cannot use partition table: slots %q and %q overlap", a.ID, b.ID)
	}
	if factory != nil && (overlaps(*factory, a) || overlaps(*factory, b)) {
		return nil, fmt.Errorf("cannot use partition table: factory slot overlaps an application slot")
	}
	return &Table{SlotA: a, SlotB: b, Factory: factory}, nil
}

func overlaps(p, q Partition) bool {
	return p.Offset < q.Offset+q.Size && q.Offset < p.Offset+p.Size
}

// Slot returns the application slot with the given id.
func (t *Table) Slot(id string) (Partition, bool) {
	switch id {
	case t.SlotA.ID:
		return t.SlotA, true
	case t.SlotB.ID:
		return t.SlotB, true
	}
	return Partition{}, false
}

// Other returns the application slot that is not id.
func (t *Table) Other(id string) (Partition, bool) {
	switch id {
	case t.SlotA.ID:
		return t.SlotB, true
	case t.SlotB.ID:
		return t.SlotA, true
	}
	return Partition{}, false
}
