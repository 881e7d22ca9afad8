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
	"errors"
	"time"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
)

// ErrNoRollback is returned when a rollback is requested but no
// confirmed-good slot exists to return to.
var ErrNoRollback = errors.New("no previous firmware to roll back to")

// Rebooter resets the device. The daemon supplies the real one; tests
// supply fakes.
type Rebooter interface {
	Reboot() error
}

// GuardConfig carries the probation policy for newly booted images.
type GuardConfig struct {
	// Attempts is how many boots an unconfirmed image gets before the
	// guard reverts it. Zero means DefaultAttempts.
	Attempts uint8
	// ConfirmWindow is the wall-clock deadline armed on the first boot
	// into an unconfirmed slot. Zero means DefaultConfirmWindow.
	ConfirmWindow time.Duration
	// Now is the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

const (
	DefaultAttempts      uint8 = 3
	DefaultConfirmWindow       = 5 * time.Minute
)

// Guard decides at every boot whether the running image is on probation
// and must self-confirm or be reverted. It runs once, synchronously,
// before the overlord starts; nothing it depends on may depend on it
// having run.
type Guard struct {
	env      *Env
	sel      *Selector
	rebooter Rebooter
	attempts uint8
	window   time.Duration
	now      func() time.Time
}

func NewGuard(env *Env, sel *Selector, rebooter Rebooter, cfg GuardConfig) *Guard {
	g := &Guard{
		env:      env,
		sel:      sel,
		rebooter: rebooter,
		attempts: cfg.Attempts,
		window:   cfg.ConfirmWindow,
		now:      cfg.Now,
	}
	if g.attempts == 0 {
		g.attempts = DefaultAttempts
	}
	if g.window == 0 {
		g.window = DefaultConfirmWindow
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Run executes the boot-time check. It returns true when it rolled the
// device back, in which case a reboot has already been requested and the
// caller must not start normal operation.
func (g *Guard) Run() (rolledBack bool, err error) {
	rec := g.env.Record()
	if rec == nil || rec.Confirmed {
		return false, nil
	}

	now := g.now()
	if rec.Deadline.IsZero() {
		// First boot into the slot: arm the deadline and let the
		// application boot. It is expected to confirm once its own
		// health checks pass.
		if rec.AttemptsRemaining > 0 {
			rec.AttemptsRemaining--
		}
		rec.Deadline = now.Add(g.window)
		if err := g.env.SetRecord(rec); err != nil {
			return false, err
		}
		logger.Noticef("Slot %q on probation: %d attempts left, confirm by %s",
			rec.RunningSlot, rec.AttemptsRemaining, rec.Deadline.Format(time.RFC3339))
		return false, nil
	}

	if rec.AttemptsRemaining == 0 || now.After(rec.Deadline) {
		logger.Noticef("Slot %q never confirmed, rolling back", rec.RunningSlot)
		g.revert()
		if err := g.rebooter.Reboot(); err != nil {
			return true, err
		}
		return true, nil
	}

	rec.AttemptsRemaining--
	if err := g.env.SetRecord(rec); err != nil {
		return false, err
	}
	logger.Noticef("Slot %q still on probation: %d attempts left", rec.RunningSlot, rec.AttemptsRemaining)
	return false, nil
}

// revert flips the boot slot back to the previous confirmed-good slot
// and clears the probation bookkeeping, as one environment save. Failure
// to persist the flipped pointer here is fatal and not retried: retrying
// a corrupted boot pointer is unsafe, and every precondition was checked
// before we got here.
func (g *Guard) revert() {
	if g.env.PreviousSlot() == "" {
		logger.Panicf("cannot roll back: no previous slot recorded")
	}
	if err := g.sel.Revert(); err != nil {
		logger.Panicf("cannot persist boot environment during rollback: %v", err)
	}
}

// AcceptUpdate flips the boot slot to slot and opens its probation
// record, as one environment save, at the moment an update is accepted
// and before the reboot into it.
func (g *Guard) AcceptUpdate(slot string) error {
	return g.sel.Accept(slot, &BootRecord{
		RunningSlot:       slot,
		Confirmed:         false,
		AttemptsRemaining: g.attempts,
		OpenedAt:          g.now(),
	})
}

// Confirm marks the running image healthy and ends its probation. It is
// idempotent, and a no-op success when nothing is pending.
func (g *Guard) Confirm() error {
	rec := g.env.Record()
	if rec == nil {
		return nil
	}
	logger.Noticef("Slot %q confirmed healthy", rec.RunningSlot)
	return g.env.SetRecord(nil)
}

// Pending reports whether a boot record is awaiting confirmation, and
// how many boot attempts remain.
func (g *Guard) Pending() (remaining uint8, pending bool) {
	rec := g.env.Record()
	if rec == nil || rec.Confirmed {
		return 0, false
	}
	return rec.AttemptsRemaining, true
}

// CanRollback reports whether a confirmed-good previous slot exists.
func (g *Guard) CanRollback() bool {
	return g.env.PreviousSlot() != ""
}

// Rollback reverts to the previous confirmed-good slot on operator
// request, independent of confirmation state. The caller is responsible
// for resetting the device afterwards (the HTTP layer sends its response
// first, so response delivery races the reboot by design).
func (g *Guard) Rollback() error {
	if !g.CanRollback() {
		return ErrNoRollback
	}
	logger.Noticef("Rolling back to slot %q on request", g.env.PreviousSlot())
	g.revert()
	return nil
}
