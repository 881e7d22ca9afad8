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

package otastate_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/boot"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/flash"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/otastate"
)

const (
	blockSize = 0x1000
	slotSize  = 0x100000
	chunkSize = 4096
)

var errBoom = errors.New("boom")

type fakeRebooter struct {
	calls int
}

func (r *fakeRebooter) Reboot() error {
	r.calls++
	return nil
}

type managerSuite struct {
	envPath  string
	dev      *flash.MemDevice
	table    *boot.Table
	env      *boot.Env
	sel      *boot.Selector
	guard    *boot.Guard
	rebooter *fakeRebooter
	now      time.Time
	mgr      *otastate.UpdateManager
}

var _ = Suite(&managerSuite{})

func (s *managerSuite) SetUpTest(c *C) {
	s.envPath = filepath.Join(c.MkDir(), "bootenv.json")
	s.dev = flash.NewMemDevice(2*slotSize, blockSize)
	s.rebooter = &fakeRebooter{}
	s.now = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	table, err := boot.NewTable(
		boot.Partition{ID: "slot-a", Offset: 0, Size: slotSize},
		boot.Partition{ID: "slot-b", Offset: slotSize, Size: slotSize},
		nil,
	)
	c.Assert(err, IsNil)
	s.table = table

	s.openStack(c)
}

// openStack builds env, selector, guard and manager from the persisted
// environment, as a fresh boot would.
func (s *managerSuite) openStack(c *C) {
	env, err := boot.OpenEnv(s.envPath, "slot-a")
	c.Assert(err, IsNil)
	s.env = env
	s.sel, err = boot.NewSelector(s.table, env)
	c.Assert(err, IsNil)
	s.guard = boot.NewGuard(env, s.sel, s.rebooter, boot.GuardConfig{
		Now: func() time.Time { return s.now },
	})
	s.mgr = otastate.NewManager(otastate.ManagerConfig{
		Device:   s.dev,
		Selector: s.sel,
		Guard:    s.guard,
	})
}

func (s *managerSuite) TearDownTest(c *C) {
	s.mgr.Stop()
}

// testImage returns a deterministic image of the given size whose bytes
// are never uniformly 0xFF.
func testImage(size int) []byte {
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(i * 7)
	}
	img[0] = 0xE9
	return img
}

func (s *managerSuite) uploadImage(c *C, image []byte) {
	c.Assert(s.mgr.BeginUpload(int64(len(image))), IsNil)
	for off := 0; off < len(image); off += chunkSize {
		end := off + chunkSize
		if end > len(image) {
			end = len(image)
		}
		c.Assert(s.mgr.WriteChunk(image[off:end]), IsNil)
	}
	c.Assert(s.mgr.EndUpload(), IsNil)
}

func (s *managerSuite) TestUploadRoundTrip(c *C) {
	image := testImage(slotSize) // exactly fills a slot, 256 chunks

	c.Assert(s.mgr.BeginUpload(int64(len(image))), IsNil)
	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateDownloading)
	c.Check(st.TotalBytes, Equals, int64(len(image)))

	lastProgress := -1
	for off := 0; off < len(image); off += chunkSize {
		c.Assert(s.mgr.WriteChunk(image[off:off+chunkSize]), IsNil)
		st = s.mgr.Status()
		if st.Progress < lastProgress {
			c.Fatalf("progress went backwards: %d after %d", st.Progress, lastProgress)
		}
		lastProgress = st.Progress
		c.Check(st.BytesWritten, Equals, int64(off+chunkSize))
	}

	c.Assert(s.mgr.EndUpload(), IsNil)
	st = s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateReadyToReboot)
	c.Check(st.Progress, Equals, 100)
	c.Check(st.CanRollback, Equals, true)

	// The boot slot flipped and the new slot is on probation.
	c.Check(s.env.ActiveSlot(), Equals, "slot-b")
	c.Check(s.env.PreviousSlot(), Equals, "slot-a")
	rec := s.env.Record()
	c.Assert(rec, NotNil)
	c.Check(rec.RunningSlot, Equals, "slot-b")
	c.Check(rec.Confirmed, Equals, false)

	// The image landed in the inactive slot byte for byte.
	c.Check(bytes.Equal(s.dev.Bytes(slotSize, int64(len(image))), image), Equals, true)

	c.Check(s.mgr.Reboot(), IsNil)
}

func (s *managerSuite) TestOnlyOneSessionAtATime(c *C) {
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
	c.Check(s.mgr.BeginUpload(chunkSize), Equals, otastate.ErrAlreadyInProgress)
	c.Check(s.mgr.Begin("http://example.com/fw.bin"), Equals, otastate.ErrAlreadyInProgress)
}

func (s *managerSuite) TestWrongStateRejections(c *C) {
	c.Check(s.mgr.WriteChunk([]byte{1}), ErrorMatches, `cannot write firmware chunk in state "idle"`)
	c.Check(s.mgr.EndUpload(), ErrorMatches, `cannot finish upload in state "idle"`)
	c.Check(s.mgr.Reboot(), ErrorMatches, `cannot reboot in state "idle"`)
	c.Check(s.mgr.Abort(), ErrorMatches, `cannot abort update in state "idle"`)
}

func (s *managerSuite) TestRebootOnlyWhenReady(c *C) {
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
	c.Check(s.mgr.Reboot(), ErrorMatches, `cannot reboot in state "downloading"`)
}

func (s *managerSuite) TestInvalidSizeAndURL(c *C) {
	c.Check(s.mgr.BeginUpload(0), ErrorMatches, "cannot start upload: invalid image size 0")
	c.Check(s.mgr.BeginUpload(-5), ErrorMatches, "cannot start upload: invalid image size -5")
	c.Check(s.mgr.Begin("ftp://example.com/fw.bin"), ErrorMatches, `cannot start update: invalid firmware URL .*`)
	c.Check(s.mgr.Begin("://bad"), ErrorMatches, `cannot start update: invalid firmware URL .*`)
}

func (s *managerSuite) TestOversizedImageRejected(c *C) {
	err := s.mgr.BeginUpload(slotSize + 1)
	c.Assert(err, ErrorMatches, `cannot write \d+-byte image: slot "slot-b" holds at most \d+ bytes`)
	c.Check(s.mgr.Status().State, Equals, otastate.StateIdle)
}

func (s *managerSuite) TestWriteFailureParksSessionInError(c *C) {
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
	s.dev.WriteErr = errBoom
	err := s.mgr.WriteChunk(make([]byte, 16))
	c.Assert(err, ErrorMatches, "firmware write failed: boom")

	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateError)
	c.Check(st.Error, Equals, "firmware write failed: boom")

	// Boot selection was never touched.
	c.Check(s.env.ActiveSlot(), Equals, "slot-a")
	c.Check(s.env.Record(), IsNil)

	// The failed session can be aborted and replaced.
	c.Assert(s.mgr.Abort(), IsNil)
	c.Check(s.mgr.Status().State, Equals, otastate.StateIdle)
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
}

func (s *managerSuite) TestShortImageFailsVerification(c *C) {
	c.Assert(s.mgr.BeginUpload(2*chunkSize), IsNil)
	c.Assert(s.mgr.WriteChunk(testImage(chunkSize)), IsNil)
	err := s.mgr.EndUpload()
	c.Assert(err, ErrorMatches, "firmware verification failed: image is 4096 bytes, expected 8192")

	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateError)
	c.Check(s.env.ActiveSlot(), Equals, "slot-a")
	c.Check(s.env.Record(), IsNil)
}

func (s *managerSuite) TestBlankImageFailsVerification(c *C) {
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
	c.Assert(s.mgr.WriteChunk(bytes.Repeat([]byte{0xFF}, chunkSize)), IsNil)
	err := s.mgr.EndUpload()
	c.Assert(err, ErrorMatches, "firmware verification failed: image header is blank flash")
}

func (s *managerSuite) TestAbortDiscardsSession(c *C) {
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
	c.Assert(s.mgr.WriteChunk(testImage(100)), IsNil)
	c.Assert(s.mgr.Abort(), IsNil)

	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateIdle)
	c.Check(st.BytesWritten, Equals, int64(0))
	c.Check(s.env.ActiveSlot(), Equals, "slot-a")

	// A new session starts from scratch.
	s.uploadImage(c, testImage(chunkSize))
	c.Check(s.mgr.Status().State, Equals, otastate.StateReadyToReboot)
}

func (s *managerSuite) TestNoAbortOnceReady(c *C) {
	s.uploadImage(c, testImage(chunkSize))
	c.Check(s.mgr.Abort(), ErrorMatches, `cannot abort update in state "ready_to_reboot"`)
}

func (s *managerSuite) waitFinal(c *C) otastate.Status {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := s.mgr.Status()
		switch st.State {
		case otastate.StateReadyToReboot, otastate.StateError:
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Fatalf("download session did not settle, state %q", s.mgr.Status().State)
	return otastate.Status{}
}

func (s *managerSuite) TestURLDownload(c *C) {
	image := testImage(3 * chunkSize)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer server.Close()

	c.Assert(s.mgr.Begin(server.URL+"/fw.bin"), IsNil)
	st := s.waitFinal(c)
	c.Assert(st.Error, Equals, "")
	c.Check(st.State, Equals, otastate.StateReadyToReboot)
	c.Check(st.BytesWritten, Equals, int64(len(image)))
	c.Check(st.TotalBytes, Equals, int64(len(image)))

	c.Check(s.env.ActiveSlot(), Equals, "slot-b")
	c.Check(bytes.Equal(s.dev.Bytes(slotSize, int64(len(image))), image), Equals, true)
}

func (s *managerSuite) TestURLDownloadServerError(c *C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	c.Assert(s.mgr.Begin(server.URL+"/fw.bin"), IsNil)
	st := s.waitFinal(c)
	c.Check(st.State, Equals, otastate.StateError)
	c.Check(st.Error, Matches, "cannot download firmware: server returned .*404.*")
	c.Check(s.env.ActiveSlot(), Equals, "slot-a")
}

func (s *managerSuite) TestURLDownloadTooLarge(c *C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, slotSize))
		w.Write(make([]byte, chunkSize))
	}))
	defer server.Close()

	c.Assert(s.mgr.Begin(server.URL+"/fw.bin"), IsNil)
	st := s.waitFinal(c)
	c.Check(st.State, Equals, otastate.StateError)
	c.Check(st.Error, Matches, "cannot accept \\d+-byte image: .*|cannot write \\d+ bytes at offset \\d+: .*")
}

func (s *managerSuite) TestResetBeforeConfirmEntersProbation(c *C) {
	s.uploadImage(c, testImage(chunkSize))

	// Device resets: the whole stack is rebuilt from the persisted
	// environment and the guard runs before anything else.
	s.openStack(c)
	rolledBack, err := s.guard.Run()
	c.Assert(err, IsNil)
	c.Check(rolledBack, Equals, false)

	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StatePendingVerify)
	c.Check(st.RollbackRemaining, Equals, uint8(boot.DefaultAttempts-1))
	c.Check(st.CanRollback, Equals, true)

	// Confirmation returns the session to plain idle.
	c.Assert(s.guard.Confirm(), IsNil)
	st = s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateIdle)
	c.Check(st.RollbackRemaining, Equals, uint8(0))
}

func (s *managerSuite) TestNoNewSessionWhilePendingVerify(c *C) {
	s.uploadImage(c, testImage(chunkSize))

	// Reset into the unconfirmed image. The previous slot is now the
	// only firmware known to boot; a new session would erase it.
	s.openStack(c)
	rolledBack, err := s.guard.Run()
	c.Assert(err, IsNil)
	c.Check(rolledBack, Equals, false)
	c.Check(s.mgr.Status().State, Equals, otastate.StatePendingVerify)

	before := s.dev.Bytes(0, slotSize) // slot-a, the rollback target
	c.Check(s.mgr.BeginUpload(chunkSize), Equals, otastate.ErrAlreadyInProgress)
	c.Check(s.mgr.Begin("http://example.com/fw.bin"), Equals, otastate.ErrAlreadyInProgress)
	c.Check(s.mgr.Abort(), ErrorMatches, `cannot abort update in state "pending_verify"`)
	c.Check(bytes.Equal(s.dev.Bytes(0, slotSize), before), Equals, true)
	c.Check(s.guard.CanRollback(), Equals, true)

	// Confirming the running image reopens the session for updates.
	c.Assert(s.guard.Confirm(), IsNil)
	c.Assert(s.mgr.BeginUpload(chunkSize), IsNil)
}

func (s *managerSuite) TestUnconfirmedImageRollsBackAfterAttempts(c *C) {
	s.uploadImage(c, testImage(chunkSize))

	// Boots 1..3 keep the new slot; the application never confirms.
	for i := 0; i < int(boot.DefaultAttempts); i++ {
		s.openStack(c)
		rolledBack, err := s.guard.Run()
		c.Assert(err, IsNil)
		c.Check(rolledBack, Equals, false)
		c.Check(s.env.ActiveSlot(), Equals, "slot-b")
	}

	// The next boot reverts to the previous firmware.
	s.openStack(c)
	rolledBack, err := s.guard.Run()
	c.Assert(err, IsNil)
	c.Check(rolledBack, Equals, true)
	c.Check(s.rebooter.calls, Equals, 1)
	c.Check(s.env.ActiveSlot(), Equals, "slot-a")
	c.Check(s.env.Record(), IsNil)

	// The reverted-from slot is not a rollback target.
	s.openStack(c)
	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateIdle)
	c.Check(st.CanRollback, Equals, false)
}

func (s *managerSuite) TestManualRollbackAfterConfirm(c *C) {
	s.uploadImage(c, testImage(chunkSize))

	s.openStack(c)
	_, err := s.guard.Run()
	c.Assert(err, IsNil)
	c.Assert(s.guard.Confirm(), IsNil)

	// Operator decides the new firmware misbehaves anyway.
	c.Check(s.guard.CanRollback(), Equals, true)
	c.Assert(s.guard.Rollback(), IsNil)
	c.Check(s.env.ActiveSlot(), Equals, "slot-a")
	c.Check(s.guard.CanRollback(), Equals, false)
	c.Check(s.guard.Rollback(), Equals, boot.ErrNoRollback)
}

func (s *managerSuite) TestFactoryDefaultsNoRollback(c *C) {
	st := s.mgr.Status()
	c.Check(st.State, Equals, otastate.StateIdle)
	c.Check(st.CanRollback, Equals, false)
	c.Check(s.guard.Rollback(), Equals, boot.ErrNoRollback)
}
