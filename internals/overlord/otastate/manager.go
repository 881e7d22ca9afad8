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

// Package otastate implements the manager responsible for over-the-air
// firmware updates: the single in-flight update session, the streaming
// image writer and the verification gate. The boot-confirmation side
// lives in the boot package; this manager drives it at the moment an
// update is accepted.
package otastate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"gopkg.in/tomb.v2"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/boot"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/flash"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/metrics"
)

// Session states as reported on the wire.
const (
	StateIdle          = "idle"
	StateDownloading   = "downloading"
	StateVerifying     = "verifying"
	StateReadyToReboot = "ready_to_reboot"
	StatePendingVerify = "pending_verify"
	StateError         = "error"
)

const (
	eventStart       = "start"
	eventFinishWrite = "finish-write"
	eventAccept      = "accept"
	eventFail        = "fail"
	eventAbort       = "abort"
)

// chunkSize is how much a URL download reads and programs per cycle.
const chunkSize = 4096

// ManagerConfig carries the update manager's collaborators.
type ManagerConfig struct {
	Device   flash.Device
	Selector *boot.Selector
	Guard    *boot.Guard

	// Verifier overrides the stock length-check verifier. Nil means
	// DefaultVerifier().
	Verifier Verifier

	// Client performs URL downloads. Nil means a client with a
	// 10-minute overall timeout.
	Client *http.Client

	// Notify, when set, is called with every session state entered
	// (telemetry fan-out). Called on its own goroutine.
	Notify func(state string)
}

// UpdateManager owns the single system-wide update session and
// sequences writer, verifier and boot-slot switch. All methods are safe
// for concurrent use; chunk writes block the caller while flash
// programs.
type UpdateManager struct {
	mu       sync.Mutex
	machine  *fsm.FSM
	dev      flash.Device
	sel      *boot.Selector
	guard    *boot.Guard
	verifier Verifier
	client   *http.Client

	writer    *imageWriter
	img       *WrittenImage
	sourceURL string
	lastErr   error
	download  *tomb.Tomb
	notify    func(state string)
}

// NewManager returns an update manager in the idle state.
func NewManager(cfg ManagerConfig) *UpdateManager {
	m := &UpdateManager{
		dev:      cfg.Device,
		sel:      cfg.Selector,
		guard:    cfg.Guard,
		verifier: cfg.Verifier,
		client:   cfg.Client,
		notify:   cfg.Notify,
	}
	if m.verifier == nil {
		m.verifier = DefaultVerifier()
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: 10 * time.Minute}
	}
	m.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle, StateError}, Dst: StateDownloading},
			{Name: eventFinishWrite, Src: []string{StateDownloading}, Dst: StateVerifying},
			{Name: eventAccept, Src: []string{StateVerifying}, Dst: StateReadyToReboot},
			{Name: eventFail, Src: []string{StateDownloading, StateVerifying}, Dst: StateError},
			{Name: eventAbort, Src: []string{StateDownloading, StateVerifying, StateError}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("update session: %s -> %s", e.Src, e.Dst)
				if m.notify != nil {
					go m.notify(e.Dst)
				}
			},
		},
	)
	return m
}

// event fires a state machine event; transitions are all statically
// legal at the call sites, so a refusal is an internal error.
func (m *UpdateManager) event(name string) {
	if err := m.machine.Event(context.Background(), name); err != nil {
		logger.Panicf("internal error: update session cannot %s from %q: %v", name, m.machine.Current(), err)
	}
}

// failLocked records err and parks the session in the error state for
// diagnostics. The inactive partition is left as written.
func (m *UpdateManager) failLocked(err error) {
	m.lastErr = err
	m.event(eventFail)
	metrics.OTAUpdatesTotal.WithLabelValues("failed").Inc()
	logger.Noticef("Update failed: %v", err)
}

// stateLocked returns the session state as observed externally: an idle
// machine while an unconfirmed boot record is live means the device was
// reset into a new image that has yet to confirm itself.
func (m *UpdateManager) stateLocked() string {
	st := m.machine.Current()
	if st == StateIdle {
		if _, pending := m.guard.Pending(); pending {
			return StatePendingVerify
		}
	}
	return st
}

// beginLocked atomically checks that no session is open and opens one on
// the inactive slot. A session parked in the error state may be replaced;
// an in-flight one never is, and neither is the pending_verify window
// after a reboot into an unconfirmed image: the inactive slot then holds
// the only firmware known to boot, and erasing it would leave the guard
// nothing to roll back to.
func (m *UpdateManager) beginLocked(declared int64, source string) error {
	switch m.stateLocked() {
	case StateIdle, StateError:
	default:
		return ErrAlreadyInProgress
	}
	w, err := newImageWriter(m.dev, m.sel.Inactive(), declared)
	if err != nil {
		return err
	}
	m.event(eventStart)
	m.writer = w
	m.img = nil
	m.lastErr = nil
	m.sourceURL = source
	logger.Noticef("Update session opened on slot %q (declared size %d)", w.part.ID, declared)
	return nil
}

// BeginUpload opens an update session fed by WriteChunk calls, for an
// image of the declared size. The needed range of the inactive slot is
// erased before this returns.
func (m *UpdateManager) BeginUpload(declared int64) error {
	if declared <= 0 {
		return fmt.Errorf("cannot start upload: invalid image size %d", declared)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beginLocked(declared, "")
}

// Begin opens an update session that downloads the image from rawURL on
// a background worker.
func (m *UpdateManager) Begin(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("cannot start update: invalid firmware URL %q", rawURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(-1, rawURL); err != nil {
		return err
	}
	t := &tomb.Tomb{}
	m.download = t
	t.Go(func() error {
		m.runDownload(t, rawURL)
		return nil
	})
	return nil
}

// runDownload streams the image from url into the session in fixed-size
// chunks, then completes the session. It holds no lock across network
// or flash waits; an abort cancels the request context and any further
// chunk write is refused as WrongState.
func (m *UpdateManager) runDownload(t *tomb.Tomb, url string) {
	fail := func(err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.machine.Current() == StateDownloading {
			m.failLocked(err)
		}
	}

	req, err := http.NewRequestWithContext(t.Context(nil), "GET", url, nil)
	if err != nil {
		fail(fmt.Errorf("cannot download firmware: %w", err))
		return
	}
	resp, err := m.client.Do(req)
	if err != nil {
		fail(fmt.Errorf("cannot download firmware: %w", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail(fmt.Errorf("cannot download firmware: server returned %s", resp.Status))
		return
	}
	if resp.ContentLength > 0 {
		if err := m.declareSize(resp.ContentLength); err != nil {
			fail(err)
			return
		}
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if werr := m.WriteChunk(buf[:n]); werr != nil {
				// Aborted or failed under us; the session state
				// already reflects it.
				return
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			fail(fmt.Errorf("cannot download firmware: %w", err))
			return
		}
	}

	if err := m.EndUpload(); err != nil {
		logger.Debugf("download session did not complete: %v", err)
	}
}

// declareSize records the image size once a download learns it from the
// response headers.
func (m *UpdateManager) declareSize(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.machine.Current() != StateDownloading || m.writer == nil {
		return &WrongStateError{Op: "declare image size", State: m.stateLocked()}
	}
	if size < m.writer.written || size > m.writer.part.Size {
		return fmt.Errorf("cannot accept %d-byte image: slot %q holds at most %d bytes", size, m.writer.part.ID, m.writer.part.Size)
	}
	m.writer.declared = size
	return nil
}

// WriteChunk appends bytes to the open session. Progress is monotonic;
// a chunk that would exceed the declared or physical size is rejected.
// The call blocks while flash programs.
func (m *UpdateManager) WriteChunk(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.machine.Current() != StateDownloading {
		return &WrongStateError{Op: "write firmware chunk", State: m.stateLocked()}
	}
	n, err := m.writer.Write(p)
	if n > 0 {
		metrics.OTABytesWritten.Add(float64(n))
	}
	if err != nil {
		m.failLocked(err)
		return err
	}
	return nil
}

// EndUpload closes the write region, verifies the image, and on success
// flips the boot slot and opens the probation record. The session then
// waits in ready_to_reboot; the active partition's content is untouched
// until the device actually resets.
func (m *UpdateManager) EndUpload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.machine.Current() != StateDownloading {
		return &WrongStateError{Op: "finish upload", State: m.stateLocked()}
	}
	m.event(eventFinishWrite)

	img, err := m.writer.Finish()
	if err != nil {
		m.failLocked(err)
		return err
	}
	m.img = img

	if err := m.verifier.Verify(img); err != nil {
		m.failLocked(err)
		return err
	}

	// Flipping the boot slot and opening its probation record is a
	// single environment save; a reset cannot observe one without the
	// other, and a failed save leaves boot selection untouched.
	if err := m.guard.AcceptUpdate(img.Slot); err != nil {
		m.failLocked(err)
		return err
	}

	m.event(eventAccept)
	metrics.OTAUpdatesTotal.WithLabelValues("accepted").Inc()
	logger.Noticef("Update accepted: %d bytes in slot %q (sha256 %s), reboot to apply", img.Size, img.Slot, img.SHA256)
	return nil
}

// Abort discards an in-progress or failed session and returns to idle.
// Boot selection is never touched. Once a session reaches
// ready_to_reboot there is no abort; the only paths out are a reboot or
// the next natural reset.
func (m *UpdateManager) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.machine.Current() {
	case StateDownloading, StateVerifying, StateError:
	default:
		return &WrongStateError{Op: "abort update", State: m.stateLocked()}
	}
	if m.download != nil {
		m.download.Kill(nil)
		m.download = nil
	}
	m.event(eventAbort)
	m.writer = nil
	m.img = nil
	m.lastErr = nil
	m.sourceURL = ""
	metrics.OTAUpdatesTotal.WithLabelValues("aborted").Inc()
	logger.Noticef("Update session aborted")
	return nil
}

// Reboot validates that an accepted update is waiting. The caller (the
// HTTP layer) performs the actual reset after its response is sent, so
// response delivery races the reboot by design. Reboot is never
// performed speculatively from any other state.
func (m *UpdateManager) Reboot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.machine.Current() != StateReadyToReboot {
		return &WrongStateError{Op: "reboot", State: m.stateLocked()}
	}
	return nil
}

// Stop terminates a background download, if any. Used on daemon
// shutdown; the session itself is transient and not preserved.
func (m *UpdateManager) Stop() {
	m.mu.Lock()
	t := m.download
	m.mu.Unlock()
	if t != nil {
		t.Kill(nil)
		t.Wait()
	}
}

// Status is the externally observable session state. It always reflects
// the true internal state.
type Status struct {
	State             string `json:"status"`
	Progress          int    `json:"progress"`
	BytesWritten      int64  `json:"bytes_written"`
	TotalBytes        int64  `json:"total_bytes,omitempty"`
	CanRollback       bool   `json:"can_rollback"`
	RollbackRemaining uint8  `json:"rollback_remaining,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Status reports the session and probation state.
func (m *UpdateManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:       m.stateLocked(),
		CanRollback: m.guard.CanRollback(),
	}
	if m.writer != nil {
		st.BytesWritten = m.writer.written
		if m.writer.declared > 0 {
			st.TotalBytes = m.writer.declared
			st.Progress = int(st.BytesWritten * 100 / st.TotalBytes)
		}
	}
	if st.State == StateReadyToReboot {
		st.Progress = 100
	}
	if st.State == StatePendingVerify {
		remaining, _ := m.guard.Pending()
		st.RollbackRemaining = remaining
	}
	if m.lastErr != nil {
		st.Error = m.lastErr.Error()
	}
	return st
}
