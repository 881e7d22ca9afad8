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

package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/boot"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/metrics"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/osutil"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/otastate"
)

// uploadChunkSize is how much of an upload body is streamed into the
// writer per cycle.
const uploadChunkSize = 4096

// otaStatus is the full status payload: build identity plus the live
// session state.
type otaStatus struct {
	Version     string `json:"version"`
	Project     string `json:"project"`
	SDKVersion  string `json:"sdk_version"`
	CompileDate string `json:"compile_date"`
	CompileTime string `json:"compile_time"`

	// Uptime is seconds since the kernel booted, not since the daemon
	// started.
	Uptime int64 `json:"uptime"`

	otastate.Status
}

func v1GetOTAStatus(c *Command, r *http.Request) Response {
	return SyncResponse(&otaStatus{
		Version:     Version,
		Project:     Project,
		SDKVersion:  SDKVersion(),
		CompileDate: CompileDate,
		CompileTime: CompileTime,
		Uptime:      osutil.KernelRuntime() / int64(time.Second),
		Status:      c.d.overlord.UpdateManager().Status(),
	})
}

// updateError maps a manager error onto the HTTP status that describes
// it. The session is already in a well-defined state either way.
func updateError(err error) Response {
	var wrongState *otastate.WrongStateError
	switch {
	case errors.Is(err, otastate.ErrAlreadyInProgress):
		return statusConflict("%v", err)
	case errors.As(err, &wrongState):
		return statusConflict("%v", err)
	}
	return statusInternalError("%v", err)
}

func v1PostOTAUpdate(c *Command, r *http.Request) Response {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return statusBadRequest("cannot decode request body: %v", err)
	}
	if payload.URL == "" {
		return statusBadRequest("cannot start update: no url supplied")
	}
	if err := c.d.overlord.UpdateManager().Begin(payload.URL); err != nil {
		return updateError(err)
	}
	return statusOK("update started")
}

func v1PostOTAUpload(c *Command, r *http.Request) Response {
	if r.ContentLength <= 0 {
		return statusBadRequest("cannot upload firmware: Content-Length required")
	}
	mgr := c.d.overlord.UpdateManager()
	if err := mgr.BeginUpload(r.ContentLength); err != nil {
		return updateError(err)
	}

	buf := make([]byte, uploadChunkSize)
	for {
		n, err := r.Body.Read(buf)
		if n > 0 {
			if werr := mgr.WriteChunk(buf[:n]); werr != nil {
				return updateError(werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			// The connection died mid-upload; drop the half-written
			// session so the next attempt starts from idle.
			_ = mgr.Abort()
			return statusBadRequest("cannot read upload body: %v", err)
		}
	}

	if err := mgr.EndUpload(); err != nil {
		return updateError(err)
	}
	return statusOK("update written and verified, reboot to apply")
}

func v1PostOTAConfirm(c *Command, r *http.Request) Response {
	if err := c.d.overlord.Guard().Confirm(); err != nil {
		return statusInternalError("%v", err)
	}
	return statusOK("firmware confirmed")
}

func v1PostOTARollback(c *Command, r *http.Request) Response {
	if err := c.d.overlord.Guard().Rollback(); err != nil {
		if errors.Is(err, boot.ErrNoRollback) {
			return statusBadRequest("%v", err)
		}
		return statusInternalError("%v", err)
	}
	metrics.OTARollbacksTotal.WithLabelValues("manual").Inc()
	// The response must reach the client before the device resets.
	c.d.rebootAfterReply()
	return statusOK("rolling back, device will reset")
}

func v1PostOTAReboot(c *Command, r *http.Request) Response {
	if err := c.d.overlord.UpdateManager().Reboot(); err != nil {
		return updateError(err)
	}
	c.d.rebootAfterReply()
	return statusOK("rebooting into new firmware")
}

func v1GetSensors(c *Command, r *http.Request) Response {
	return SyncResponse(c.d.overlord.SensorManager().Readings())
}
