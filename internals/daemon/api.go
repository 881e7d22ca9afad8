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
	"net/http"
)

// ResponseFunc handles one method on one path.
type ResponseFunc func(c *Command, r *http.Request) Response

// Command routes the methods of a single API path.
type Command struct {
	Path string
	GET  ResponseFunc
	POST ResponseFunc

	d *Daemon
}

func (c *Command) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rspf ResponseFunc
	switch r.Method {
	case "GET":
		rspf = c.GET
	case "POST":
		rspf = c.POST
	}
	if rspf == nil {
		statusMethodNotAllowed("method %q not allowed", r.Method).ServeHTTP(w, r)
		return
	}
	rspf(c, r).ServeHTTP(w, r)
}

var api = []*Command{{
	Path: "/api/ota/status",
	GET:  v1GetOTAStatus,
}, {
	Path: "/api/ota/update",
	POST: v1PostOTAUpdate,
}, {
	Path: "/api/ota/upload",
	POST: v1PostOTAUpload,
}, {
	Path: "/api/ota/confirm",
	POST: v1PostOTAConfirm,
}, {
	Path: "/api/ota/rollback",
	POST: v1PostOTARollback,
}, {
	Path: "/api/ota/reboot",
	POST: v1PostOTAReboot,
}, {
	Path: "/api/sensors",
	GET:  v1GetSensors,
}}
