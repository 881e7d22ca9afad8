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
	"fmt"
	"net/http"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
)

// Response knows how to serve itself.
type Response interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type jsonResponse struct {
	Status int
	Result any
}

func (r *jsonResponse) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status)
	if err := json.NewEncoder(w).Encode(r.Result); err != nil {
		logger.Noticef("Cannot write response: %v", err)
	}
}

// SyncResponse serves result as a 200 JSON body.
func SyncResponse(result any) Response {
	return &jsonResponse{Status: http.StatusOK, Result: result}
}

// actionResult is the body of every mutating endpoint.
type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// statusOK reports a successful action.
func statusOK(format string, v ...any) Response {
	return &jsonResponse{
		Status: http.StatusOK,
		Result: actionResult{Success: true, Message: fmt.Sprintf(format, v...)},
	}
}

func errorResponse(status int, format string, v ...any) Response {
	return &jsonResponse{
		Status: status,
		Result: actionResult{Success: false, Message: fmt.Sprintf(format, v...)},
	}
}

func statusBadRequest(format string, v ...any) Response {
	return errorResponse(http.StatusBadRequest, format, v...)
}

func statusConflict(format string, v ...any) Response {
	return errorResponse(http.StatusConflict, format, v...)
}

func statusInternalError(format string, v ...any) Response {
	return errorResponse(http.StatusInternalServerError, format, v...)
}

func statusMethodNotAllowed(format string, v ...any) Response {
	return errorResponse(http.StatusMethodNotAllowed, format, v...)
}
