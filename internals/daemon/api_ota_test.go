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

package daemon_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/config"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/daemon"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord"
)

func Test(t *testing.T) { TestingT(t) }

type apiSuite struct {
	ovld     *overlord.Overlord
	d        *daemon.Daemon
	rebooter *fakeRebooter
}

var _ = Suite(&apiSuite{})

type fakeRebooter struct {
	calls int32
}

func (r *fakeRebooter) Reboot() error {
	atomic.AddInt32(&r.calls, 1)
	return nil
}

func (r *fakeRebooter) rebooted() bool {
	return atomic.LoadInt32(&r.calls) > 0
}

func (s *apiSuite) SetUpTest(c *C) {
	cfg := config.Default()
	cfg.StateDir = c.MkDir()
	cfg.Sensors = nil
	s.rebooter = &fakeRebooter{}

	var err error
	s.ovld, err = overlord.New(&overlord.Options{
		Config:   cfg,
		Rebooter: s.rebooter,
	})
	c.Assert(err, IsNil)

	s.d = daemon.New(&daemon.Options{
		Config:   cfg,
		Overlord: s.ovld,
		Rebooter: s.rebooter,
	})
}

func (s *apiSuite) TearDownTest(c *C) {
	c.Assert(s.ovld.Stop(), IsNil)
}

func (s *apiSuite) req(c *C, method, path string, body *bytes.Reader) (int, map[string]any) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.d.Router().ServeHTTP(rec, req)

	var result map[string]any
	err := json.Unmarshal(rec.Body.Bytes(), &result)
	c.Assert(err, IsNil, Commentf("body: %s", rec.Body.String()))
	return rec.Code, result
}

func (s *apiSuite) TestStatusIdle(c *C) {
	code, result := s.req(c, "GET", "/api/ota/status", nil)
	c.Check(code, Equals, http.StatusOK)
	c.Check(result["project"], Equals, "fishtankcontroller")
	c.Check(result["version"], Equals, "unknown")
	c.Check(result["status"], Equals, "idle")
	c.Check(result["progress"], Equals, 0.0)
	c.Check(result["can_rollback"], Equals, false)
	c.Check(result["error"], IsNil)
}

func firmwareImage(size int) []byte {
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(i * 13)
	}
	img[0] = 0xE9
	return img
}

func (s *apiSuite) TestUploadRebootFlow(c *C) {
	image := firmwareImage(8192)
	code, result := s.req(c, "POST", "/api/ota/upload", bytes.NewReader(image))
	c.Assert(code, Equals, http.StatusOK, Commentf("%v", result))
	c.Check(result["success"], Equals, true)

	code, result = s.req(c, "GET", "/api/ota/status", nil)
	c.Assert(code, Equals, http.StatusOK)
	c.Check(result["status"], Equals, "ready_to_reboot")
	c.Check(result["progress"], Equals, 100.0)
	c.Check(result["bytes_written"], Equals, 8192.0)
	c.Check(result["can_rollback"], Equals, true)

	code, result = s.req(c, "POST", "/api/ota/reboot", nil)
	c.Assert(code, Equals, http.StatusOK)
	c.Check(result["success"], Equals, true)

	// The reset fires after the response was sent.
	c.Check(s.rebooter.rebooted(), Equals, false)
	deadline := time.Now().Add(5 * time.Second)
	for !s.rebooter.rebooted() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.Check(s.rebooter.rebooted(), Equals, true)
}

func (s *apiSuite) TestUploadRequiresContentLength(c *C) {
	req := httptest.NewRequest("POST", "/api/ota/upload", nil)
	rec := httptest.NewRecorder()
	s.d.Router().ServeHTTP(rec, req)
	c.Check(rec.Code, Equals, http.StatusBadRequest)
	c.Check(rec.Body.String(), Matches, `(?s).*Content-Length required.*`)
}

func (s *apiSuite) TestUpdateRequestValidation(c *C) {
	code, result := s.req(c, "POST", "/api/ota/update", bytes.NewReader([]byte("{}")))
	c.Check(code, Equals, http.StatusBadRequest)
	c.Check(result["message"], Equals, "cannot start update: no url supplied")

	code, _ = s.req(c, "POST", "/api/ota/update", bytes.NewReader([]byte("not json")))
	c.Check(code, Equals, http.StatusBadRequest)
}

func (s *apiSuite) TestSecondSessionConflicts(c *C) {
	image := firmwareImage(4096)
	code, _ := s.req(c, "POST", "/api/ota/upload", bytes.NewReader(image))
	c.Assert(code, Equals, http.StatusOK)

	body := bytes.NewReader([]byte(`{"url": "http://example.com/fw.bin"}`))
	code, result := s.req(c, "POST", "/api/ota/update", body)
	c.Check(code, Equals, http.StatusConflict)
	c.Check(result["message"], Equals, "cannot start update: another update is already in progress")
}

func (s *apiSuite) TestConfirmIdempotent(c *C) {
	for i := 0; i < 2; i++ {
		code, result := s.req(c, "POST", "/api/ota/confirm", nil)
		c.Check(code, Equals, http.StatusOK)
		c.Check(result["success"], Equals, true)
	}
}

func (s *apiSuite) TestRollbackWithoutTarget(c *C) {
	code, result := s.req(c, "POST", "/api/ota/rollback", nil)
	c.Check(code, Equals, http.StatusBadRequest)
	c.Check(result["message"], Equals, "no previous firmware to roll back to")
	c.Check(s.rebooter.rebooted(), Equals, false)
}

func (s *apiSuite) TestRebootFromIdleRejected(c *C) {
	code, result := s.req(c, "POST", "/api/ota/reboot", nil)
	c.Check(code, Equals, http.StatusConflict)
	c.Check(result["message"], Equals, `cannot reboot in state "idle"`)
	c.Check(s.rebooter.rebooted(), Equals, false)
}

func (s *apiSuite) TestMethodNotAllowed(c *C) {
	code, result := s.req(c, "GET", "/api/ota/update", nil)
	c.Check(code, Equals, http.StatusMethodNotAllowed)
	c.Check(result["success"], Equals, false)
}

func (s *apiSuite) TestSensorsEmpty(c *C) {
	req := httptest.NewRequest("GET", "/api/sensors", nil)
	rec := httptest.NewRecorder()
	s.d.Router().ServeHTTP(rec, req)
	c.Check(rec.Code, Equals, http.StatusOK)
	c.Check(strings.TrimSpace(rec.Body.String()), Equals, "[]")
}

func (s *apiSuite) TestStatusPage(c *C) {
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	s.d.Router().ServeHTTP(rec, req)
	c.Check(rec.Code, Equals, http.StatusOK)
	c.Check(rec.Header().Get("Content-Type"), Equals, "text/html; charset=utf-8")
	c.Check(rec.Body.String(), Matches, `(?s).*Tank Controller.*`)
}
