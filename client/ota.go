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

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// OTAStatus is the daemon's /api/ota/status payload.
type OTAStatus struct {
	Version     string `json:"version"`
	Project     string `json:"project"`
	SDKVersion  string `json:"sdk_version"`
	CompileDate string `json:"compile_date"`
	CompileTime string `json:"compile_time"`

	Status            string `json:"status"`
	Progress          int    `json:"progress"`
	BytesWritten      int64  `json:"bytes_written"`
	TotalBytes        int64  `json:"total_bytes,omitempty"`
	CanRollback       bool   `json:"can_rollback"`
	RollbackRemaining uint8  `json:"rollback_remaining,omitempty"`
	Err               string `json:"error,omitempty"`
}

// OTAStatus fetches the firmware and update-session status.
func (c *Client) OTAStatus() (*OTAStatus, error) {
	var st OTAStatus
	if err := c.doSync("GET", "/api/ota/status", nil, nil, 0, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Update asks the device to download and stage new firmware from url.
func (c *Client) Update(url string) error {
	payload, err := json.Marshal(struct {
		URL string `json:"url"`
	}{url})
	if err != nil {
		return fmt.Errorf("cannot encode JSON payload: %w", err)
	}
	return c.action("/api/ota/update", bytes.NewReader(payload))
}

// Upload streams a firmware image of the given size to the device. The
// device verifies it and stages it for the next reboot.
func (c *Client) Upload(source io.Reader, size int64) error {
	headers := map[string]string{"Content-Type": "application/octet-stream"}
	var result actionResult
	if err := c.doSync("POST", "/api/ota/upload", headers, source, size, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("server reported failure: %s", result.Message)
	}
	return nil
}

// Confirm marks the running firmware healthy, ending its probation.
func (c *Client) Confirm() error {
	return c.action("/api/ota/confirm", nil)
}

// Rollback reverts the device to the previous firmware and resets it.
func (c *Client) Rollback() error {
	return c.action("/api/ota/rollback", nil)
}

// Reboot resets the device into a staged update.
func (c *Client) Reboot() error {
	return c.action("/api/ota/reboot", nil)
}
