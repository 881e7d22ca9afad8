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

// Package client speaks the tankd REST API. The CLI subcommands are
// thin wrappers over it.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the client's connection options.
type Config struct {
	// BaseURL is the daemon address, e.g. "http://tank.local:8080".
	BaseURL string
}

// Error is a failure reported by the daemon.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server error: %s", http.StatusText(e.StatusCode))
}

// Client talks to a single tankd instance.
type Client struct {
	baseURL *url.URL
	doer    *http.Client
}

func New(cfg *Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("cannot use %q as daemon URL", cfg.BaseURL)
	}
	return &Client{
		baseURL: base,
		// Firmware uploads over slow links take a while.
		doer: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

// actionResult is the body of every mutating endpoint.
type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// doSync performs a request and decodes the JSON response into result.
// A non-2xx response becomes an *Error carrying the server's message.
func (c *Client) doSync(method, path string, headers map[string]string, body io.Reader, contentLength int64, result any) error {
	u := *c.baseURL
	u.Path = path
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return err
	}
	if contentLength > 0 {
		req.ContentLength = contentLength
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rsp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		var ar actionResult
		_ = json.NewDecoder(rsp.Body).Decode(&ar)
		return &Error{StatusCode: rsp.StatusCode, Message: ar.Message}
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(rsp.Body).Decode(result); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}
	return nil
}

// action POSTs a JSON payload (possibly nil) and checks the
// {success, message} result.
func (c *Client) action(path string, body io.Reader) error {
	headers := map[string]string{"Content-Type": "application/json"}
	var result actionResult
	if err := c.doSync("POST", path, headers, body, 0, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("server reported failure: %s", result.Message)
	}
	return nil
}
