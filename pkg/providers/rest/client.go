/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package rest is the HTTP substrate shared by the vendor adapters: JSON
// round-trips with per-call deadlines, error classification into the
// orchestrator taxonomy, and transparent retry of transient failures.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	qerrors "github.com/amirewontmiss/eigenos/pkg/errors"
)

const (
	retryAttempts     = 4 // initial call plus three retries
	retryInitialDelay = time.Second
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// AuthHeader injects vendor credentials into every request.
	AuthHeader func(*http.Request)
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

// DoJSON performs one JSON request with the given deadline, retrying
// transient failures with exponential back-off (1 s, 2 s, 4 s). A non-nil
// out is filled from the response body.
func (c *Client) DoJSON(ctx context.Context, method, path string, timeout time.Duration, in, out any) error {
	return retry.Do(
		func() error { return c.doOnce(ctx, method, path, timeout, in, out) },
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryInitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(qerrors.IsTransient),
	)
}

func (c *Client) doOnce(ctx context.Context, method, path string, timeout time.Duration, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body, %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.AuthHeader != nil {
		c.AuthHeader(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s %s, %w", method, path, err)
	}
	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return qerrors.Wrap(qerrors.KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return qerrors.Wrap(qerrors.KindTimeout, err)
	}
	return qerrors.Wrap(qerrors.KindNetworkTransient, err)
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return qerrors.New(qerrors.KindAuthFailure, "%s returned %d", resp.Request.URL.Path, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return qerrors.New(qerrors.KindNotFound, "%s returned 404", resp.Request.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired:
		return qerrors.New(qerrors.KindQuotaExceeded, "%s returned %d", resp.Request.URL.Path, resp.StatusCode)
	case resp.StatusCode >= 500:
		return qerrors.New(qerrors.KindNetworkTransient, "%s returned %d", resp.Request.URL.Path, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", resp.Request.URL.Path, resp.StatusCode, body)
	}
}
