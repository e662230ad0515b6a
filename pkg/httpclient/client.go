// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

type RateLimitInfo struct {
	RetryAfter time.Duration
	ResetTime  int64
}

type RateLimitHeaderParser func(http.Header) RateLimitInfo

type RetryStrategyFunc func(int) RetryStrategy

// Client performs single JSON round trips against a collaborator service and
// classifies failures into coded errors. Looping is left to pkg/retry, which
// consults the retryable flag set here.
type Client struct {
	client       *http.Client
	baseURL      string
	headers      map[string]string
	failureCode  xerrors.Code
	headerParser RateLimitHeaderParser
	strategyFunc RetryStrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithFailureCode sets the code used for transport and HTTP failures.
// Defaults to CodeModelFailure.
func WithFailureCode(code xerrors.Code) Option {
	return func(c *Client) {
		c.failureCode = code
	}
}

func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(c *Client) {
		c.headerParser = parser
	}
}

func WithRetryStrategy(strategyFunc RetryStrategyFunc) Option {
	return func(c *Client) {
		c.strategyFunc = strategyFunc
	}
}

func New(baseURL string, opts ...Option) *Client {
	client := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		headers:      map[string]string{},
		failureCode:  xerrors.CodeModelFailure,
		headerParser: ParseRetryAfter,
		strategyFunc: DefaultRetryStrategy,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func DefaultRetryStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// PostJSON posts payload to path and decodes the response into out, which
// may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.roundTrip(req, out)
}

// GetJSON fetches path and decodes the response into out, which may be nil.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.roundTrip(req, out)
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(c.failureCode, err, "failed to decode response", xerrors.WithRetryable(false))
	}
	return nil
}

// Do sends req once. Non-2xx responses are closed and returned as a coded
// error wrapping a *StatusError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ctxErr)
		}
		return nil, xerrors.Wrap(c.failureCode, err, fmt.Sprintf("%s %s", req.Method, req.URL.Path))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	if msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
		statusErr.Message = strings.TrimSpace(string(msg))
	}
	if c.headerParser != nil {
		statusErr.RetryAfter = c.delayHint(c.headerParser(resp.Header))
	}

	strategy := c.strategyFunc(resp.StatusCode)
	return nil, xerrors.Wrap(c.failureCode, statusErr,
		fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		xerrors.WithRetryable(strategy != NoRetry),
		xerrors.WithMetadata("status", fmt.Sprint(resp.StatusCode)))
}

func (c *Client) delayHint(info RateLimitInfo) time.Duration {
	if info.RetryAfter > 0 {
		return info.RetryAfter
	}
	if info.ResetTime > 0 {
		if d := time.Until(time.Unix(info.ResetTime, 0)); d > 0 {
			return d
		}
	}
	return 0
}
