// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package nodeclient is the coordinator's HTTP client for talking to one
// node: lock/relock/unlock, starting an op, and polling its result. Node
// responses are decoded into the shared wire types in pkg/model; non-2xx
// and transport-level failures are classified into pkg/errors codes so
// callers in pkg/coordinator can distinguish "the node refused" from "the
// node is unreachable" without inspecting raw HTTP status codes themselves.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aiven/astacus/pkg/defaults"
	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
)

// Client talks to a single node's HTTP surface. One Client wraps one
// pooled *http.Client; callers hold one Client per node endpoint and reuse
// it across an op's lifetime.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client targeting baseURL (e.g. "http://node1:8080"), with
// connection and timeout tuning from pkg/defaults.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(),
	}
}

// NewWithHTTPClient returns a Client using a caller-supplied *http.Client,
// e.g. one pointed at a test httptest.Server with default transport.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaults.HTTPConnectTimeout,
			KeepAlive: defaults.HTTPKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   defaults.HTTPTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaults.HTTPResponseHeaderTimeout,
		IdleConnTimeout:       defaults.HTTPIdleConnTimeout,
		ExpectContinueTimeout: defaults.HTTPExpectContinueTimeout,
		MaxIdleConnsPerHost:   8,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaults.HTTPClientTimeout,
	}
}

// BaseURL returns the node's base URL, for logging/metrics labeling.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errTransport wraps a network-level failure (dial, timeout, connection
// reset) as a structured TransportError, the class of failure the
// coordinator's lease and poll logic treats as "exception", not "failure".
func errTransport(op string, cause error) error {
	return errors.Wrap(errors.ErrCodeTransport, "node request failed: "+op, cause)
}

// decodeErrorBody best-effort decodes a node's JSON error response body
// (pkg/httpapi.ErrorResponse's wire shape) to extract a message; failure
// to decode still yields a StructuredError, just with a generic message.
func decodeErrorBody(statusCode int, body []byte) error {
	code := errors.ErrCodeTransport
	switch statusCode {
	case http.StatusConflict:
		code = errors.ErrCodeLockConflict
	case http.StatusForbidden:
		code = errors.ErrCodeLockOwnerMismatch
	case http.StatusGone:
		code = errors.ErrCodeExpiredOperation
	case http.StatusNotFound:
		code = errors.ErrCodeOperationIDMismatch
	}

	var decoded struct {
		Message string `json:"message"`
	}
	message := fmt.Sprintf("node responded %d", statusCode)
	if len(body) > 0 && json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
		message = decoded.Message
	}
	return errors.NewWithContext(code, message, map[string]any{"status_code": statusCode})
}

// doJSON POSTs body (if non-nil) as JSON to path and decodes a 2xx JSON
// response into out (if non-nil). A non-2xx response is translated via
// decodeErrorBody; a network-level failure is wrapped as TransportError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRequest, "encoding request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "building request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errTransport(path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errTransport(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorBody(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errTransport(path, fmt.Errorf("decoding response body: %w", err))
	}
	return nil
}

// lockCall performs one lock/relock/unlock call, which take locker/ttl as
// query parameters rather than a JSON body, matching the node HTTP surface.
func (c *Client) lockCall(ctx context.Context, callPath, locker string, ttl time.Duration) (model.LockResponse, error) {
	q := url.Values{}
	q.Set("locker", locker)
	if ttl > 0 {
		q.Set("ttl", strconv.FormatInt(int64(ttl/time.Second), 10))
	}

	var resp model.LockResponse
	err := c.doJSON(ctx, http.MethodPost, callPath+"?"+q.Encode(), nil, &resp)
	return resp, err
}

// Lock acquires the node's lease for locker with the given ttl.
func (c *Client) Lock(ctx context.Context, locker string, ttl time.Duration) (model.LockResponse, error) {
	return c.lockCall(ctx, "/lock", locker, ttl)
}

// Relock refreshes locker's lease.
func (c *Client) Relock(ctx context.Context, locker string, ttl time.Duration) (model.LockResponse, error) {
	return c.lockCall(ctx, "/relock", locker, ttl)
}

// Unlock releases locker's lease.
func (c *Client) Unlock(ctx context.Context, locker string) (model.LockResponse, error) {
	return c.lockCall(ctx, "/unlock", locker, 0)
}

// StartOp starts opName (one of snapshot/upload/download/clear) with the
// given request body, returning the assigned op id and status URL.
func (c *Client) StartOp(ctx context.Context, opName string, req any) (model.StartResult, error) {
	var result model.StartResult
	err := c.doJSON(ctx, http.MethodPost, "/"+opName, req, &result)
	return result, err
}

// PollResult fetches an op's current result from its status URL (as
// returned by StartOp), decoding it into out (typically *model.NodeResult).
// statusURL may be absolute (as node-reported) or a bare node-relative
// path; both are accepted so tests can poll directly by op id/name.
func (c *Client) PollResult(ctx context.Context, statusURL string, out any) error {
	path := statusURL
	if u, err := url.Parse(statusURL); err == nil && u.IsAbs() {
		path = u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}
