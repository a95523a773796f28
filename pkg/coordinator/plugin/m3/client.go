// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package m3 is a coordinator plugin for clusters that run M3DB alongside
// the files the base snapshot/restore flow already covers: it dumps M3's
// etcd-backed key/value state (topology and placement keys) immediately
// before snapshot and again immediately after upload_blocks, aborting the
// backup if the two dumps differ, then re-hydrates that dump on restore.
// No m3db Go client exists for this: the dump/restore endpoints below are
// M3's own plain HTTP coordinator API, reached with an *http.Client the
// same way pkg/nodeclient reaches node HTTP APIs.
package m3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/aiven/astacus/pkg/errors"
)

// Dump is a flattened snapshot of every key under the configured prefixes,
// key to value. Equal dumps (by DeepEqual on this map) mean nothing moved.
type Dump map[string]string

// Client talks to one M3 coordinator's key/value dump/restore endpoints.
type Client struct {
	baseURL    string
	prefixes   []string
	httpClient *http.Client
}

// NewClient returns a Client targeting baseURL (M3's coordinator, e.g.
// "http://m3coordinator:7201"), dumping/restoring every key under prefixes.
func NewClient(baseURL string, prefixes []string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefixes:   prefixes,
		httpClient: httpClient,
	}
}

// FetchDump retrieves every key under the client's configured prefixes,
// merging them into one Dump.
func (c *Client) FetchDump(ctx context.Context) (Dump, error) {
	dump := Dump{}
	for _, prefix := range c.prefixes {
		q := url.Values{}
		q.Set("prefix", prefix)
		var page map[string]string
		if err := c.doJSON(ctx, http.MethodGet, "/api/v1/kvstore/dump?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for k, v := range page {
			dump[k] = v
		}
	}
	return dump, nil
}

// RestoreDump pushes dump's keys back to M3, one PUT per key. Keys are
// restored in sorted order so a partial failure is reproducible.
func (c *Client) RestoreDump(ctx context.Context, dump Dump) error {
	keys := make([]string, 0, len(dump))
	for k := range dump {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		body := map[string]string{"key": k, "value": dump[k]}
		if err := c.doJSON(ctx, http.MethodPut, "/api/v1/kvstore", body, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRequest, "encoding m3 request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "building m3 request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransport, "m3 request failed: "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransport, "reading m3 response: "+path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewWithContext(errors.ErrCodeTransport, fmt.Sprintf("m3 responded %d", resp.StatusCode),
			map[string]any{"path": path, "status_code": resp.StatusCode})
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(errors.ErrCodeTransport, "decoding m3 response: "+path, err)
	}
	return nil
}
