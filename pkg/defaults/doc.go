// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package defaults provides centralized configuration constants for the
// coordinator and node services.
//
// This package defines timeout values, lease/poll tunables, and concurrency
// limits used across the codebase. Centralizing these values ensures
// consistency and makes tuning easier. pkg/config can override the lock
// TTL, the poll tunables, the renewal retry bound and the parallel
// upload/download limits per deployment; the server and HTTP client
// timeouts and the remaining constants are fixed here.
//
// # Categories
//
// Constants are organized by concern:
//
//   - Server timeouts: for the node and coordinator HTTP servers
//   - HTTP client timeouts: for coordinator-to-node requests
//   - Lease defaults: lock TTL and renewal cadence
//   - Poll defaults: operation status polling backoff
//   - Concurrency defaults: parallel hash/upload/download limits
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/aiven/astacus/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.HTTPClientTimeout)
//	defer cancel()
package defaults
