// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package defaults

import "time"

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading an entire
	// request, headers and body.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// HTTP client timeouts for coordinator-to-node requests.
const (
	// HTTPClientTimeout is the default total timeout for a node HTTP request.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second

	// HTTPExpectContinueTimeout is the timeout for Expect: 100-continue.
	HTTPExpectContinueTimeout = 1 * time.Second
)

// Cluster lease defaults for the coordinator's lock/relock/unlock protocol.
const (
	// LockTTL is the duration a coordinator's lock on a node is valid for
	// before it must be renewed with a relock call.
	LockTTL = 60 * time.Second

	// LockRenewInterval is a relock cadence value that the coordinator's
	// renewal loop does not read: that loop relocks at half the lease ttl.
	LockRenewInterval = 20 * time.Second

	// LockRenewMaxExceptionRetries bounds how many consecutive relock
	// failures the renewal loop tolerates before giving up on a node.
	LockRenewMaxExceptionRetries = 5
)

// Operation polling defaults for wait_successful_results-style backoff.
const (
	// PollDelayStart is the initial delay between operation status polls.
	PollDelayStart = 100 * time.Millisecond

	// PollDelayMax is the ceiling the exponential poll backoff grows to.
	PollDelayMax = 5 * time.Second

	// PollDelayMultiplier scales the poll delay after each unsuccessful poll.
	PollDelayMultiplier = 1.5

	// PollMaxFailures bounds the number of consecutive transport failures a
	// poll loop tolerates before declaring the node unreachable.
	PollMaxFailures = 5
)

// Snapshot and transfer concurrency defaults.
const (
	// ParallelHashOperations bounds how many files a node hashes at once
	// while building a snapshot.
	ParallelHashOperations = 8

	// ParallelUploadOperations bounds how many blobs a node uploads to
	// object storage at once.
	ParallelUploadOperations = 4

	// ParallelDownloadOperations bounds how many blobs a node downloads
	// from object storage at once.
	ParallelDownloadOperations = 4

	// OperationIDsToKeep bounds how many completed operation records a
	// node or coordinator retains for status lookups.
	OperationIDsToKeep = 100
)
