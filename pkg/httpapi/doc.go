// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package httpapi implements the HTTP server shared by astacus node and
// coordinator processes: routing, middleware, structured errors, and
// graceful shutdown.
//
// # Middleware chain
//
// Every application route registered through WithHandler runs behind the
// same chain, outermost first:
//
//	metrics -> version -> request-id -> panic-recovery -> rate-limit -> logging
//
// Panic recovery sits ahead of rate limiting so a panicking handler never
// leaks past the boundary that turns it into a structured 500.
//
// # Errors
//
// Handlers report failures as a *pkg/errors.StructuredError and call
// WriteErrorFromErr, which maps the error's code to an HTTP status and a
// consistent JSON body (code, message, details, requestId, timestamp,
// retryable). WriteError is available directly for handlers that don't
// have a StructuredError to hand.
//
// # System routes
//
// New always registers /health (liveness), /ready (readiness, reflecting
// Server.Start/Shutdown), and /metrics (Prometheus). A default "/" route
// lists the application routes passed via WithHandler unless the caller
// supplies its own.
package httpapi
