// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aiven/astacus/pkg/defaults"
	"golang.org/x/time/rate"
)

// Config holds the HTTP server configuration shared by node and coordinator
// processes.
type Config struct {
	// Server identity, surfaced on the default root route.
	Name    string
	Version string

	// Handlers are additional routes to register, keyed by path.
	Handlers map[string]http.HandlerFunc

	Address string
	Port    int

	RateLimit      rate.Limit // requests per second
	RateLimitBurst int        // burst size

	MaxBulkRequests int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig returns a new Config with sensible defaults.
func NewConfig() *Config {
	return parseConfig()
}

// parseConfig returns sensible defaults, overridden by environment
// variables that operators commonly need to tune without a full config
// file edit (e.g. the port a container orchestrator assigns).
func parseConfig() *Config {
	cfg := &Config{
		Name:            "astacus",
		Version:         "undefined",
		Address:         "",
		Port:            8080,
		RateLimit:       100, // 100 req/s
		RateLimitBurst:  200, // burst of 200
		MaxBulkRequests: 100,
		ReadTimeout:     defaults.ServerReadTimeout,
		WriteTimeout:    defaults.ServerWriteTimeout,
		IdleTimeout:     defaults.ServerIdleTimeout,
		ShutdownTimeout: defaults.ServerShutdownTimeout,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	if shutdownStr := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); shutdownStr != "" {
		var seconds int
		if _, err := fmt.Sscanf(shutdownStr, "%d", &seconds); err == nil && seconds > 0 {
			cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
		}
	}

	return cfg
}
