// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package config loads the cluster configuration from the YAML file named
// by ASTACUS_CONFIG: node endpoints, lease/poll tunables, node data
// directories, and object storage settings. Config is loaded once at
// process start; there is no hot reload.
package config
