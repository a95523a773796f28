// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Command astacus runs either a node or a coordinator process, selected by
// its first subcommand.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v3"

	"github.com/aiven/astacus/pkg/config"
	"github.com/aiven/astacus/pkg/coordinator"
	"github.com/aiven/astacus/pkg/coordinator/plugin"
	"github.com/aiven/astacus/pkg/coordinator/plugin/m3"
	"github.com/aiven/astacus/pkg/httpapi"
	"github.com/aiven/astacus/pkg/logging"
	"github.com/aiven/astacus/pkg/node"
	"github.com/aiven/astacus/pkg/nodeclient"
	"github.com/aiven/astacus/pkg/objectstore"
	"github.com/aiven/astacus/pkg/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "astacus",
		Usage:   "distributed backup and restore orchestration",
		Version: version.Version,
		Commands: []*cli.Command{
			nodeCmd(),
			coordinatorCmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// configPathFlag is defined on each subcommand individually rather than on
// the root command, since urfave/cli/v3 does not propagate an ordinary
// (non-persistent) flag's value down to a subcommand's own Action.
func configPathFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config-path",
		Usage:   "path to the YAML configuration file",
		Sources: cli.EnvVars(config.EnvConfigPath),
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config-path")
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func installLogging(module string, cfg *config.Config) {
	logging.SetDefaultStructuredLogger(module, version.Version)
	if cfg.SentryDSN == "" {
		return
	}
	if err := logging.InitSentry(cfg.SentryDSN, version.Version, module); err != nil {
		slog.Warn("sentry init failed", "error", err)
	}
}

// runServer notifies systemd the process is ready, then blocks until
// signalled. SdNotify has no hook into Server.Run's internals, so "ready"
// here means "about to start listening" rather than "listener is up".
func runServer(ctx context.Context, srv *httpapi.Server) error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Warn("sdnotify failed", "error", err)
	}
	return srv.Run(ctx)
}

func nodeCmd() *cli.Command {
	return &cli.Command{
		Name:  "node",
		Usage: "run the per-host snapshot/upload/download agent",
		Flags: []cli.Flag{configPathFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			installLogging("astacus-node", cfg)

			storage, err := objectstore.BuildBackend(cfg.ObjectStorage)
			if err != nil {
				return fmt.Errorf("building object storage: %w", err)
			}

			svc := node.NewService(node.Config{
				Root:              cfg.Node.Root,
				DestinationRoot:   cfg.Node.DestinationRoot,
				ParallelUploads:   cfg.Node.Parallel.Uploads,
				ParallelDownloads: cfg.Node.Parallel.Downloads,
			}, storage)

			srv := httpapi.New(
				httpapi.WithConfig(httpapi.NewConfig()),
				httpapi.WithName("astacus-node"),
				httpapi.WithVersion(version.Version),
				httpapi.WithHandler(svc.Routes()),
			)

			return runServer(ctx, srv)
		},
	}
}

func coordinatorCmd() *cli.Command {
	return &cli.Command{
		Name:  "coordinator",
		Usage: "drive backup and restore across the node cluster",
		Flags: []cli.Flag{configPathFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			installLogging("astacus-coordinator", cfg)

			storage, err := objectstore.BuildBackend(cfg.ObjectStorage)
			if err != nil {
				return fmt.Errorf("building object storage: %w", err)
			}

			nodes := make([]*nodeclient.Client, 0, len(cfg.Nodes))
			for _, n := range cfg.Nodes {
				nodes = append(nodes, nodeclient.New(n.URL))
			}
			cluster := coordinator.Cluster{Nodes: nodes, Storage: storage}

			opts := coordinator.RunOptions{
				Locker:              "astacus-coordinator",
				LockTTL:             cfg.Coordinator.DefaultLockTTL,
				MaxAttempts:         cfg.Coordinator.BackupAttempts,
				MaxExceptionRetries: cfg.Coordinator.LeaseRenewalMaxExceptionRetries,
				Poll: coordinator.PollConfig{
					DelayStart:      cfg.Coordinator.PollDelayStart,
					DelayMax:        cfg.Coordinator.PollDelayMax,
					DelayMultiplier: cfg.Coordinator.PollDelayMultiplier,
					MaxFailures:     cfg.Coordinator.PollMaximumFailures,
				},
			}

			registry := plugin.NewRegistry()
			if cfg.Plugin == "m3" {
				registry.Register(m3.New(m3.NewClient(cfg.M3.Endpoint, cfg.M3.Prefixes, nil)))
			}

			var backupWrap, restoreWrap coordinator.StepWrapper
			if cfg.Plugin != "" {
				backupWrap = func(steps []coordinator.Step) []coordinator.Step {
					p, ok := registry.Get(cfg.Plugin)
					if !ok {
						return steps
					}
					return p.WrapBackupSteps(steps)
				}
				restoreWrap = func(steps []coordinator.Step) []coordinator.Step {
					p, ok := registry.Get(cfg.Plugin)
					if !ok {
						return steps
					}
					return p.WrapRestoreSteps(steps)
				}
			}

			svc := coordinator.NewService(cluster, opts,
				coordinator.WithBackupStepWrapper(backupWrap),
				coordinator.WithRestoreStepWrapper(restoreWrap),
			)

			srv := httpapi.New(
				httpapi.WithConfig(httpapi.NewConfig()),
				httpapi.WithName("astacus-coordinator"),
				httpapi.WithVersion(version.Version),
				httpapi.WithHandler(svc.Routes()),
			)

			return runServer(ctx, srv)
		},
	}
}
