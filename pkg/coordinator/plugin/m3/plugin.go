// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package m3

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/aiven/astacus/pkg/coordinator"
	"github.com/aiven/astacus/pkg/coordinator/plugin"
	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/model"
)

// Step names this plugin inserts into the canonical sequences.
const (
	StepDumpBefore = "m3-dump-before"
	StepDumpAfter  = "m3-dump-after"
	StepRestore    = "m3-restore"

	resultDumpBefore = "m3_dump_before"

	// canonicalUploadBlocks and canonicalBackupManifest name the canonical
	// steps this plugin anchors itself to; they match the step names
	// pkg/coordinator's backup.go/restore.go assign their own steps (kept
	// as plain strings here, not imported constants, since those are
	// unexported).
	canonicalUploadBlocks   = "upload_blocks"
	canonicalBackupManifest = "backup_manifest"
)

// manifestData is the shape this plugin stores under a backup manifest's
// PluginData: the etcd-backed dump taken once it was confirmed stable.
type manifestData struct {
	Dump Dump `json:"etcd"`
}

// Plugin wires an M3 Client into the coordinator's backup and restore step
// sequences, implementing coordinator/plugin.Plugin.
type Plugin struct {
	Client *Client
}

// New returns a Plugin that dumps/restores through client.
func New(client *Client) *Plugin {
	return &Plugin{Client: client}
}

// ID identifies this plugin in a plugin.Registry.
func (p *Plugin) ID() string { return "m3" }

// WrapBackupSteps prepends a dump taken before anything runs and inserts a
// second dump immediately after upload_blocks; if the two differ, M3's
// topology moved mid-backup and the attempt is aborted so the next attempt
// can retry against a quiescent cluster.
func (p *Plugin) WrapBackupSteps(steps []coordinator.Step) []coordinator.Step {
	dumpBefore := coordinator.StepFunc{StepName: StepDumpBefore, Fn: func(ctx context.Context, results *coordinator.StepResults) error {
		dump, err := p.Client.FetchDump(ctx)
		if err != nil {
			return err
		}
		results.Set(resultDumpBefore, dump)
		return nil
	}}

	dumpAfter := coordinator.StepFunc{StepName: StepDumpAfter, Fn: func(ctx context.Context, results *coordinator.StepResults) error {
		before, err := getDump(results, resultDumpBefore)
		if err != nil {
			return err
		}
		after, err := p.Client.FetchDump(ctx)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(before, after) {
			return errors.New(errors.ErrCodeStepFailed, "m3 etcd state changed during backup, aborting attempt")
		}
		results.Set(coordinator.ResultPluginData, manifestData{Dump: after})
		return nil
	}}

	steps = plugin.Prepend(steps, dumpBefore)
	return plugin.InsertAfter(steps, canonicalUploadBlocks, dumpAfter)
}

// WrapRestoreSteps inserts a step between backup_manifest and restore that
// re-hydrates the etcd dump the backup carried in its manifest's PluginData,
// so M3's topology matches the files restore is about to put back.
func (p *Plugin) WrapRestoreSteps(steps []coordinator.Step) []coordinator.Step {
	restoreEtcd := coordinator.StepFunc{StepName: StepRestore, Fn: func(ctx context.Context, results *coordinator.StepResults) error {
		manifest, err := getManifest(results)
		if err != nil {
			return err
		}
		data, err := decodeManifestData(manifest.PluginData)
		if err != nil {
			return err
		}
		return p.Client.RestoreDump(ctx, data.Dump)
	}}

	return plugin.InsertAfter(steps, canonicalBackupManifest, restoreEtcd)
}

func getDump(results *coordinator.StepResults, name string) (Dump, error) {
	v, ok := results.Get(name)
	if !ok {
		return nil, errors.NewWithContext(errors.ErrCodeStepFailed, "missing m3 dump result", map[string]any{"step": name})
	}
	dump, ok := v.(Dump)
	if !ok {
		return nil, errors.NewWithContext(errors.ErrCodeStepFailed, "m3 dump result has unexpected type", map[string]any{"step": name})
	}
	return dump, nil
}

func getManifest(results *coordinator.StepResults) (*model.BackupManifest, error) {
	v, ok := results.Get(canonicalBackupManifest)
	if !ok {
		return nil, errors.New(errors.ErrCodeStepFailed, "missing backup manifest step result")
	}
	manifest, ok := v.(*model.BackupManifest)
	if !ok {
		return nil, errors.New(errors.ErrCodeStepFailed, "backup manifest step result has unexpected type")
	}
	return manifest, nil
}

// decodeManifestData recovers manifestData from a BackupManifest's
// PluginData, which after a JSON round trip through object storage arrives
// as a generic map rather than a manifestData value.
func decodeManifestData(pluginData any) (manifestData, error) {
	var data manifestData
	if pluginData == nil {
		return data, errors.New(errors.ErrCodeStepFailed, "backup manifest carries no m3 plugin data")
	}
	raw, err := json.Marshal(pluginData)
	if err != nil {
		return data, errors.Wrap(errors.ErrCodeInternal, "re-encoding m3 plugin data", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, errors.Wrap(errors.ErrCodeInternal, "decoding m3 plugin data", err)
	}
	return data, nil
}
