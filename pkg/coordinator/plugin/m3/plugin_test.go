// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package m3

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiven/astacus/pkg/coordinator"
	"github.com/aiven/astacus/pkg/model"
)

// kvServer is a minimal in-memory stand-in for M3's coordinator key/value
// dump/restore API, serving GET /api/v1/kvstore/dump and PUT /api/v1/kvstore.
type kvServer struct {
	data map[string]string
}

func newKVServer(t *testing.T, seed map[string]string) (*httptest.Server, *kvServer) {
	t.Helper()
	kv := &kvServer{data: map[string]string{}}
	for k, v := range seed {
		kv.data[k] = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/kvstore/dump", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		page := map[string]string{}
		for k, v := range kv.data {
			if len(prefix) == 0 || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
				page[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})
	mux.HandleFunc("/api/v1/kvstore", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		kv.data[body.Key] = body.Value
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, kv
}

func namedStep(name string) coordinator.StepFunc {
	return coordinator.StepFunc{StepName: name, Fn: func(ctx context.Context, results *coordinator.StepResults) error {
		return nil
	}}
}

func TestWrapBackupStepsPlacesDumpsAroundUploadBlocks(t *testing.T) {
	srv, _ := newKVServer(t, map[string]string{"_kv/a": "1"})
	client := NewClient(srv.URL, []string{"_kv/"}, nil)
	p := New(client)

	canonical := []coordinator.Step{namedStep("snapshot"), namedStep("list_hexdigests"), namedStep(canonicalUploadBlocks), namedStep("upload_manifest")}
	wrapped := p.WrapBackupSteps(canonical)

	names := make([]string, len(wrapped))
	for i, s := range wrapped {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{StepDumpBefore, "snapshot", "list_hexdigests", canonicalUploadBlocks, StepDumpAfter, "upload_manifest"}, names)
}

func TestBackupStepsSucceedWhenDumpUnchanged(t *testing.T) {
	srv, _ := newKVServer(t, map[string]string{"_kv/a": "1", "_kv/b": "2"})
	client := NewClient(srv.URL, []string{"_kv/"}, nil)
	p := New(client)

	wrapped := p.WrapBackupSteps([]coordinator.Step{namedStep(canonicalUploadBlocks)})
	results := coordinator.NewStepResults()
	require.NoError(t, coordinator.RunSteps(context.Background(), results, wrapped))

	pluginData, ok := results.Get(coordinator.ResultPluginData)
	require.True(t, ok)
	md, ok := pluginData.(manifestData)
	require.True(t, ok)
	assert.Equal(t, Dump{"_kv/a": "1", "_kv/b": "2"}, md.Dump)
}

func TestBackupStepsFailWhenDumpChangesMidway(t *testing.T) {
	srv, kv := newKVServer(t, map[string]string{"_kv/a": "1"})
	client := NewClient(srv.URL, []string{"_kv/"}, nil)
	p := New(client)

	mutate := coordinator.StepFunc{StepName: canonicalUploadBlocks, Fn: func(ctx context.Context, results *coordinator.StepResults) error {
		kv.data["_kv/a"] = "2"
		return nil
	}}
	wrapped := p.WrapBackupSteps([]coordinator.Step{mutate})

	results := coordinator.NewStepResults()
	err := coordinator.RunSteps(context.Background(), results, wrapped)
	assert.Error(t, err)
}

func TestWrapRestoreStepsRehydratesDump(t *testing.T) {
	srv, kv := newKVServer(t, nil)
	client := NewClient(srv.URL, []string{"_kv/"}, nil)
	p := New(client)

	manifest := &model.BackupManifest{PluginData: manifestData{Dump: Dump{"_kv/a": "1", "_kv/b": "2"}}}
	wrapped := p.WrapRestoreSteps([]coordinator.Step{namedStep(canonicalBackupManifest), namedStep("restore")})

	results := coordinator.NewStepResults()
	results.Set(canonicalBackupManifest, manifest)
	require.NoError(t, coordinator.RunSteps(context.Background(), results, wrapped))

	assert.Equal(t, "1", kv.data["_kv/a"])
	assert.Equal(t, "2", kv.data["_kv/b"])
}

func TestWrapRestoreStepsFailsWithoutPluginData(t *testing.T) {
	srv, _ := newKVServer(t, nil)
	client := NewClient(srv.URL, []string{"_kv/"}, nil)
	p := New(client)

	manifest := &model.BackupManifest{}
	wrapped := p.WrapRestoreSteps([]coordinator.Step{namedStep(canonicalBackupManifest)})

	results := coordinator.NewStepResults()
	results.Set(canonicalBackupManifest, manifest)
	err := coordinator.RunSteps(context.Background(), results, wrapped)
	assert.Error(t, err)
}
