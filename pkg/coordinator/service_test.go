// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiven/astacus/pkg/nodeclient"
	"github.com/aiven/astacus/pkg/objectstore"
)

func newTestCoordinatorService(t *testing.T, storage objectstore.Backend, seeds ...map[string]string) (*Service, *httptest.Server, []*nodeclient.Client) {
	t.Helper()
	var nodes []*nodeclient.Client
	for _, seed := range seeds {
		srv := newTestNodeWithStorage(t, storage, seed)
		nodes = append(nodes, nodeclient.New(srv.URL))
	}
	cluster := Cluster{Nodes: nodes, Storage: storage}

	svc := NewService(cluster, testRunOptions())
	mux := http.NewServeMux()
	for pattern, handler := range svc.Routes() {
		mux.HandleFunc(pattern, handler)
	}
	httpSrv := httptest.NewServer(mux)
	t.Cleanup(httpSrv.Close)
	return svc, httpSrv, nodes
}

func pollCoordinatorOp(t *testing.T, baseURL, statusURL string) OpResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + statusURL)
		require.NoError(t, err)
		var result OpResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		resp.Body.Close()
		if result.State == StateDone || result.State == StateFail {
			return result
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("coordinator op never finished")
	return OpResult{}
}

func TestServiceBackupThenRestoreOverHTTP(t *testing.T) {
	storage := objectstore.NewMemoryBackend()
	_, httpSrv, _ := newTestCoordinatorService(t, storage, map[string]string{"a.txt": "hello"})

	resp, err := http.Post(httpSrv.URL+"/backup", "application/json", nil)
	require.NoError(t, err)
	var start struct {
		OpID      int64  `json:"op_id"`
		StatusURL string `json:"status_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&start))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	backupResult := pollCoordinatorOp(t, httpSrv.URL, start.StatusURL)
	require.Equal(t, StateDone, backupResult.State)
	require.NotNil(t, backupResult.Manifest)

	restoreResp, err := http.Post(httpSrv.URL+"/restore", "application/json", nil)
	require.NoError(t, err)
	var restoreStart struct {
		OpID      int64  `json:"op_id"`
		StatusURL string `json:"status_url"`
	}
	require.NoError(t, json.NewDecoder(restoreResp.Body).Decode(&restoreStart))
	restoreResp.Body.Close()

	restoreResult := pollCoordinatorOp(t, httpSrv.URL, restoreStart.StatusURL)
	assert.Equal(t, StateDone, restoreResult.State)
}

func TestServiceBackupReturns409WhenClusterAlreadyLocked(t *testing.T) {
	storage := objectstore.NewMemoryBackend()
	_, httpSrv, nodes := newTestCoordinatorService(t, storage, map[string]string{"a.txt": "hello"})

	lockResp, err := nodes[0].Lock(context.Background(), "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, lockResp.Locked)

	resp, err := http.Post(httpSrv.URL+"/backup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetResultFailsForUnknownOp(t *testing.T) {
	storage := objectstore.NewMemoryBackend()
	svc, _, _ := newTestCoordinatorService(t, storage, map[string]string{"a.txt": "hello"})

	_, err := svc.GetResult("backup", 999)
	assert.Error(t, err)
}
