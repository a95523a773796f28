// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package node

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aiven/astacus/pkg/defaults"
	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/httpapi"
	"github.com/aiven/astacus/pkg/model"
)

// Routes returns the node's HTTP handlers, keyed by the method+pattern
// strings pkg/httpapi.WithHandler expects.
func (s *Service) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST /lock":   s.handleLock,
		"POST /relock": s.handleRelock,
		"POST /unlock": s.handleUnlock,

		"POST /snapshot": s.handleStart("snapshot", func(r *http.Request) (model.StartResult, error) {
			var req model.SnapshotRequest
			if err := decodeBody(r, &req); err != nil {
				return model.StartResult{}, err
			}
			return s.RunSnapshot(req), nil
		}),
		"POST /upload": s.handleStart("upload", func(r *http.Request) (model.StartResult, error) {
			var req model.SnapshotUploadRequest
			if err := decodeBody(r, &req); err != nil {
				return model.StartResult{}, err
			}
			return s.RunUpload(req), nil
		}),
		"POST /download": s.handleStart("download", func(r *http.Request) (model.StartResult, error) {
			var req model.SnapshotDownloadRequest
			if err := decodeBody(r, &req); err != nil {
				return model.StartResult{}, err
			}
			return s.RunDownload(req), nil
		}),
		"POST /clear": s.handleStart("clear", func(r *http.Request) (model.StartResult, error) {
			var req model.SnapshotClearRequest
			if err := decodeBody(r, &req); err != nil {
				return model.StartResult{}, err
			}
			return s.RunClear(req), nil
		}),

		"GET /snapshot/{op_id}": s.handleResult("snapshot"),
		"GET /upload/{op_id}":   s.handleResult("upload"),
		"GET /download/{op_id}": s.handleResult("download"),
		"GET /clear/{op_id}":    s.handleResult("clear"),
	}
}

func decodeBody(r *http.Request, out any) error {
	if r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "decoding request body", err)
	}
	return nil
}

func (s *Service) requireLocked(w http.ResponseWriter, r *http.Request) bool {
	if s.Lease.IsLocked() {
		return true
	}
	httpapi.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeLockConflict, "node is not locked"),
		"node is not locked", nil)
	return false
}

// handleStart wires a request-decoding+op-starting function behind the
// lock check and status-url response every op-starting endpoint shares.
func (s *Service) handleStart(opName string, start func(*http.Request) (model.StartResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireLocked(w, r) {
			return
		}

		result, err := start(r)
		if err != nil {
			httpapi.WriteErrorFromErr(w, r, err, "failed to start "+opName, nil)
			return
		}

		result.StatusURL = "/" + opName + "/" + strconv.FormatInt(result.OpID, 10)
		httpapi.RespondJSON(w, http.StatusOK, result)
	}
}

func (s *Service) handleResult(opName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opID, err := strconv.ParseInt(r.PathValue("op_id"), 10, 64)
		if err != nil {
			httpapi.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeInvalidRequest, "invalid op id"),
				"invalid op id", nil)
			return
		}

		result, err := s.GetResult(opName, opID)
		if err != nil {
			httpapi.WriteErrorFromErr(w, r, err, "unknown operation", nil)
			return
		}
		httpapi.RespondJSON(w, http.StatusOK, result)
	}
}

func lockTTL(r *http.Request, fallback time.Duration) time.Duration {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func (s *Service) handleLock(w http.ResponseWriter, r *http.Request) {
	locker := r.URL.Query().Get("locker")
	if locker == "" {
		httpapi.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeInvalidRequest, "missing locker"),
			"missing locker", nil)
		return
	}
	if err := s.Lease.Lock(locker, lockTTL(r, defaults.LockTTL)); err != nil {
		httpapi.WriteErrorFromErr(w, r, err, "lock failed", nil)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, model.LockResponse{Locked: true})
}

func (s *Service) handleRelock(w http.ResponseWriter, r *http.Request) {
	locker := r.URL.Query().Get("locker")
	if locker == "" {
		httpapi.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeInvalidRequest, "missing locker"),
			"missing locker", nil)
		return
	}
	if err := s.Lease.Relock(locker, lockTTL(r, defaults.LockTTL)); err != nil {
		httpapi.WriteErrorFromErr(w, r, err, "relock failed", nil)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, model.LockResponse{Locked: true})
}

func (s *Service) handleUnlock(w http.ResponseWriter, r *http.Request) {
	locker := r.URL.Query().Get("locker")
	if locker == "" {
		httpapi.WriteErrorFromErr(w, r, errors.New(errors.ErrCodeInvalidRequest, "missing locker"),
			"missing locker", nil)
		return
	}
	if err := s.Lease.Unlock(locker); err != nil {
		httpapi.WriteErrorFromErr(w, r, err, "unlock failed", nil)
		return
	}
	httpapi.RespondJSON(w, http.StatusOK, model.LockResponse{Locked: false})
}
