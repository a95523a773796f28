// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package coordinator

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aiven/astacus/pkg/errors"
	"github.com/aiven/astacus/pkg/httpapi"
	"github.com/aiven/astacus/pkg/model"
)

// Routes returns the coordinator's HTTP handlers, keyed by the
// method+pattern strings pkg/httpapi.WithHandler expects.
func (s *Service) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST /backup": s.handleStart("backup", func(r *http.Request) (model.StartResult, error) {
			return s.StartBackup(r.Context())
		}),
		"POST /restore": s.handleStart("restore", func(r *http.Request) (model.StartResult, error) {
			var req RestoreRequest
			if err := decodeBody(r, &req); err != nil {
				return model.StartResult{}, err
			}
			return s.StartRestore(r.Context(), req.BackupName)
		}),

		"GET /backup/{op_id}":  s.handleResult("backup"),
		"GET /restore/{op_id}": s.handleResult("restore"),
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

// handleStart wires a request-decoding+op-starting function behind the
// status-url response every coordinator op-starting endpoint shares. A
// LockConflict from the start-time cluster-lock probe surfaces as a 409.
func (s *Service) handleStart(opName string, start func(*http.Request) (model.StartResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
