// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package model holds the wire types shared between the node and
// coordinator services: snapshot state, progress tracking, and the
// persisted backup manifest.
package model

import "time"

// SnapshotFile is one source file's captured identity.
type SnapshotFile struct {
	RelativePath string `json:"relative_path"`
	MtimeNs      int64  `json:"mtime_ns"`
	FileSize     int64  `json:"file_size"`
	Hexdigest    string `json:"hexdigest,omitempty"`
	// ContentB64 holds a small file's content inline instead of storing it
	// as a blob; empty for files that went through object storage.
	ContentB64 string `json:"content_b64,omitempty"`
}

// ContentEqual reports whether two SnapshotFiles describe the same content,
// ignoring modification time.
func (f SnapshotFile) ContentEqual(other SnapshotFile) bool {
	return f.RelativePath == other.RelativePath &&
		f.FileSize == other.FileSize &&
		f.Hexdigest == other.Hexdigest &&
		f.ContentB64 == other.ContentB64
}

// SnapshotHash is the identity and billing unit of a content blob.
type SnapshotHash struct {
	Hexdigest string `json:"hexdigest"`
	Size      int64  `json:"size"`
}

// SnapshotState is the ordered sequence of SnapshotFile for one node at one
// point in time, sorted lexicographically by RelativePath.
type SnapshotState struct {
	Files []SnapshotFile `json:"files"`
}

// Progress tracks handled/failed/total counters for a long-running
// operation. Zero value is a fresh, non-final progress.
type Progress struct {
	Handled int  `json:"handled"`
	Failed  int  `json:"failed"`
	Total   int  `json:"total"`
	Final   bool `json:"final"`
}

// AddTotal increases the total unit count by delta.
func (p *Progress) AddTotal(delta int) {
	p.Total += delta
}

// AddSuccess records one successfully handled unit.
func (p *Progress) AddSuccess() {
	p.Handled++
}

// AddFail records one failed unit; failed units still count as handled.
func (p *Progress) AddFail() {
	p.Handled++
	p.Failed++
}

// MarkFinal marks the progress as complete; no further units are expected.
func (p *Progress) MarkFinal() {
	p.Final = true
}

// FinishedSuccessfully reports whether the progress is final, with no
// failures, and every expected unit was handled.
func (p Progress) FinishedSuccessfully() bool {
	return p.Final && p.Failed == 0 && p.Handled == p.Total
}

// FinishedFailed reports whether the progress is final but did not finish
// successfully.
func (p Progress) FinishedFailed() bool {
	return p.Final && !p.FinishedSuccessfully()
}

// NodeResult is one node's outcome for a node-level operation.
type NodeResult struct {
	Progress  Progress       `json:"progress"`
	Hashes    []SnapshotHash `json:"hashes,omitempty"`
	Files     []SnapshotFile `json:"files,omitempty"`
	Hostname  string         `json:"hostname"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
	TotalSize int64          `json:"total_size"`
}

// SnapshotResult is the node result produced by a snapshot operation; an
// alias kept distinct for readability at call sites.
type SnapshotResult = NodeResult

// BackupManifest is the persisted record of one backup attempt.
type BackupManifest struct {
	Attempt     int          `json:"attempt"`
	StartedAt   time.Time    `json:"started_at"`
	Nodes       []NodeResult `json:"nodes"`
	PluginData  any          `json:"plugin_data,omitempty"`
}

// ManifestKey returns the object-store document name a manifest for the
// given attempt start time is persisted under.
func ManifestKey(startedAt time.Time) string {
	return "backup-" + startedAt.UTC().Format(time.RFC3339)
}

// NodeIndexData is the planner's per-node upload assignment.
type NodeIndexData struct {
	NodeIndex int            `json:"node_index"`
	Hashes    []SnapshotHash `json:"hashes"`
	TotalSize int64          `json:"total_size"`
}

// StartResult is returned by every op-starting endpoint on node and
// coordinator alike: the assigned op id, and the URL a caller polls for
// the op's result.
type StartResult struct {
	OpID      int64  `json:"op_id"`
	StatusURL string `json:"status_url"`
}

// LockResponse is the body of a successful lock/relock/unlock call.
type LockResponse struct {
	Locked bool `json:"locked"`
}

// SnapshotRequest is the body of a node POST /snapshot call.
type SnapshotRequest struct {
	RootGlobs []string `json:"root_globs,omitempty"`
}

// SnapshotUploadRequest is the body of a node POST /upload call.
type SnapshotUploadRequest struct {
	Hashes []SnapshotHash `json:"hashes"`
}

// SnapshotDownloadRequest is the body of a node POST /download call.
type SnapshotDownloadRequest struct {
	BackupName    string `json:"backup_name"`
	SnapshotIndex int    `json:"snapshot_index"`
}

// SnapshotClearRequest is the body of a node POST /clear call. A non-empty
// RootGlobs replaces the snapshotter's globs before clearing; an empty one
// keeps the globs the snapshotter already has.
type SnapshotClearRequest struct {
	RootGlobs []string `json:"root_globs,omitempty"`
}
