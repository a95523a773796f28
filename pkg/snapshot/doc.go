// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package snapshot implements the node's hashed-mirror snapshotter.
//
// A Snapshotter owns a source directory, a destination directory, and a set
// of glob patterns. Snapshot hard-links newly seen source files into the
// destination, removes destination files no longer present in source, and
// blake2s-hashes any file whose (path, mtime, size) changed since the last
// snapshot, reusing the prior hexdigest otherwise. Hashing always reads the
// destination copy, never the source, since the destination is the
// mtime-stable mirror.
//
// WriteHashesToStorage uploads the blobs a coordinator has requested,
// re-hashing before and after each upload to guard against the file
// mutating underneath a non-atomic snapshot-then-upload sequence.
//
// DownloadFromStorage is the restore-side counterpart: it materializes a
// SnapshotState by skipping content-equal files, decoding inline payloads,
// and downloading each remaining hexdigest once before fanning it out by
// local copy to every other file that shares it.
package snapshot
