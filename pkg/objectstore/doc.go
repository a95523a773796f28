// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package objectstore implements a content-addressed hexdigest blob store
// plus a named JSON document store, both able to delegate compression and
// encryption to a wrapping backend. Blobs and documents are pushed and
// fetched through an oras-go registry client, generalized from "push a
// directory as one OCI artifact" to "push/fetch individual content-addressed
// blobs".
//
// MemoryBackend is an in-memory Backend for tests and single-node trials.
// OrasBackend is the production Backend, storing blobs and documents in an
// OCI registry. ProtectedBackend wraps either with compression and/or
// encryption, refusing construction if both are disabled.
// CachingJSONStorage fronts a remote JsonStorage with a local copy for
// manifests read far more often than written. HandlePool hands out Backend
// handles to worker goroutines without sharing one across them.
package objectstore
