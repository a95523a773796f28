// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"crypto"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	_ "golang.org/x/crypto/blake2s" // registers crypto.BLAKE2s_256
)

// AlgorithmBlake2sHex is the digest algorithm identifying astacus content
// hexdigests: the blake2s-256 of a snapshotted file's bytes.
// golang.org/x/crypto/blake2s registers crypto.BLAKE2s_256 on import, which
// is what lets RegisterAlgorithm below build digest.Digest values for it.
const AlgorithmBlake2sHex digest.Algorithm = "blake2s-256"

// BlobMediaType is the media type assigned to uploaded content blobs.
const BlobMediaType = "application/vnd.aiven.astacus.blob"

// DocumentMediaType is the media type assigned to JSON documents (manifests
// and other named records).
const DocumentMediaType = "application/vnd.aiven.astacus.document+json"

func init() {
	digest.RegisterAlgorithm(AlgorithmBlake2sHex, crypto.BLAKE2s_256)
}

// BlobDescriptor builds the OCI descriptor addressing a content blob by its
// hexdigest and size.
func BlobDescriptor(hexdigest string, size int64) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: BlobMediaType,
		Digest:    digest.NewDigestFromEncoded(AlgorithmBlake2sHex, hexdigest),
		Size:      size,
	}
}

// HexdigestFromDescriptor recovers the hexdigest portion of a blob
// descriptor's digest.
func HexdigestFromDescriptor(desc ocispec.Descriptor) string {
	return desc.Digest.Encoded()
}

// digestOfBytes computes the storage-internal digest used to address a
// JSON document's descriptor inside the backing oras store. This digest is
// never exposed to callers; documents are addressed by name via Tag/Resolve.
func digestOfBytes(data []byte) digest.Digest {
	return digest.FromBytes(data)
}
