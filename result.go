package zipfix

import (
	"math"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Media types reported by Result.Descriptor.
const (
	MediaTypeZip = "application/zip"
	MediaTypeJar = "application/java-archive"
)

// Result describes a rewritten archive.
type Result struct {
	// Entries is the number of entries written, manifest included.
	Entries int

	// Manifest is the name of the entry promoted to the front of the
	// archive. Empty when the input had no manifest.
	Manifest string

	// PayloadBytes is the total of the raw entry payloads copied.
	PayloadBytes uint64

	// Size is the size of the rewritten archive in bytes.
	Size uint64

	// Digest is the SHA-256 digest of the rewritten archive.
	Digest digest.Digest
}

// Descriptor returns an OCI content descriptor for the rewritten archive.
// Archives carrying a manifest are described as JARs.
func (r Result) Descriptor() ocispec.Descriptor {
	mediaType := MediaTypeZip
	if r.Manifest != "" {
		mediaType = MediaTypeJar
	}
	size := int64(math.MaxInt64)
	if r.Size <= math.MaxInt64 {
		size = int64(r.Size) //nolint:gosec // bounded above
	}
	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    r.Digest,
		Size:      size,
	}
}
