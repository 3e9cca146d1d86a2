package zipfix

import (
	"github.com/klauspost/compress/zip"

	"github.com/meigma/zipfix/internal/stamp"
)

// Times is the unified timestamp record of an entry: the MS-DOS date and
// time of its headers plus the optional modification, access and creation
// times recovered from its extra fields.
type Times = stamp.Times

// Instant is an optional point in time within Times.
type Instant = stamp.Instant

// Epoch is the instant every extended timestamp is normalized to.
var Epoch = stamp.Epoch

// ReadTimes returns the timestamps declared by fh.
func ReadTimes(fh *zip.FileHeader) Times {
	return stamp.Read(fh)
}

// NormalizeTimes forces every timestamp in t to its neutral value. Absent
// access and creation times stay absent.
func NormalizeTimes(t Times) Times {
	return stamp.Normalize(t)
}

// NormalizeHeader returns a copy of fh with normalized timestamps, as a
// Writer registers it. fh is not modified.
func NormalizeHeader(fh *zip.FileHeader) *zip.FileHeader {
	return stamp.NormalizeHeader(fh)
}
