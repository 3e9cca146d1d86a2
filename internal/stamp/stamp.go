// Package stamp normalizes the timestamps carried by ZIP entries.
//
// A ZIP entry stores time in two unrelated places: the MS-DOS date and time
// fields of its headers (two-second resolution, always present), and any
// number of extra-field records that carry higher resolution modification,
// access and creation times. [Times] folds both into one record so that
// normalization is implemented once; [Read] and [Apply] translate between
// that record and a [zip.FileHeader].
package stamp

import (
	"time"

	"github.com/klauspost/compress/zip"
)

// Epoch is the instant every fine-grained timestamp is normalized to.
var Epoch = time.Unix(0, 0).UTC()

// DOSTime is an MS-DOS date and time packed as date<<16 | time.
// The zero value is the sentinel written by [Normalize].
type DOSTime uint32

// PackDOS packs the raw header date and time fields.
func PackDOS(date, clock uint16) DOSTime {
	return DOSTime(uint32(date)<<16 | uint32(clock))
}

// Split returns the raw header date and time fields.
func (d DOSTime) Split() (date, clock uint16) {
	return uint16(d >> 16), uint16(d) //nolint:gosec // truncation is the encoding
}

// Instant is an optional point in time.
//
// Valid reports whether the entry declares the field at all. A declared
// field whose value is not stored in the header being read (the central
// directory copy of an extended timestamp record only carries the
// modification time) is Valid with a zero Time.
type Instant struct {
	Time  time.Time
	Valid bool
}

// At returns a present Instant for t.
func At(t time.Time) Instant {
	return Instant{Time: t, Valid: true}
}

// Times is the unified timestamp record of a ZIP entry.
type Times struct {
	// DOS is the coarse modification time stored in the local and central
	// headers. It is always present.
	DOS DOSTime

	// Modified, Accessed and Created are the extended model, recovered from
	// extra-field records. Each is independently optional.
	Modified Instant
	Accessed Instant
	Created  Instant
}

// Normalize returns t with every timestamp forced to its neutral value.
//
// The DOS field becomes the zero sentinel and Modified becomes [Epoch].
// Accessed and Created become [Epoch] only when present; absent fields stay
// absent so that normalization never adds metadata an entry did not carry.
func Normalize(t Times) Times {
	out := Times{
		DOS:      0,
		Modified: At(Epoch),
	}
	if t.Accessed.Valid {
		out.Accessed = At(Epoch)
	}
	if t.Created.Valid {
		out.Created = At(Epoch)
	}
	return out
}

// NormalizeHeader returns a copy of fh whose timestamps are normalized.
// fh itself is not modified. Every field other than the timestamp fields
// and the timestamp bytes inside Extra is carried over unchanged.
func NormalizeHeader(fh *zip.FileHeader) *zip.FileHeader {
	out := *fh
	Apply(&out, Normalize(Read(fh)))
	return &out
}

// NormalizeExtra returns a normalized copy of a bare extra-field blob, such
// as the one stored in a local file header.
func NormalizeExtra(extra []byte) []byte {
	fh := zip.FileHeader{Extra: extra}
	Apply(&fh, Normalize(Read(&fh)))
	return fh.Extra
}
