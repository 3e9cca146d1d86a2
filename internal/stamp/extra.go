package stamp

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// Extra field header IDs that carry timestamps, plus the ZIP64 record.
const (
	Zip64ExtraID       = 0x0001 // ZIP64 extended information
	NTFSExtraID        = 0x000a // NTFS attributes (mtime, atime, ctime)
	UnixExtraID        = 0x000d // PKWARE Unix (atime, mtime)
	ExtTimeExtraID     = 0x5455 // Info-ZIP extended timestamp
	InfoZipUnixExtraID = 0x5855 // Info-ZIP Unix, original (atime, mtime)
)

// Flag bits of the extended timestamp record.
const (
	extTimeModified = 1 << iota
	extTimeAccessed
	extTimeCreated
)

const (
	ntfsTimesTag  = 0x0001
	ntfsTimesSize = 24
	// ntfsTicksPerSecond is the resolution of an NTFS timestamp.
	ntfsTicksPerSecond = 1e7
)

var ntfsEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrTruncated is returned by [Fields] when an extra blob ends inside a record.
var ErrTruncated = errors.New("stamp: truncated extra field")

// Field is one record of an extra-field blob.
// Data and Raw alias the blob they were split from.
type Field struct {
	Tag  uint16
	Data []byte
	Raw  []byte
}

// Fields splits an extra-field blob into its records. On a malformed blob it
// returns the records that precede the damage together with [ErrTruncated].
func Fields(extra []byte) ([]Field, error) {
	var fields []Field
	for len(extra) > 0 {
		if len(extra) < 4 {
			return fields, ErrTruncated
		}
		tag := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if len(extra) < 4+size {
			return fields, ErrTruncated
		}
		fields = append(fields, Field{
			Tag:  tag,
			Data: extra[4 : 4+size : 4+size],
			Raw:  extra[: 4+size : 4+size],
		})
		extra = extra[4+size:]
	}
	return fields, nil
}

// StripZip64 returns extra without its ZIP64 extended information records.
// The container writer derives that record from the entry sizes and offset
// and appends its own, so a copied one would be duplicated. Malformed blobs
// are returned untouched.
func StripZip64(extra []byte) []byte {
	fields, err := Fields(extra)
	if err != nil {
		return extra
	}
	found := false
	for _, f := range fields {
		if f.Tag == Zip64ExtraID {
			found = true
			break
		}
	}
	if !found {
		return extra
	}
	out := make([]byte, 0, len(extra))
	for _, f := range fields {
		if f.Tag == Zip64ExtraID {
			continue
		}
		out = append(out, f.Raw...)
	}
	return out
}

func readExtTime(t *Times, data []byte) {
	if len(data) < 1 {
		return
	}
	flags := data[0]
	off := 1
	for _, slot := range []struct {
		bit byte
		dst *Instant
	}{
		{extTimeModified, &t.Modified},
		{extTimeAccessed, &t.Accessed},
		{extTimeCreated, &t.Created},
	} {
		if flags&slot.bit == 0 {
			continue
		}
		inst := Instant{Valid: true}
		if off+4 <= len(data) {
			inst.Time = unixSeconds(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		merge(slot.dst, inst)
	}
}

func writeExtTime(data []byte, t Times) {
	if len(data) < 1 {
		return
	}
	flags := data[0]
	off := 1
	for _, slot := range []struct {
		bit byte
		src Instant
	}{
		{extTimeModified, t.Modified},
		{extTimeAccessed, t.Accessed},
		{extTimeCreated, t.Created},
	} {
		if flags&slot.bit == 0 {
			continue
		}
		if off+4 > len(data) {
			return
		}
		if slot.src.Valid {
			binary.LittleEndian.PutUint32(data[off:], toUnixSeconds(slot.src.Time))
		}
		off += 4
	}
}

// ntfsTimes locates the 24-byte times attribute inside an NTFS record.
func ntfsTimes(data []byte) []byte {
	if len(data) < 4 {
		return nil
	}
	attrs := data[4:] // reserved
	for len(attrs) >= 4 {
		tag := binary.LittleEndian.Uint16(attrs)
		size := int(binary.LittleEndian.Uint16(attrs[2:]))
		attrs = attrs[4:]
		if len(attrs) < size {
			return nil
		}
		if tag == ntfsTimesTag && size == ntfsTimesSize {
			return attrs[:size]
		}
		attrs = attrs[size:]
	}
	return nil
}

func readNTFS(t *Times, data []byte) {
	attr := ntfsTimes(data)
	if attr == nil {
		return
	}
	merge(&t.Modified, At(fromNTFS(binary.LittleEndian.Uint64(attr))))
	merge(&t.Accessed, At(fromNTFS(binary.LittleEndian.Uint64(attr[8:]))))
	merge(&t.Created, At(fromNTFS(binary.LittleEndian.Uint64(attr[16:]))))
}

func writeNTFS(data []byte, t Times) {
	attr := ntfsTimes(data)
	if attr == nil {
		return
	}
	for i, inst := range []Instant{t.Modified, t.Accessed, t.Created} {
		if inst.Valid {
			binary.LittleEndian.PutUint64(attr[i*8:], toNTFS(inst.Time))
		}
	}
}

// Both Unix records start with atime then mtime; uid and gid follow.
func readUnix(t *Times, data []byte) {
	if len(data) < 8 {
		return
	}
	merge(&t.Accessed, At(unixSeconds(binary.LittleEndian.Uint32(data))))
	merge(&t.Modified, At(unixSeconds(binary.LittleEndian.Uint32(data[4:]))))
}

func writeUnix(data []byte, t Times) {
	if len(data) < 8 {
		return
	}
	if t.Accessed.Valid {
		binary.LittleEndian.PutUint32(data, toUnixSeconds(t.Accessed.Time))
	}
	if t.Modified.Valid {
		binary.LittleEndian.PutUint32(data[4:], toUnixSeconds(t.Modified.Time))
	}
}

// merge records inst unless dst already holds a stored value.
func merge(dst *Instant, inst Instant) {
	if !dst.Valid || (dst.Time.IsZero() && !inst.Time.IsZero()) {
		*dst = inst
	}
}

// Unix timestamps in extra fields are signed 32-bit seconds.
func unixSeconds(v uint32) time.Time {
	return time.Unix(int64(int32(v)), 0).UTC() //nolint:gosec // reinterpreting the stored bits
}

func toUnixSeconds(t time.Time) uint32 {
	s := t.Unix()
	switch {
	case s < math.MinInt32:
		s = math.MinInt32
	case s > math.MaxInt32:
		s = math.MaxInt32
	}
	return uint32(int32(s)) //nolint:gosec // clamped above
}

func fromNTFS(ticks uint64) time.Time {
	ts := int64(ticks) //nolint:gosec // NTFS timestamps fit in int64
	secs := ts / ntfsTicksPerSecond
	nsecs := (1e9 / ntfsTicksPerSecond) * (ts % ntfsTicksPerSecond)
	return time.Unix(ntfsEpoch.Unix()+secs, nsecs).UTC()
}

func toNTFS(t time.Time) uint64 {
	secs := t.Unix() - ntfsEpoch.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)*ntfsTicksPerSecond + uint64(t.Nanosecond())/100 //nolint:gosec // secs checked above
}
