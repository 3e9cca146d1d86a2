package zipfix

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	localHeaderSignature = 0x04034b50
	localHeaderLen       = 30
)

// localExtra returns the extra field of the local file header that precedes
// the payload read by raw, the reader returned by zip.File.OpenRaw. It
// returns nil when the header cannot be located, and a non-nil empty slice
// when the header carries no extra field.
//
// The container reader only exposes the central directory's copy of the
// extra field, and Info-ZIP stores some records (full extended timestamps,
// uid/gid) in the local header alone.
func localExtra(raw io.Reader, name string) ([]byte, error) {
	sr, ok := raw.(*io.SectionReader)
	if !ok {
		return nil, nil
	}
	src, dataOff, _ := sr.Outer()

	// Most extra fields are small; widen the window only when needed.
	for _, maxExtra := range []int{512, 1<<16 - 1} {
		n := min(int64(localHeaderLen+len(name)+maxExtra), dataOff)
		buf := make([]byte, n)
		if m, err := src.ReadAt(buf, dataOff-n); err != nil && (err != io.EOF || int64(m) < n) {
			return nil, err
		}
		if extra, ok := findLocalExtra(buf, name); ok {
			return extra, nil
		}
		if n == dataOff {
			break
		}
	}
	return nil, nil
}

// findLocalExtra scans buf, which ends where the payload starts, for a local
// header naming name whose extra field runs up to the end of buf.
func findLocalExtra(buf []byte, name string) ([]byte, bool) {
	for extraLen := 0; ; extraLen++ {
		h := len(buf) - extraLen - len(name) - localHeaderLen
		if h < 0 || extraLen > 1<<16-1 {
			return nil, false
		}
		hdr := buf[h:]
		if binary.LittleEndian.Uint32(hdr) != localHeaderSignature ||
			int(binary.LittleEndian.Uint16(hdr[26:])) != len(name) ||
			int(binary.LittleEndian.Uint16(hdr[28:])) != extraLen ||
			string(hdr[localHeaderLen:localHeaderLen+len(name)]) != name {
			continue
		}
		return bytes.Clone(buf[len(buf)-extraLen:]), true
	}
}
