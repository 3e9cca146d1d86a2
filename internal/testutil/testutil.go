// Package testutil builds ZIP archives and byte sources for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// ErrInjected is returned by the failing mocks.
var ErrInjected = errors.New("testutil: injected failure")

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data []byte
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// FailingWriter accepts Limit bytes and then fails every write.
type FailingWriter struct {
	Limit int
	N     int
}

// Write implements io.Writer.
func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.N+len(p) > w.Limit {
		n := w.Limit - w.N
		w.N = w.Limit
		return n, ErrInjected
	}
	w.N += len(p)
	return len(p), nil
}

// FailingReaderAt serves Data but fails any read touching [From, To).
type FailingReaderAt struct {
	Data     []byte
	From, To int64
}

// ReadAt implements io.ReaderAt.
func (r *FailingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < r.To && off+int64(len(p)) > r.From {
		return 0, ErrInjected
	}
	return NewMockByteSource(r.Data).ReadAt(p, off)
}

// Entry describes one entry of a test archive.
type Entry struct {
	Name    string
	Data    []byte
	Method  uint16
	Comment string
	Extra   []byte
	// Modified, when set, is handed to the container writer, which stores
	// it in the DOS fields and appends an extended timestamp record.
	Modified      time.Time
	ExternalAttrs uint32
}

// BuildZip writes entries, in order, into a new archive.
func BuildZip(tb testing.TB, entries ...Entry) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		fh := &zip.FileHeader{
			Name:          e.Name,
			Method:        e.Method,
			Comment:       e.Comment,
			Extra:         e.Extra,
			Modified:      e.Modified,
			ExternalAttrs: e.ExternalAttrs,
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			tb.Fatalf("create %s: %v", e.Name, err)
		}
		if len(e.Data) > 0 {
			if _, err := w.Write(e.Data); err != nil {
				tb.Fatalf("write %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// OpenZip parses an archive held in memory.
func OpenZip(tb testing.TB, data []byte) *zip.Reader {
	tb.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		tb.Fatalf("open zip: %v", err)
	}
	return zr
}

// Names returns entry names in archive order.
func Names(zr *zip.Reader) []string {
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadEntry decompresses one entry.
func ReadEntry(tb testing.TB, f *zip.File) []byte {
	tb.Helper()
	rc, err := f.Open()
	if err != nil {
		tb.Fatalf("open %s: %v", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		tb.Fatalf("read %s: %v", f.Name, err)
	}
	return data
}

// ExtTime encodes an Info-ZIP extended timestamp record (0x5455) with the
// given flag bits followed by as many seconds values as supplied.
func ExtTime(flags byte, secs ...uint32) []byte {
	b := binary.LittleEndian.AppendUint16(nil, 0x5455)
	b = binary.LittleEndian.AppendUint16(b, uint16(1+4*len(secs))) //nolint:gosec // test sizes are tiny
	b = append(b, flags)
	for _, s := range secs {
		b = binary.LittleEndian.AppendUint32(b, s)
	}
	return b
}

// NTFS encodes an NTFS extra record (0x000a) holding mtime, atime and ctime
// as raw 100ns ticks since 1601.
func NTFS(mtime, atime, ctime uint64) []byte {
	b := binary.LittleEndian.AppendUint16(nil, 0x000a)
	b = binary.LittleEndian.AppendUint16(b, 32)
	b = binary.LittleEndian.AppendUint32(b, 0) // reserved
	b = binary.LittleEndian.AppendUint16(b, 0x0001)
	b = binary.LittleEndian.AppendUint16(b, 24)
	b = binary.LittleEndian.AppendUint64(b, mtime)
	b = binary.LittleEndian.AppendUint64(b, atime)
	b = binary.LittleEndian.AppendUint64(b, ctime)
	return b
}

// UnixExtra encodes an Info-ZIP Unix record (0x5855) with atime, mtime,
// uid and gid.
func UnixExtra(atime, mtime uint32, uid, gid uint16) []byte {
	b := binary.LittleEndian.AppendUint16(nil, 0x5855)
	b = binary.LittleEndian.AppendUint16(b, 12)
	b = binary.LittleEndian.AppendUint32(b, atime)
	b = binary.LittleEndian.AppendUint32(b, mtime)
	b = binary.LittleEndian.AppendUint16(b, uid)
	b = binary.LittleEndian.AppendUint16(b, gid)
	return b
}

// Opaque encodes an extra record with an arbitrary tag and payload.
func Opaque(tag uint16, data []byte) []byte {
	b := binary.LittleEndian.AppendUint16(nil, tag)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(data))) //nolint:gosec // test sizes are tiny
	return append(b, data...)
}
