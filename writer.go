package zipfix

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/meigma/zipfix/internal/file"
	"github.com/meigma/zipfix/internal/stamp"
)

const (
	uint16max = 1<<16 - 1
	uint32max = 1<<32 - 1

	flagDataDescriptor = 0x8
)

// Compression selects how a Writer compresses entries it encodes itself.
// Raw entries keep the method they were written with.
type Compression uint8

const (
	CompressionDeflate Compression = iota
	CompressionStore
)

// String returns the policy name accepted by ParseCompression.
func (c Compression) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionStore:
		return "store"
	default:
		return "unknown"
	}
}

// ParseCompression parses "deflate" (or "deflated") and "store" (or "stored").
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deflate", "deflated":
		return CompressionDeflate, nil
	case "store", "stored":
		return CompressionStore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

func (c Compression) method() (uint16, error) {
	switch c {
	case CompressionDeflate:
		return zip.Deflate, nil
	case CompressionStore:
		return zip.Store, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

// Addressing controls whether a Writer may emit ZIP64 records.
type Addressing uint8

const (
	// Zip64AsNeeded emits ZIP64 records when an entry or the archive
	// outgrows the standard 32-bit fields.
	Zip64AsNeeded Addressing = iota

	// Zip64Never fails with ErrZip64Required instead. Use it when the
	// consumer cannot read ZIP64 archives.
	Zip64Never
)

// String returns the policy name accepted by ParseAddressing.
func (a Addressing) String() string {
	switch a {
	case Zip64AsNeeded:
		return "as-needed"
	case Zip64Never:
		return "never"
	default:
		return "unknown"
	}
}

// ParseAddressing parses "as-needed" and "never".
func ParseAddressing(s string) (Addressing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "as-needed", "asneeded", "auto":
		return Zip64AsNeeded, nil
	case "never":
		return Zip64Never, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAddressing, s)
	}
}

// Writer writes a ZIP archive whose entries all carry normalized timestamps.
//
// It decorates the container writer: every way of adding an entry passes
// through one registration step that normalizes the header before the
// container writer sees it. A Writer is not safe for concurrent use.
type Writer struct {
	zw         *zip.Writer
	cw         *file.CountingWriter
	dst        io.Closer // set when the Writer owns its destination
	path       string
	method     uint16
	addressing Addressing
	buf        []byte
	logger     *slog.Logger

	last    *zip.FileHeader
	entries int
	closed  bool
}

// NewWriter returns a Writer that writes an archive to dst.
//
// The policies are validated before anything is written; an unknown policy
// or an invalid option returns an error and leaves dst untouched. Closing
// the Writer does not close dst.
func NewWriter(dst io.Writer, c Compression, a Addressing, opts ...WriterOption) (*Writer, error) {
	cfg := newWriterConfig(opts)
	method, err := checkPolicies(c, a, cfg)
	if err != nil {
		return nil, err
	}
	return newWriter(dst, method, a, cfg), nil
}

// CreateFile creates (or truncates) the file at path and returns a Writer
// for it. Policies are validated first, so a configuration error never
// creates the file. Closing the Writer closes the file.
func CreateFile(path string, c Compression, a Addressing, opts ...WriterOption) (*Writer, error) {
	cfg := newWriterConfig(opts)
	method, err := checkPolicies(c, a, cfg)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // caller-chosen output path
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}
	w := newWriter(f, method, a, cfg)
	w.dst = file.NewOnceCloser(f)
	w.path = path
	return w, nil
}

func checkPolicies(c Compression, a Addressing, cfg writerConfig) (uint16, error) {
	method, err := c.method()
	if err != nil {
		return 0, err
	}
	if a != Zip64AsNeeded && a != Zip64Never {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAddressing, a)
	}
	if cfg.level < flate.HuffmanOnly || cfg.level > flate.BestCompression {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLevel, cfg.level)
	}
	return method, nil
}

func newWriter(dst io.Writer, method uint16, a Addressing, cfg writerConfig) *Writer {
	cw := &file.CountingWriter{W: dst}
	zw := zip.NewWriter(cw)
	level := cfg.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &Writer{
		zw:         zw,
		cw:         cw,
		method:     method,
		addressing: a,
		buf:        make([]byte, cfg.bufferSize),
		logger:     cfg.logger,
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// Create adds an entry named name using the writer's compression policy.
// Write the entry's content to the returned writer before the next call.
func (w *Writer) Create(name string) (io.Writer, error) {
	return w.CreateHeader(&zip.FileHeader{Name: name})
}

// CreateHeader adds an entry described by fh and compressed with the
// writer's compression policy; directories are always stored. fh is not
// modified. Its timestamps are normalized and every other field is kept.
func (w *Writer) CreateHeader(fh *zip.FileHeader) (io.Writer, error) {
	return w.register(fh, nil, false)
}

// CreateRaw adds an entry whose payload is already compressed. fh must carry
// the final method, CRC-32 and sizes; the bytes written to the returned
// writer are stored verbatim. fh is not modified.
func (w *Writer) CreateRaw(fh *zip.FileHeader) (io.Writer, error) {
	return w.register(fh, nil, true)
}

// Copy adds f, an entry of another archive, without decompressing it.
// The payload moves in chunks through the writer's buffer. It returns the
// number of payload bytes copied.
//
// Both copies of the extra field are kept: the local header gets the
// source's local extra field and the central directory its central one,
// each with its timestamps normalized. A directory whose payload is an empty
// compressed stream is written as a stored empty directory.
func (w *Writer) Copy(f *zip.File) (uint64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if isDir(f.Name) && f.UncompressedSize64 > 0 {
		return 0, malformed("copy entry", f.Name, errors.New("directory entry carries a payload"))
	}
	raw, err := f.OpenRaw()
	if err != nil {
		return 0, inputError("open entry", f.Name, err)
	}
	local, err := localExtra(raw, f.Name)
	if err != nil {
		return 0, inputError("read local header", f.Name, err)
	}

	fh := f.FileHeader
	fh.Extra = stamp.StripZip64(fh.Extra)
	if isDir(f.Name) {
		if f.CompressedSize64 > 0 || fh.Flags&flagDataDescriptor != 0 {
			emptyDir(&fh)
		}
		_, err := w.register(&fh, local, true)
		return 0, err
	}

	dst, err := w.register(&fh, local, true)
	if err != nil {
		return 0, err
	}

	n, err := file.Copy(dst, &entryReader{r: raw, name: f.Name}, w.buf)
	if err != nil {
		return n, outputError("copy entry", f.Name, err)
	}
	if n != f.CompressedSize64 {
		return n, malformed("copy entry", f.Name,
			fmt.Errorf("payload is %d bytes, header declares %d", n, f.CompressedSize64))
	}
	return n, nil
}

// emptyDir turns fh into a stored directory without payload. The container
// writer accepts no payload bytes for directories, so the empty compressed
// stream some writers emit for them (the Java jar tool deflates directories)
// is dropped along with its data descriptor.
func emptyDir(fh *zip.FileHeader) {
	fh.Method = zip.Store
	fh.Flags &^= flagDataDescriptor
	fh.CRC32 = 0
	fh.CompressedSize64 = 0
	fh.UncompressedSize64 = 0
}

// SetComment sets the archive comment written by Close.
func (w *Writer) SetComment(comment string) error {
	if w.closed {
		return ErrClosed
	}
	if err := w.zw.SetComment(comment); err != nil {
		return fmt.Errorf("zipfix: set comment: %w", err)
	}
	return nil
}

// Size returns the number of archive bytes handed to the destination so
// far. It is the final archive size once Close has returned.
func (w *Writer) Size() uint64 {
	return w.cw.N
}

// Close finishes the archive by writing the central directory and, when
// the Writer owns its destination, closes it. Calling Close again is a
// no-op that returns nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := outputError("close archive", w.path, w.zw.Close())
	if err == nil {
		err = w.checkAddressing(w.last)
	}
	if w.dst != nil {
		if cerr := w.dst.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close", Path: w.path, Err: cerr}
		}
	}
	if err == nil {
		w.log().Debug("archive closed", "entries", w.entries, "size", w.cw.N)
	}
	return err
}

// register is the single point where entries enter the container writer.
// A non-nil local is the extra field for the local header of a raw entry;
// otherwise both headers share fh.Extra.
func (w *Writer) register(fh *zip.FileHeader, local []byte, raw bool) (io.Writer, error) {
	if w.closed {
		return nil, ErrClosed
	}

	h := stamp.NormalizeHeader(fh)
	if !raw {
		h.Method = w.method
		if isDir(h.Name) {
			h.Method = zip.Store
		}
	}
	if err := w.checkEntry(h, raw); err != nil {
		return nil, err
	}

	var (
		ew  io.Writer
		err error
	)
	switch {
	case raw && local != nil:
		// The local header is written by CreateRaw; the central directory
		// is written from the same header at Close.
		central := h.Extra
		h.Extra = stamp.NormalizeExtra(local)
		ew, err = w.zw.CreateRaw(h)
		h.Extra = central
	case raw:
		ew, err = w.zw.CreateRaw(h)
	default:
		ew, err = w.zw.CreateHeader(h)
	}
	if err != nil {
		return nil, outputError("create entry", h.Name, err)
	}

	// Creating h closed the previous entry, so its sizes are final now.
	prev := w.last
	w.last = h
	w.entries++
	if err := w.checkAddressing(prev); err != nil {
		return nil, err
	}

	w.log().Debug("writing entry", "name", h.Name, "method", h.Method, "raw", raw)
	ewr := &entryWriter{w: ew, name: h.Name}
	if w.addressing == Zip64Never {
		ewr.limit = uint32max
	}
	return ewr, nil
}

// checkEntry rejects, under Zip64Never, an entry known up front to need ZIP64.
func (w *Writer) checkEntry(h *zip.FileHeader, raw bool) error {
	if w.addressing != Zip64Never {
		return nil
	}
	if w.entries+1 >= uint16max {
		return fmt.Errorf("%w: more than %d entries", ErrZip64Required, uint16max-1)
	}
	if raw && needsZip64(h) {
		return fmt.Errorf("%w: entry %s is too large", ErrZip64Required, h.Name)
	}
	return nil
}

// checkAddressing rejects, under Zip64Never, a finished entry or archive
// offset beyond the 32-bit limits. The offset is measured after flushing,
// so it includes the local header of the entry just registered.
func (w *Writer) checkAddressing(finished *zip.FileHeader) error {
	if w.addressing != Zip64Never {
		return nil
	}
	if finished != nil && needsZip64(finished) {
		return fmt.Errorf("%w: entry %s is too large", ErrZip64Required, finished.Name)
	}
	if err := w.zw.Flush(); err != nil {
		return outputError("flush archive", w.path, err)
	}
	if w.cw.N >= uint32max {
		return fmt.Errorf("%w: archive offset exceeds 4 GiB", ErrZip64Required)
	}
	return nil
}

func needsZip64(fh *zip.FileHeader) bool {
	return fh.CompressedSize64 >= uint32max || fh.UncompressedSize64 >= uint32max
}

func isDir(name string) bool {
	return strings.HasSuffix(name, "/")
}

// entryWriter reports write failures as I/O errors and enforces the
// per-entry size limit of Zip64Never writers.
type entryWriter struct {
	w     io.Writer
	name  string
	n     uint64
	limit uint64
}

func (e *entryWriter) Write(p []byte) (int, error) {
	if e.limit > 0 && e.n+uint64(len(p)) >= e.limit {
		return 0, fmt.Errorf("%w: entry %s is too large", ErrZip64Required, e.name)
	}
	n, err := e.w.Write(p)
	e.n += uint64(n) //nolint:gosec // n is guaranteed non-negative by io.Writer contract
	if err != nil {
		return n, outputError("write entry", e.name, err)
	}
	return n, nil
}

// entryReader reports read failures of a source entry.
type entryReader struct {
	r    io.Reader
	name string
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		return n, inputError("read entry", e.name, err)
	}
	return n, err
}
