package zipfix

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// Configuration errors. They are returned before anything is written.
var (
	// ErrUnknownCompression is returned for a compression policy other than
	// CompressionDeflate or CompressionStore.
	ErrUnknownCompression = errors.New("zipfix: unknown compression policy")

	// ErrUnknownAddressing is returned for an addressing policy other than
	// Zip64AsNeeded or Zip64Never.
	ErrUnknownAddressing = errors.New("zipfix: unknown addressing policy")

	// ErrInvalidLevel is returned for a deflate level outside [-2, 9].
	ErrInvalidLevel = errors.New("zipfix: invalid compression level")
)

var (
	// ErrMalformedArchive is returned when the input is not a well-formed
	// container. It is distinct from I/O failures.
	ErrMalformedArchive = errors.New("zipfix: malformed archive")

	// ErrZip64Required is returned by a Zip64Never writer when an entry or
	// the archive outgrows the standard 32-bit fields.
	ErrZip64Required = errors.New("zipfix: archive requires zip64 extensions")

	// ErrClosed is returned when a Writer is used after Close.
	ErrClosed = errors.New("zipfix: writer closed")
)

// IOError records a failure of an underlying stream.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return "zipfix: " + e.Op + ": " + e.Err.Error()
	}
	return "zipfix: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err was caused by an underlying stream.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// inputError classifies a failure while reading the source archive.
func inputError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMalformedArchive) || IsIOError(err) {
		return err
	}
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrChecksum) || errors.Is(err, io.ErrUnexpectedEOF) {
		return malformed(op, path, err)
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// outputError classifies a failure while producing the destination archive.
func outputError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrZip64Required) || errors.Is(err, ErrMalformedArchive) || IsIOError(err) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func malformed(op, path string, err error) error {
	if path == "" {
		return fmt.Errorf("%w: %s: %w", ErrMalformedArchive, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrMalformedArchive, op, path, err)
}
