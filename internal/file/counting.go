package file

import (
	"errors"
	"io"
	"sync"
)

// ErrOverflow indicates a counter exceeded its maximum value.
var ErrOverflow = errors.New("counter overflow")

// CountingWriter wraps a writer and counts bytes written.
type CountingWriter struct {
	W io.Writer
	N uint64
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	if n > 0 {
		//nolint:gosec // n is guaranteed non-negative by io.Writer contract
		if cw.N > ^uint64(0)-uint64(n) {
			return n, ErrOverflow
		}
		cw.N += uint64(n) //nolint:gosec // overflow checked above
	}
	return n, err
}

// OnceCloser closes the wrapped closer on the first call only.
// Later calls are no-ops and return nil.
type OnceCloser struct {
	c    io.Closer
	once sync.Once
}

// NewOnceCloser wraps c.
func NewOnceCloser(c io.Closer) *OnceCloser {
	return &OnceCloser{c: c}
}

// Close implements io.Closer.
func (o *OnceCloser) Close() error {
	var err error
	o.once.Do(func() {
		err = o.c.Close()
	})
	return err
}
