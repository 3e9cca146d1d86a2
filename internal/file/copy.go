// Package file holds the byte-moving helpers shared by the archive writer
// and rewriter.
package file

import (
	"io"
)

// DefaultBufferSize is the chunk size used to move entry payloads.
const DefaultBufferSize = 4 << 10

// Copy copies from src to dst in len(buf) chunks until EOF or error.
// It returns the number of bytes written. buf is reused as-is, so one buffer
// can serve every entry of an archive.
//
//nolint:gocognit // Follows stdlib io.Copy pattern; complexity is inherent to correct I/O handling
func Copy(dst io.Writer, src io.Reader, buf []byte) (uint64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}
	var written uint64
	for {
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				//nolint:gosec // nw is guaranteed non-negative by io.Writer contract
				if written > ^uint64(0)-uint64(nw) {
					return written, ErrOverflow
				}
				written += uint64(nw) //nolint:gosec // overflow checked above
			}
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}
