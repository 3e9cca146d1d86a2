package file

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecorder records the size of every write it receives.
type chunkRecorder struct {
	bytes.Buffer
	chunks []int
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.chunks = append(c.chunks, len(p))
	return c.Buffer.Write(p)
}

type errWriter struct{ err error }

func (w errWriter) Write(_ []byte) (int, error) { return 0, w.err }

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type errReader struct{ err error }

func (r errReader) Read(_ []byte) (int, error) { return 0, r.err }

func TestCopy_Chunks(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 33*1024+7)
	var dst chunkRecorder
	buf := make([]byte, DefaultBufferSize)

	n, err := Copy(&dst, bytes.NewReader(data), buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), n)
	assert.Equal(t, data, dst.Bytes())
	for _, c := range dst.chunks {
		assert.LessOrEqual(t, c, DefaultBufferSize)
	}
}

func TestCopy_Empty(t *testing.T) {
	t.Parallel()

	var dst bytes.Buffer
	n, err := Copy(&dst, bytes.NewReader(nil), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopy_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	_, err := Copy(errWriter{boom}, bytes.NewReader([]byte("abc")), nil)
	require.ErrorIs(t, err, boom)

	_, err = Copy(&bytes.Buffer{}, errReader{boom}, nil)
	require.ErrorIs(t, err, boom)

	_, err = Copy(shortWriter{}, bytes.NewReader([]byte("abcd")), nil)
	require.ErrorIs(t, err, io.ErrShortWrite)
}

func TestCountingWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cw := &CountingWriter{W: &buf}
	_, err := cw.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = cw.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), cw.N)

	cw.N = ^uint64(0) - 1
	_, err = cw.Write([]byte("xx"))
	require.ErrorIs(t, err, ErrOverflow)
}

type countingCloser struct {
	calls int
	err   error
}

func (c *countingCloser) Close() error {
	c.calls++
	return c.err
}

func TestOnceCloser(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := &countingCloser{err: boom}
	oc := NewOnceCloser(c)

	require.ErrorIs(t, oc.Close(), boom)
	require.NoError(t, oc.Close())
	assert.Equal(t, 1, c.calls)
}
