package zipfix

import (
	"io"
	"os"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zipfix/internal/file"
)

// Verify reads every entry of the archive in src to the end, checking that
// it decompresses and that its CRC-32 and size match the headers.
//
// Stored, deflated and WinZip zstd entries are understood. A failure is
// reported as ErrMalformedArchive unless the source itself failed.
func Verify(src io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return inputError("open archive", "", err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	buf := make([]byte, file.DefaultBufferSize)
	for _, f := range zr.File {
		if err := verifyEntry(f, buf); err != nil {
			return err
		}
	}
	return nil
}

// VerifyFile runs Verify on the archive at path.
func VerifyFile(path string) error {
	f, err := os.Open(path) //nolint:gosec // caller-chosen path
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &IOError{Op: "stat", Path: path, Err: err}
	}
	return Verify(f, info.Size())
}

func verifyEntry(f *zip.File, buf []byte) error {
	if isDir(f.Name) && f.UncompressedSize64 == 0 {
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return inputError("open entry", f.Name, err)
	}
	defer rc.Close()

	_, err = file.Copy(io.Discard, &entryReader{r: rc, name: f.Name}, buf)
	return err
}
