package zipfix

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/zipfix/internal/file"
)

// ManifestName is the conventional name of a JAR manifest.
const ManifestName = "META-INF/MANIFEST.MF"

// IsManifest reports whether name is the JAR manifest. The comparison
// ignores case, as JAR readers do.
func IsManifest(name string) bool {
	return strings.EqualFold(name, ManifestName)
}

// Rewrite copies the archive in src (size bytes long) to dst with every
// timestamp normalized.
//
// Entries keep their input order, except that the manifest, wherever it
// sits, is written first. Payloads are copied as raw compressed bytes in
// fixed-size chunks, so CRC-32, sizes, method, flags, external attributes,
// comments and non-timestamp extra fields are carried over unchanged. The
// archive comment is preserved. Directories stored by the Java jar tool as
// empty deflate streams become stored empty directories.
//
// Internal attributes, including the Info-ZIP text bit, are not exposed by
// the zip reader and are written as zero.
//
// dst must be empty. On error the bytes already written to dst do not form
// a valid archive and must be discarded.
func Rewrite(dst io.Writer, src io.ReaderAt, size int64, opts ...RewriteOption) (Result, error) {
	cfg := newRewriteConfig(opts)
	return rewrite(dst, src, size, &cfg)
}

func rewrite(dst io.Writer, src io.ReaderAt, size int64, cfg *rewriteConfig) (Result, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return Result{}, inputError("open archive", "", err)
	}

	digester := digest.Canonical.Digester()
	w, err := NewWriter(io.MultiWriter(dst, digester.Hash()), CompressionDeflate, cfg.addressing, cfg.writerOptions()...)
	if err != nil {
		return Result{}, err
	}
	defer w.Close() //nolint:errcheck // the success path closes explicitly

	var res Result
	manifest := findManifest(zr.File)
	if manifest != nil {
		n, err := w.Copy(manifest)
		if err != nil {
			return Result{}, err
		}
		res.Manifest = manifest.Name
		res.Entries++
		res.PayloadBytes += n
	}

	for _, f := range zr.File {
		if f == manifest {
			continue
		}
		n, err := w.Copy(f)
		if err != nil {
			return Result{}, err
		}
		res.Entries++
		res.PayloadBytes += n
	}

	if zr.Comment != "" {
		if err := w.SetComment(zr.Comment); err != nil {
			return Result{}, err
		}
	}
	if err := w.Close(); err != nil {
		return Result{}, err
	}

	res.Size = w.Size()
	res.Digest = digester.Digest()
	cfg.log().Debug("archive rewritten",
		"entries", res.Entries,
		"manifest", res.Manifest,
		"size", res.Size,
		"digest", res.Digest.String())
	return res, nil
}

// findManifest returns the first manifest entry, or nil.
func findManifest(files []*zip.File) *zip.File {
	for _, f := range files {
		if IsManifest(f.Name) {
			return f
		}
	}
	return nil
}

// RewriteFile rewrites the archive at inPath into outPath.
//
// The output is written to a temporary file next to outPath and renamed
// over it only after the rewrite succeeded, so outPath never holds a
// partial archive and inPath may equal outPath. Both files are closed on
// every return path.
func RewriteFile(inPath, outPath string, opts ...RewriteOption) (Result, error) {
	cfg := newRewriteConfig(opts)
	return rewriteFile(inPath, outPath, &cfg)
}

//nolint:gocognit // each step has its own failure path
func rewriteFile(inPath, outPath string, cfg *rewriteConfig) (Result, error) {
	in, err := os.Open(inPath) //nolint:gosec // caller-chosen input path
	if err != nil {
		return Result{}, &IOError{Op: "open", Path: inPath, Err: err}
	}
	inCloser := file.NewOnceCloser(in)
	defer inCloser.Close() //nolint:errcheck // closed explicitly before rename

	info, err := in.Stat()
	if err != nil {
		return Result{}, &IOError{Op: "stat", Path: inPath, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".zipfix-*")
	if err != nil {
		return Result{}, &IOError{Op: "create", Path: outPath, Err: err}
	}
	tmpPath := tmp.Name()
	tmpCloser := file.NewOnceCloser(tmp)
	committed := false
	defer func() {
		_ = tmpCloser.Close()
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	res, err := rewrite(tmp, in, info.Size(), cfg)
	if err != nil {
		return Result{}, fmt.Errorf("rewrite %s: %w", inPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, &IOError{Op: "sync", Path: outPath, Err: err}
	}
	if err := tmpCloser.Close(); err != nil {
		return Result{}, &IOError{Op: "close", Path: outPath, Err: err}
	}
	if cfg.verify {
		if err := VerifyFile(tmpPath); err != nil {
			return Result{}, fmt.Errorf("verify %s: %w", outPath, err)
		}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil { //nolint:gosec // archives are build outputs, world-readable like the input
		return Result{}, &IOError{Op: "chmod", Path: outPath, Err: err}
	}
	if err := inCloser.Close(); err != nil {
		return Result{}, &IOError{Op: "close", Path: inPath, Err: err}
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return Result{}, &IOError{Op: "rename", Path: outPath, Err: err}
	}
	committed = true

	cfg.log().Debug("archive replaced", "input", inPath, "output", outPath)
	return res, nil
}

// Job names one archive for RewriteAll.
type Job struct {
	Input  string
	Output string
}

// RewriteAll rewrites independent archives concurrently, at most
// RewriteWithConcurrency at a time. Results are indexed like jobs.
//
// The first failure stops further jobs from starting; rewrites already in
// flight run to completion. Each rewrite owns its files, so jobs must not
// share an output path.
func RewriteAll(ctx context.Context, jobs []Job, opts ...RewriteOption) ([]Result, error) {
	cfg := newRewriteConfig(opts)
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := rewriteFile(job.Input, job.Output, &cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
