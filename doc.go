// Package zipfix rewrites ZIP and JAR archives so that their bytes depend
// only on their content.
//
// Build tools stamp every archive entry with the wall-clock time of the
// build, so two builds of identical sources produce archives that differ.
// zipfix removes that noise: every timestamp an entry carries is forced to a
// fixed value while every other byte of entry metadata and payload is kept.
//
// Two entry points share one normalizing writer:
//
//   - [Rewrite] and [RewriteFile] copy an existing archive entry by entry,
//     moving payloads as raw compressed bytes and promoting the
//     META-INF/MANIFEST.MF entry to the front.
//   - [NewWriter] and [CreateFile] return a [Writer] for assembling a new
//     archive. Every entry registered through it is normalized on the way
//     in, so callers cannot forget to do it.
//
// # Quick Start
//
// Rewrite a jar in place:
//
//	res, err := zipfix.RewriteFile("build/libs/app.jar", "build/libs/app.jar")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Digest)
//
// Assemble a new archive:
//
//	w, err := zipfix.CreateFile("out.zip", zipfix.CompressionDeflate, zipfix.Zip64AsNeeded)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	f, err := w.Create("hello.txt")
//	...
//
// # Errors
//
// Configuration problems are reported by the constructors before any byte is
// written. Failures of the underlying streams are [*IOError] values, and
// input that is not a well-formed container wraps [ErrMalformedArchive], so
// callers can tell a bad archive from a bad disk.
package zipfix
