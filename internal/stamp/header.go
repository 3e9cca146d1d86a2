package stamp

import (
	"bytes"
	"time"

	"github.com/klauspost/compress/zip"
)

// Read extracts the timestamp record of fh.
//
// The coarse field comes from the raw ModifiedDate and ModifiedTime header
// fields; the derived fh.Modified is ignored. Fine fields come from every
// timestamp-bearing extra record; a field is present when any record
// declares it. Unparseable trailing extra bytes are ignored.
func Read(fh *zip.FileHeader) Times {
	t := Times{DOS: PackDOS(fh.ModifiedDate, fh.ModifiedTime)}
	fields, _ := Fields(fh.Extra) //nolint:errcheck // a damaged tail carries no timestamps we can patch
	for _, f := range fields {
		switch f.Tag {
		case ExtTimeExtraID:
			readExtTime(&t, f.Data)
		case NTFSExtraID:
			readNTFS(&t, f.Data)
		case UnixExtraID, InfoZipUnixExtraID:
			readUnix(&t, f.Data)
		}
	}
	return t
}

// Apply writes t into fh.
//
// The coarse field is stored in ModifiedDate and ModifiedTime. Fine fields
// are written into the timestamp slots that already exist in fh.Extra; the
// layout and length of the blob never change and no record is added, so a
// field without a slot is carried by the coarse field alone. fh.Extra is
// replaced by a patched copy and fh.Modified is cleared so the container
// writer emits the header fields verbatim instead of deriving new ones.
func Apply(fh *zip.FileHeader, t Times) {
	fh.ModifiedDate, fh.ModifiedTime = t.DOS.Split()
	fh.Modified = time.Time{}
	if len(fh.Extra) == 0 {
		return
	}

	extra := bytes.Clone(fh.Extra)
	fields, _ := Fields(extra) //nolint:errcheck // records before the damage are still patched
	for _, f := range fields {
		switch f.Tag {
		case ExtTimeExtraID:
			writeExtTime(f.Data, t)
		case NTFSExtraID:
			writeNTFS(f.Data, t)
		case UnixExtraID, InfoZipUnixExtraID:
			writeUnix(f.Data, t)
		}
	}
	fh.Extra = extra
}
