package stamp

import (
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipfix/internal/testutil"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	when := time.Date(2016, 6, 27, 14, 3, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   Times
		want Times
	}{
		{
			name: "coarse only",
			in:   Times{DOS: 0x48db7060},
			want: Times{Modified: At(Epoch)},
		},
		{
			name: "all present",
			in: Times{
				DOS:      0x48db7060,
				Modified: At(when),
				Accessed: At(when.Add(time.Hour)),
				Created:  At(when.Add(-time.Hour)),
			},
			want: Times{Modified: At(Epoch), Accessed: At(Epoch), Created: At(Epoch)},
		},
		{
			name: "access only",
			in:   Times{Accessed: At(when)},
			want: Times{Modified: At(Epoch), Accessed: At(Epoch)},
		},
		{
			name: "declared without value",
			in:   Times{Created: Instant{Valid: true}},
			want: Times{Modified: At(Epoch), Created: At(Epoch)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalization must be idempotent")
		})
	}
}

func TestNormalize_AbsencePreserved(t *testing.T) {
	t.Parallel()

	got := Normalize(Times{Modified: At(time.Now())})
	assert.False(t, got.Accessed.Valid)
	assert.False(t, got.Created.Valid)
	assert.True(t, got.Modified.Valid)
	assert.True(t, got.Modified.Time.Equal(Epoch))
}

func TestDOSTime_PackSplit(t *testing.T) {
	t.Parallel()

	d := PackDOS(0x48db, 0x7060)
	assert.Equal(t, DOSTime(0x48db7060), d)
	date, clock := d.Split()
	assert.Equal(t, uint16(0x48db), date)
	assert.Equal(t, uint16(0x7060), clock)
}

func TestRead_ExtTime(t *testing.T) {
	t.Parallel()

	fh := &zip.FileHeader{
		Name:         "a.txt",
		ModifiedDate: 0x48db,
		ModifiedTime: 0x7060,
		Extra:        testutil.ExtTime(0x07, 1000, 2000, 3000),
	}
	got := Read(fh)

	assert.Equal(t, DOSTime(0x48db7060), got.DOS)
	assert.Equal(t, At(time.Unix(1000, 0).UTC()), got.Modified)
	assert.Equal(t, At(time.Unix(2000, 0).UTC()), got.Accessed)
	assert.Equal(t, At(time.Unix(3000, 0).UTC()), got.Created)
}

func TestRead_CentralDirectoryExtTime(t *testing.T) {
	t.Parallel()

	// Central directory copies keep the flags but only store mtime.
	fh := &zip.FileHeader{Name: "a.txt", Extra: testutil.ExtTime(0x05, 1000)}
	got := Read(fh)

	assert.Equal(t, At(time.Unix(1000, 0).UTC()), got.Modified)
	assert.False(t, got.Accessed.Valid)
	assert.Equal(t, Instant{Valid: true}, got.Created)
}

func TestRead_NTFSAndUnix(t *testing.T) {
	t.Parallel()

	const second = 10_000_000
	base := uint64(116444736000000000) // 1970-01-01 in NTFS ticks
	fh := &zip.FileHeader{
		Name: "a.txt",
		Extra: append(
			testutil.NTFS(base+10*second, base+20*second, base+30*second),
			testutil.UnixExtra(40, 50, 1000, 1000)...,
		),
	}
	got := Read(fh)

	// First stored value wins.
	assert.Equal(t, At(time.Unix(10, 0).UTC()), got.Modified)
	assert.Equal(t, At(time.Unix(20, 0).UTC()), got.Accessed)
	assert.Equal(t, At(time.Unix(30, 0).UTC()), got.Created)
}

func TestRead_PreEpoch(t *testing.T) {
	t.Parallel()

	dayBefore := int32(-86400)
	fh := &zip.FileHeader{
		Name: "old.txt",
		Extra: append(
			testutil.ExtTime(0x01, uint32(dayBefore)),
			testutil.UnixExtra(uint32(dayBefore), uint32(dayBefore), 0, 0)...,
		),
	}
	got := Read(fh)

	want := time.Unix(-86400, 0).UTC()
	assert.Equal(t, At(want), got.Modified)
	assert.Equal(t, At(want), got.Accessed)
	assert.Equal(t, 1969, got.Modified.Time.Year())
}

func TestNormalizeExtra(t *testing.T) {
	t.Parallel()

	uidgid := testutil.Opaque(0x7875, []byte{1, 4, 0xe8, 0x03, 0, 0, 4, 0xe8, 0x03, 0, 0})
	local := append(testutil.ExtTime(0x07, 1000, 2000, 3000), uidgid...)
	got := NormalizeExtra(local)

	want := append(testutil.ExtTime(0x07, 0, 0, 0), uidgid...)
	assert.Equal(t, want, got)
	assert.Equal(t, testutil.ExtTime(0x07, 1000, 2000, 3000), local[:17], "input must not be modified")
	assert.Nil(t, NormalizeExtra(nil))
}

func TestRead_IgnoresDerivedModified(t *testing.T) {
	t.Parallel()

	fh := &zip.FileHeader{Name: "a.txt", Modified: time.Now()}
	got := Read(fh)
	assert.Equal(t, Times{}, got)
}

func TestNormalizeHeader_PreservesOtherFields(t *testing.T) {
	t.Parallel()

	opaque := testutil.Opaque(0xcafe, []byte{1, 2, 3, 4})
	in := &zip.FileHeader{
		Name:               "A/Foo.class",
		Comment:            "comment",
		NonUTF8:            true,
		CreatorVersion:     0x0314,
		ReaderVersion:      20,
		Flags:              0x0808,
		Method:             zip.Deflate,
		Modified:           time.Date(2016, 6, 27, 14, 3, 0, 0, time.UTC),
		ModifiedTime:       0x7060,
		ModifiedDate:       0x48db,
		CRC32:              0xdeadbeef,
		CompressedSize:     10,
		UncompressedSize:   20,
		CompressedSize64:   10,
		UncompressedSize64: 20,
		Extra:              append(append([]byte{}, opaque...), testutil.ExtTime(0x03, 1000, 2000)...),
		ExternalAttrs:      0o100644 << 16,
	}
	orig := *in
	origExtra := append([]byte{}, in.Extra...)

	out := NormalizeHeader(in)

	assert.Equal(t, orig, *in, "input header must not be modified")
	assert.Equal(t, origExtra, in.Extra, "input extra must not be modified")

	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Comment, out.Comment)
	assert.Equal(t, in.NonUTF8, out.NonUTF8)
	assert.Equal(t, in.CreatorVersion, out.CreatorVersion)
	assert.Equal(t, in.ReaderVersion, out.ReaderVersion)
	assert.Equal(t, in.Flags, out.Flags)
	assert.Equal(t, in.Method, out.Method)
	assert.Equal(t, in.CRC32, out.CRC32)
	assert.Equal(t, in.CompressedSize, out.CompressedSize)
	assert.Equal(t, in.UncompressedSize, out.UncompressedSize)
	assert.Equal(t, in.CompressedSize64, out.CompressedSize64)
	assert.Equal(t, in.UncompressedSize64, out.UncompressedSize64)
	assert.Equal(t, in.ExternalAttrs, out.ExternalAttrs)

	assert.Zero(t, out.ModifiedDate)
	assert.Zero(t, out.ModifiedTime)
	assert.True(t, out.Modified.IsZero())
	require.Len(t, out.Extra, len(in.Extra))
	assert.Equal(t, opaque, out.Extra[:len(opaque)])
	assert.Equal(t, testutil.ExtTime(0x03, 0, 0), out.Extra[len(opaque):])
}

func TestNormalizeHeader_Idempotent(t *testing.T) {
	t.Parallel()

	headers := []*zip.FileHeader{
		{Name: "plain"},
		{Name: "dos", ModifiedDate: 0x48db, ModifiedTime: 0x7060},
		{Name: "ext", Extra: testutil.ExtTime(0x07, 1, 2, 3)},
		{Name: "ntfs", Extra: testutil.NTFS(1, 2, 3)},
		{Name: "unix", Extra: testutil.UnixExtra(9, 8, 7, 6)},
		{Name: "broken", Extra: []byte{0x55, 0x54, 0xff}},
	}
	for _, fh := range headers {
		t.Run(fh.Name, func(t *testing.T) {
			t.Parallel()
			once := NormalizeHeader(fh)
			twice := NormalizeHeader(once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestNormalizeHeader_PatchesEveryRecord(t *testing.T) {
	t.Parallel()

	epochTicks := uint64(116444736000000000)
	fh := &zip.FileHeader{
		Name: "a.txt",
		Extra: append(append(
			testutil.NTFS(1, 2, 3),
			testutil.UnixExtra(40, 50, 1000, 1001)...),
			testutil.ExtTime(0x01, 60)...),
	}

	out := NormalizeHeader(fh)

	want := append(append(
		testutil.NTFS(epochTicks, epochTicks, epochTicks),
		testutil.UnixExtra(0, 0, 1000, 1001)...),
		testutil.ExtTime(0x01, 0)...)
	assert.Equal(t, want, out.Extra)
}

func TestNormalizeHeader_AbsentSlotsUntouched(t *testing.T) {
	t.Parallel()

	// Access time declared, creation time absent: only two values stored.
	fh := &zip.FileHeader{Name: "a.txt", Extra: testutil.ExtTime(0x03, 1000, 2000)}
	got := Read(NormalizeHeader(fh))

	assert.True(t, got.Accessed.Valid)
	assert.False(t, got.Created.Valid)
	assert.True(t, got.Modified.Time.Equal(Epoch))
	assert.True(t, got.Accessed.Time.Equal(Epoch))
}

func TestNormalizeHeader_MalformedExtraUntouched(t *testing.T) {
	t.Parallel()

	broken := []byte{0x55, 0x54, 0x09, 0x00, 0x01}
	fh := &zip.FileHeader{Name: "a.txt", Extra: broken, ModifiedDate: 1, ModifiedTime: 1}
	out := NormalizeHeader(fh)

	assert.Equal(t, broken, out.Extra)
	assert.Zero(t, out.ModifiedDate)
}

func TestFields(t *testing.T) {
	t.Parallel()

	extra := append(testutil.Opaque(0x1234, []byte{1, 2}), testutil.Opaque(0x5678, nil)...)
	fields, err := Fields(extra)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, uint16(0x1234), fields[0].Tag)
	assert.Equal(t, []byte{1, 2}, fields[0].Data)
	assert.Equal(t, uint16(0x5678), fields[1].Tag)
	assert.Empty(t, fields[1].Data)

	fields, err = Fields(append(extra, 0x01))
	require.ErrorIs(t, err, ErrTruncated)
	assert.Len(t, fields, 2)
}

func TestStripZip64(t *testing.T) {
	t.Parallel()

	keep := testutil.Opaque(0xcafe, []byte{9})
	zip64 := testutil.Opaque(Zip64ExtraID, make([]byte, 16))

	assert.Equal(t, keep, StripZip64(append(append([]byte{}, zip64...), keep...)))
	assert.Equal(t, keep, StripZip64(keep))
	assert.Nil(t, StripZip64(nil))

	broken := append(append([]byte{}, zip64...), 0x01)
	assert.Equal(t, broken, StripZip64(broken))
}
