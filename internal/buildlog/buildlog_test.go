package buildlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ninja_log")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	rec := Record{StartMS: 0, EndMS: 5, MTimeNS: 123456789, Hash: 0xdeadbeef}
	require.NoError(t, l.Append("out/foo.o", rec))

	got, ok := l.Lookup("out/foo.o")
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestReloadShadowsEarlierRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ninja_log")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append("out/foo.o", Record{MTimeNS: 1, Hash: 1}))
	require.NoError(t, l.Append("out/foo.o", Record{MTimeNS: 2, Hash: 2}))
	require.NoError(t, l.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	got, ok := l2.Lookup("out/foo.o")
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.Hash)
	assert.Equal(t, int64(2), got.MTimeNS)
}

func TestLoadTruncatedTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ninja_log")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append("out/foo.o", Record{MTimeNS: 1, Hash: 1}))
	require.NoError(t, l.Close())

	// Corrupt by appending a partial trailing line.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("0\t0\t2\tout/bar.o\t")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	_, ok := l2.Lookup("out/foo.o")
	assert.True(t, ok, "valid prior record should survive truncation recovery")
	_, ok = l2.Lookup("out/bar.o")
	assert.False(t, ok, "truncated record should not be present")
}

func TestCompactDropsShadowedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ninja_log")

	l, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append("out/foo.o", Record{MTimeNS: int64(i), Hash: uint64(i)}))
	}
	assert.True(t, l.ShouldCompact())
	require.NoError(t, l.Compact())
	assert.False(t, l.ShouldCompact())

	got, ok := l.Lookup("out/foo.o")
	require.True(t, ok)
	assert.Equal(t, uint64(9), got.Hash)
	require.NoError(t, l.Close())
}

// TestOnDiskFormatMatchesGoldenFile locks in the exact Ninja-compatible
// header and record layout: a header line, then one
// start<TAB>end<TAB>mtime_ns<TAB>path<TAB>hash_hex record per line in
// append order: a later record for the same path is added as a new line,
// and the earlier line stays in the file (shadowed only on load).
func TestOnDiskFormatMatchesGoldenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".ninja_log")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append("out/foo.o", Record{StartMS: 0, EndMS: 12, MTimeNS: 1700000000000000000, Hash: 0x1234abcd}))
	require.NoError(t, l.Append("out/bar.o", Record{StartMS: 12, EndMS: 30, MTimeNS: 1700000000500000000, Hash: 0x5678ef01}))
	require.NoError(t, l.Append("out/foo.o", Record{StartMS: 40, EndMS: 55, MTimeNS: 1700000001000000000, Hash: 0x1234abcd}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "ninja_log", data)
}
