package dirblockcheck

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	hello := sha256.Sum256([]byte("hello"))
	empty := sha256.Sum256(nil)
	return mustSnapshot(t, 2,
		rec("b.txt", 0, EncodeDigest(empty[:])),
		rec("a.txt", 5, EncodeDigest(hello[:]), 0xdeadbeef, 7, 0),
	)
}

func TestSaveLoadSnapshot_RoundTrip(t *testing.T) {
	for _, name := range []string{"data.json", "snapshot.yaml", "snapshot.yml", "snapshot.dat"} {
		t.Run(name, func(t *testing.T) {
			snap := sampleSnapshot(t)
			path := filepath.Join(t.TempDir(), name)

			require.NoError(t, SaveSnapshot(snap, path))

			loaded, err := LoadSnapshot(path)
			require.NoError(t, err)

			assert.True(t, snap.Equal(loaded), "loaded snapshot differs from saved one")
			assert.Equal(t, snap.Records(), loaded.Records())
			assert.Equal(t, snap.Meta(), loaded.Meta())
			assert.Equal(t, LoadContext, loaded.Source())
		})
	}
}

func TestSaveSnapshot_JSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, SaveSnapshot(sampleSnapshot(t), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	assert.True(t, strings.HasPrefix(text, `{"block_size":2,"hash_algorithm":"sha256","checksum_algorithm":"crc32c","data":[`), text)
	assert.Contains(t, text, `"blocks_hashes":[3735928559,7,0]`)
	assert.Contains(t, text, `"blocks_hashes":[]`)
	assert.Less(t, strings.Index(text, `"a.txt"`), strings.Index(text, `"b.txt"`), "records not in name order")
	assert.True(t, strings.HasSuffix(text, "]}\n"))
}

func TestSaveSnapshot_EmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	snap := mustSnapshot(t, 1024)

	require.NoError(t, SaveSnapshot(snap, path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, 1024, loaded.BlockSize())
}

func TestSaveSnapshot_ManyRecordsSpanIovecChunks(t *testing.T) {
	sum := sha256.Sum256([]byte("x"))
	records := make([]FileRecord, 0, 3*maxIovecs)
	for i := 0; i < cap(records); i++ {
		records = append(records, rec(fmt.Sprintf("file-%05d", i), 1, EncodeDigest(sum[:]), uint32(i)))
	}
	snap := mustSnapshot(t, 1, records...)

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, SaveSnapshot(snap, path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.True(t, snap.Equal(loaded))
}

func TestSaveSnapshot_Deterministic(t *testing.T) {
	dataDir := t.TempDir()
	writeTestFile(t, dataDir, "one.txt", "first file")
	writeTestFile(t, dataDir, "two.txt", "second file with more bytes")

	outDir := t.TempDir()
	var outputs [][]byte
	for _, name := range []string{"first.json", "second.json"} {
		snap, err := ScanDirectory(context.Background(), dataDir, defaultScanOptions(4))
		require.NoError(t, err)

		path := filepath.Join(outDir, name)
		require.NoError(t, SaveSnapshot(snap, path))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		outputs = append(outputs, content)
	}

	assert.Equal(t, outputs[0], outputs[1])
}

func TestSaveSnapshot_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0644))

	require.NoError(t, SaveSnapshot(sampleSnapshot(t), path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")

	_, err = LoadSnapshot(path)
	assert.NoError(t, err)
}

func TestSaveSnapshot_SerializationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "data.json")

	err := SaveSnapshot(sampleSnapshot(t), path)
	var serErr *SerializationError
	require.True(t, errors.As(err, &serErr), "got %T: %v", err, err)
	assert.Equal(t, path, serErr.Path)
}

func TestLoadSnapshot_ReferenceFormat(t *testing.T) {
	hello := sha256.Sum256([]byte("hello"))
	doc := `{"data":[{"name":"a.txt","size":5,"hash":"` + EncodeDigest(hello[:]) + `","blocks_hashes":[1,2,3]}]}`

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.BlockSize(), "block size should be unknown")
	assert.Equal(t, "", snap.Meta().HashAlgorithm)

	a, ok := snap.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint64(5), a.Size)
	assert.Equal(t, []uint32{1, 2, 3}, a.BlockChecksums)
}

func TestLoadSnapshot_FileReadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	_, err := LoadSnapshot(path)
	var readErr *FileReadError
	require.True(t, errors.As(err, &readErr), "got %T: %v", err, err)
	assert.Equal(t, path, readErr.Path)
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	hello := sha256.Sum256([]byte("hello"))
	digest := EncodeDigest(hello[:])

	tests := []struct {
		name   string
		file   string
		doc    string
		field  string
		record int
	}{
		{"malformed json", "data.json", `{"data":[`, "", -1},
		{"top level array", "data.json", `[]`, "", -1},
		{"missing data", "data.json", `{"block_size":2}`, "data", -1},
		{"missing name", "data.json", `{"data":[{"size":5,"hash":"` + digest + `","blocks_hashes":[1]}]}`, "name", 0},
		{"missing size", "data.json", `{"data":[{"name":"a","hash":"` + digest + `","blocks_hashes":[1]}]}`, "size", 0},
		{"missing hash", "data.json", `{"data":[{"name":"a","size":5,"blocks_hashes":[1]}]}`, "hash", 0},
		{"missing blocks", "data.json", `{"data":[{"name":"a","size":5,"hash":"` + digest + `"}]}`, "blocks_hashes", 0},
		{"null blocks", "data.json", `{"data":[{"name":"a","size":5,"hash":"` + digest + `","blocks_hashes":null}]}`, "blocks_hashes", 0},
		{"size wrong type", "data.json", `{"data":[{"name":"a","size":"five","hash":"` + digest + `","blocks_hashes":[1]}]}`, "", -1},
		{"negative size", "data.json", `{"data":[{"name":"a","size":-5,"hash":"` + digest + `","blocks_hashes":[1]}]}`, "", -1},
		{"bad base64", "data.json", `{"data":[{"name":"a","size":5,"hash":"!!!","blocks_hashes":[1]}]}`, "hash", 0},
		{"digest length", "data.json", `{"hash_algorithm":"sha256","data":[{"name":"a","size":5,"hash":"AAAA","blocks_hashes":[1]}]}`, "hash", 0},
		{"unknown hash algorithm", "data.json", `{"hash_algorithm":"md5","data":[]}`, "hash_algorithm", -1},
		{"unknown checksum", "data.json", `{"checksum_algorithm":"adler","data":[]}`, "checksum_algorithm", -1},
		{"invalid block size", "data.json", `{"block_size":0,"data":[]}`, "block_size", -1},
		{"padded digest", "data.json", `{"hash_algorithm":"sha256","data":[{"name":"a","size":5,"hash":"` + digest + `=","blocks_hashes":[1]}]}`, "hash", 0},
		{"size beyond block count", "data.json", `{"block_size":1024,"data":[{"name":"a","size":18446744073709551615,"hash":"` + digest + `","blocks_hashes":[]}]}`, "blocks_hashes", 0},
		{"block count mismatch", "data.json", `{"block_size":2,"data":[{"name":"a","size":5,"hash":"` + digest + `","blocks_hashes":[1,2]}]}`, "blocks_hashes", 0},
		{"blocks without bytes", "data.json", `{"data":[{"name":"a","size":0,"hash":"` + digest + `","blocks_hashes":[1]}]}`, "blocks_hashes", 0},
		{"bytes without blocks", "data.json", `{"data":[{"name":"a","size":3,"hash":"` + digest + `","blocks_hashes":[]}]}`, "blocks_hashes", 0},
		{"path in name", "data.json", `{"data":[{"name":"x/a","size":0,"hash":"` + digest + `","blocks_hashes":[]}]}`, "name", 0},
		{"duplicate names", "data.json", `{"data":[{"name":"a","size":0,"hash":"` + digest + `","blocks_hashes":[]},{"name":"a","size":0,"hash":"` + digest + `","blocks_hashes":[]}]}`, "name", 1},
		{"yaml wrong type", "data.yaml", "data:\n  - name: a\n    size: five\n    hash: " + digest + "\n    blocks_hashes: [1]\n", "", -1},
		{"yaml missing hash", "data.yaml", "data:\n  - name: a\n    size: 1\n    blocks_hashes: [1]\n", "hash", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0644))

			snap, err := LoadSnapshot(path)
			assert.Nil(t, snap)

			var corrupt *CorruptSnapshotError
			require.True(t, errors.As(err, &corrupt), "got %T: %v", err, err)
			assert.Equal(t, path, corrupt.Path)
			assert.Equal(t, tt.record, corrupt.Record)
			if tt.field != "" {
				assert.Equal(t, tt.field, corrupt.Field)
			}
		})
	}
}

func TestAdvanceFragments(t *testing.T) {
	tests := []struct {
		name    string
		written int
		want    []string
	}{
		{"nothing written", 0, []string{"abc", "de", "fgh"}},
		{"inside first fragment", 2, []string{"c", "de", "fgh"}},
		{"fragment boundary", 3, []string{"de", "fgh"}},
		{"across fragments", 6, []string{"gh"}},
		{"everything", 8, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments := [][]byte{[]byte("abc"), []byte("de"), []byte("fgh")}

			rest := advanceFragments(fragments, tt.written)

			got := make([]string, 0, len(rest))
			for _, frag := range rest {
				got = append(got, string(frag))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 8-tt.written, fragmentsLen(rest))
		})
	}
}
