package dirblockcheck

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

// writeTestFile creates dir/name holding content
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", name, err)
	}
	return path
}

// mustSnapshot builds a snapshot or fails the test
func mustSnapshot(t *testing.T, blockSize int, records ...FileRecord) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(SnapshotMeta{
		BlockSize:         blockSize,
		HashAlgorithm:     "sha256",
		ChecksumAlgorithm: "crc32c",
	}, records)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	return snap
}

// rec is a short FileRecord constructor for diff tests
func rec(name string, size uint64, digest string, checksums ...uint32) FileRecord {
	if checksums == nil {
		checksums = []uint32{}
	}
	return FileRecord{Name: name, Size: size, Digest: digest, BlockChecksums: checksums}
}

// digestOf returns the encoded sha256 digest of content
func digestOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return EncodeDigest(sum[:])
}
