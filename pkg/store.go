package dirblockcheck

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/vectorio"
	"gopkg.in/yaml.v3"
)

// snapshotHeader is the optional metadata written ahead of the record list
type snapshotHeader struct {
	BlockSize         int    `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	HashAlgorithm     string `json:"hash_algorithm,omitempty" yaml:"hash_algorithm,omitempty"`
	ChecksumAlgorithm string `json:"checksum_algorithm,omitempty" yaml:"checksum_algorithm,omitempty"`
}

// snapshotDocument is the persisted form used for YAML output
type snapshotDocument struct {
	snapshotHeader `yaml:",inline"`
	Data           []FileRecord `yaml:"data"`
}

// loadedDocument uses pointers so absent fields can be told apart from zero values
type loadedDocument struct {
	BlockSize         *int            `json:"block_size" yaml:"block_size"`
	HashAlgorithm     *string         `json:"hash_algorithm" yaml:"hash_algorithm"`
	ChecksumAlgorithm *string         `json:"checksum_algorithm" yaml:"checksum_algorithm"`
	Data              *[]loadedRecord `json:"data" yaml:"data"`
}

type loadedRecord struct {
	Name         *string   `json:"name" yaml:"name"`
	Size         *uint64   `json:"size" yaml:"size"`
	Hash         *string   `json:"hash" yaml:"hash"`
	BlocksHashes *[]uint32 `json:"blocks_hashes" yaml:"blocks_hashes"`
}

// IOV_MAX is 1024 on every platform x/sys supports writev on
const maxIovecs = 1024

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ============================================================================
// SAVE
// ============================================================================

// SaveSnapshot persists s to path, replacing any existing file atomically.
// Paths ending in .yaml or .yml are written as YAML, everything else as JSON.
func SaveSnapshot(s *Snapshot, path string) error {
	defer VerboseEnter()()

	if s == nil {
		return &SerializationError{Path: path, Err: errors.New("nil snapshot")}
	}

	tmpPath := tempFileName(path)
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &SerializationError{Path: path, Err: fmt.Errorf("failed to create temp file: %w", err)}
	}

	committed := false
	defer func() {
		if !committed {
			file.Close()
			os.Remove(tmpPath)
		}
	}()

	if isYAMLPath(path) {
		err = writeSnapshotYAML(file, s)
	} else {
		err = writeSnapshotJSON(file, s)
	}
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}

	if err := file.Sync(); err != nil {
		return &SerializationError{Path: path, Err: fmt.Errorf("failed to sync temp file: %w", err)}
	}
	if err := file.Close(); err != nil {
		return &SerializationError{Path: path, Err: fmt.Errorf("failed to close temp file: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		committed = true
		return &SerializationError{Path: path, Err: fmt.Errorf("failed to rename temp file: %w", err)}
	}
	committed = true

	if IsDebugEnabled("store") {
		VerboseLog(1, "saved snapshot %s: %d records", path, s.Len())
	}
	return nil
}

func headerOf(s *Snapshot) snapshotHeader {
	meta := s.Meta()
	return snapshotHeader{
		BlockSize:         meta.BlockSize,
		HashAlgorithm:     meta.HashAlgorithm,
		ChecksumAlgorithm: meta.ChecksumAlgorithm,
	}
}

// writeSnapshotJSON marshals every record separately and writes the whole
// document with vectored writes, one iovec per fragment.
func writeSnapshotJSON(file *os.File, s *Snapshot) error {
	headerBytes, err := json.Marshal(headerOf(s))
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// {"block_size":..., "data":[ ... ]}
	var open bytes.Buffer
	if len(headerBytes) > 2 {
		open.Write(headerBytes[:len(headerBytes)-1])
		open.WriteString(`,"data":[`)
	} else {
		open.WriteString(`{"data":[`)
	}

	fragments := make([][]byte, 0, 2*s.Len()+2)
	fragments = append(fragments, open.Bytes())

	var marshalErr error
	first := true
	s.ForEach(func(rec *FileRecord) bool {
		recBytes, err := json.Marshal(rec)
		if err != nil {
			marshalErr = fmt.Errorf("failed to marshal record %s: %w", rec.Name, err)
			return false
		}
		if !first {
			fragments = append(fragments, []byte{','})
		}
		first = false
		fragments = append(fragments, recBytes)
		return true
	})
	if marshalErr != nil {
		return marshalErr
	}
	fragments = append(fragments, []byte("]}\n"))

	return writeFragments(file, fragments)
}

// writeFragments writes fragments in order using writev, at most IOV_MAX
// fragments per call. A short write resumes from the first unwritten byte.
func writeFragments(file *os.File, fragments [][]byte) error {
	pending := make([][]byte, 0, len(fragments))
	for _, frag := range fragments {
		if len(frag) > 0 {
			pending = append(pending, frag)
		}
	}

	for len(pending) > 0 {
		chunk := pending[:min(len(pending), maxIovecs)]
		iovecs := make([]syscall.Iovec, len(chunk))
		for i, frag := range chunk {
			iovecs[i].Base = &frag[0]
			iovecs[i].SetLen(len(frag))
		}

		nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs)
		if err != nil {
			return fmt.Errorf("failed to write snapshot with vectorio: %w", err)
		}
		if nw <= 0 {
			return fmt.Errorf("failed to write snapshot: %w", io.ErrShortWrite)
		}
		if IsDebugEnabled("store") && nw < fragmentsLen(chunk) {
			VerboseLog(2, "short writev: %d of %d bytes, resuming", nw, fragmentsLen(chunk))
		}
		pending = advanceFragments(pending, nw)
	}
	return nil
}

// advanceFragments drops the first n bytes from fragments
func advanceFragments(fragments [][]byte, n int) [][]byte {
	for n > 0 && len(fragments) > 0 {
		if n < len(fragments[0]) {
			fragments[0] = fragments[0][n:]
			return fragments
		}
		n -= len(fragments[0])
		fragments = fragments[1:]
	}
	return fragments
}

func fragmentsLen(fragments [][]byte) int {
	total := 0
	for _, frag := range fragments {
		total += len(frag)
	}
	return total
}

func writeSnapshotYAML(file *os.File, s *Snapshot) error {
	doc := snapshotDocument{snapshotHeader: headerOf(s), Data: s.Records()}

	enc := yaml.NewEncoder(file)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush yaml: %w", err)
	}
	return nil
}

// ============================================================================
// LOAD
// ============================================================================

// LoadSnapshot reads a snapshot written by SaveSnapshot. Documents holding
// only the data list load with an unknown block size.
func LoadSnapshot(path string) (*Snapshot, error) {
	defer VerboseEnter()()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}

	var doc loadedDocument
	if isYAMLPath(path) {
		err = yaml.Unmarshal(content, &doc)
	} else {
		err = json.Unmarshal(content, &doc)
	}
	if err != nil {
		return nil, decodeError(path, err)
	}

	snap, err := doc.toSnapshot(path)
	if err != nil {
		return nil, err
	}

	if IsDebugEnabled("store") {
		VerboseLog(1, "loaded snapshot %s: %d records, block size %d", path, snap.Len(), snap.BlockSize())
	}
	return snap, nil
}

func decodeError(path string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &CorruptSnapshotError{Path: path, Record: -1, Field: typeErr.Field,
			Err: fmt.Errorf("expected %s, got %s", typeErr.Type, typeErr.Value)}
	}
	return &CorruptSnapshotError{Path: path, Record: -1, Err: err}
}

func (doc *loadedDocument) toSnapshot(path string) (*Snapshot, error) {
	corrupt := func(record int, field string, format string, args ...interface{}) error {
		return &CorruptSnapshotError{Path: path, Record: record, Field: field, Err: fmt.Errorf(format, args...)}
	}

	var meta SnapshotMeta
	if doc.BlockSize != nil {
		if err := ValidateBlockSize(*doc.BlockSize); err != nil {
			return nil, &CorruptSnapshotError{Path: path, Record: -1, Field: "block_size", Err: err}
		}
		meta.BlockSize = *doc.BlockSize
	}

	var hashAlg *HashAlgorithm
	if doc.HashAlgorithm != nil {
		alg, err := GetHashAlgorithm(*doc.HashAlgorithm)
		if err != nil {
			return nil, &CorruptSnapshotError{Path: path, Record: -1, Field: "hash_algorithm", Err: err}
		}
		hashAlg = alg
		meta.HashAlgorithm = alg.Name
	}
	if doc.ChecksumAlgorithm != nil {
		alg, err := GetChecksumAlgorithm(*doc.ChecksumAlgorithm)
		if err != nil {
			return nil, &CorruptSnapshotError{Path: path, Record: -1, Field: "checksum_algorithm", Err: err}
		}
		meta.ChecksumAlgorithm = alg.Name
	}

	if doc.Data == nil {
		return nil, corrupt(-1, "data", "missing required field")
	}

	records := make([]FileRecord, 0, len(*doc.Data))
	seen := make(map[string]struct{}, len(*doc.Data))
	for i, lr := range *doc.Data {
		switch {
		case lr.Name == nil:
			return nil, corrupt(i, "name", "missing required field")
		case lr.Size == nil:
			return nil, corrupt(i, "size", "missing required field")
		case lr.Hash == nil:
			return nil, corrupt(i, "hash", "missing required field")
		case lr.BlocksHashes == nil:
			return nil, corrupt(i, "blocks_hashes", "missing required field")
		}

		rec := FileRecord{
			Name:           *lr.Name,
			Size:           *lr.Size,
			Digest:         *lr.Hash,
			BlockChecksums: *lr.BlocksHashes,
		}

		if err := ValidateRecordName(rec.Name); err != nil {
			return nil, &CorruptSnapshotError{Path: path, Record: i, Field: "name", Err: err}
		}
		if _, dup := seen[rec.Name]; dup {
			return nil, corrupt(i, "name", "duplicate file name %q", rec.Name)
		}
		seen[rec.Name] = struct{}{}

		if hashAlg != nil && len(rec.Digest) != hashAlg.EncodedLen() {
			return nil, corrupt(i, "hash", "digest has %d characters, %s needs %d",
				len(rec.Digest), hashAlg.Name, hashAlg.EncodedLen())
		}
		if _, err := DecodeDigest(rec.Digest); err != nil {
			return nil, corrupt(i, "hash", "digest is not unpadded base64: %v", err)
		}

		if err := checkBlockCount(rec, meta.BlockSize); err != nil {
			return nil, &CorruptSnapshotError{Path: path, Record: i, Field: "blocks_hashes", Err: err}
		}

		records = append(records, rec)
	}

	snap, err := newSnapshotWithContext(meta, records, LoadContext)
	if err != nil {
		return nil, &CorruptSnapshotError{Path: path, Record: -1, Err: err}
	}
	return snap, nil
}

// checkBlockCount verifies the checksum count against size. With an unknown
// block size only the bounds can be checked.
func checkBlockCount(rec FileRecord, blockSize int) error {
	count := len(rec.BlockChecksums)
	if blockSize > 0 {
		if want := BlockCount(rec.Size, blockSize); count != want {
			return fmt.Errorf("%d block checksums for %d bytes at block size %d, want %d",
				count, rec.Size, blockSize, want)
		}
		return nil
	}
	if (count == 0) != (rec.Size == 0) || uint64(count) > rec.Size {
		return fmt.Errorf("%d block checksums inconsistent with size %d", count, rec.Size)
	}
	return nil
}
