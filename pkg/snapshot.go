package dirblockcheck

import (
	"fmt"
	"slices"
	"strings"
)

// FileRecord is the integrity record of one file
type FileRecord struct {
	Name           string   `json:"name" yaml:"name"`
	Size           uint64   `json:"size" yaml:"size"`
	Digest         string   `json:"hash" yaml:"hash"`
	BlockChecksums []uint32 `json:"blocks_hashes" yaml:"blocks_hashes"`
}

// Equal reports whether two records carry identical fields
func (fr *FileRecord) Equal(other *FileRecord) bool {
	if fr == nil || other == nil {
		return fr == other
	}
	return fr.Name == other.Name &&
		fr.Size == other.Size &&
		fr.Digest == other.Digest &&
		slices.Equal(fr.BlockChecksums, other.BlockChecksums)
}

func (fr *FileRecord) clone() FileRecord {
	c := *fr
	c.BlockChecksums = slices.Clone(fr.BlockChecksums)
	if c.BlockChecksums == nil {
		c.BlockChecksums = []uint32{}
	}
	return c
}

// SnapshotMeta describes how the records of a snapshot were produced.
// A zero BlockSize means the block size is unknown.
type SnapshotMeta struct {
	BlockSize         int
	HashAlgorithm     string
	ChecksumAlgorithm string
}

// Snapshot is an immutable, name-ordered set of FileRecords taken at one point in time
type Snapshot struct {
	meta    SnapshotMeta
	context string
	records *recordList
}

// NewSnapshot builds a snapshot from records. Names must be unique, non-empty,
// and free of path separators.
func NewSnapshot(meta SnapshotMeta, records []FileRecord) (*Snapshot, error) {
	return newSnapshotWithContext(meta, records, ScanContext)
}

func newSnapshotWithContext(meta SnapshotMeta, records []FileRecord, context string) (*Snapshot, error) {
	list := newRecordList(16)
	for i := range records {
		if err := ValidateRecordName(records[i].Name); err != nil {
			return nil, err
		}
		if existing, _ := list.Find(records[i].Name); existing != nil {
			return nil, fmt.Errorf("duplicate file name %q", records[i].Name)
		}
		rec := records[i].clone()
		list.Insert(&rec, context)
	}
	return &Snapshot{meta: meta, context: context, records: list}, nil
}

// ValidateRecordName checks that name can key a record
func ValidateRecordName(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// Meta returns the snapshot's block size and algorithm names
func (s *Snapshot) Meta() SnapshotMeta { return s.meta }

// BlockSize returns the block size the records were hashed with, 0 if unknown
func (s *Snapshot) BlockSize() int { return s.meta.BlockSize }

// Source reports whether the snapshot came from a scan or a load
func (s *Snapshot) Source() string { return s.context }

// Len returns the number of records
func (s *Snapshot) Len() int { return s.records.Length() }

// Get returns a copy of the named record
func (s *Snapshot) Get(name string) (FileRecord, bool) {
	rec, _ := s.records.Find(name)
	if rec == nil {
		return FileRecord{}, false
	}
	return rec.clone(), true
}

// Records returns copies of all records in name order
func (s *Snapshot) Records() []FileRecord {
	out := make([]FileRecord, 0, s.records.Length())
	s.records.ForEach(func(rec *FileRecord, _ string) bool {
		out = append(out, rec.clone())
		return true
	})
	return out
}

// Names returns all record names in order
func (s *Snapshot) Names() []string {
	out := make([]string, 0, s.records.Length())
	s.records.ForEach(func(rec *FileRecord, _ string) bool {
		out = append(out, rec.Name)
		return true
	})
	return out
}

// ForEach visits records in name order until fn returns false.
// The record passed to fn must not be modified.
func (s *Snapshot) ForEach(fn func(rec *FileRecord) bool) {
	s.records.ForEach(func(rec *FileRecord, _ string) bool {
		return fn(rec)
	})
}

// TotalSize returns the sum of all record sizes
func (s *Snapshot) TotalSize() uint64 {
	var total uint64
	s.records.ForEach(func(rec *FileRecord, _ string) bool {
		total += rec.Size
		return true
	})
	return total
}

// Equal reports whether both snapshots hold the same metadata and records
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.meta != other.meta || s.Len() != other.Len() {
		return false
	}
	equal := true
	s.records.ForEach(func(rec *FileRecord, _ string) bool {
		o, _ := other.records.Find(rec.Name)
		if o == nil || !rec.Equal(o) {
			equal = false
			return false
		}
		return true
	})
	return equal
}
