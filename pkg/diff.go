package dirblockcheck

import (
	"strings"
)

// RangeKind says how a changed byte range came about
type RangeKind string

const (
	RangeModified  RangeKind = "modified"  // block checksums differ
	RangeAppended  RangeKind = "appended"  // bytes past the end of the baseline
	RangeTruncated RangeKind = "truncated" // baseline bytes past the end of the current file
)

// ChangedRange is a half-open byte range [Start, End).
// Truncated ranges use baseline offsets, all others current offsets.
type ChangedRange struct {
	Start uint64    `json:"start"`
	End   uint64    `json:"end"`
	Kind  RangeKind `json:"kind"`
}

// Len returns the number of bytes in the range
func (cr ChangedRange) Len() uint64 {
	return cr.End - cr.Start
}

// FileChange describes one file present in both snapshots whose content differs
type FileChange struct {
	Name      string         `json:"name"`
	OldSize   uint64         `json:"old_size"`
	NewSize   uint64         `json:"new_size"`
	OldDigest string         `json:"old_hash"`
	NewDigest string         `json:"new_hash"`
	Ranges    []ChangedRange `json:"ranges"`

	// Localized is false when block checksums could not be compared
	Localized bool `json:"localized"`
	// Unexplained is set when the digests differ but no block or size difference was found
	Unexplained bool `json:"unexplained,omitempty"`
	// Inconsistent is set when the digests match but the sizes do not
	Inconsistent bool `json:"inconsistent,omitempty"`
}

// DiffReport is the classification of every name in either snapshot
type DiffReport struct {
	BlockSize         int          `json:"block_size"`
	BlockSizeMismatch bool         `json:"block_size_mismatch,omitempty"`
	AlgorithmMismatch bool         `json:"algorithm_mismatch,omitempty"`
	Missing           []string     `json:"missing"`
	Added             []string     `json:"added"`
	Unchanged         []string     `json:"unchanged"`
	Changed           []FileChange `json:"changed"`
}

// HasChanges returns true if any file was added, went missing or changed
func (r *DiffReport) HasChanges() bool {
	return len(r.Missing) > 0 || len(r.Added) > 0 || len(r.Changed) > 0
}

// TotalChanges returns the number of files that were added, went missing or changed
func (r *DiffReport) TotalChanges() int {
	return len(r.Missing) + len(r.Added) + len(r.Changed)
}

// Clean returns true when both snapshots describe the same content
func (r *DiffReport) Clean() bool {
	return !r.HasChanges()
}

// Diff compares current against baseline.
//
// blockSize overrides the block size carried by the snapshots when positive.
// If a snapshot was hashed with a different block size, or with a different
// block checksum, changed files are reported by digest only.
func Diff(current, baseline *Snapshot, blockSize int) *DiffReport {
	defer VerboseEnter()()

	bs := effectiveBlockSize(current, baseline, blockSize)
	report := &DiffReport{
		BlockSize: bs,
		Missing:   make([]string, 0),
		Added:     make([]string, 0),
		Unchanged: make([]string, 0),
		Changed:   make([]FileChange, 0),
	}

	for _, snapBS := range []int{current.BlockSize(), baseline.BlockSize()} {
		if snapBS != 0 && snapBS != bs {
			report.BlockSizeMismatch = true
		}
	}
	curMeta, baseMeta := current.Meta(), baseline.Meta()
	checksumMismatch := curMeta.ChecksumAlgorithm != "" && baseMeta.ChecksumAlgorithm != "" &&
		curMeta.ChecksumAlgorithm != baseMeta.ChecksumAlgorithm
	hashMismatch := curMeta.HashAlgorithm != "" && baseMeta.HashAlgorithm != "" &&
		curMeta.HashAlgorithm != baseMeta.HashAlgorithm
	report.AlgorithmMismatch = checksumMismatch || hashMismatch

	localize := !report.BlockSizeMismatch && !checksumMismatch

	if IsDebugEnabled("diff") {
		VerboseLog(2, "Diff: current=%d baseline=%d block_size=%d localize=%v",
			current.Len(), baseline.Len(), bs, localize)
	}

	mergeWalk(current, baseline, func(cur, base *FileRecord) {
		switch {
		case base == nil:
			report.Added = append(report.Added, cur.Name)
		case cur == nil:
			report.Missing = append(report.Missing, base.Name)
		case cur.Size == base.Size && cur.Digest == base.Digest:
			report.Unchanged = append(report.Unchanged, cur.Name)
		default:
			change := compareRecords(cur, base, bs, localize)
			if IsDebugEnabled("diff") {
				VerboseLog(3, "Diff: %s changed, %d ranges", change.Name, len(change.Ranges))
			}
			report.Changed = append(report.Changed, change)
		}
	})

	return report
}

// effectiveBlockSize picks the explicit block size, then current's, then baseline's
func effectiveBlockSize(current, baseline *Snapshot, blockSize int) int {
	switch {
	case blockSize > 0:
		return blockSize
	case current.BlockSize() > 0:
		return current.BlockSize()
	case baseline.BlockSize() > 0:
		return baseline.BlockSize()
	default:
		return DefaultBlockSize
	}
}

// mergeWalk visits the union of both snapshots in name order. For a name
// present on one side only, the other record is nil.
func mergeWalk(current, baseline *Snapshot, visit func(cur, base *FileRecord)) {
	curNode := current.records.skiplist.First()
	baseNode := baseline.records.skiplist.First()

	for curNode != nil && baseNode != nil {
		cur, base := curNode.Item(), baseNode.Item()

		cmp := strings.Compare(cur.Name, base.Name)
		if cmp == 0 {
			visit(cur, base)
			curNode = curNode.Next()
			baseNode = baseNode.Next()
		} else if cmp < 0 {
			visit(cur, nil)
			curNode = curNode.Next()
		} else {
			visit(nil, base)
			baseNode = baseNode.Next()
		}
	}

	for ; curNode != nil; curNode = curNode.Next() {
		visit(curNode.Item(), nil)
	}
	for ; baseNode != nil; baseNode = baseNode.Next() {
		visit(nil, baseNode.Item())
	}
}

// compareRecords builds the FileChange for a pair already known to differ
func compareRecords(cur, base *FileRecord, blockSize int, localize bool) FileChange {
	change := FileChange{
		Name:      cur.Name,
		OldSize:   base.Size,
		NewSize:   cur.Size,
		OldDigest: base.Digest,
		NewDigest: cur.Digest,
		Ranges:    make([]ChangedRange, 0),
		Localized: localize,
	}

	if cur.Digest == base.Digest {
		change.Inconsistent = true
	}

	if !localize {
		return change
	}

	bs := uint64(blockSize)
	var lastEnd uint64

	overlap := min(len(cur.BlockChecksums), len(base.BlockChecksums))
	for i := 0; i < overlap; i++ {
		if cur.BlockChecksums[i] == base.BlockChecksums[i] {
			continue
		}
		start := uint64(i) * bs
		if start >= cur.Size {
			break
		}
		end := min(start+bs, cur.Size)
		change.Ranges = append(change.Ranges, ChangedRange{Start: start, End: end, Kind: RangeModified})
		lastEnd = end
	}

	switch {
	case cur.Size > base.Size:
		start := max(base.Size, lastEnd)
		if start < cur.Size {
			change.Ranges = append(change.Ranges, ChangedRange{Start: start, End: cur.Size, Kind: RangeAppended})
		}
	case cur.Size < base.Size:
		change.Ranges = append(change.Ranges, ChangedRange{Start: cur.Size, End: base.Size, Kind: RangeTruncated})
	}

	if len(change.Ranges) == 0 && cur.Digest != base.Digest {
		change.Unexplained = true
	}

	return change
}
