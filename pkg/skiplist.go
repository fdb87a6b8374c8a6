package dirblockcheck

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// recordList keeps FileRecords ordered by name, with the context they came from
type recordList struct {
	skiplist *zcsl.ZeroCopySkiplist[FileRecord, string, string]
}

// newRecordList creates an empty record list
func newRecordList(maxLevels int) *recordList {
	if maxLevels < 8 {
		maxLevels = 16
	}

	getKeyFromItem := func(rec *FileRecord) string {
		return rec.Name
	}

	// Approximate encoded size, used by the skiplist for serialisation hints
	getItemSize := func(rec *FileRecord) int {
		return len(rec.Name) + len(rec.Digest) + 8 + 4*len(rec.BlockChecksums)
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &recordList{
		skiplist: zcsl.MakeZeroCopySkiplist[FileRecord, string, string](
			maxLevels,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// Insert adds a record with a specific context
func (rl *recordList) Insert(rec *FileRecord, context string) bool {
	return rl.skiplist.Insert(rec, context)
}

// Find searches for a record by name and returns it with its context
func (rl *recordList) Find(name string) (*FileRecord, string) {
	itemPtr, context := rl.skiplist.Find(name)
	if itemPtr != nil {
		return itemPtr.Item(), context
	}
	return nil, ""
}

// ForEach iterates through all records in name order
func (rl *recordList) ForEach(callback func(*FileRecord, string) bool) {
	for current := rl.skiplist.First(); current != nil; current = current.Next() {
		if !callback(current.Item(), current.Context()) {
			break
		}
	}
}

// Length returns the number of records
func (rl *recordList) Length() int {
	return rl.skiplist.Length()
}
