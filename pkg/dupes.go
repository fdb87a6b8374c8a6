package dirblockcheck

// DuplicateGroup represents a group of files with the same content digest
type DuplicateGroup struct {
	Hash  string   `json:"hash"`
	Size  uint64   `json:"size"`
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// FindDuplicates returns groups of records in s whose digests are identical.
// Groups are ordered by their first file name; files within a group by name.
func FindDuplicates(s *Snapshot) []DuplicateGroup {
	duplicates := make(map[string]*DuplicateGroup)
	var order []string

	// Names arrive sorted, so groups come out ordered by their first file
	s.ForEach(func(rec *FileRecord) bool {
		group, ok := duplicates[rec.Digest]
		if !ok {
			group = &DuplicateGroup{Hash: rec.Digest, Size: rec.Size}
			duplicates[rec.Digest] = group
			order = append(order, rec.Digest)
		}
		group.Files = append(group.Files, rec.Name)
		return true
	})

	result := make([]DuplicateGroup, 0)
	for _, hash := range order {
		group := duplicates[hash]
		if len(group.Files) > 1 {
			group.Count = len(group.Files)
			result = append(result, *group)
		}
	}

	if IsDebugEnabled("diff") {
		VerboseLog(2, "FindDuplicates: %d groups among %d files", len(result), s.Len())
	}
	return result
}
