package dirblockcheck

// Context constants for skiplist operations
const (
	ScanContext = "scan" // record produced by a directory scan
	LoadContext = "load" // record read back from a persisted snapshot
)

// File constants
const (
	StateDir        = ".dbc"
	ConfigFile      = "config"
	IgnoreFile      = "ignore"
	DefaultSnapshot = "data.json"
)

// Block size constants
const (
	DefaultBlockSize = 1024
	MaxBlockSize     = 64 * 1024 * 1024
)

// Hash size constants
const (
	HashSizeSHA1   = 20
	HashSizeSHA256 = 32
	HashSizeSHA512 = 64
	HashSizeBLAKE3 = 32
)

// Report formats
const (
	FormatHuman = "human"
	FormatJSON  = "json"
)
