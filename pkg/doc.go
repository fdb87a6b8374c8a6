// Package dirblockcheck builds integrity snapshots of a directory and compares them,
// localizing changed byte ranges with per-block checksums.
//
// # Core API
//
// The main entry point is Checker, which applies a Config to scans and comparisons:
//
//	cfg, err := dirblockcheck.LoadConfig("/path/to/dir/.dbc/config")
//	checker, err := dirblockcheck.NewChecker(cfg)
//
// # Basic Operations
//
// Take a snapshot and persist it:
//
//	_, err := checker.Run(ctx, "/path/to/dir", "", "data.json")
//
// Verify the directory against a saved snapshot:
//
//	report, err := checker.Run(ctx, "/path/to/dir", "data.json", "")
//	if report.HasChanges() {
//		fmt.Printf("Found %d changes\n", report.TotalChanges())
//	}
//	dirblockcheck.WriteReport(os.Stdout, report, dirblockcheck.FormatHuman)
//
// The lower level pieces are usable on their own: HashBlocks hashes any reader,
// ScanDirectory produces a Snapshot, SaveSnapshot and LoadSnapshot persist it, and
// Diff compares two snapshots.
//
// # Configuration
//
// Enable debug output:
//
//	dirblockcheck.SetDebugFlags("scan,diff")
//	dirblockcheck.SetVerboseLevel(2)
package dirblockcheck
