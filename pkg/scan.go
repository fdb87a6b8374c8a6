package dirblockcheck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TYPE DEFINITIONS
// ============================================================================

// ScanOptions controls a directory scan
type ScanOptions struct {
	BlockSize      int
	Workers        int // hash workers, <= 0 selects DefaultHashWorkers
	Algorithms     Algorithms
	FollowSymlinks bool           // hash symlinks that resolve to regular files
	Ignore         *IgnoreManager // optional name filter
	Metrics        *Metrics       // optional
}

// DefaultHashWorkers is used when ScanOptions.Workers is not set
const DefaultHashWorkers = 4

// scannedPath represents a file found in the scanned directory
type scannedPath struct {
	AbsPath string
	Name    string
}

// hashJob is one file handed to a hash worker
type hashJob struct {
	JobID uint64
	Path  *scannedPath
}

// hashResult is what a hash worker hands back to the collector
type hashResult struct {
	JobID  uint64
	Record FileRecord
	Err    error
}

// hashManager runs a fixed pool of hash workers.
// Workers share nothing; each result goes to the single collector.
type hashManager struct {
	hashJobChan chan *hashJob
	resultChan  chan *hashResult
	wg          sync.WaitGroup
	ctx         context.Context
	blockSize   int
	algorithms  Algorithms
	closed      bool
	closeMutex  sync.Mutex
}

// ============================================================================
// DIRECTORY LISTING
// ============================================================================

// listDirectory lists dir non-recursively and returns the files to hash, sorted by name
func listDirectory(dir string, opts ScanOptions) ([]*scannedPath, error) {
	defer VerboseEnter()()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirectoryError{Path: dir, Err: err}
	}
	if len(entries) == 0 {
		return nil, &DirectoryError{Path: dir, Err: ErrEmptyDirectory}
	}

	paths := make([]*scannedPath, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		absPath := filepath.Join(dir, name)

		if opts.Ignore.ShouldIgnore(name) {
			if IsDebugEnabled("scan") {
				VerboseLog(2, "listDirectory: ignoring %s", name)
			}
			continue
		}

		mode := entry.Type()
		switch {
		case mode.IsRegular():
			// hashed below
		case mode&fs.ModeSymlink != 0:
			if !opts.FollowSymlinks {
				VerboseLog(2, "skipping symlink %s", name)
				continue
			}
			targetInfo, err := os.Stat(absPath)
			if err != nil || !targetInfo.Mode().IsRegular() {
				VerboseLog(2, "skipping symlink %s: target is not a regular file", name)
				continue
			}
		case mode.IsDir():
			VerboseLog(2, "skipping subdirectory %s", name)
			continue
		default:
			VerboseLog(2, "skipping special file %s (%s)", name, mode)
			continue
		}

		paths = append(paths, &scannedPath{AbsPath: absPath, Name: name})
	}

	return paths, nil
}

// ============================================================================
// HASH JOB MANAGEMENT
// ============================================================================

// newHashManager creates a hash manager and starts its workers
func newHashManager(ctx context.Context, numWorkers, blockSize int, algs Algorithms) *hashManager {
	if numWorkers <= 0 {
		numWorkers = DefaultHashWorkers
	}

	manager := &hashManager{
		hashJobChan: make(chan *hashJob, 100),
		resultChan:  make(chan *hashResult, 100),
		ctx:         ctx,
		blockSize:   blockSize,
		algorithms:  algs,
	}

	for i := 0; i < numWorkers; i++ {
		manager.wg.Add(1)
		go manager.hashWorker()
	}

	// Close results once every worker has exited
	go func() {
		manager.wg.Wait()
		close(manager.resultChan)
	}()

	return manager
}

// SubmitHashJob queues a job, giving up if the context is done
func (hm *hashManager) SubmitHashJob(job *hashJob) bool {
	select {
	case hm.hashJobChan <- job:
		return true
	case <-hm.ctx.Done():
		return false
	}
}

// FinishSubmitting signals that no more hash jobs will be submitted
func (hm *hashManager) FinishSubmitting() {
	hm.closeMutex.Lock()
	defer hm.closeMutex.Unlock()

	if !hm.closed {
		close(hm.hashJobChan)
		hm.closed = true
	}
}

// Results returns the channel the collector drains
func (hm *hashManager) Results() <-chan *hashResult {
	return hm.resultChan
}

// hashWorker hashes files until the job channel is closed
func (hm *hashManager) hashWorker() {
	defer hm.wg.Done()

	for job := range hm.hashJobChan {
		// Drain without work once the scan is failing
		if hm.ctx.Err() != nil {
			continue
		}

		if IsDebugEnabled("scan") {
			VerboseLog(3, "hashing file: %s (job %d)", job.Path.Name, job.JobID)
		}

		res, err := HashFileBlocks(hm.ctx, job.Path.AbsPath, hm.blockSize, hm.algorithms)
		result := &hashResult{JobID: job.JobID, Err: err}
		if err == nil {
			result.Record = FileRecord{
				Name:           job.Path.Name,
				Size:           res.Size,
				Digest:         res.Digest,
				BlockChecksums: res.Checksums,
			}
		}

		hm.resultChan <- result
	}
}

// ============================================================================
// MAIN SCAN FUNCTION
// ============================================================================

// ScanDirectory hashes every regular file directly inside dir and returns the snapshot.
// Any hashing failure fails the whole scan; no partial snapshot is returned.
func ScanDirectory(ctx context.Context, dir string, opts ScanOptions) (snap *Snapshot, err error) {
	defer VerboseEnter()()

	if err := ValidateBlockSize(opts.BlockSize); err != nil {
		return nil, err
	}
	opts.Algorithms = fillAlgorithms(opts.Algorithms)

	scanID := uuid.New().String()
	log := Logger().With().Str("scan_id", scanID).Str("dir", dir).Logger()
	started := time.Now()
	defer func() {
		opts.Metrics.observeScan(time.Since(started), err)
	}()

	log.Debug().Int("block_size", opts.BlockSize).
		Str("hash", opts.Algorithms.Hash.Name).
		Str("checksum", opts.Algorithms.Checksum.Name).
		Msg("scan started")

	paths, err := listDirectory(dir, opts)
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := newHashManager(scanCtx, opts.Workers, opts.BlockSize, opts.Algorithms)

	go func() {
		defer manager.FinishSubmitting()
		for i, p := range paths {
			if !manager.SubmitHashJob(&hashJob{JobID: uint64(i + 1), Path: p}) {
				return
			}
		}
	}()

	// The collector owns records exclusively
	records := make([]FileRecord, 0, len(paths))
	var firstErr error
	for result := range manager.Results() {
		if result.Err != nil {
			if firstErr == nil {
				firstErr = result.Err
				cancel()
			}
			continue
		}
		records = append(records, result.Record)
		opts.Metrics.observeFile(result.Record.Size)
	}

	if ctx.Err() != nil && (firstErr == nil || errors.Is(firstErr, ErrCancelled)) {
		log.Warn().Msg("scan cancelled")
		return nil, fmt.Errorf("%w: scan of %s: %v", ErrCancelled, dir, ctx.Err())
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(records) != len(paths) {
		return nil, fmt.Errorf("scan of %s hashed %d of %d files", dir, len(records), len(paths))
	}

	snap, err = NewSnapshot(SnapshotMeta{
		BlockSize:         opts.BlockSize,
		HashAlgorithm:     opts.Algorithms.Hash.Name,
		ChecksumAlgorithm: opts.Algorithms.Checksum.Name,
	}, records)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble snapshot: %w", err)
	}

	log.Debug().Int("files", snap.Len()).Dur("elapsed", time.Since(started)).Msg("scan completed")
	return snap, nil
}
