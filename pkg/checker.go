package dirblockcheck

import (
	"context"
	"fmt"
	"path/filepath"
)

// Checker ties scanning, persistence and comparison together for one configuration
type Checker struct {
	config         *Config
	algorithms     Algorithms
	blockSize      int
	hashWorkers    int
	followSymlinks bool
	outputPath     string
	ignoreManager  *IgnoreManager
	metrics        *Metrics
}

// NewChecker validates cfg and resolves its algorithms. A nil cfg uses the defaults.
func NewChecker(cfg *Config) (*Checker, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	all := cfg.GetAllConfig()
	algs, err := ResolveAlgorithms(all.Hash.Default, all.Hash.Checksum)
	if err != nil {
		return nil, err
	}

	return &Checker{
		config:         cfg,
		algorithms:     algs,
		blockSize:      all.Snapshot.BlockSize,
		hashWorkers:    all.Performance.HashWorkers,
		followSymlinks: all.Scan.FollowSymlinks,
		outputPath:     all.Snapshot.Output,
	}, nil
}

// GetConfig returns the configuration instance
func (c *Checker) GetConfig() *Config {
	return c.config
}

// BlockSize returns the block size used for scans and comparisons
func (c *Checker) BlockSize() int {
	return c.blockSize
}

// SetIgnoreManager replaces the ignore patterns loaded from the scanned directory
func (c *Checker) SetIgnoreManager(im *IgnoreManager) {
	c.ignoreManager = im
}

// SetMetrics enables metric collection
func (c *Checker) SetMetrics(m *Metrics) {
	c.metrics = m
}

// Metrics returns the metric set, nil when disabled
func (c *Checker) Metrics() *Metrics {
	return c.metrics
}

// Snapshot scans dir with the configured options
func (c *Checker) Snapshot(ctx context.Context, dir string) (*Snapshot, error) {
	defer VerboseEnter()()

	opts, err := c.scanOptions(dir)
	if err != nil {
		return nil, err
	}
	return ScanDirectory(ctx, dir, opts)
}

func (c *Checker) scanOptions(dir string) (ScanOptions, error) {
	ignore := c.ignoreManager
	if ignore == nil {
		ignore = NewIgnoreManager(filepath.Join(dir, StateDir))
		if err := ignore.LoadIgnorePatterns(); err != nil {
			return ScanOptions{}, fmt.Errorf("failed to load ignore patterns: %w", err)
		}
	}

	return ScanOptions{
		BlockSize:      c.blockSize,
		Workers:        c.hashWorkers,
		Algorithms:     c.algorithms,
		FollowSymlinks: c.followSymlinks,
		Ignore:         ignore,
		Metrics:        c.metrics,
	}, nil
}

// matchBaseline hashes with the block size and algorithms the baseline was
// written with, so that its records stay comparable block by block
func matchBaseline(opts ScanOptions, baseline *Snapshot) (ScanOptions, error) {
	meta := baseline.Meta()
	if meta.BlockSize > 0 && meta.BlockSize != opts.BlockSize {
		Logger().Info().Int("configured", opts.BlockSize).Int("baseline", meta.BlockSize).
			Msg("Using the baseline block size")
		opts.BlockSize = meta.BlockSize
	}

	hashName, checksumName := opts.Algorithms.Hash.Name, opts.Algorithms.Checksum.Name
	if meta.HashAlgorithm != "" {
		hashName = meta.HashAlgorithm
	}
	if meta.ChecksumAlgorithm != "" {
		checksumName = meta.ChecksumAlgorithm
	}
	algs, err := ResolveAlgorithms(hashName, checksumName)
	if err != nil {
		return opts, fmt.Errorf("failed to use baseline algorithms: %w", err)
	}
	opts.Algorithms = algs
	return opts, nil
}

// Run scans dir. Without a baseline the snapshot is saved to outputPath (the
// configured output when empty) and the report is nil. With a baseline the
// directory is hashed the way the baseline was and compared against it; the
// scan is also saved when outputPath is given.
func (c *Checker) Run(ctx context.Context, dir, baselinePath, outputPath string) (*DiffReport, error) {
	defer VerboseEnter()()

	opts, err := c.scanOptions(dir)
	if err != nil {
		return nil, err
	}

	var baseline *Snapshot
	if baselinePath != "" {
		if baseline, err = LoadSnapshot(baselinePath); err != nil {
			return nil, err
		}
		if opts, err = matchBaseline(opts, baseline); err != nil {
			return nil, err
		}
	}

	current, err := ScanDirectory(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	VerboseLog(1, "scanned %s: %d files, %d bytes", dir, current.Len(), current.TotalSize())

	if baseline == nil {
		if outputPath == "" {
			outputPath = c.outputPath
		}
		if err := SaveSnapshot(current, outputPath); err != nil {
			return nil, err
		}
		Logger().Info().Str("path", outputPath).Int("files", current.Len()).Msg("Snapshot written")
		return nil, nil
	}

	report := Diff(current, baseline, opts.BlockSize)
	c.metrics.ObserveDiff(report)

	if outputPath != "" {
		if err := SaveSnapshot(current, outputPath); err != nil {
			return report, err
		}
	}

	return report, nil
}

// CompareSnapshots loads two persisted snapshots and diffs currentPath against baselinePath
func (c *Checker) CompareSnapshots(currentPath, baselinePath string) (*DiffReport, error) {
	defer VerboseEnter()()

	current, err := LoadSnapshot(currentPath)
	if err != nil {
		return nil, err
	}
	baseline, err := LoadSnapshot(baselinePath)
	if err != nil {
		return nil, err
	}

	// Loaded snapshots carry their own block size; only fall back to ours for reference-format files
	blockSize := 0
	if current.BlockSize() == 0 && baseline.BlockSize() == 0 {
		blockSize = c.blockSize
	}

	report := Diff(current, baseline, blockSize)
	c.metrics.ObserveDiff(report)
	return report, nil
}
