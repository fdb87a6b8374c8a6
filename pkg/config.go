package dirblockcheck

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-ini/ini"
)

// Config represents the dbc configuration
type Config struct {
	configPath string
	ini        *ini.File
}

// SnapshotConfig represents snapshot creation configuration
type SnapshotConfig struct {
	BlockSize int    // Block size in bytes, written as a human size ("1K")
	Output    string // Where a fresh snapshot is saved when there is no baseline
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default  string // Whole-file digest algorithm
	Checksum string // Per-block checksum algorithm
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // Report format: human, json
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // Default verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
	Debug string // Default debug flags (comma-separated)
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers int // Number of concurrent hash workers (default: 4)
}

// ScanConfig represents directory scan configuration
type ScanConfig struct {
	FollowSymlinks bool // Hash symlinks that resolve to regular files
}

// AllConfig represents all configuration options
type AllConfig struct {
	Snapshot    *SnapshotConfig
	Hash        *HashConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Performance *PerformanceConfig
	Scan        *ScanConfig
}

// defaultSettings lists every section and key with its default, in file order
var defaultSettings = []struct {
	section string
	keys    [][2]string
}{
	{"snapshot", [][2]string{{"block_size", "1K"}, {"output", DefaultSnapshot}}},
	{"filehash", [][2]string{{"default", "sha256"}, {"checksum", "crc32c"}}},
	{"output", [][2]string{{"format", FormatHuman}}},
	{"verbose", [][2]string{{"level", "0"}, {"debug", ""}}},
	{"performance", [][2]string{{"hash_workers", "4"}}},
	{"scan", [][2]string{{"follow_symlinks", "true"}}},
}

// NewDefaultConfig returns an in-memory configuration holding the defaults
func NewDefaultConfig() *Config {
	cfg := &Config{ini: ini.Empty()}
	if err := cfg.setDefaults(); err != nil {
		// Only fails on invalid section names, which are constant
		panic(err)
	}
	return cfg
}

// LoadConfig loads configuration from path. A missing file, or an empty
// path, yields the defaults; nothing is written.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return NewDefaultConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := NewDefaultConfig()
		cfg.configPath = path
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	return &Config{configPath: path, ini: iniFile}, nil
}

// WriteDefaultConfig creates a config file with every default spelled out.
// An existing file is left alone and reported as an error.
func WriteDefaultConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("config file already exists: %s", path)
	}

	cfg := NewDefaultConfig()
	cfg.configPath = path
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	for _, s := range defaultSettings {
		section, err := c.ini.NewSection(s.section)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.section, err)
		}
		for _, kv := range s.keys {
			if _, err := section.NewKey(kv[0], kv[1]); err != nil {
				return fmt.Errorf("failed to set default %s.%s: %w", s.section, kv[0], err)
			}
		}
	}
	return nil
}

// Path returns the file the configuration is read from and saved to
func (c *Config) Path() string {
	return c.configPath
}

// GetSnapshotConfig returns the snapshot configuration
func (c *Config) GetSnapshotConfig() *SnapshotConfig {
	snapshotConfig := &SnapshotConfig{
		BlockSize: DefaultBlockSize, // fallback default
		Output:    DefaultSnapshot,  // fallback default
	}

	if c.ini.HasSection("snapshot") {
		section := c.ini.Section("snapshot")
		if section.HasKey("block_size") {
			if size, err := ParseHumanSize(section.Key("block_size").String()); err == nil {
				snapshotConfig.BlockSize = size
			}
		}
		if section.HasKey("output") {
			if output := section.Key("output").String(); output != "" {
				snapshotConfig.Output = output
			}
		}
	}

	return snapshotConfig
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	hashConfig := &HashConfig{
		Default:  "sha256", // fallback default
		Checksum: "crc32c", // fallback default
	}

	if c.ini.HasSection("filehash") {
		section := c.ini.Section("filehash")
		if section.HasKey("default") {
			hashConfig.Default = section.Key("default").String()
		}
		if section.HasKey("checksum") {
			hashConfig.Checksum = section.Key("checksum").String()
		}
	}

	return hashConfig
}

// GetOutputConfig returns the output configuration
func (c *Config) GetOutputConfig() *OutputConfig {
	outputConfig := &OutputConfig{
		Format: FormatHuman, // fallback default
	}

	if c.ini.HasSection("output") {
		section := c.ini.Section("output")
		if section.HasKey("format") {
			outputConfig.Format = strings.ToLower(strings.TrimSpace(section.Key("format").String()))
		}
	}

	return outputConfig
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers: DefaultHashWorkers, // fallback default
	}

	if c.ini.HasSection("performance") {
		section := c.ini.Section("performance")
		if section.HasKey("hash_workers") {
			if workers, err := section.Key("hash_workers").Int(); err == nil {
				performanceConfig.HashWorkers = workers
			}
		}
	}

	return performanceConfig
}

// GetScanConfig returns the scan configuration
func (c *Config) GetScanConfig() *ScanConfig {
	scanConfig := &ScanConfig{
		FollowSymlinks: true, // fallback default
	}

	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if section.HasKey("follow_symlinks") {
			if follow, err := section.Key("follow_symlinks").Bool(); err == nil {
				scanConfig.FollowSymlinks = follow
			}
		}
	}

	return scanConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Snapshot:    c.GetSnapshotConfig(),
		Hash:        c.GetHashConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Performance: c.GetPerformanceConfig(),
		Scan:        c.GetScanConfig(),
	}
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config has no file path")
	}
	return c.ini.SaveTo(c.configPath)
}

// WriteTo writes the configuration in INI form
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	return c.ini.WriteTo(w)
}

// lookupKey returns section.name without creating either
func (c *Config) lookupKey(section, name string) (*ini.Key, bool) {
	if !c.ini.HasSection(section) {
		return nil, false
	}
	s := c.ini.Section(section)
	if !s.HasKey(name) {
		return nil, false
	}
	return s.Key(name), true
}

// overrideKeys maps override keys to their section
var overrideKeys = map[string]string{
	"block_size":      "snapshot",
	"output":          "snapshot",
	"default":         "filehash",
	"checksum":        "filehash",
	"format":          "output",
	"level":           "verbose",
	"debug":           "verbose",
	"hash_workers":    "performance",
	"follow_symlinks": "scan",
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "default:sha256", "format:json", "level:2", "block_size:4K"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		section, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: block_size, output, default, checksum, format, level, debug, hash_workers, follow_symlinks)", key)
		}
		c.ini.Section(section).Key(key).SetValue(value)
	}

	return nil
}

// Validate checks every configured value, including ones the getters would
// silently replace with a fallback
func (c *Config) Validate() error {
	if key, ok := c.lookupKey("snapshot", "block_size"); ok {
		size, err := ParseHumanSize(key.String())
		if err != nil {
			return fmt.Errorf("invalid snapshot.block_size: %w", err)
		}
		if err := ValidateBlockSize(size); err != nil {
			return fmt.Errorf("invalid snapshot.block_size: %w", err)
		}
	}

	hashConfig := c.GetHashConfig()
	if err := ValidateHashAlgorithm(hashConfig.Default); err != nil {
		return err
	}
	if err := ValidateChecksumAlgorithm(hashConfig.Checksum); err != nil {
		return err
	}
	if err := ValidateOutputFormat(c.GetOutputConfig().Format); err != nil {
		return err
	}

	if key, ok := c.lookupKey("verbose", "level"); ok {
		level, err := key.Int()
		if err != nil {
			return fmt.Errorf("invalid verbose.level: %w", err)
		}
		if err := ValidateVerboseLevel(level); err != nil {
			return err
		}
	}

	if key, ok := c.lookupKey("performance", "hash_workers"); ok {
		workers, err := key.Int()
		if err != nil {
			return fmt.Errorf("invalid performance.hash_workers: %w", err)
		}
		if err := ValidateHashWorkers(workers); err != nil {
			return err
		}
	}

	if key, ok := c.lookupKey("scan", "follow_symlinks"); ok {
		if _, err := key.Bool(); err != nil {
			return fmt.Errorf("invalid scan.follow_symlinks: %w", err)
		}
	}

	return nil
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	if _, err := GetHashAlgorithm(algorithm); err != nil {
		return fmt.Errorf("unsupported hash algorithm: %s (supported: sha1, sha256, sha512, blake3)", algorithm)
	}
	return nil
}

// ValidateChecksumAlgorithm validates that a block checksum algorithm is supported
func ValidateChecksumAlgorithm(algorithm string) error {
	if _, err := GetChecksumAlgorithm(algorithm); err != nil {
		return fmt.Errorf("unsupported checksum algorithm: %s (supported: crc32c, crc32, xxh3)", algorithm)
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatHuman, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > 64 {
		return fmt.Errorf("hash workers should not exceed 64, got: %d", workers)
	}
	return nil
}
