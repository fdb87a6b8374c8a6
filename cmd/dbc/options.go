package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	dirblockcheck "github.com/mattkeenan/dirblockcheck/pkg"
)

// globalOptions holds the flags shared by every command
type globalOptions struct {
	configPath      string
	verbose         int
	debug           string
	format          string
	overrides       []string
	metricsTextfile string
	failOnChange    bool
}

// scanOptions holds the flags of the root scan/verify command
type scanOptions struct {
	path           string
	blockSize      string
	check          string
	output         string
	jobs           int
	hash           string
	checksum       string
	followSymlinks bool
}

func (g *globalOptions) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default DIR/.dbc/config)")
	flags.IntVarP(&g.verbose, "verbose", "v", 0, "verbose level 0-3")
	flags.StringVar(&g.debug, "debug", "", "comma-separated debug flags (scan,hash,store,diff)")
	flags.StringVar(&g.format, "format", "", "report format: human, json")
	flags.StringArrayVar(&g.overrides, "set", nil, "config override key:value (repeatable)")
	flags.StringVar(&g.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	flags.BoolVar(&g.failOnChange, "fail-on-change", false, "exit with status 2 when differences are found")
}

func (s *scanOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&s.path, "path", "p", "", "directory to snapshot or verify")
	flags.StringVarP(&s.blockSize, "block-size", "b", "", "block size, e.g. 1024, 4K (default 1K)")
	flags.StringVarP(&s.check, "check", "c", "", "snapshot to verify the directory against")
	flags.StringVarP(&s.output, "output", "o", "", "where to write the new snapshot (default data.json)")
	flags.IntVarP(&s.jobs, "jobs", "j", 0, "concurrent hash workers (default 4)")
	flags.StringVar(&s.hash, "hash", "", "digest algorithm: sha256, sha1, sha512, blake3")
	flags.StringVar(&s.checksum, "checksum", "", "block checksum: crc32c, crc32, xxh3")
	flags.BoolVar(&s.followSymlinks, "follow-symlinks", true, "hash symlinks that point at regular files")
}

// resolveConfigPath picks the explicit config file, or the state directory of dir
func (g *globalOptions) resolveConfigPath(dir string) string {
	if g.configPath != "" {
		return g.configPath
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, dirblockcheck.StateDir, dirblockcheck.ConfigFile)
}

// loadConfig loads the config and folds explicit flags into it as overrides
func (g *globalOptions) loadConfig(cmd *cobra.Command, dir string, extra []string) (*dirblockcheck.Config, error) {
	cfg, err := dirblockcheck.LoadConfig(g.resolveConfigPath(dir))
	if err != nil {
		return nil, err
	}

	overrides := append([]string{}, g.overrides...)
	if cmd.Flags().Changed("verbose") {
		overrides = append(overrides, "level:"+strconv.Itoa(g.verbose))
	}
	if cmd.Flags().Changed("debug") {
		overrides = append(overrides, "debug:"+g.debug)
	}
	if cmd.Flags().Changed("format") {
		overrides = append(overrides, "format:"+g.format)
	}
	overrides = append(overrides, extra...)

	if err := cfg.ApplyOverrides(overrides); err != nil {
		return nil, fmt.Errorf("failed to apply configuration overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after overrides: %w", err)
	}

	verbose := cfg.GetVerboseConfig()
	dirblockcheck.SetVerboseLevel(verbose.Level)
	if verbose.Debug != "" {
		dirblockcheck.SetDebugFlags(verbose.Debug)
	}

	return cfg, nil
}

// overrides turns the scan flags that were given into config overrides
func (s *scanOptions) overrides(cmd *cobra.Command) []string {
	var out []string
	flags := cmd.Flags()
	if flags.Changed("block-size") {
		out = append(out, "block_size:"+s.blockSize)
	}
	if flags.Changed("jobs") {
		out = append(out, "hash_workers:"+strconv.Itoa(s.jobs))
	}
	if flags.Changed("hash") {
		out = append(out, "default:"+s.hash)
	}
	if flags.Changed("checksum") {
		out = append(out, "checksum:"+s.checksum)
	}
	if flags.Changed("follow-symlinks") {
		out = append(out, "follow_symlinks:"+strconv.FormatBool(s.followSymlinks))
	}
	return out
}
