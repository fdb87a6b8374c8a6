package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dirblockcheck "github.com/mattkeenan/dirblockcheck/pkg"
)

// Exit statuses
const (
	exitOK      = 0
	exitError   = 1
	exitChanged = 2
)

// errChangesFound is returned when --fail-on-change is set and a comparison is not clean
var errChangesFound = errors.New("differences found")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := setupSignalContext(context.Background())
	defer cancel()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errChangesFound) {
			return exitChanged
		}
		fmt.Fprintf(os.Stderr, "dbc: %v\n", err)
		return exitError
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	global := &globalOptions{}
	scan := &scanOptions{}

	rootCmd := &cobra.Command{
		Use:   "dbc -p DIR [-c BASELINE]",
		Short: "dbc - directory block checker",
		Long: "Snapshot every file in a directory with a whole-file digest and per-block checksums,\n" +
			"then verify the directory against the snapshot and report the changed byte ranges.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, global, scan)
		},
	}

	global.register(rootCmd)
	scan.register(rootCmd)
	if err := rootCmd.MarkFlagRequired("path"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		diffCmd(global),
		showCmd(global),
		configCmd(global),
	)

	return rootCmd
}

// runScan snapshots the directory, or verifies it when a baseline is given
func runScan(cmd *cobra.Command, global *globalOptions, scan *scanOptions) error {
	cfg, err := global.loadConfig(cmd, scan.path, scan.overrides(cmd))
	if err != nil {
		return err
	}

	checker, err := dirblockcheck.NewChecker(cfg)
	if err != nil {
		return err
	}
	metrics := enableMetrics(checker, global)

	report, err := checker.Run(cmd.Context(), scan.path, scan.check, scan.output)
	if mErr := writeMetrics(metrics, global); mErr != nil && err == nil {
		err = mErr
	}
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}

	return finishReport(cmd, cfg, global, report)
}

func diffCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff CURRENT BASELINE",
		Short: "Compare two saved snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(cmd, "", nil)
			if err != nil {
				return err
			}

			checker, err := dirblockcheck.NewChecker(cfg)
			if err != nil {
				return err
			}
			metrics := enableMetrics(checker, global)

			report, err := checker.CompareSnapshots(args[0], args[1])
			if mErr := writeMetrics(metrics, global); mErr != nil && err == nil {
				err = mErr
			}
			if err != nil {
				return err
			}

			return finishReport(cmd, cfg, global, report)
		},
	}
}

func showCmd(global *globalOptions) *cobra.Command {
	var duplicates bool

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "List the records of a saved snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(cmd, "", nil)
			if err != nil {
				return err
			}

			snap, err := dirblockcheck.LoadSnapshot(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if duplicates {
				return printDuplicates(out, dirblockcheck.FindDuplicates(snap), cfg.GetOutputConfig().Format)
			}
			if cfg.GetOutputConfig().Format == dirblockcheck.FormatJSON {
				return printSnapshotJSON(out, snap)
			}

			meta := snap.Meta()
			blockSize := "unknown"
			if meta.BlockSize > 0 {
				blockSize = dirblockcheck.FormatHumanSize(meta.BlockSize)
			}
			fmt.Fprintf(out, "Snapshot: %s\n", args[0])
			fmt.Fprintf(out, "Block size: %s  Hash: %s  Checksum: %s\n",
				blockSize, orUnknown(meta.HashAlgorithm), orUnknown(meta.ChecksumAlgorithm))
			fmt.Fprintf(out, "Files: %d  Total: %d bytes\n\n", snap.Len(), snap.TotalSize())

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tBLOCKS\tHASH")
			snap.ForEach(func(rec *dirblockcheck.FileRecord) bool {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", rec.Name, rec.Size, len(rec.BlockChecksums), rec.Digest)
				return true
			})
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "list groups of files with identical content")
	return cmd
}

func configCmd(global *globalOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.PersistentFlags().StringVarP(&dir, "path", "p", "", "directory whose .dbc/config is used")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.resolveConfigPath(dir)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if _, err := dirblockcheck.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	showConfigCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(cmd, dir, nil)
			if err != nil {
				return err
			}
			_, err = cfg.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	cmd.AddCommand(initCmd, showConfigCmd)
	return cmd
}

// finishReport prints the report and maps a dirty result onto the exit status
func finishReport(cmd *cobra.Command, cfg *dirblockcheck.Config, global *globalOptions, report *dirblockcheck.DiffReport) error {
	if err := dirblockcheck.WriteReport(cmd.OutOrStdout(), report, cfg.GetOutputConfig().Format); err != nil {
		return err
	}
	if global.failOnChange && report.HasChanges() {
		return errChangesFound
	}
	return nil
}

func enableMetrics(checker *dirblockcheck.Checker, global *globalOptions) *dirblockcheck.Metrics {
	if global.metricsTextfile == "" {
		return nil
	}
	metrics := dirblockcheck.NewMetrics()
	checker.SetMetrics(metrics)
	return metrics
}

func writeMetrics(metrics *dirblockcheck.Metrics, global *globalOptions) error {
	if metrics == nil {
		return nil
	}
	if err := metrics.WriteTextfile(global.metricsTextfile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func printSnapshotJSON(w io.Writer, snap *dirblockcheck.Snapshot) error {
	meta := snap.Meta()
	doc := struct {
		BlockSize         int                        `json:"block_size,omitempty"`
		HashAlgorithm     string                     `json:"hash_algorithm,omitempty"`
		ChecksumAlgorithm string                     `json:"checksum_algorithm,omitempty"`
		Data              []dirblockcheck.FileRecord `json:"data"`
	}{meta.BlockSize, meta.HashAlgorithm, meta.ChecksumAlgorithm, snap.Records()}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func printDuplicates(w io.Writer, groups []dirblockcheck.DuplicateGroup, format string) error {
	if format == dirblockcheck.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	for _, group := range groups {
		fmt.Fprintf(w, "%s (%d files, %d bytes each)\n", group.Hash, group.Count, group.Size)
		for _, name := range group.Files {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	return nil
}
