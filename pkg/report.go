package dirblockcheck

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// WriteReport renders r to w as "human" log lines or a "json" document
func WriteReport(w io.Writer, r *DiffReport, format string) error {
	switch format {
	case "", FormatHuman:
		writeHumanReport(newConsoleLogger(w, 0), r)
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func writeHumanReport(log zerolog.Logger, r *DiffReport) {
	if r.BlockSizeMismatch {
		log.Warn().Int("block_size", r.BlockSize).
			Msg("Snapshots were hashed with different block sizes, comparing whole-file digests only")
	}
	if r.AlgorithmMismatch {
		log.Warn().Msg("Snapshots were hashed with different algorithms")
	}

	if len(r.Missing) > 0 {
		log.Warn().Msgf("Missing files: %s", strings.Join(r.Missing, ", "))
	}
	if len(r.Added) > 0 {
		log.Warn().Msgf("Found new files: %s", strings.Join(r.Added, ", "))
	}

	// Unchanged and changed names interleave in name order
	changed := r.Changed
	for _, name := range r.Unchanged {
		for len(changed) > 0 && changed[0].Name < name {
			writeFileChange(log, &changed[0])
			changed = changed[1:]
		}
		log.Info().Str("file", name).Msg("Successfully verified")
	}
	for i := range changed {
		writeFileChange(log, &changed[i])
	}
}

func writeFileChange(log zerolog.Logger, fc *FileChange) {
	log.Warn().Str("file", fc.Name).
		Uint64("old_size", fc.OldSize).
		Uint64("new_size", fc.NewSize).
		Msg("Failed to verify")

	switch {
	case !fc.Localized:
		log.Warn().Str("file", fc.Name).Msg("Content changed, block ranges unavailable")
	case fc.Unexplained:
		log.Warn().Str("file", fc.Name).Msg("Digest changed but every block checksum matches")
	}
	if fc.Inconsistent {
		log.Warn().Str("file", fc.Name).Msg("Digest matches but size differs")
	}

	for _, cr := range fc.Ranges {
		log.Warn().Str("file", fc.Name).Str("kind", string(cr.Kind)).
			Msgf("Changed %d..%d bytes", cr.Start, cr.End)
	}
}
