package dirblockcheck

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func sampleReport() *DiffReport {
	return &DiffReport{
		BlockSize: 10,
		Missing:   []string{"a", "b"},
		Added:     []string{"z"},
		Unchanged: []string{"c", "e"},
		Changed: []FileChange{{
			Name:      "d",
			OldSize:   25,
			NewSize:   25,
			OldDigest: "old",
			NewDigest: "new",
			Ranges:    []ChangedRange{{Start: 10, End: 20, Kind: RangeModified}},
			Localized: true,
		}},
	}
}

func TestWriteReport_Human(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatHuman); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Missing files: a, b",
		"Found new files: z",
		"Successfully verified",
		"Failed to verify",
		"Changed 10..20 bytes",
		"kind=modified",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// c is verified before d fails, which comes before e
	c := strings.Index(out, "file=c")
	d := strings.Index(out, "file=d")
	e := strings.Index(out, "file=e")
	if !(c >= 0 && c < d && d < e) {
		t.Errorf("files not reported in name order:\n%s", out)
	}
}

func TestWriteReport_HumanMismatchWarnings(t *testing.T) {
	r := &DiffReport{
		BlockSize:         5,
		BlockSizeMismatch: true,
		AlgorithmMismatch: true,
		Changed:           []FileChange{{Name: "f", Ranges: []ChangedRange{}}},
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, r, ""); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"different block sizes", "different algorithms", "block ranges unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatJSON); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	var decoded DiffReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Missing) != 2 || len(decoded.Changed) != 1 {
		t.Errorf("decoded report = %+v", decoded)
	}
	if got := decoded.Changed[0].Ranges; len(got) != 1 || got[0].Start != 10 || got[0].End != 20 {
		t.Errorf("Ranges = %+v, want [10,20)", got)
	}
	if !strings.Contains(buf.String(), `"old_hash": "old"`) {
		t.Errorf("expected old_hash field:\n%s", buf.String())
	}
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), "xml"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
