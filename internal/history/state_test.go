package history

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLedgerSeenRecord verifies the dedup cycle: unknown file, recorded file,
// and a rewritten file that must count as new again.
func TestLedgerSeenRecord(t *testing.T) {
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "2026-02.csv")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := IdentifyFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if id.Path != "2026-02.csv" {
		t.Errorf("id.Path = %q, want base name", id.Path)
	}
	if id.Size != int64(len(sampleExport)) || id.SHA256 == "" {
		t.Errorf("id = %+v, want size %d and a hash", id, len(sampleExport))
	}

	seen, err := state.Seen(id)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("unrecorded file reported as seen")
	}

	if err := state.Record(id); err != nil {
		t.Fatal(err)
	}
	seen, err = state.Seen(id)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Error("recorded file not reported as seen")
	}

	// Rewriting the file changes its fingerprint, so the same path imports
	// again.
	if err := os.WriteFile(path, []byte(sampleExport+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := IdentifyFile(path)
	if err != nil {
		t.Fatal(err)
	}
	seen, err = state.Seen(changed)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("rewritten file must not be reported as seen")
	}

	// Record replaces the row for the path rather than erroring.
	if err := state.Record(changed); err != nil {
		t.Fatal(err)
	}
	seen, err = state.Seen(changed)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Error("re-recorded file not reported as seen")
	}
}
