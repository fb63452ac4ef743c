package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gnb-pucch/internal/resmgr"

	"github.com/google/go-cmp/cmp"
)

func TestSpoolArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifact := &SpoolArtifact{
		Version:        1,
		CreatedAt:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		RunID:          "run-1",
		ConfigChecksum: "abc123",
		ConfigContent:  "max_pucch_grants_per_slot: 4\n",
		Metadata:       &RunMetadata{RunID: "run-1", Admitted: 3},
		Snapshots:      []resmgr.PoolSnapshot{testSnapshot()},
	}

	path, err := WriteSpoolArtifact(dir, artifact)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "pucch_run-1_20240301T120000Z_abc123.json.gz" {
		t.Fatalf("unexpected file name %s", path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}

	got, err := ReadSpoolArtifact(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(artifact, got); diff != "" {
		t.Fatalf("artifact changed on disk (-want +got):\n%s", diff)
	}
}

func TestWriteSpoolArtifact_Nil(t *testing.T) {
	if _, err := WriteSpoolArtifact(t.TempDir(), nil); err == nil {
		t.Fatalf("expected error for nil artifact")
	}
}

func TestDefaultSpoolDir(t *testing.T) {
	t.Setenv("PUCCH_SPOOL_DIR", " /var/spool/pucch ")
	if got := DefaultSpoolDir(); got != "/var/spool/pucch" {
		t.Fatalf("unexpected spool dir %q", got)
	}
	t.Setenv("PUCCH_SPOOL_DIR", "")
	if got := DefaultSpoolDir(); got != "spool" {
		t.Fatalf("unexpected default spool dir %q", got)
	}
}
