package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shapedtime/cloudlib/internal/scan"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "media", "Movies"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg := fmt.Sprintf(`
database:
  path: %[1]s/data/cloudlib.db
storage:
  root: %[1]s/media
  movie_roots: ["/Movies"]
  show_roots: []
cache:
  enabled: false
scan:
  lock_path: %[1]s/data/scan.lock
metrics:
  enabled: false
`, dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRescanShowRejectsBadID(t *testing.T) {
	_, err := execute(t, "--config", writeTestConfig(t), "rescan-show", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid show id") {
		t.Errorf("error = %v, want invalid show id", err)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  workers: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "--config", path, "scan")
	if err == nil || !strings.Contains(err.Error(), "scan.workers") {
		t.Errorf("error = %v, want scan.workers validation error", err)
	}
}

func TestScanEmptyLibrary(t *testing.T) {
	out, err := execute(t, "--config", writeTestConfig(t), "scan")
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}
	if !strings.Contains(out, "0 created, 0 updated, 0 deleted") {
		t.Errorf("output missing write summary:\n%s", out)
	}
}

func TestPrintShowReport(t *testing.T) {
	tests := []struct {
		name string
		sr   *scan.ShowReport
		want string
	}{
		{"skipped", &scan.ShowReport{ShowID: 4, Name: "Dark", Skipped: "complete"}, "Show 4 (Dark) skipped: complete"},
		{"reconciled", &scan.ShowReport{ShowID: 4, Name: "Dark", Created: 2, Deleted: 1}, "2 created, 0 updated, 1 deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printShowReport(&buf, tt.sr)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("printShowReport() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &scan.Report{RunID: "r1", Duration: 1500 * time.Millisecond, MoviesMatched: 3})
	if !strings.Contains(buf.String(), "Run r1 finished in 1.5s") {
		t.Errorf("printReport() = %q", buf.String())
	}
	if !strings.Contains(buf.String(), "3 matched, 0 unresolved") {
		t.Errorf("printReport() = %q", buf.String())
	}
}
