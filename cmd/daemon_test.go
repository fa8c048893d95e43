package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestWithoutDetach(t *testing.T) {
	got := withoutDetach([]string{"daemon", "--detach", "--addr", "127.0.0.1:9000", "--detach=true"})
	want := []string{"daemon", "--addr", "127.0.0.1:9000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestDaemonStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "fintrackd.json")
	want := daemonState{
		PID:       os.Getpid(),
		Addr:      "127.0.0.1:8787",
		StartedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		APIURL:    "http://localhost:5000",
		UserEmail: "jane@example.com",
	}
	if err := writeDaemonState(path, want); err != nil {
		t.Fatalf("writeDaemonState: %v", err)
	}

	got, running, err := readDaemonState(path)
	if err != nil {
		t.Fatalf("readDaemonState: %v", err)
	}
	if !running {
		t.Error("state of this live process reported not running")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
}

func TestReadDaemonStateMissingAndStale(t *testing.T) {
	dir := t.TempDir()

	if _, running, err := readDaemonState(filepath.Join(dir, "absent.json")); err != nil || running {
		t.Errorf("missing file: running=%v err=%v", running, err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, running, err := readDaemonState(broken); err != nil || running {
		t.Errorf("broken file: running=%v err=%v", running, err)
	}
	if _, err := os.Stat(broken); !os.IsNotExist(err) {
		t.Error("broken state file was not removed")
	}
}
