package main

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"librarian/internal/testsupport"
)

func TestStatusReportsDaemonLock(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.NewBook(t, store, env.lib("Robin Hobb", "Ship of Magic"), "Robin Hobb", "Ship of Magic")

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "pending")

	lock := flock.New(env.cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	out, err = env.run(t, "--json", "status")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status struct {
		DaemonRunning bool `json:"daemonRunning"`
		Queue         struct {
			Books int `json:"books"`
		} `json:"queue"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !status.DaemonRunning || status.Queue.Books != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestDoctorPassesWithStubbedBinaries(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "== Checks ==")
	requireContains(t, out, "Library directory")
	requireContains(t, out, "[OK] Ready")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected error line in %s", out)
	}
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	if got != "  Daemon:              [ERROR] Not running" {
		t.Fatalf("renderStatusLine = %q", got)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}
