package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/runbook/runbook/pkg/engine"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s := testStore(t)
	if _, ok := s.Get("anything"); ok {
		t.Error("fresh store returned an outcome")
	}
}

func TestRecordSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	want := engine.Outcome{
		Status:          engine.StatusSuccess,
		ExitCode:        0,
		StartedAt:       now,
		CompletedAt:     now.Add(3 * time.Second),
		DurationSeconds: 3,
		Target:          "web",
		LogRef:          "/var/log/runbook/deploy-app.log",
		Attempts:        1,
	}
	if err := s.Record("deploy-app", want); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	reopened, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Get("deploy-app")
	if !ok {
		t.Fatal("outcome missing after reopen")
	}
	if got.Status != want.Status || got.ExitCode != want.ExitCode ||
		got.Target != want.Target || got.LogRef != want.LogRef ||
		got.Attempts != want.Attempts {
		t.Errorf("reopened outcome = %+v, want %+v", got, want)
	}
}

func TestCorruptFileIsStateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, zerolog.Nop())
	if err == nil {
		t.Fatal("Open succeeded on corrupt state, want error")
	}
	if !engine.IsState(err) {
		t.Errorf("error class = %v, want state", err)
	}
}

func TestNewerSchemaVersionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	doc := `{"version": 99, "tasks": {}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, zerolog.Nop())
	if !engine.IsState(err) {
		t.Errorf("error = %v, want state class", err)
	}
}

func TestStaleRunningBecomesFailedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Record("migrate-db", engine.Outcome{Status: engine.StatusRunning}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	reopened, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Get("migrate-db")
	if !ok {
		t.Fatal("outcome missing after reopen")
	}
	if got.Status != engine.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.Reason != engine.ReasonStaleRunning {
		t.Errorf("reason = %q, want %q", got.Reason, engine.ReasonStaleRunning)
	}

	// The rewrite must itself be durable.
	third, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("third open failed: %v", err)
	}
	got, _ = third.Get("migrate-db")
	if got.Status != engine.StatusFailed {
		t.Errorf("stale rewrite was not persisted, status = %q", got.Status)
	}
}

func TestResetClearsStateAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Record("a", engine.Outcome{Status: engine.StatusSuccess})

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("outcome survived Reset")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("state file survived Reset")
	}
}

func TestNoPartialWritesOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Record("task", engine.Outcome{Status: engine.StatusSuccess, Attempts: i + 1}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "state.json" {
			t.Errorf("leftover temp file %q after writes", e.Name())
		}
	}
}
