package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/runbook/runbook/pkg/engine"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	j, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleAttempt(id, taskID string, number int, status engine.TaskStatus) engine.Attempt {
	now := time.Now().UTC()
	return engine.Attempt{
		ID:              id,
		RunID:           "run-1",
		TaskID:          taskID,
		Kind:            engine.KindShell,
		Target:          "web01",
		Number:          number,
		Status:          status,
		ExitCode:        0,
		StartedAt:       now,
		CompletedAt:     now.Add(2 * time.Second),
		DurationSeconds: 2,
		LogPath:         "/var/log/runbook/" + taskID + ".log",
	}
}

func TestJournalRunsInWALMode(t *testing.T) {
	j := testJournal(t)

	var mode string
	if err := j.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	a := sampleAttempt("a1", "deploy-app", 1, engine.StatusSuccess)
	if err := j.RecordAttempt(ctx, a); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}

	got, err := j.ListAttempts(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("attempts = %d, want 1", len(got))
	}
	if got[0].TaskID != "deploy-app" || got[0].Status != engine.StatusSuccess {
		t.Errorf("attempt = %+v", got[0])
	}
	if got[0].Kind != engine.KindShell {
		t.Errorf("kind = %q, want shell", got[0].Kind)
	}
}

func TestRetriesAppearAsSeparateRows(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	j.RecordAttempt(ctx, sampleAttempt("a1", "flaky", 1, engine.StatusFailed))
	j.RecordAttempt(ctx, sampleAttempt("a2", "flaky", 2, engine.StatusFailed))
	j.RecordAttempt(ctx, sampleAttempt("a3", "flaky", 3, engine.StatusSuccess))

	got, err := j.ListAttempts(ctx, Filter{TaskID: "flaky"})
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("attempts = %d, want 3", len(got))
	}
}

func TestFilterByTaskID(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	j.RecordAttempt(ctx, sampleAttempt("a1", "first", 1, engine.StatusSuccess))
	j.RecordAttempt(ctx, sampleAttempt("a2", "second", 1, engine.StatusFailed))

	got, err := j.ListAttempts(ctx, Filter{TaskID: "second"})
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(got) != 1 || got[0].TaskID != "second" {
		t.Errorf("filtered attempts = %+v", got)
	}
}

func TestFilterLimit(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a := sampleAttempt("a"+string(rune('1'+i)), "task", i+1, engine.StatusFailed)
		a.StartedAt = a.StartedAt.Add(time.Duration(i) * time.Minute)
		j.RecordAttempt(ctx, a)
	}

	got, err := j.ListAttempts(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("attempts = %d, want 2", len(got))
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	j, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	j.RecordAttempt(ctx, sampleAttempt("a1", "deploy", 1, engine.StatusSuccess))
	j.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ListAttempts(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("attempts after reopen = %d, want 1", len(got))
	}
}
