package logsink

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSinkWritesFileAndMirror(t *testing.T) {
	dir := t.TempDir()
	var mirror bytes.Buffer
	factory := &Factory{Dir: dir, Mirror: &mirror}

	sink, err := factory.Open("deploy-app")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := sink.Write([]byte("line one\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := sink.Write([]byte("line two\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := "line one\nline two\n"
	data, err := os.ReadFile(sink.Path())
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != want {
		t.Errorf("log file = %q, want %q", data, want)
	}
	if mirror.String() != want {
		t.Errorf("mirror = %q, want %q", mirror.String(), want)
	}
}

func TestSinkPathIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	factory := &Factory{Dir: dir, Mirror: &bytes.Buffer{}}

	sink, err := factory.Open("migrate-db")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	want := filepath.Join(dir, "migrate-db.log")
	if sink.Path() != want {
		t.Errorf("Path() = %q, want %q", sink.Path(), want)
	}
}

func TestReopenTruncatesPreviousAttempt(t *testing.T) {
	dir := t.TempDir()
	factory := &Factory{Dir: dir, Mirror: &bytes.Buffer{}}

	first, err := factory.Open("restart-web")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	first.Write([]byte("old attempt output that should disappear\n"))
	first.Close()

	second, err := factory.Open("restart-web")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	second.Write([]byte("fresh\n"))
	second.Close()

	data, err := os.ReadFile(second.Path())
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != "fresh\n" {
		t.Errorf("log file = %q, want only the new attempt's output", data)
	}
	if strings.Contains(string(data), "old attempt") {
		t.Error("previous attempt's output survived reopen")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	factory := &Factory{Dir: t.TempDir(), Mirror: &bytes.Buffer{}}

	sink, err := factory.Open("noop")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	factory := &Factory{Dir: t.TempDir(), Mirror: &bytes.Buffer{}}

	sink, err := factory.Open("closed")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sink.Close()

	if _, err := sink.Write([]byte("late")); err == nil {
		t.Error("Write after Close succeeded, want error")
	}
}

func TestFactoryCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	factory := &Factory{Dir: dir, Mirror: &bytes.Buffer{}}

	sink, err := factory.Open("first")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
}
