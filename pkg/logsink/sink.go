package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/runbook/runbook/pkg/engine"
)

// Factory opens log sinks rooted at a single directory. Each task ID maps to
// one file, truncated on open so reruns replace the previous attempt's log.
type Factory struct {
	// Dir is the directory log files are created under.
	Dir string

	// Mirror receives a copy of everything written to a sink. Defaults to
	// os.Stdout when nil.
	Mirror io.Writer
}

// NewFactory creates a sink factory writing under dir.
func NewFactory(dir string) *Factory {
	return &Factory{Dir: dir, Mirror: os.Stdout}
}

// Open creates the log sink for a task. The backing file is
// <dir>/<taskID>.log, truncated if it already exists.
func (f *Factory) Open(taskID string) (engine.LogSink, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	path := filepath.Join(f.Dir, taskID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	mirror := f.Mirror
	if mirror == nil {
		mirror = os.Stdout
	}

	return &Sink{file: file, mirror: mirror, path: path}, nil
}

// Sink writes task output to a file and mirrors it to a console writer.
// Writes are serialized so the producing process and the engine can share it.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	mirror io.Writer
	path   string
	closed bool
}

// Write appends to the log file and the mirror. A mirror failure does not
// fail the write; the file is the artifact of record.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}

	n, err := s.file.Write(p)
	if err != nil {
		return n, err
	}
	if s.mirror != nil {
		s.mirror.Write(p) //nolint:errcheck
	}
	return n, nil
}

// Path returns the location of the backing log file.
func (s *Sink) Path() string {
	return s.path
}

// Close flushes and closes the backing file. Close is idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
