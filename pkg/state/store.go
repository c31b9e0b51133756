package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/runbook/runbook/pkg/engine"
)

// schemaVersion is the on-disk document version. Bumped only for
// incompatible changes; fields are otherwise additive.
const schemaVersion = 1

// document is the on-disk shape of the store.
type document struct {
	Version int                       `json:"version"`
	Tasks   map[string]engine.Outcome `json:"tasks"`
}

// Store is a file-backed StateStore. Reads are served from memory; every
// Record rewrites the whole document via a temp file and atomic rename, so a
// crash mid-write leaves the previous state intact.
type Store struct {
	mu     sync.RWMutex
	path   string
	tasks  map[string]engine.Outcome
	logger zerolog.Logger
}

// Open loads the store at path, creating an empty one if the file does not
// exist. A file that exists but cannot be parsed is a state error: the store
// refuses to treat corrupt state as empty, because that would re-execute
// tasks that already succeeded.
//
// Outcomes found in the running state belong to a crashed invocation; they
// are rewritten to failed with a stale-running reason and persisted before
// Open returns.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		tasks:  make(map[string]engine.Outcome),
		logger: logger.With().Str("component", "state").Logger(),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, engine.NewStateError(
			fmt.Sprintf("reading state file %s", path), err,
		).WithCode(engine.CodeStateCorrupt)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, engine.NewStateError(
			fmt.Sprintf("state file %s is not valid JSON", path), err,
		).WithCode(engine.CodeStateCorrupt)
	}
	if doc.Version > schemaVersion {
		return nil, engine.NewStateError(
			fmt.Sprintf("state file %s has schema version %d, newer than supported %d",
				path, doc.Version, schemaVersion), nil,
		).WithCode(engine.CodeStateCorrupt)
	}
	if doc.Tasks != nil {
		s.tasks = doc.Tasks
	}

	if stale := s.failStaleRunning(); stale > 0 {
		s.logger.Warn().Int("tasks", stale).
			Msg("marked stale running tasks as failed after restart")
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// failStaleRunning rewrites running entries to failed. Returns how many
// entries were touched.
func (s *Store) failStaleRunning() int {
	stale := 0
	for id, out := range s.tasks {
		if out.Status != engine.StatusRunning {
			continue
		}
		out.Status = engine.StatusFailed
		out.Reason = engine.ReasonStaleRunning
		s.tasks[id] = out
		stale++
	}
	return stale
}

// Get returns the recorded outcome for a task ID.
func (s *Store) Get(id string) (engine.Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.tasks[id]
	return out, ok
}

// Record stores the outcome for a task ID and persists the document.
func (s *Store) Record(id string, outcome engine.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = outcome
	return s.persistLocked()
}

// Reset removes every recorded outcome and deletes the state file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]engine.Outcome)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return engine.NewStateError("removing state file", err)
	}
	return nil
}

// Tasks returns a copy of all recorded outcomes, keyed by task ID.
func (s *Store) Tasks() map[string]engine.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]engine.Outcome, len(s.tasks))
	for id, o := range s.tasks {
		out[id] = o
	}
	return out
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return s.path
}

// persistLocked writes the document to a temp file in the same directory,
// syncs it, and renames it over the state file. Callers hold s.mu.
func (s *Store) persistLocked() error {
	doc := document{Version: schemaVersion, Tasks: s.tasks}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return engine.NewStateError("encoding state", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engine.NewStateError("creating state directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return engine.NewStateError("creating temp state file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return engine.NewStateError("writing state", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return engine.NewStateError("syncing state", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return engine.NewStateError("closing temp state file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return engine.NewStateError("replacing state file", err)
	}
	return nil
}
