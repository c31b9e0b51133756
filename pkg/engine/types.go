package engine

import (
	"context"
	"io"
	"strings"
	"time"
)

// TaskKind selects the launcher strategy used to execute a task.
type TaskKind string

const (
	// KindPlaybook runs a configuration-management playbook against a target
	// scope via ansible-playbook.
	KindPlaybook TaskKind = "playbook"

	// KindShell runs a script or executable directly, locally or over SSH
	// when the target names a remote host.
	KindShell TaskKind = "shell"

	// KindBuild invokes a build-tool target.
	KindBuild TaskKind = "build"
)

// FailureMode declares what happens after a task attempt fails.
type FailureMode string

const (
	// FailureFail finalizes the outcome as failed; the pipeline aborts if the
	// task is required.
	FailureFail FailureMode = "fail"

	// FailureContinue finalizes the outcome as failed but always signals the
	// caller to continue.
	FailureContinue FailureMode = "continue"

	// FailureRetry repeats the attempt up to the descriptor's retry bound
	// before the fail rule applies.
	FailureRetry FailureMode = "retry"
)

// TaskStatus is the lifecycle state of a task outcome.
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
	StatusSkipped TaskStatus = "skipped"
)

// IsTerminal reports whether the status is a final state for an attempt.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Failure reasons recorded on an outcome beyond the exit code.
const (
	// ReasonTimeout marks a task forcibly terminated at its wall-clock bound.
	ReasonTimeout = "timeout"

	// ReasonInterrupted marks a task terminated by an operator interrupt.
	ReasonInterrupted = "interrupted"

	// ReasonSpawn marks a task whose executable could not be started at all.
	ReasonSpawn = "spawn failure"

	// ReasonStaleRunning marks an outcome found in the running state on load,
	// left behind by a prior crashed invocation.
	ReasonStaleRunning = "interrupted by engine restart"
)

// Signal is the pipeline-level verdict the runner hands back to its caller
// after each task.
type Signal string

const (
	// SignalContinue tells the caller to proceed to the next task.
	SignalContinue Signal = "continue"

	// SignalAbort tells the caller to stop the remaining pipeline.
	SignalAbort Signal = "abort"
)

// Descriptor is the immutable description of one unit of work, supplied by
// the workflow layer per invocation. ID is the primary key into the state
// store; running the same ID twice never re-executes a recorded success.
type Descriptor struct {
	// ID uniquely identifies the task within a pipeline run.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Kind selects the launcher strategy.
	Kind TaskKind `json:"kind" yaml:"kind" validate:"required,oneof=playbook shell build"`

	// Target is the logical host/group scope passed to the underlying tool.
	// Kinds without a host concept ignore it. For shell tasks a non-local
	// target of the form user@host[:port] selects SSH execution.
	Target string `json:"target,omitempty" yaml:"target"`

	// Path locates the playbook, script, or build target to execute.
	Path string `json:"path" yaml:"path" validate:"required"`

	// Args are appended to the invocation verbatim; the engine never
	// interprets them.
	Args []string `json:"args,omitempty" yaml:"args"`

	// Required controls whether a terminal failure aborts the pipeline.
	Required bool `json:"required" yaml:"required"`

	// TimeoutSeconds bounds wall-clock execution; zero means unbounded.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds" validate:"gte=0"`

	// OnFailure is the failure-handling policy for this task.
	OnFailure FailureMode `json:"on_failure" yaml:"on_failure" validate:"omitempty,oneof=fail continue retry"`

	// Retries is the bound for FailureRetry: a failing task is attempted
	// Retries+1 times in total. Ignored for other failure modes.
	Retries int `json:"retries,omitempty" yaml:"retries" validate:"gte=0"`
}

// Validate checks the descriptor before any process is spawned. Violations
// are configuration errors, never retried.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return NewConfigError("task id is required", nil).WithCode(CodeInvalidDescriptor)
	}
	// The ID names the log artifact; a separator or dot-dot segment would
	// let a task write outside the log directory.
	if strings.ContainsAny(d.ID, `/\`) || strings.Contains(d.ID, "..") {
		return NewConfigError("task id must not contain path separators or ..", nil).
			WithCode(CodeInvalidDescriptor).WithTask(d.ID)
	}
	switch d.Kind {
	case KindPlaybook, KindShell, KindBuild:
	case "":
		return NewConfigError("task kind is required", nil).
			WithCode(CodeInvalidDescriptor).WithTask(d.ID)
	default:
		return NewConfigError("unsupported task kind: "+string(d.Kind), nil).
			WithCode(CodeUnsupportedKind).WithTask(d.ID)
	}
	if d.Path == "" {
		return NewConfigError("task path is required", nil).
			WithCode(CodeInvalidDescriptor).WithTask(d.ID)
	}
	if d.TimeoutSeconds < 0 {
		return NewConfigError("timeout_seconds must not be negative", nil).
			WithCode(CodeInvalidDescriptor).WithTask(d.ID)
	}
	switch d.OnFailure {
	case "", FailureFail, FailureContinue, FailureRetry:
	default:
		return NewConfigError("unsupported on_failure mode: "+string(d.OnFailure), nil).
			WithCode(CodeInvalidDescriptor).WithTask(d.ID)
	}
	if d.Retries < 0 {
		return NewConfigError("retries must not be negative", nil).
			WithCode(CodeInvalidDescriptor).WithTask(d.ID)
	}
	return nil
}

// Timeout returns the wall-clock bound as a duration, zero when unbounded.
func (d Descriptor) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Outcome is the durable record of the last attempt for a task ID.
// The persisted schema is additive-only: fields are never renamed or
// repurposed so older state artifacts stay readable.
type Outcome struct {
	// Status is the lifecycle state; success is terminal across runs.
	Status TaskStatus `json:"status"`

	// ExitCode is the child process exit code, meaningful for success and
	// failed outcomes only.
	ExitCode int `json:"exit_code"`

	// StartedAt and CompletedAt bound the attempt in wall-clock time.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// DurationSeconds is CompletedAt-StartedAt, clamped to zero against
	// clock skew.
	DurationSeconds float64 `json:"duration_seconds"`

	// Target is the scope the task last ran against, kept for audit.
	Target string `json:"target,omitempty"`

	// LogRef is the path of the captured output artifact.
	LogRef string `json:"log_reference,omitempty"`

	// Reason qualifies a failure beyond the exit code (timeout, interrupt,
	// spawn failure, stale running entry).
	Reason string `json:"reason,omitempty"`

	// Attempts is how many attempts the last run made, retries included.
	Attempts int `json:"attempts,omitempty"`
}

// Attempt is one journal row: a single execution attempt of a task,
// including retries and skips.
type Attempt struct {
	ID              string
	RunID           string
	TaskID          string
	Kind            TaskKind
	Target          string
	Number          int
	Status          TaskStatus
	ExitCode        int
	Reason          string
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64
	LogPath         string
}

// TaskResult pairs a task ID with its outcome and the verdict it produced.
type TaskResult struct {
	TaskID  string  `json:"task_id"`
	Outcome Outcome `json:"outcome"`
	Signal  Signal  `json:"signal"`
}

// Pipeline is the ordered sequence of task invocations for one run. The
// caller resolves ordering; the engine executes it as given.
type Pipeline struct {
	Name  string       `json:"name"`
	Tasks []Descriptor `json:"tasks"`
}

// PipelineResult summarizes one pipeline run.
type PipelineResult struct {
	RunID        string       `json:"run_id"`
	Name         string       `json:"name"`
	Tasks        []TaskResult `json:"tasks"`
	Passed       bool         `json:"passed"`
	FirstAborted string       `json:"first_aborted,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// Summary counts terminal statuses across the run.
func (r *PipelineResult) Summary() (succeeded, failed, skipped int) {
	for _, t := range r.Tasks {
		switch t.Outcome.Status {
		case StatusSuccess:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Launcher turns a descriptor into a running child process, relays its
// combined stdout/stderr into output, and returns the exit code once the
// process terminates. A spawn failure (executable missing, permission
// denied) is returned as a spawn-class error; a tool that ran and exited
// non-zero is reported through the exit code with a nil error.
type Launcher interface {
	Launch(ctx context.Context, task Descriptor, output io.Writer) (int, error)
}

// LogSink captures one task's output. Every write lands in the persisted
// artifact and on the live stream the operator is attached to.
type LogSink interface {
	io.Writer

	// Path is the location of the persisted artifact, recorded as the
	// outcome's log reference.
	Path() string

	// Close flushes and finalizes the artifact. It runs on every exit path,
	// including timeout kills and interrupts.
	Close() error
}

// SinkOpener creates the per-task log sink. Opening truncates any prior
// artifact for the same task ID.
type SinkOpener interface {
	Open(taskID string) (LogSink, error)
}

// StateStore is the durable mapping from task ID to last recorded outcome.
// Record must persist atomically; there is exactly one writer by design.
type StateStore interface {
	Get(id string) (Outcome, bool)
	Record(id string, outcome Outcome) error
}

// Journal receives one row per execution attempt for audit and history.
// It is observability only: skip decisions never read from it.
type Journal interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Gate is consulted before each spawn. A non-nil error blocks the task and
// aborts the pipeline; implementations return configuration-class errors.
type Gate interface {
	Check(ctx context.Context, task Descriptor) error
}
