package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/runbook/runbook/pkg/telemetry"
)

// Runner owns the collaborators for one pipeline run: the state store, the
// log sink factory, and the launcher table. It is constructed once per run
// and passed by reference; there are no process-wide singletons.
type Runner struct {
	store     StateStore
	sinks     SinkOpener
	launchers map[TaskKind]Launcher
	policy    Policy

	gate    Gate
	journal Journal
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	logger  zerolog.Logger
	console io.Writer

	runID string
}

// Options carries the optional collaborators of a Runner. Zero values
// disable the corresponding concern.
type Options struct {
	// Gate blocks tasks denied by admission policy before any spawn.
	Gate Gate

	// Journal receives one row per attempt for audit and history.
	Journal Journal

	// Metrics and Tracer instrument task execution; nil disables them.
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	// Logger is the structured logger; defaults to a disabled logger.
	Logger *zerolog.Logger

	// Console receives the per-task pass/fail summary lines; defaults to
	// stdout.
	Console io.Writer

	// RunID identifies this pipeline run in journal rows and spans;
	// defaults to a fresh UUID.
	RunID string
}

// NewRunner creates a runner over the given store, sink factory, and
// launcher table.
func NewRunner(store StateStore, sinks SinkOpener, launchers map[TaskKind]Launcher, opts Options) *Runner {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &Runner{
		store:     store,
		sinks:     sinks,
		launchers: launchers,
		gate:      opts.Gate,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    logger.With().Str("component", "runner").Str("run_id", runID).Logger(),
		console:   console,
		runID:     runID,
	}
}

// RunID returns the identifier of this pipeline run.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes one task under the execution policy and returns its outcome
// together with the pipeline-level verdict.
//
// The returned error is nil for ordinary task failure; it is non-nil only
// for engine-level faults (configuration, policy denial, spawn failure,
// state persistence, cancellation), all of which signal abort.
func (r *Runner) Run(ctx context.Context, task Descriptor) (Outcome, Signal, error) {
	if err := task.Validate(); err != nil {
		return Outcome{Status: StatusPending}, SignalAbort, err
	}
	if _, ok := r.launchers[task.Kind]; !ok {
		return Outcome{Status: StatusPending}, SignalAbort,
			NewConfigError("no launcher registered for kind "+string(task.Kind), nil).
				WithCode(CodeUnsupportedKind).WithTask(task.ID)
	}

	// Idempotent re-entry: a recorded success is never re-executed and never
	// overwritten in the store.
	if prior, ok := r.store.Get(task.ID); ok && prior.Status == StatusSuccess {
		now := time.Now().UTC()
		out := Outcome{
			Status:      StatusSkipped,
			ExitCode:    prior.ExitCode,
			StartedAt:   now,
			CompletedAt: now,
			Target:      prior.Target,
			LogRef:      prior.LogRef,
		}
		r.logger.Info().Str("task_id", task.ID).Msg("task already succeeded, skipping")
		r.recordAttempt(ctx, task, out, 0)
		r.metrics.TaskCompleted(string(task.Kind), string(StatusSkipped), 0)
		fmt.Fprintf(r.console, "=== task %s: SKIPPED (already succeeded)\n", task.ID)
		return out, SignalContinue, nil
	}

	if r.gate != nil {
		if err := r.gate.Check(ctx, task); err != nil {
			return Outcome{Status: StatusPending}, SignalAbort, err
		}
	}

	attempts := r.policy.Attempts(task)
	var (
		out Outcome
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err = r.attempt(ctx, task, attempt)
		if err != nil {
			r.summarize(task, out)
			return out, SignalAbort, err
		}
		if out.Status == StatusSuccess {
			break
		}
		if attempt < attempts {
			r.logger.Warn().
				Str("task_id", task.ID).
				Int("attempt", attempt).
				Int("attempts", attempts).
				Msg("task failed, retrying")
			r.metrics.TaskRetried(string(task.Kind))
		}
	}

	r.summarize(task, out)
	return out, r.policy.Verdict(task, out), nil
}

// attempt executes a single attempt: running marker, sink, spawn, drain,
// close, record. The fixed ordering terminate -> drain -> close sink ->
// record outcome holds on every exit path.
func (r *Runner) attempt(ctx context.Context, task Descriptor, attempt int) (Outcome, error) {
	started := time.Now().UTC()
	out := Outcome{
		Status:    StatusRunning,
		StartedAt: started,
		Target:    task.Target,
		Attempts:  attempt,
	}

	sink, err := r.sinks.Open(task.ID)
	if err != nil {
		out.Status = StatusFailed
		out.CompletedAt = time.Now().UTC()
		return out, NewInternalError("open log sink", err).WithTask(task.ID)
	}
	out.LogRef = sink.Path()

	// The running marker is what the crash-recovery rule rewrites to failed
	// if this process dies before the terminal record lands.
	if err := r.store.Record(task.ID, out); err != nil {
		_ = sink.Close()
		out.Status = StatusFailed
		out.CompletedAt = time.Now().UTC()
		return out, NewStateError("record running marker", err).WithTask(task.ID)
	}

	r.logger.Info().
		Str("task_id", task.ID).
		Str("kind", string(task.Kind)).
		Str("target", task.Target).
		Int("attempt", attempt).
		Msg("task started")
	r.metrics.TaskStarted(string(task.Kind))

	taskCtx, span := r.tracer.StartTaskSpan(ctx, r.runID, task.ID, string(task.Kind))

	execCtx := taskCtx
	cancel := context.CancelFunc(func() {})
	if d := r.policy.AttemptTimeout(task); d > 0 {
		execCtx, cancel = context.WithTimeout(taskCtx, d)
	}

	code, launchErr := r.launchers[task.Kind].Launch(execCtx, task, sink)
	cancel()

	// The launcher has terminated the process and drained its output by the
	// time it returns; finalize the artifact before recording the outcome.
	if cerr := sink.Close(); cerr != nil {
		r.logger.Warn().Err(cerr).Str("task_id", task.ID).Msg("close log sink")
	}

	completed := time.Now().UTC()
	out.CompletedAt = completed
	out.DurationSeconds = clampSeconds(started, completed)
	out.ExitCode = code

	var engineErr error
	switch {
	case launchErr != nil && IsSpawn(launchErr):
		out.Status = StatusFailed
		out.Reason = ReasonSpawn
		engineErr = launchErr
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		out.Status = StatusFailed
		out.Reason = ReasonTimeout
	case ctx.Err() != nil:
		out.Status = StatusFailed
		out.Reason = ReasonInterrupted
		engineErr = NewCanceledError("task interrupted", ctx.Err()).
			WithCode(CodeInterrupted).WithTask(task.ID)
	case launchErr != nil:
		out.Status = StatusFailed
		engineErr = NewInternalError("launcher failed", launchErr).WithTask(task.ID)
	case code == 0:
		out.Status = StatusSuccess
	default:
		out.Status = StatusFailed
	}

	// Execution history is recorded before any abort decision so a resume
	// sees accurate state.
	if err := r.store.Record(task.ID, out); err != nil && engineErr == nil {
		engineErr = NewStateError("record outcome", err).WithTask(task.ID)
	}
	r.recordAttempt(ctx, task, out, attempt)
	r.metrics.TaskCompleted(string(task.Kind), string(out.Status), out.DurationSeconds)

	if engineErr != nil || out.Status == StatusFailed {
		telemetry.RecordError(span, fmt.Errorf("task %s failed: exit=%d reason=%q", task.ID, code, out.Reason))
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()

	ev := r.logger.Info()
	if out.Status == StatusFailed {
		ev = r.logger.Error()
	}
	ev.Str("task_id", task.ID).
		Str("status", string(out.Status)).
		Int("exit_code", out.ExitCode).
		Str("reason", out.Reason).
		Float64("duration_seconds", out.DurationSeconds).
		Msg("task finished")

	return out, engineErr
}

// summarize prints the operator-facing pass/fail line that follows the live
// output of each task.
func (r *Runner) summarize(task Descriptor, out Outcome) {
	switch out.Status {
	case StatusSuccess:
		fmt.Fprintf(r.console, "=== task %s: PASS (%.1fs)\n", task.ID, out.DurationSeconds)
	case StatusFailed:
		line := fmt.Sprintf("=== task %s: FAIL (exit %d", task.ID, out.ExitCode)
		if out.Reason != "" {
			line += ", " + out.Reason
		}
		line += fmt.Sprintf(", %.1fs)", out.DurationSeconds)
		if out.LogRef != "" {
			line += " log: " + out.LogRef
		}
		fmt.Fprintln(r.console, line)
	}
}

func (r *Runner) recordAttempt(ctx context.Context, task Descriptor, out Outcome, attempt int) {
	if r.journal == nil {
		return
	}
	err := r.journal.RecordAttempt(ctx, Attempt{
		ID:              uuid.New().String(),
		RunID:           r.runID,
		TaskID:          task.ID,
		Kind:            task.Kind,
		Target:          task.Target,
		Number:          attempt,
		Status:          out.Status,
		ExitCode:        out.ExitCode,
		Reason:          out.Reason,
		StartedAt:       out.StartedAt,
		CompletedAt:     out.CompletedAt,
		DurationSeconds: out.DurationSeconds,
		LogPath:         out.LogRef,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("task_id", task.ID).Msg("journal attempt")
	}
}

// clampSeconds guards the derived duration against clock skew.
func clampSeconds(started, completed time.Time) float64 {
	d := completed.Sub(started).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
