package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/runbook/runbook/pkg/telemetry"
)

// RunPipeline executes the pipeline's tasks in order, one at a time,
// stopping at the first abort verdict. The result always reflects every
// task that was reached, including the one that aborted; tasks after the
// abort point are not touched.
func (r *Runner) RunPipeline(ctx context.Context, p Pipeline) (*PipelineResult, error) {
	result := &PipelineResult{
		RunID:     r.runID,
		Name:      p.Name,
		StartedAt: time.Now().UTC(),
	}

	r.metrics.PipelineStarted()
	defer r.metrics.PipelineFinished()

	pipeCtx, span := r.tracer.StartPipelineSpan(ctx, r.runID, p.Name)
	defer span.End()

	var runErr error
	for i, task := range p.Tasks {
		fmt.Fprintf(r.console, "\n=== task %s (%d/%d)\n", task.ID, i+1, len(p.Tasks))

		out, sig, err := r.Run(pipeCtx, task)
		result.Tasks = append(result.Tasks, TaskResult{TaskID: task.ID, Outcome: out, Signal: sig})

		if err != nil {
			result.FirstAborted = task.ID
			runErr = err
			break
		}
		if sig == SignalAbort {
			result.FirstAborted = task.ID
			break
		}
	}

	result.CompletedAt = time.Now().UTC()
	result.Passed = result.FirstAborted == ""

	succeeded, failed, skipped := result.Summary()
	if result.Passed {
		fmt.Fprintf(r.console, "\n=== pipeline %s: PASS (%d succeeded, %d failed, %d skipped)\n",
			p.Name, succeeded, failed, skipped)
		telemetry.RecordSuccess(span)
	} else {
		fmt.Fprintf(r.console, "\n=== pipeline %s: FAIL at task %s (%d succeeded, %d failed, %d skipped)\n",
			p.Name, result.FirstAborted, succeeded, failed, skipped)
		telemetry.RecordError(span, fmt.Errorf("pipeline aborted at task %s", result.FirstAborted))
	}

	r.logger.Info().
		Str("pipeline", p.Name).
		Bool("passed", result.Passed).
		Str("first_aborted", result.FirstAborted).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("skipped", skipped).
		Msg("pipeline finished")

	return result, runErr
}
