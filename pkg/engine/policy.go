package engine

import "time"

// Policy evaluates the execution rules around a single task: how many
// attempts it gets, how long an attempt may run, and whether a terminal
// failure aborts the remaining pipeline.
//
// The retry bound is the descriptor's own Retries field; there is no hidden
// default. Retries are immediate re-invocations with no backoff.
type Policy struct{}

// Attempts returns the total number of attempts the task is allowed.
func (Policy) Attempts(task Descriptor) int {
	if task.OnFailure == FailureRetry && task.Retries > 0 {
		return task.Retries + 1
	}
	return 1
}

// AttemptTimeout returns the wall-clock bound for one attempt, zero when the
// descriptor sets none.
func (Policy) AttemptTimeout(task Descriptor) time.Duration {
	return task.Timeout()
}

// Verdict maps a terminal outcome onto the pipeline-level signal.
//
// Optional tasks never abort, whatever their failure mode. Required tasks
// abort on terminal failure unless the mode is continue. Interrupts abort
// unconditionally; that path is handled by the runner before Verdict.
func (Policy) Verdict(task Descriptor, outcome Outcome) Signal {
	if outcome.Status != StatusFailed {
		return SignalContinue
	}
	if !task.Required {
		return SignalContinue
	}
	if task.OnFailure == FailureContinue {
		return SignalContinue
	}
	return SignalAbort
}
