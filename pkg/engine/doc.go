// Package engine implements the stateful task execution core of runbook.
//
// The engine runs one task at a time: it consults the state store to decide
// skip-vs-run, launches the task's child process through a kind-specific
// launcher, streams combined output into a per-task log sink, classifies the
// result under the task's execution policy, and records the outcome durably
// before reporting a pipeline-level verdict (continue or abort) to the caller.
//
// A task that ran and failed is a normal terminal outcome, not an error.
// Errors returned by the engine are reserved for faults the operator has to
// resolve before execution can make progress: malformed descriptors, policy
// denials, unreadable state, missing executables, and operator interrupts.
//
// The engine performs no dependency resolution and no multi-task concurrency;
// ordering is supplied by the caller, and each Runner assumes exclusive
// ownership of its state store for the duration of a run.
package engine
