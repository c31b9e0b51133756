package engine

import (
	"testing"
	"time"
)

func TestPolicyAttempts(t *testing.T) {
	var p Policy

	tests := []struct {
		name string
		task Descriptor
		want int
	}{
		{"default is one attempt", Descriptor{}, 1},
		{"retry mode with bound", Descriptor{OnFailure: FailureRetry, Retries: 3}, 4},
		{"retry mode without bound", Descriptor{OnFailure: FailureRetry}, 1},
		{"retries ignored outside retry mode", Descriptor{OnFailure: FailureFail, Retries: 3}, 1},
		{"continue mode never retries", Descriptor{OnFailure: FailureContinue, Retries: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Attempts(tt.task); got != tt.want {
				t.Errorf("Attempts = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPolicyAttemptTimeout(t *testing.T) {
	var p Policy

	if got := p.AttemptTimeout(Descriptor{}); got != 0 {
		t.Errorf("unbounded task timeout = %v, want 0", got)
	}
	if got := p.AttemptTimeout(Descriptor{TimeoutSeconds: 90}); got != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", got)
	}
}

func TestPolicyVerdict(t *testing.T) {
	var p Policy

	failed := Outcome{Status: StatusFailed}
	succeeded := Outcome{Status: StatusSuccess}
	skipped := Outcome{Status: StatusSkipped}

	tests := []struct {
		name    string
		task    Descriptor
		outcome Outcome
		want    Signal
	}{
		{"required failure aborts", Descriptor{Required: true}, failed, SignalAbort},
		{"optional failure continues", Descriptor{Required: false}, failed, SignalContinue},
		{"continue mode overrides required", Descriptor{Required: true, OnFailure: FailureContinue}, failed, SignalContinue},
		{"retry exhaustion aborts when required", Descriptor{Required: true, OnFailure: FailureRetry, Retries: 2}, failed, SignalAbort},
		{"success continues", Descriptor{Required: true}, succeeded, SignalContinue},
		{"skip continues", Descriptor{Required: true}, skipped, SignalContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Verdict(tt.task, tt.outcome); got != tt.want {
				t.Errorf("Verdict = %q, want %q", got, tt.want)
			}
		})
	}
}
