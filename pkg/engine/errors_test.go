package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClassPredicates(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
		want bool
	}{
		{NewConfigError("bad", nil), IsConfig, true},
		{NewStateError("corrupt", nil), IsState, true},
		{NewSpawnError("missing", nil), IsSpawn, true},
		{NewCanceledError("stop", nil), IsCanceled, true},
		{NewConfigError("bad", nil), IsSpawn, false},
		{errors.New("plain"), IsConfig, false},
	}

	for i, tt := range tests {
		if got := tt.pred(tt.err); got != tt.want {
			t.Errorf("case %d: predicate = %v, want %v for %v", i, got, tt.want, tt.err)
		}
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NewSpawnError("missing", nil).WithCode(CodeSpawnFailed)
	wrapped := fmt.Errorf("attempt 1: %w", inner)

	if !IsSpawn(wrapped) {
		t.Error("IsSpawn failed on a wrapped spawn error")
	}
}

func TestErrorMessageIncludesTaskAndCause(t *testing.T) {
	cause := errors.New("no such file")
	err := NewConfigError("playbook missing", cause).WithTask("deploy-app")

	msg := err.Error()
	for _, want := range []string{"config", "playbook missing", "deploy-app", "no such file"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap chain lost the cause")
	}
}

func TestErrorIsMatchesClassAndCode(t *testing.T) {
	err := NewConfigError("denied", nil).WithCode(CodePolicyDenied)

	if !errors.Is(err, &Error{Class: ErrorClassConfig}) {
		t.Error("class-only match failed")
	}
	if !errors.Is(err, &Error{Class: ErrorClassConfig, Code: CodePolicyDenied}) {
		t.Error("class+code match failed")
	}
	if errors.Is(err, &Error{Class: ErrorClassConfig, Code: CodeStateCorrupt}) {
		t.Error("mismatched code matched")
	}
}
