package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/runbook/runbook/pkg/engine"
)

const denyUnboundedRemote = `
package runbook

deny contains msg if {
	input.kind == "shell"
	input.target != ""
	input.timeout_seconds == 0
	msg := sprintf("remote shell task %s must set a timeout", [input.id])
}
`

func loadGate(t *testing.T, policies map[string]string) *Gate {
	t.Helper()
	dir := t.TempDir()
	for name, src := range policies {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	g, err := Load(context.Background(), dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return g
}

func TestGateDeniesMatchingTask(t *testing.T) {
	g := loadGate(t, map[string]string{"remote.rego": denyUnboundedRemote})

	err := g.Check(context.Background(), engine.Descriptor{
		ID: "risky", Kind: engine.KindShell,
		Target: "deploy@web01", Path: "./run.sh",
	})
	if err == nil {
		t.Fatal("gate admitted a task the policy denies")
	}
	if !engine.IsConfig(err) {
		t.Errorf("error = %v, want config class", err)
	}
	var e *engine.Error
	if errors.As(err, &e) && e.Code != engine.CodePolicyDenied {
		t.Errorf("code = %q, want %q", e.Code, engine.CodePolicyDenied)
	}
}

func TestGateAdmitsCompliantTask(t *testing.T) {
	g := loadGate(t, map[string]string{"remote.rego": denyUnboundedRemote})

	err := g.Check(context.Background(), engine.Descriptor{
		ID: "bounded", Kind: engine.KindShell,
		Target: "deploy@web01", Path: "./run.sh", TimeoutSeconds: 300,
	})
	if err != nil {
		t.Errorf("gate denied a compliant task: %v", err)
	}
}

func TestNilGateAdmitsEverything(t *testing.T) {
	var g *Gate
	err := g.Check(context.Background(), engine.Descriptor{
		ID: "anything", Kind: engine.KindShell, Path: "./x.sh",
	})
	if err != nil {
		t.Errorf("nil gate denied a task: %v", err)
	}
}

func TestLoadMissingDirectoryYieldsNilGate(t *testing.T) {
	g, err := Load(context.Background(), "/nonexistent/policies", zerolog.Nop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if g != nil {
		t.Error("missing policy directory yielded a non-nil gate")
	}
}

func TestLoadEmptyDirectoryYieldsNilGate(t *testing.T) {
	g, err := Load(context.Background(), t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if g != nil {
		t.Error("empty policy directory yielded a non-nil gate")
	}
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("not rego at all {"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), dir, zerolog.Nop())
	if !engine.IsConfig(err) {
		t.Errorf("error = %v, want config class", err)
	}
}
