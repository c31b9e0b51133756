package launcher

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/transports/ssh"
)

// killDrainDelay bounds how long a killed task may hold up the attempt while
// its output pipe drains. Descendants that survive the kill and keep the
// pipe open are abandoned after this delay instead of stalling the pipeline.
const killDrainDelay = 5 * time.Second

// Config carries the tool and transport settings shared by all launchers.
type Config struct {
	// Inventory is the ansible inventory passed to playbook runs.
	Inventory string `yaml:"inventory"`

	// AnsibleCfg is the ansible.cfg exported via ANSIBLE_CONFIG when set.
	AnsibleCfg string `yaml:"ansible_cfg"`

	// BuildTool is the build command for build tasks (default: make).
	BuildTool string `yaml:"build_tool"`

	// SSH carries connection defaults for remote shell targets.
	SSH ssh.Config `yaml:"ssh"`
}

// NewRegistry builds the launcher for each supported task kind.
func NewRegistry(cfg Config) map[engine.TaskKind]engine.Launcher {
	return map[engine.TaskKind]engine.Launcher{
		engine.KindPlaybook: &PlaybookLauncher{cfg: cfg},
		engine.KindShell:    &ShellLauncher{cfg: cfg},
		engine.KindBuild:    &BuildLauncher{cfg: cfg},
	}
}

// runLocal starts a local child process with combined output wired to the
// sink and returns its exit code. Start failures are classified as spawn
// errors; a non-zero exit is not an error.
func runLocal(ctx context.Context, output io.Writer, env []string, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	// The task runs in its own process group and cancellation kills the
	// whole group, not just the immediate child. Payloads like ansible
	// fork ssh workers that inherit the output pipe; killing only the
	// parent would leave them running against remote hosts and block the
	// drain until the last of them exited.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = killDrainDelay

	if err := cmd.Start(); err != nil {
		return -1, classifySpawn(name, err)
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, engine.NewInternalError("waiting for "+name, err)
}

// classifySpawn maps process start failures to spawn-class errors.
func classifySpawn(name string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return engine.NewSpawnError("executable not found: "+name, err).
			WithCode(engine.CodeSpawnFailed)
	case errors.Is(err, fs.ErrPermission):
		return engine.NewSpawnError("permission denied: "+name, err).
			WithCode(engine.CodeSpawnFailed)
	default:
		return engine.NewSpawnError("failed to start "+name, err).
			WithCode(engine.CodeSpawnFailed)
	}
}
