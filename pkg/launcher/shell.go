package launcher

import (
	"context"
	"io"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/transports/ssh"
)

// ShellLauncher runs scripts and executables. A local target executes the
// path directly; a target of the form user@host[:port] uploads the script
// over SSH and runs it there.
type ShellLauncher struct {
	cfg Config
}

// Launch implements engine.Launcher.
func (l *ShellLauncher) Launch(ctx context.Context, task engine.Descriptor, output io.Writer) (int, error) {
	if ssh.IsRemote(task.Target) {
		return launchRemote(ctx, l.cfg.SSH, task, output)
	}
	return runLocal(ctx, output, nil, task.Path, task.Args...)
}
