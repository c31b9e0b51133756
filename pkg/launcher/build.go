package launcher

import (
	"context"
	"io"

	"github.com/runbook/runbook/pkg/engine"
)

// BuildLauncher invokes a build-tool target. The task's path names the
// target; the tool itself comes from configuration and defaults to make.
type BuildLauncher struct {
	cfg Config
}

// Launch implements engine.Launcher.
func (l *BuildLauncher) Launch(ctx context.Context, task engine.Descriptor, output io.Writer) (int, error) {
	tool := l.cfg.BuildTool
	if tool == "" {
		tool = "make"
	}

	args := append([]string{task.Path}, task.Args...)
	return runLocal(ctx, output, nil, tool, args...)
}
