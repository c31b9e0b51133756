package launcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/transports/ssh"
)

// launchRemote runs a shell task on the host named by the task target. The
// script is uploaded to a unique path under /tmp, executed with the task's
// args, and removed afterwards. Connection and upload failures are spawn
// errors: the tool never started.
func launchRemote(ctx context.Context, base ssh.Config, task engine.Descriptor, output io.Writer) (int, error) {
	cfg, err := ssh.ParseTarget(task.Target, base)
	if err != nil {
		return -1, engine.NewConfigError("invalid shell target", err).
			WithCode(engine.CodeInvalidDescriptor)
	}

	client, err := ssh.Dial(cfg)
	if err != nil {
		return -1, engine.NewSpawnError("connecting to "+cfg.Address(), err).
			WithCode(engine.CodeSpawnFailed)
	}
	defer client.Close()

	remotePath := fmt.Sprintf("/tmp/runbook-%s.sh", uuid.NewString())
	if err := client.Upload(task.Path, remotePath, 0o755); err != nil {
		return -1, engine.NewSpawnError("uploading script to "+cfg.Host, err).
			WithCode(engine.CodeSpawnFailed)
	}
	defer client.Remove(remotePath) //nolint:errcheck

	command := remotePath
	if len(task.Args) > 0 {
		command += " " + strings.Join(quoteArgs(task.Args), " ")
	}

	return client.Run(ctx, command, output)
}

// quoteArgs single-quotes each arg for the remote shell.
func quoteArgs(args []string) []string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return quoted
}
