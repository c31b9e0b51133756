package launcher

import (
	"context"
	"io"

	"github.com/runbook/runbook/pkg/engine"
)

// PlaybookLauncher runs ansible-playbook for playbook tasks. The task's
// target is handed to the playbook as the target_hosts extra variable, which
// lets one playbook file serve multiple host scopes.
type PlaybookLauncher struct {
	cfg Config
}

// Launch implements engine.Launcher.
func (l *PlaybookLauncher) Launch(ctx context.Context, task engine.Descriptor, output io.Writer) (int, error) {
	args := []string{}
	if l.cfg.Inventory != "" {
		args = append(args, "-i", l.cfg.Inventory)
	}
	args = append(args, task.Path)
	if task.Target != "" {
		args = append(args, "-e", "target_hosts="+task.Target)
	}
	args = append(args, task.Args...)

	env := []string{
		"ANSIBLE_HOST_KEY_CHECKING=False",
		"ANSIBLE_SSH_RETRIES=3",
		"ANSIBLE_FORCE_COLOR=true",
		// Ansible is a Python tool; unbuffered output keeps the live
		// stream live instead of arriving in page-sized bursts.
		"PYTHONUNBUFFERED=1",
	}
	if l.cfg.AnsibleCfg != "" {
		env = append(env, "ANSIBLE_CONFIG="+l.cfg.AnsibleCfg)
	}

	return runLocal(ctx, output, env, "ansible-playbook", args...)
}
