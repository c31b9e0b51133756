// Package launcher adapts task descriptors to the external tools that
// execute them: ansible-playbook for playbook tasks, a local or SSH shell
// for shell tasks, and a build tool for build tasks. Launchers stream the
// child's combined output and report the exit code; a process that could
// not be started at all surfaces as a spawn-class error instead.
package launcher
