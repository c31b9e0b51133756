// Package logsink provides per-task log artifacts. Each task writes to a
// deterministic file under a configured directory, optionally mirrored to a
// console writer so operators see output as it is produced.
package logsink
