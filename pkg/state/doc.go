// Package state persists task outcomes between invocations. The store is a
// single JSON document replaced atomically on every write, which is what
// makes reruns resumable: a recorded success survives crashes and is never
// re-executed.
package state
