// Package runner executes a script's entry point as a child process.
//
// Each run spawns the interpreter chosen for the entry point in its own
// process group, streams stdout and stderr line by line through two reader
// goroutines and enforces an optional wall-clock timeout and an optional
// per-stream line limit. Timeout, line limit and context cancellation all
// escalate the same way: terminate, wait for a grace period, then kill.
// No child process is left running when Run returns.
package runner
