// Package supervisor keeps a worker process alive.
//
// Run holds a per-streamer file lock, launches the worker, and waits for it.
// A zero exit ends supervision. A non-zero exit enters the restart loop: wait
// a fixed delay, probe DNS reachability, and relaunch on success. Probe
// failures increment an attempt counter and retry after the same delay with
// no cap. A termination signal cancels any pending restart and is forwarded
// to the running worker, whose exit then ends Run.
package supervisor
