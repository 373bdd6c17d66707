// Package main hosts the twitchrec CLI entrypoint and command graph.
//
// `twitchrec run` (also the default command) holds the per-streamer lock and
// supervises a worker. The worker is the same binary re-executed through the
// hidden `worker` subcommand with the caller's flags forwarded. The remaining
// commands are local utilities: configuration scaffolding, a dependency
// check, the recording history ledger, and a notification test.
package main
