// Package capture runs the ffmpeg subprocess that writes one recording.
//
// A Manager spawns ffmpeg in its own process group with a control pipe on
// stdin. Each Session walks a one-way shutdown state machine: a stop request
// sends ffmpeg its "q" quit command and arms a grace timer, and if the process
// is still running when the timer fires its whole group is killed. Repeated
// stop requests are ignored. Once ffmpeg exits, Classify turns the exit code,
// the stop flag, and the channel's live state into an Outcome for logging.
package capture
