// Package worker runs one channel watcher end to end.
//
// A Worker owns a tracker.Tracker fed by a startup poll and the push feed.
// When the tracker opens a live period the worker fetches the title, renders
// the file name, reserves a collision-free path, resolves the stream URL, and
// hands the result to the capture manager. Only one capture runs at a time.
//
// Run's return value is the worker's contract with the supervisor: nil means
// a user-requested stop (exit 0, no restart) and any error means a fault
// (non-zero exit, restart). Shutdown waits for ffmpeg to exit or for the
// grace deadline, whichever comes first.
package worker
