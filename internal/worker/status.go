package worker

import (
	"os"

	"twitchrec/internal/api"
)

// Status reports the tracker state and the active capture, if any.
func (w *Worker) Status() api.Status {
	snap := w.tracker.Snapshot()
	status := api.Status{
		Streamer:  w.cfg.Streamer,
		PID:       os.Getpid(),
		Live:      snap.Live,
		Recording: snap.Recording,
		Simulate:  w.cfg.Developer.Simulate,
	}
	if !snap.SessionStart.IsZero() {
		start := snap.SessionStart
		status.SessionStart = &start
	}
	if sess := w.current(); sess != nil {
		status.Capture = &api.CaptureStatus{
			ID:        sess.ID,
			Path:      sess.Output,
			PID:       sess.Pid(),
			State:     sess.State().String(),
			StartedAt: sess.StartedAt(),
		}
	}
	return status
}
