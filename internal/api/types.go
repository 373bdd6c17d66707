package api

import "time"

// Status is the transport representation of the worker state.
type Status struct {
	Streamer     string         `json:"streamer"`
	PID          int            `json:"pid"`
	Live         bool           `json:"live"`
	Recording    bool           `json:"recording"`
	SessionStart *time.Time     `json:"sessionStart,omitempty"`
	Simulate     bool           `json:"simulate"`
	Capture      *CaptureStatus `json:"capture,omitempty"`
}

// CaptureStatus describes the ffmpeg session currently attached to the worker.
type CaptureStatus struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	PID       int       `json:"pid"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
}

// StatusSource supplies status snapshots to the server.
type StatusSource interface {
	Status() Status
}

// StatusFunc adapts a function to StatusSource.
type StatusFunc func() Status

// Status implements StatusSource.
func (f StatusFunc) Status() Status { return f() }
