package capture

// ShutdownState tracks a session's progress towards exit. States only move
// forward.
type ShutdownState int

const (
	Running ShutdownState = iota
	StopRequested
	ForceKillScheduled
	Exited
)

func (s ShutdownState) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case ForceKillScheduled:
		return "force_kill_scheduled"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// StopReason records why a stop was requested. It decides the worker's exit
// code: user stops exit 0, faults exit non-zero.
type StopReason int

const (
	StopNone StopReason = iota
	// StopUser is an interrupt, hangup, or terminate signal.
	StopUser
	// StopFault is an internal failure such as a recovered panic.
	StopFault
)

func (r StopReason) String() string {
	switch r {
	case StopUser:
		return "user"
	case StopFault:
		return "fault"
	default:
		return "none"
	}
}
