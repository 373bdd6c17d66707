package capture

// Outcome classifies how a capture session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means a stop was requested while the channel was live; a
	// partial file may exist.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed means ffmpeg died on its own while the channel was live; a
	// partial file may exist.
	OutcomeFailed Outcome = "failed"
	// OutcomeUnclassified covers exits after the channel already went offline
	// that were not clean completions.
	OutcomeUnclassified Outcome = "unclassified"
)

// Classify maps an ffmpeg exit to an Outcome. exiting reports whether a stop
// had been requested before the exit, live whether the channel was still live.
func Classify(exitCode int, exiting, live bool) Outcome {
	if exitCode == 0 {
		switch {
		case !exiting:
			return OutcomeCompleted
		case live:
			return OutcomeAborted
		default:
			return OutcomeUnclassified
		}
	}
	switch {
	case live && !exiting:
		return OutcomeFailed
	case live && exiting:
		return OutcomeAborted
	default:
		return OutcomeUnclassified
	}
}

// PartialFile reports whether the outcome may have left an incomplete recording.
func (o Outcome) PartialFile() bool {
	return o == OutcomeAborted || o == OutcomeFailed
}
