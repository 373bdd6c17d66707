package deps

import (
	"errors"

	"twitchrec/internal/config"
)

// CheckFFmpeg reports the ffmpeg binary the capture manager will execute.
func CheckFFmpeg(binary string) Status {
	if binary == "" {
		binary = "ffmpeg"
	}
	return CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Captures the live stream to disk",
	}})[0]
}

// ResolveFFmpeg returns the absolute path of the configured ffmpeg binary.
func ResolveFFmpeg(cfg *config.Config) (string, error) {
	status := CheckFFmpeg(cfg.FFmpegBinary())
	if !status.Available {
		return "", errors.New(status.Detail)
	}
	return status.Command, nil
}

// Report lists every external dependency for the given configuration.
func Report(cfg *config.Config) []Status {
	return []Status{CheckFFmpeg(cfg.FFmpegBinary())}
}
