package capture

import (
	"path/filepath"

	"twitchrec/internal/config"
)

const defaultMuxer = "mp4"

// Args returns the ffmpeg argument list for url. The output muxer follows the
// output file extension. In simulate mode the stream is read at full speed
// into the null muxer and output is ignored.
func Args(url, output string, simulate bool) []string {
	if simulate {
		return []string{
			"-hide_banner",
			"-loglevel", "quiet",
			"-n",
			"-i", url,
			"-c", "copy",
			"-f", "null",
			"-",
		}
	}
	muxer, ok := config.MuxerFor(filepath.Ext(output))
	if !ok {
		muxer = defaultMuxer
	}
	return []string{
		"-hide_banner",
		"-loglevel", "quiet",
		"-n",
		// Pace input at its native rate.
		"-re",
		"-i", url,
		"-c", "copy",
		"-f", muxer,
		output,
	}
}
