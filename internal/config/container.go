package config

import (
	"slices"
	"strings"
)

// containerMuxers maps recording file extensions to the ffmpeg muxer that
// writes them.
var containerMuxers = map[string]string{
	".mp4": "mp4",
	".mkv": "matroska",
	".ts":  "mpegts",
	".flv": "flv",
	".mov": "mov",
}

// MuxerFor returns the ffmpeg muxer for a file extension such as ".mkv".
func MuxerFor(ext string) (string, bool) {
	muxer, ok := containerMuxers[strings.ToLower(ext)]
	return muxer, ok
}

// SupportedExtensions lists the accepted recorder.extension values.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(containerMuxers))
	for ext := range containerMuxers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}
