// Package textutil provides the filesystem sanitization passes applied to
// recording file names.
//
// Two kinds of pass exist: segment sanitization, which is applied to a single
// untrusted value (a streamer login or a stream title) and also strips path
// separators, and path sanitization, which runs over a fully rendered path and
// leaves separators alone. Each pass takes its own substitute string so the
// caller decides how replaced characters look.
package textutil
