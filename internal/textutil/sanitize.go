package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// segmentUnsafe matches characters that may not appear in a single file name
// segment on any supported filesystem.
var segmentUnsafe = regexp.MustCompile(`[/\\?%*:|"<>]`)

// pathUnsafe matches characters that are unsafe in a rendered path on every
// platform. Separators are not included.
var pathUnsafe = regexp.MustCompile(`[?%*:|"<>]`)

// posixUnsafe extends pathUnsafe with characters that are legal on POSIX
// filesystems but awkward in shells.
var posixUnsafe = regexp.MustCompile("[!?%*:;|\"'<>`\x00]")

// driveLetter matches a Windows drive prefix whose colon was replaced.
var driveLetter = regexp.MustCompile(`^([A-Za-z])-\\`)

// SanitizeSegment replaces separators and filesystem-reserved characters in
// value with substitute. Control characters are dropped.
func SanitizeSegment(value, substitute string) string {
	value = stripControl(value)
	return segmentUnsafe.ReplaceAllLiteralString(value, substitute)
}

// SanitizeTitle NFC-normalizes a free-form title before sanitizing it as a
// segment, so visually identical titles produce identical file names.
func SanitizeTitle(title, substitute string) string {
	title = norm.NFC.String(strings.TrimSpace(title))
	return SanitizeSegment(title, substitute)
}

// SanitizePath normalizes separators for goos and replaces any remaining
// unsafe characters in the rendered path with substitute.
func SanitizePath(path, substitute, goos string) string {
	if goos == "windows" {
		path = strings.ReplaceAll(path, "/", `\`)
		path = pathUnsafe.ReplaceAllLiteralString(path, substitute)
		if substitute == "-" {
			path = driveLetter.ReplaceAllString(path, `${1}:\`)
		}
		return path
	}
	path = strings.ReplaceAll(path, `\`, "/")
	return posixUnsafe.ReplaceAllLiteralString(path, substitute)
}

// ContainsUnsafe reports whether path still holds a character that
// SanitizePath would replace for goos.
func ContainsUnsafe(path, goos string) bool {
	if goos == "windows" {
		rest := path
		if len(rest) >= 2 && rest[1] == ':' {
			rest = rest[2:]
		}
		return pathUnsafe.MatchString(rest)
	}
	return posixUnsafe.MatchString(path)
}

// SafeSubstitute reports whether sub can stand in for a reserved character
// without itself producing a separator or a character ContainsUnsafe flags.
func SafeSubstitute(sub, goos string) bool {
	if strings.IndexFunc(sub, isControl) >= 0 {
		return false
	}
	return !segmentUnsafe.MatchString(sub) && !ContainsUnsafe(sub, goos)
}

func stripControl(value string) string {
	if strings.IndexFunc(value, isControl) < 0 {
		return value
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, value)
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
