package naming

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"twitchrec/internal/textutil"
)

// Time display formats accepted for the :time token.
const (
	FormatGB = "en-GB"
	FormatUS = "en-US"
)

// Metadata is the per-session input to Render.
type Metadata struct {
	Streamer     string
	Title        string
	SessionStart time.Time
}

// Options controls rendering. Zero values fall back to the defaults noted on
// each field.
type Options struct {
	// Location defaults to UTC.
	Location *time.Location
	// TimeFormat is FormatGB (default) or FormatUS.
	TimeFormat string
	// StreamerSubstitute defaults to "_".
	StreamerSubstitute string
	// TitleSubstitute defaults to "-".
	TitleSubstitute string
	// PathSubstitute defaults to "-".
	PathSubstitute string
	// GOOS selects separator handling; defaults to runtime.GOOS.
	GOOS string
}

// tokenPattern lists longer tokens first so :shortYear wins over shorter
// alternatives sharing a prefix.
var tokenPattern = regexp.MustCompile(`(?i):(shortyear|streamer|period|title|month|date|time|year|day)`)

// Render substitutes every known token in tmpl and returns a path that is safe
// for the target filesystem. The extension is not added.
func Render(tmpl string, meta Metadata, opts Options) string {
	opts = opts.withDefaults()
	fields := fieldsFor(meta, opts)

	rendered := tokenPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		return fields[strings.ToLower(match[1:])]
	})
	return textutil.SanitizePath(rendered, opts.PathSubstitute, opts.GOOS)
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.TimeFormat == "" {
		o.TimeFormat = FormatGB
	}
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	// Substitutes that are themselves unsafe fall back to the defaults.
	if o.StreamerSubstitute == "" || !textutil.SafeSubstitute(o.StreamerSubstitute, o.GOOS) {
		o.StreamerSubstitute = "_"
	}
	if o.TitleSubstitute == "" || !textutil.SafeSubstitute(o.TitleSubstitute, o.GOOS) {
		o.TitleSubstitute = "-"
	}
	if o.PathSubstitute == "" || !textutil.SafeSubstitute(o.PathSubstitute, o.GOOS) {
		o.PathSubstitute = "-"
	}
	return o
}

func fieldsFor(meta Metadata, opts Options) map[string]string {
	start := meta.SessionStart
	if start.IsZero() {
		start = time.Now()
	}
	local := start.In(opts.Location)

	day := fmt.Sprintf("%02d", local.Day())
	month := fmt.Sprintf("%02d", int(local.Month()))
	year := fmt.Sprintf("%04d", local.Year())

	return map[string]string{
		"streamer":  textutil.SanitizeSegment(meta.Streamer, opts.StreamerSubstitute),
		"title":     textutil.SanitizeTitle(meta.Title, opts.TitleSubstitute),
		"date":      day + "." + month + "." + year,
		"time":      clock(local, opts.TimeFormat),
		"day":       day,
		"month":     month,
		"year":      year,
		"shortyear": year[len(year)-2:],
		"period":    Period(local),
	}
}

// Period returns "AM" for hours before noon and "PM" otherwise.
func Period(t time.Time) string {
	if t.Hour() < 12 {
		return "AM"
	}
	return "PM"
}

func clock(t time.Time, format string) string {
	if format == FormatUS {
		hour := t.Hour() % 12
		if hour == 0 {
			hour = 12
		}
		return fmt.Sprintf("%d-%02d-%02d", hour, t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d-%02d-%02d", t.Hour(), t.Minute(), t.Second())
}
