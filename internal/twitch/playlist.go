package twitch

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// sourceGroup is the media group Twitch uses for the original feed.
const sourceGroup = "chunked"

// Variant is one rendition from the master playlist.
type Variant struct {
	// Group is the VIDEO group id, e.g. "chunked" or "720p60".
	Group string
	// Name is the human label, e.g. "1080p60 (source)".
	Name string
	URL  string
}

// ParseMasterPlaylist extracts variants from an HLS master playlist.
func ParseMasterPlaylist(body string) ([]Variant, error) {
	names := map[string]string{}
	var variants []Variant
	var pendingGroup string
	var pending bool

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			if group := attrs["GROUP-ID"]; group != "" {
				names[group] = attrs["NAME"]
			}
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			pendingGroup = attrs["VIDEO"]
			pending = true
		case strings.HasPrefix(line, "#"):
			continue
		case pending:
			variants = append(variants, Variant{Group: pendingGroup, Name: names[pendingGroup], URL: line})
			pending = false
			pendingGroup = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan master playlist: %w", err)
	}
	if len(variants) == 0 {
		return nil, errors.New("master playlist has no variants")
	}
	return variants, nil
}

// SelectVariant returns the first variant matching preferences in order.
// "source" and "best" select the original feed; other values match a group id
// or a variant name, ignoring case and a trailing "(source)" marker.
func SelectVariant(variants []Variant, preferences []string) (Variant, error) {
	for _, pref := range preferences {
		pref = strings.ToLower(strings.TrimSpace(pref))
		if pref == "" {
			continue
		}
		for _, v := range variants {
			if matchesQuality(v, pref) {
				return v, nil
			}
		}
	}
	return Variant{}, fmt.Errorf("%w: wanted %s", ErrQualityUnavailable, strings.Join(preferences, "/"))
}

func matchesQuality(v Variant, pref string) bool {
	group := strings.ToLower(v.Group)
	if pref == "source" || pref == "best" {
		return group == sourceGroup
	}
	if group == pref {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(v.Name))
	name = strings.TrimSpace(strings.TrimSuffix(name, "(source)"))
	return name == pref
}

// parseAttributes splits an HLS attribute list, honouring quoted values.
func parseAttributes(list string) map[string]string {
	attrs := map[string]string{}
	var key strings.Builder
	var value strings.Builder
	inKey, quoted := true, false

	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[k] = value.String()
		}
		key.Reset()
		value.Reset()
		inKey = true
	}

	for _, r := range list {
		switch {
		case inKey && r == '=':
			inKey = false
		case inKey:
			key.WriteRune(r)
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			flush()
		default:
			value.WriteRune(r)
		}
	}
	flush()
	return attrs
}
