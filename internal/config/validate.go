package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"runtime"
	"strings"

	"twitchrec/internal/textutil"
)

var loginPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,25}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStreamer(); err != nil {
		return err
	}
	if err := c.validateRecorder(); err != nil {
		return err
	}
	if err := c.validateTime(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStreamer() error {
	if c.Streamer == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("streamer is required. Pass --streamer, set TWITCHREC_STREAMER, or edit %s (create with 'twitchrec config init')", defaultPath)
	}
	if !loginPattern.MatchString(c.Streamer) {
		return fmt.Errorf("streamer %q is not a valid Twitch login", c.Streamer)
	}
	return nil
}

func (c *Config) validateRecorder() error {
	substitutes := []struct {
		key   string
		value string
	}{
		{"recorder.streamer_substitute", c.Recorder.StreamerSubstitute},
		{"recorder.title_substitute", c.Recorder.TitleSubstitute},
		{"recorder.path_substitute", c.Recorder.PathSubstitute},
	}
	for _, s := range substitutes {
		if !textutil.SafeSubstitute(s.value, runtime.GOOS) {
			return fmt.Errorf("%s: %q is a path separator or reserved character", s.key, s.value)
		}
	}
	if _, ok := MuxerFor(c.Recorder.Extension); !ok {
		return fmt.Errorf("recorder.extension: unsupported value %q (expected one of %s)", c.Recorder.Extension, strings.Join(SupportedExtensions(), ", "))
	}
	return nil
}

func (c *Config) validateTime() error {
	switch c.Time.TimezoneFormat {
	case "en-GB", "en-US":
		return nil
	default:
		return fmt.Errorf("time.timezone_format: unsupported value %q (expected en-GB or en-US)", c.Time.TimezoneFormat)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateAPI() error {
	bind := strings.TrimSpace(c.API.Bind)
	if bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(bind); err != nil {
		return errors.New("api.bind must be host:port")
	}
	return nil
}
