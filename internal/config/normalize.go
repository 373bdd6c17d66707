package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("TWITCHREC_STREAMER"); ok && strings.TrimSpace(value) != "" {
		c.Streamer = value
	}
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("TWITCHREC_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	if value, ok := os.LookupEnv("TWITCHREC_CLIENT_ID"); ok && strings.TrimSpace(value) != "" {
		c.Twitch.ClientID = value
	}
}

func (c *Config) normalize() error {
	c.Streamer = strings.TrimSpace(c.Streamer)
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecorder()
	if err := c.normalizeTime(); err != nil {
		return err
	}
	c.normalizeSupervisor()
	c.normalizeTwitch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	if strings.TrimSpace(c.Developer.Log) == "" {
		c.Developer.Log = defaultDeveloperLog
	}
	if c.Developer.Log, err = expandPath(c.Developer.Log); err != nil {
		return fmt.Errorf("developer.log: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecorder() {
	formats := make([]string, 0, len(c.Recorder.StreamFormat))
	seen := make(map[string]struct{}, len(c.Recorder.StreamFormat))
	for _, format := range c.Recorder.StreamFormat {
		normalized := strings.ToLower(strings.TrimSpace(format))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	if len(formats) == 0 {
		formats = []string{defaultStreamFormat}
	}
	c.Recorder.StreamFormat = formats

	if strings.TrimSpace(c.Recorder.OutputTemplate) == "" {
		c.Recorder.OutputTemplate = defaultOutputTemplate
	}
	c.Recorder.Extension = strings.ToLower(strings.TrimSpace(c.Recorder.Extension))
	if c.Recorder.Extension == "" {
		c.Recorder.Extension = defaultExtension
	}
	if !strings.HasPrefix(c.Recorder.Extension, ".") {
		c.Recorder.Extension = "." + c.Recorder.Extension
	}
	if c.Recorder.StreamerSubstitute == "" {
		c.Recorder.StreamerSubstitute = defaultStreamerSubstitute
	}
	if c.Recorder.TitleSubstitute == "" {
		c.Recorder.TitleSubstitute = defaultTitleSubstitute
	}
	if c.Recorder.PathSubstitute == "" {
		c.Recorder.PathSubstitute = defaultPathSubstitute
	}
	c.Recorder.FFmpegBinary = strings.TrimSpace(c.Recorder.FFmpegBinary)
	if c.Recorder.FFmpegBinary == "" {
		c.Recorder.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Recorder.GraceSeconds <= 0 {
		c.Recorder.GraceSeconds = defaultGraceSeconds
	}
}

func (c *Config) normalizeTime() error {
	c.Time.Timezone = strings.TrimSpace(c.Time.Timezone)
	if c.Time.Timezone == "" {
		c.Time.Timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(c.Time.Timezone)
	if err != nil {
		return fmt.Errorf("time.timezone: %w", err)
	}
	c.Time.location = loc

	c.Time.TimezoneFormat = strings.TrimSpace(c.Time.TimezoneFormat)
	if c.Time.TimezoneFormat == "" {
		c.Time.TimezoneFormat = defaultTimezoneFormat
	}
	return nil
}

func (c *Config) normalizeSupervisor() {
	if c.Supervisor.RestartDelaySeconds <= 0 {
		c.Supervisor.RestartDelaySeconds = defaultRestartDelaySeconds
	}
	c.Supervisor.ProbeHost = strings.TrimSpace(c.Supervisor.ProbeHost)
	if c.Supervisor.ProbeHost == "" {
		c.Supervisor.ProbeHost = defaultProbeHost
	}
}

func (c *Config) normalizeTwitch() {
	c.Twitch.ClientID = strings.TrimSpace(c.Twitch.ClientID)
	if c.Twitch.ClientID == "" {
		c.Twitch.ClientID = defaultTwitchClientID
	}
	c.Twitch.GQLURL = strings.TrimSpace(c.Twitch.GQLURL)
	if c.Twitch.GQLURL == "" {
		c.Twitch.GQLURL = defaultTwitchGQLURL
	}
	c.Twitch.UsherURL = strings.TrimRight(strings.TrimSpace(c.Twitch.UsherURL), "/")
	if c.Twitch.UsherURL == "" {
		c.Twitch.UsherURL = defaultTwitchUsherURL
	}
	c.Twitch.PubSubURL = strings.TrimSpace(c.Twitch.PubSubURL)
	if c.Twitch.PubSubURL == "" {
		c.Twitch.PubSubURL = defaultTwitchPubSubURL
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Developer.Verbose {
		c.Developer.Debug = true
	}
}
