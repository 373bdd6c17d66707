package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Recorder contains capture and file naming settings.
type Recorder struct {
	StreamFormat       []string `toml:"stream_format" json:"stream_format" yaml:"stream_format"`
	OutputTemplate     string   `toml:"output_template" json:"output_template" yaml:"output_template"`
	Extension          string   `toml:"extension" json:"extension" yaml:"extension"`
	StreamerSubstitute string   `toml:"streamer_substitute" json:"streamer_substitute" yaml:"streamer_substitute"`
	TitleSubstitute    string   `toml:"title_substitute" json:"title_substitute" yaml:"title_substitute"`
	PathSubstitute     string   `toml:"path_substitute" json:"path_substitute" yaml:"path_substitute"`
	FFmpegBinary       string   `toml:"ffmpeg_binary" json:"ffmpeg_binary" yaml:"ffmpeg_binary"`
	GraceSeconds       int      `toml:"grace_seconds" json:"grace_seconds" yaml:"grace_seconds"`
}

// Time controls how session timestamps are rendered into file names and logs.
type Time struct {
	Timezone       string `toml:"timezone" json:"timezone" yaml:"timezone"`
	TimezoneFormat string `toml:"timezone_format" json:"timezone_format" yaml:"timezone_format"`

	location *time.Location
}

// Supervisor contains restart loop settings for the outer process.
type Supervisor struct {
	RestartDelaySeconds int    `toml:"restart_delay_seconds" json:"restart_delay_seconds" yaml:"restart_delay_seconds"`
	ProbeHost           string `toml:"probe_host" json:"probe_host" yaml:"probe_host"`
}

// Twitch contains endpoints and the public client id used by the channel API
// and push-feed clients.
type Twitch struct {
	ClientID  string `toml:"client_id" json:"client_id" yaml:"client_id"`
	GQLURL    string `toml:"gql_url" json:"gql_url" yaml:"gql_url"`
	UsherURL  string `toml:"usher_url" json:"usher_url" yaml:"usher_url"`
	PubSubURL string `toml:"pubsub_url" json:"pubsub_url" yaml:"pubsub_url"`
}

// Paths contains directories owned by twitchrec.
type Paths struct {
	LogDir string `toml:"log_dir" json:"log_dir" yaml:"log_dir"`
}

// History contains configuration for the sqlite session ledger.
type History struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" json:"ntfy_topic" yaml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
}

// API contains the optional worker status endpoint settings.
type API struct {
	Bind string `toml:"bind" json:"bind" yaml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" json:"format" yaml:"format"`
	Level  string `toml:"level" json:"level" yaml:"level"`
}

// Developer contains troubleshooting switches.
type Developer struct {
	Log        string `toml:"log" json:"log" yaml:"log"`
	Debug      bool   `toml:"debug" json:"debug" yaml:"debug"`
	Verbose    bool   `toml:"verbose" json:"verbose" yaml:"verbose"`
	Simulate   bool   `toml:"simulate" json:"simulate" yaml:"simulate"`
	DumpConfig bool   `toml:"dump_config" json:"dump_config" yaml:"dump_config"`
}

// Config encapsulates all configuration values for twitchrec.
//
// A Config is built once at startup (defaults, then file, then environment,
// then command-line overrides) and passed by pointer to every component.
// Nothing mutates it after Load returns.
type Config struct {
	Streamer      string        `toml:"streamer" json:"streamer" yaml:"streamer"`
	Recorder      Recorder      `toml:"recorder" json:"recorder" yaml:"recorder"`
	Time          Time          `toml:"time" json:"time" yaml:"time"`
	Supervisor    Supervisor    `toml:"supervisor" json:"supervisor" yaml:"supervisor"`
	Twitch        Twitch        `toml:"twitch" json:"twitch" yaml:"twitch"`
	Paths         Paths         `toml:"paths" json:"paths" yaml:"paths"`
	History       History       `toml:"history" json:"history" yaml:"history"`
	Notifications Notifications `toml:"notifications" json:"notifications" yaml:"notifications"`
	API           API           `toml:"api" json:"api" yaml:"api"`
	Logging       Logging       `toml:"logging" json:"logging" yaml:"logging"`
	Developer     Developer     `toml:"developer" json:"developer" yaml:"developer"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file without
// command-line overrides.
func Load(path string) (*Config, string, bool, error) {
	return LoadWithOverrides(path, Overrides{})
}

// LoadWithOverrides locates and parses a configuration file, applies
// environment fallbacks and the given overrides, then normalizes and
// validates the result. The returned config has all path fields expanded.
func LoadWithOverrides(path string, overrides Overrides) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env file is the common case.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	cfg.applyEnv()
	overrides.apply(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		decoder := toml.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	for _, name := range []string{"twitchrec.toml", "config.json"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories twitchrec writes into.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if c.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.History.Path), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// Location returns the time zone used for file names and log timestamps.
func (c *Config) Location() *time.Location {
	if c == nil || c.Time.location == nil {
		return time.UTC
	}
	return c.Time.location
}

// GracePeriod returns how long a stop request waits before forcing exit.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Recorder.GraceSeconds) * time.Second
}

// RestartDelay returns the fixed wait between supervisor restart attempts.
func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Supervisor.RestartDelaySeconds) * time.Second
}

// LockPath returns the per-streamer supervisor lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, strings.ToLower(c.Streamer)+".lock")
}

// FFmpegBinary returns the configured ffmpeg executable name or path.
func (c *Config) FFmpegBinary() string {
	return c.Recorder.FFmpegBinary
}

// EncodeTOML writes the effective configuration as TOML.
func (c *Config) EncodeTOML(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	return encoder.Encode(c)
}

// DumpJSON atomically writes the effective configuration as indented JSON.
func (c *Config) DumpJSON(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config dump: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
