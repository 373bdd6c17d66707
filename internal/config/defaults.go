package config

const (
	defaultConfigPath          = "~/.config/twitchrec/config.toml"
	defaultLogDir              = "~/.local/share/twitchrec"
	defaultHistoryPath         = "~/.local/share/twitchrec/history.db"
	defaultOutputTemplate      = "recordings/:shortYear.:month.:day :period -- :streamer -- :title"
	defaultStreamFormat        = "source"
	defaultExtension           = ".mp4"
	defaultStreamerSubstitute  = "_"
	defaultTitleSubstitute     = "-"
	defaultPathSubstitute      = "-"
	defaultFFmpegBinary        = "ffmpeg"
	defaultGraceSeconds        = 2
	defaultTimezone            = "Europe/London"
	defaultTimezoneFormat      = "en-GB"
	defaultRestartDelaySeconds = 1
	defaultProbeHost           = "twitch.tv"
	defaultTwitchClientID      = "kimne78kx3ncx6brgo4mv6wki5h1ko"
	defaultTwitchGQLURL        = "https://gql.twitch.tv/gql"
	defaultTwitchUsherURL      = "https://usher.ttvnw.net/api/channel/hls"
	defaultTwitchPubSubURL     = "wss://pubsub-edge.twitch.tv/v1"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultDeveloperLog        = "debug.log"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Recorder: Recorder{
			StreamFormat:       []string{defaultStreamFormat},
			OutputTemplate:     defaultOutputTemplate,
			Extension:          defaultExtension,
			StreamerSubstitute: defaultStreamerSubstitute,
			TitleSubstitute:    defaultTitleSubstitute,
			PathSubstitute:     defaultPathSubstitute,
			FFmpegBinary:       defaultFFmpegBinary,
			GraceSeconds:       defaultGraceSeconds,
		},
		Time: Time{
			Timezone:       defaultTimezone,
			TimezoneFormat: defaultTimezoneFormat,
		},
		Supervisor: Supervisor{
			RestartDelaySeconds: defaultRestartDelaySeconds,
			ProbeHost:           defaultProbeHost,
		},
		Twitch: Twitch{
			ClientID:  defaultTwitchClientID,
			GQLURL:    defaultTwitchGQLURL,
			UsherURL:  defaultTwitchUsherURL,
			PubSubURL: defaultTwitchPubSubURL,
		},
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		History: History{
			Path: defaultHistoryPath,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Developer: Developer{
			Log: defaultDeveloperLog,
		},
	}
}
