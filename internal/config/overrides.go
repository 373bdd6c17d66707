package config

import "strings"

// Overrides carries command-line values that take precedence over the
// configuration file. Nil fields leave the loaded value untouched.
type Overrides struct {
	Streamer       *string
	StreamFormat   *string
	OutputTemplate *string
	Timezone       *string
	TimezoneFormat *string
	Log            *string
	Debug          *bool
	Verbose        *bool
	Simulate       *bool
	DumpConfig     *bool
}

func (o Overrides) apply(c *Config) {
	if o.Streamer != nil {
		c.Streamer = *o.Streamer
	}
	if o.StreamFormat != nil {
		c.Recorder.StreamFormat = SplitFormats(*o.StreamFormat)
	}
	if o.OutputTemplate != nil {
		c.Recorder.OutputTemplate = *o.OutputTemplate
	}
	if o.Timezone != nil {
		c.Time.Timezone = *o.Timezone
	}
	if o.TimezoneFormat != nil {
		c.Time.TimezoneFormat = *o.TimezoneFormat
	}
	if o.Log != nil {
		c.Developer.Log = *o.Log
	}
	if o.Debug != nil {
		c.Developer.Debug = *o.Debug
	}
	if o.Verbose != nil {
		c.Developer.Verbose = *o.Verbose
	}
	if o.Simulate != nil {
		c.Developer.Simulate = *o.Simulate
	}
	if o.DumpConfig != nil {
		c.Developer.DumpConfig = *o.DumpConfig
	}
}

// SplitFormats parses a quality preference list such as "1080p60/720p/source".
func SplitFormats(value string) []string {
	parts := strings.Split(value, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Args renders the overrides back into worker command-line flags so the
// supervisor can hand the same settings to each worker it launches.
func (o Overrides) Args() []string {
	var args []string
	addString := func(flag string, value *string) {
		if value != nil {
			args = append(args, "--"+flag+"="+*value)
		}
	}
	addBool := func(flag string, value *bool) {
		if value != nil {
			if *value {
				args = append(args, "--"+flag)
			} else {
				args = append(args, "--"+flag+"=false")
			}
		}
	}
	addString("streamer", o.Streamer)
	addString("format", o.StreamFormat)
	addString("output-template", o.OutputTemplate)
	addString("tz", o.Timezone)
	addString("tz-format", o.TimezoneFormat)
	addString("log", o.Log)
	addBool("debug", o.Debug)
	addBool("verbose", o.Verbose)
	addBool("simulate", o.Simulate)
	return args
}
