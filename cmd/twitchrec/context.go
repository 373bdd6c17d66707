package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"twitchrec/internal/config"
)

// flagValues backs the persistent flags shared by every command.
type flagValues struct {
	config         string
	streamer       string
	format         string
	outputTemplate string
	timezone       string
	timezoneFormat string
	log            string
	debug          bool
	verbose        bool
	simulate       bool
	dumpConfig     bool
}

type commandContext struct {
	flags *flagValues
	root  *cobra.Command

	configOnce sync.Once
	config     *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(flags *flagValues, root *cobra.Command) *commandContext {
	return &commandContext{flags: flags, root: root}
}

// overrides converts the flags the user actually set into config overrides.
func (c *commandContext) overrides() config.Overrides {
	var o config.Overrides
	changed := func(name string) bool {
		f := c.root.PersistentFlags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("streamer") {
		o.Streamer = &c.flags.streamer
	}
	if changed("format") {
		o.StreamFormat = &c.flags.format
	}
	if changed("output-template") {
		o.OutputTemplate = &c.flags.outputTemplate
	}
	if changed("tz") {
		o.Timezone = &c.flags.timezone
	}
	if changed("tz-format") {
		o.TimezoneFormat = &c.flags.timezoneFormat
	}
	if changed("log") {
		o.Log = &c.flags.log
	}
	if changed("debug") {
		o.Debug = &c.flags.debug
	}
	if changed("verbose") {
		o.Verbose = &c.flags.verbose
	}
	if changed("simulate") {
		o.Simulate = &c.flags.simulate
	}
	if changed("dump-config") {
		o.DumpConfig = &c.flags.dumpConfig
	}
	return o
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, resolved, exists, err := config.LoadWithOverrides(strings.TrimSpace(c.flags.config), c.overrides())
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// workerArgs renders the flags a supervised worker needs to rebuild the same
// configuration.
func (c *commandContext) workerArgs() []string {
	var args []string
	if path := strings.TrimSpace(c.flags.config); path != "" {
		args = append(args, "--config="+path)
	}
	return append(args, c.overrides().Args()...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
