package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd, _ := buildRootCommand()
	return cmd
}

func buildRootCommand() (*cobra.Command, *commandContext) {
	flags := &flagValues{}

	rootCmd := &cobra.Command{
		Use:           "twitchrec",
		Short:         "Record a Twitch channel whenever it goes live",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	ctx := newCommandContext(flags, rootCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if shouldSkipConfig(cmd) {
			return nil
		}
		_, err := ctx.ensureConfig()
		return err
	}
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runSupervisor(cmd, ctx)
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVarP(&flags.streamer, "streamer", "s", "", "Twitch login to watch")
	pf.StringVarP(&flags.format, "format", "f", "", "Quality preference list, e.g. 1080p60/720p/source")
	pf.StringVarP(&flags.outputTemplate, "output-template", "o", "", "Output path template")
	pf.StringVar(&flags.timezone, "tz", "", "IANA time zone for :date and :time tokens")
	pf.StringVar(&flags.timezoneFormat, "tz-format", "", "Clock style for :time (en-GB or en-US)")
	pf.StringVar(&flags.log, "log", "", "Debug log file path")
	pf.BoolVar(&flags.debug, "debug", false, "Mirror debug output into the debug log")
	pf.BoolVar(&flags.verbose, "verbose", false, "Log raw push frames (implies --debug)")
	pf.BoolVar(&flags.simulate, "simulate", false, "Run capture without writing files")
	pf.BoolVar(&flags.dumpConfig, "dump-config", false, "Write config_dump.json and exit")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newNotifyCommand(ctx))

	return rootCmd, ctx
}
