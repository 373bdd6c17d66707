package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"twitchrec/internal/config"
	"twitchrec/internal/logging"
	"twitchrec/internal/supervisor"
	"twitchrec/internal/worker"
)

const configDumpFile = "config_dump.json"

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the channel and record while it is live (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd, ctx)
		},
	}
}

func runSupervisor(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Developer.DumpConfig {
		return dumpConfig(cmd, cfg)
	}

	logger, err := supervisorLogger(cfg)
	if err != nil {
		return err
	}
	launcher, err := supervisor.NewExecLauncher(ctx.workerArgs()...)
	if err != nil {
		return err
	}
	sup, err := supervisor.New(cfg, logger, supervisor.WithLauncher(launcher))
	if err != nil {
		return err
	}
	return sup.Run(cmd.Context())
}

func dumpConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.DumpJSON(configDumpFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote effective configuration to %s\n", configDumpFile)
	return nil
}

// supervisorLogger writes to stdout only; the debug log file belongs to the
// worker, which truncates it on every start.
func supervisorLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Location: cfg.Location(),
	})
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run a single worker in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			w, err := worker.New(cfg, logger)
			if err != nil {
				logging.ErrorWithContext(logger, "worker setup failed", "worker_setup_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run `twitchrec check` to verify dependencies"),
				)
				return &exitCodeError{code: 1, err: err}
			}
			defer w.Close()
			if err := w.Run(cmd.Context()); err != nil {
				return &exitCodeError{code: worker.ExitCode(err), err: err}
			}
			return nil
		},
	}
}
