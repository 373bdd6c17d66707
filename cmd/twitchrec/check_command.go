package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"twitchrec/internal/deps"
	"twitchrec/internal/supervisor"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify dependencies, network reachability, and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			ok := colorize(color, "ok", text.Colors{text.FgGreen})
			missing := colorize(color, "missing", text.Colors{text.FgRed})

			var failed bool
			rows := [][]string{}
			for _, status := range deps.Report(cfg) {
				state, detail := ok, status.Command
				if !status.Available {
					state, detail = missing, status.Detail
					if !status.Optional {
						failed = true
					}
				}
				rows = append(rows, []string{status.Name, state, detail})
			}

			probeCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			probe := supervisor.DNSProber{Host: cfg.Supervisor.ProbeHost}
			if err := probe.Probe(probeCtx); err != nil {
				rows = append(rows, []string{"DNS", colorize(color, "unreachable", text.Colors{text.FgYellow}), err.Error()})
			} else {
				rows = append(rows, []string{"DNS", ok, cfg.Supervisor.ProbeHost})
			}

			rows = append(rows,
				[]string{"Config", ok, ctx.configPath},
				[]string{"Streamer", ok, cfg.Streamer},
				[]string{"History", yesNo(cfg.History.Enabled), cfg.History.Path},
				[]string{"Notifications", yesNo(cfg.Notifications.NtfyTopic != ""), cfg.Notifications.NtfyTopic},
				[]string{"API", yesNo(cfg.API.Bind != ""), cfg.API.Bind},
			)

			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if failed {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}
}
