package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"twitchrec/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions from the history ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "History is disabled; set history.enabled = true to record sessions")
				return nil
			}

			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No recorded sessions")
				return nil
			}

			color := shouldColorize(out)
			loc := cfg.Location()
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					s.StartedAt.In(loc).Format("2006-01-02 15:04"),
					s.Streamer,
					s.Title,
					colorize(color, outcomeLabel(s), outcomeColors(s.Outcome)),
					exitCodeLabel(s.ExitCode),
					durationLabel(s),
					pathLabel(s),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Streamer", "Title", "Outcome", "Exit", "Duration", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show (0 for all)")
	return cmd
}

func outcomeLabel(s history.Session) string {
	if s.Outcome == "" {
		return "recording"
	}
	return s.Outcome
}

func outcomeColors(outcome string) text.Colors {
	switch outcome {
	case "completed":
		return text.Colors{text.FgGreen}
	case "failed":
		return text.Colors{text.FgRed}
	case "aborted":
		return text.Colors{text.FgYellow}
	case "":
		return text.Colors{text.FgCyan}
	default:
		return nil
	}
}

func exitCodeLabel(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func durationLabel(s history.Session) string {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return "-"
	}
	return s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
}

func pathLabel(s history.Session) string {
	if s.Simulate {
		return "(simulated)"
	}
	return s.Path
}
