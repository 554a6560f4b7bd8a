// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/partnerform/internal/calllog"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List recorded extraction attempts",
	Long: `History reads the extraction attempt log configured with --calllog
(calllog.path). Only metadata is logged: provider, outcome, parse phase,
response size and duration. Form values are never stored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.CallLog.Path == "" {
			return fmt.Errorf("no call log file configured: pass --calllog or set calllog.path")
		}
		l, err := calllog.Open(cfg.CallLog)
		if err != nil {
			return err
		}
		defer l.Close()

		var sessionID string
		if len(args) == 1 {
			sessionID = args[0]
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		attempts, err := l.List(ctx, sessionID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(attempts) == 0 {
			fmt.Fprintln(out, "No attempts recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSESSION\tPROVIDER\tMODEL\tOUTCOME\tPHASE\tBYTES\tDURATION")
		for _, a := range attempts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				a.StartedAt.Local().Format("2006-01-02 15:04:05"), shortID(a.SessionID),
				a.Provider, a.Model, a.Outcome, a.ParsePhase, a.RawBytes, a.Duration)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		counts, err := l.Counts(ctx, sessionID)
		if err != nil {
			return err
		}
		outcomes := make([]string, 0, len(counts))
		for k := range counts {
			outcomes = append(outcomes, k)
		}
		sort.Strings(outcomes)
		fmt.Fprintf(out, "\n%d attempts:", len(attempts))
		for _, k := range outcomes {
			fmt.Fprintf(out, " %s=%d", k, counts[k])
		}
		fmt.Fprintln(out)
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
