package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/example/casualchat/internal/executions"
	"github.com/example/casualchat/internal/workflow"
	"github.com/spf13/cobra"
)

func newExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Inspect workflow executions",
	}
	cmd.AddCommand(newExecutionsLsCmd())
	return cmd
}

func newExecutionsLsCmd() *cobra.Command {
	var (
		accountID string
		status    string
		limit     int
	)

	c := &cobra.Command{
		Use:   "ls",
		Short: "List recent executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.repo.List(cmd.Context(), executions.Filter{
				AccountID: accountID,
				Status:    workflow.Status(status),
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tACCOUNT\tSTATE\tSTATUS\tRESUME_AT\tMEETING\tERROR")
			for _, e := range list {
				meetingID := "-"
				if e.Record.Meeting != nil {
					meetingID = e.Record.Meeting.ID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.AccountID, e.State, e.Status,
					e.ResumeAt.In(a.cfg.Location).Format(time.RFC3339), meetingID, e.LastError)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&accountID, "account", "", "only this account")
	c.Flags().StringVar(&status, "status", "", "only this status (running, succeeded, failed, timed_out)")
	c.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return c
}
