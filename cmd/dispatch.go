package cmd

import (
	"context"
	"fmt"

	"github.com/example/casualchat/internal/dispatch"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Start one execution per registered tenant now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), dispatchTimeout)
			defer cancel()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			handles, err := a.dispatcher().Dispatch(ctx)
			if err != nil {
				return err
			}
			printHandles(cmd, handles)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		accountID string
		duration  int
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Start an execution for a single tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration < 0 {
				return errors.New("--duration must not be negative")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), dispatchTimeout)
			defer cancel()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := a.dispatcher().StartOne(ctx, accountID, duration)
			if err != nil {
				return err
			}
			printHandles(cmd, []dispatch.Handle{h})
			return nil
		},
	}

	c.Flags().StringVar(&accountID, "account", "", "account id under the registry prefix")
	c.Flags().IntVar(&duration, "duration", 0, "meeting duration in minutes (0 = MEETING_DURATION_MINUTES)")
	_ = c.MarkFlagRequired("account")
	return c
}

func printHandles(cmd *cobra.Command, handles []dispatch.Handle) {
	out := cmd.OutOrStdout()
	for _, h := range handles {
		if h.Err != nil {
			fmt.Fprintf(out, "%s\tERROR\t%v\n", h.AccountID, h.Err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", h.AccountID, h.ExecutionID)
	}
}
