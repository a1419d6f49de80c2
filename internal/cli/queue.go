package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drain the offline submission queue",
	}
	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueueRunCommand(rootOpts))
	return cmd
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List queued dates in retry order",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd.OutOrStdout())
			a, err := openApp(rootOpts, out)
			if err != nil {
				return err
			}
			defer a.Close()

			dates, err := a.store.QueuedDates(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "read queue", err)
			}
			if rootOpts.Format == "json" {
				return out.Success(dates)
			}
			if len(dates) == 0 {
				return out.Success("queue is empty")
			}
			return out.Success(strings.Join(dates, "\n"))
		},
	}
}

func newQueueRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "run",
		Short:         "Try to deliver every queued date now",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd.OutOrStdout())
			a, err := openApp(rootOpts, out)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			if err := a.engine.ProcessQueue(ctx); err != nil {
				out.Error("queue", err.Error())
				return WrapExitError(ExitFailure, "queue drain stopped", err)
			}

			left, err := a.store.QueuedDates(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "read queue", err)
			}
			if len(left) > 0 {
				// Offline probe short-circuit leaves the queue untouched.
				return out.Success(fmt.Sprintf("%d date(s) still queued", len(left)))
			}
			return out.Success("queue drained")
		},
	}
}
