package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumastack/routelog/internal/sync"
)

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit the day report to the remote store",
		Long: `Submit the selected day to the remote store.

On an infrastructure failure (server unreachable or 5xx) the date is
queued and retried automatically by watch mode or 'queue run'. An
authorization failure is terminal: fix the API key first.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(rootOpts, cmd)
		},
	}
	return cmd
}

func runSend(opts *RootOptions, cmd *cobra.Command) error {
	out := formatter(opts, cmd.OutOrStdout())
	a, err := openApp(opts, out)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	rec, err := a.store.LoadDay(ctx, opts.Date)
	if err != nil {
		return WrapExitError(ExitCommandError, "load day", err)
	}
	if !rec.HasDataToSend() {
		return WrapExitError(ExitCommandError, "nothing to send: no middle stop has an address or request number", nil)
	}

	res, err := a.engine.Submit(ctx, rec)
	switch {
	case err == nil:
		return out.Success(fmt.Sprintf("day %s delivered", rec.Date))
	case errors.Is(err, sync.ErrUnauthorized):
		out.Error("unauthorized", "the server rejected the API key; check ROUTELOG_API_KEY")
		return WrapExitError(ExitFailure, "unauthorized", err)
	case res.Queued:
		out.Error("queued", fmt.Sprintf("server unreachable; %s queued for automatic retry", rec.Date))
		return WrapExitError(ExitFailure, "queued", err)
	case errors.Is(err, sync.ErrSendInFlight):
		return WrapExitError(ExitCommandError, "a send for this date is already running", err)
	default:
		return WrapExitError(ExitFailure, "send failed", err)
	}
}
