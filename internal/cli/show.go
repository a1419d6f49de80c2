package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/wire"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Remote bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the day record",
		Long: `Show the stops, distance and send status for the selected day.

With --remote the record is read from the remote store instead of the
local database, which is the only way to inspect a day submitted from
another machine.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "read the day from the remote store")
	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd.OutOrStdout())
	a, err := openApp(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if opts.Remote {
		p, ok := a.engine.FetchDay(ctx, opts.Date)
		if !ok {
			return WrapExitError(ExitFailure, fmt.Sprintf("no remote record for %s", opts.Date), nil)
		}
		if opts.Format == "json" {
			return out.Success(p)
		}
		return out.Success(renderPayload(p))
	}

	rec, err := a.store.LoadDay(ctx, opts.Date)
	if err != nil {
		return WrapExitError(ExitCommandError, "load day", err)
	}
	if opts.Format == "json" {
		return out.Success(rec)
	}
	return out.Success(renderRecord(rec))
}

func renderRecord(rec day.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %.1f km  sent=%v\n", rec.Date, rec.DistanceKm, rec.Sent)
	for i, s := range rec.Stops {
		fmt.Fprintf(&b, "  %-10s [%s] %s", stopLabel(i, len(rec.Stops)), wire.StatusLabel(s.Status), s.Address)
		if s.Org != "" {
			fmt.Fprintf(&b, " / %s", s.Org)
		}
		if s.Reason != "" {
			fmt.Fprintf(&b, " (%s)", s.Reason)
		}
		if s.Status == day.StatusDeclined && s.DeclineReason != "" {
			fmt.Fprintf(&b, " отказ: %s", s.DeclineReason)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPayload(p wire.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %.1f km  sent=%v (remote)\n", p.Date, p.DistanceKm, p.Sent)
	for i, s := range p.Stops {
		fmt.Fprintf(&b, "  %-10s [%s] %s", stopLabel(i, len(p.Stops)), s.Status, s.Address)
		if s.Org != "" {
			fmt.Fprintf(&b, " / %s", s.Org)
		}
		if s.RejectReason != "" {
			fmt.Fprintf(&b, " отказ: %s", s.RejectReason)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
