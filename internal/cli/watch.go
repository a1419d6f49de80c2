package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumastack/routelog/internal/day"
	"github.com/lumastack/routelog/internal/schedule"
	"github.com/lumastack/routelog/internal/sync"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	PollInterval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run unattended: auto-send at the cutoff and retry the queue",
		Long: `Run in the foreground until interrupted. Three things happen on
their own:

  - today's record is submitted automatically once the cutoff time
    passes (default ` + schedule.DefaultCutoff + `, ROUTELOG_CUTOFF to change);
  - the offline queue is drained when connectivity returns;
  - SIGUSR1 forces an immediate queue drain.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.PollInterval, "poll", sync.DefaultMonitorInterval,
		"connectivity poll interval")
	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd.OutOrStdout())
	a, err := openApp(opts.RootOptions, out)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	log := slog.Default()

	cutoff, err := schedule.ParseTimeOfDay(opts.cfg.Cutoff)
	if err != nil {
		return WrapExitError(ExitCommandError, "cutoff", err)
	}

	sched := schedule.NewScheduler(nil, cutoff,
		schedule.SenderFunc(func(ctx context.Context, rec day.Record) error {
			_, err := a.engine.Submit(ctx, rec)
			return err
		}), log)
	defer sched.Stop()

	monitor := sync.NewMonitor(a.engine, opts.PollInterval)
	monitor.Start(ctx)
	defer monitor.Stop()

	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGUSR1)
	defer signal.Stop(wake)

	// Re-arm the scheduler for the current record and follow date
	// rollover past midnight.
	refresh := func() error {
		date := time.Now().Format(day.DateLayout)
		rec, err := a.store.LoadDay(ctx, date)
		if err != nil {
			return err
		}
		sched.Update(ctx, rec)
		return nil
	}
	if err := refresh(); err != nil {
		return WrapExitError(ExitCommandError, "load day", err)
	}
	if err := a.engine.ProcessQueue(ctx); err != nil {
		log.Warn("initial queue drain failed", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching; auto-send at %02d:%02d, Ctrl-C to stop\n",
		cutoff.Hour, cutoff.Minute)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
			log.Info("wake signal received, draining queue")
			if err := a.engine.ProcessQueue(ctx); err != nil {
				log.Warn("queue drain failed", "error", err)
			}
		case <-ticker.C:
			if err := refresh(); err != nil {
				log.Warn("refresh failed", "error", err)
			}
		}
	}
}
