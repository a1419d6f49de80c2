package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lumastack/routelog/internal/day"
)

// StopOptions holds flags shared by the stop subcommands.
type StopOptions struct {
	*RootOptions
	Address       string
	Org           string
	TID           string
	Reason        string
	Status        string
	DeclineReason string
	RequestNumber string
}

// NewStopCommand creates the stop command group.
func NewStopCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Edit the day's stops",
	}
	cmd.AddCommand(newStopAddCommand(rootOpts))
	cmd.AddCommand(newStopSetCommand(rootOpts))
	cmd.AddCommand(newStopRemoveCommand(rootOpts))
	cmd.AddCommand(newStopMoveCommand(rootOpts))
	cmd.AddCommand(newStopDupCommand(rootOpts))
	return cmd
}

func newStopAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StopOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add a stop before the office return",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDay(opts.RootOptions, cmd, func(rec *day.Record) (string, error) {
				id := rec.AddMiddleStop()
				if err := applyStopFlags(cmd, rec, id, opts); err != nil {
					return "", err
				}
				return fmt.Sprintf("added stop %s", id), nil
			})
		},
	}
	stopFlags(cmd, opts)
	return cmd
}

func newStopSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StopOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "set <stop-id>",
		Short:         "Update fields of a stop",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDay(opts.RootOptions, cmd, func(rec *day.Record) (string, error) {
				if err := applyStopFlags(cmd, rec, args[0], opts); err != nil {
					return "", err
				}
				return fmt.Sprintf("updated stop %s", args[0]), nil
			})
		},
	}
	stopFlags(cmd, opts)
	return cmd
}

func newStopRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "remove <stop-id>",
		Short:         "Remove a middle stop",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDay(rootOpts, cmd, func(rec *day.Record) (string, error) {
				if !rec.RemoveStop(args[0]) {
					return "", fmt.Errorf("cannot remove stop %s: not found, an office endpoint, or the last middle stop", args[0])
				}
				return fmt.Sprintf("removed stop %s", args[0]), nil
			})
		},
	}
	return cmd
}

func newStopMoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "move <from> <to>",
		Short:         "Reorder a middle stop (positions in the full list)",
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[0])
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return mutateDay(rootOpts, cmd, func(rec *day.Record) (string, error) {
				if !rec.MoveStop(from, to) {
					return "", fmt.Errorf("cannot move %d to %d: office endpoints are fixed", from, to)
				}
				return fmt.Sprintf("moved stop %d to %d", from, to), nil
			})
		},
	}
	return cmd
}

func newStopDupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dup <stop-id>",
		Short:         "Duplicate a stop in place",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateDay(rootOpts, cmd, func(rec *day.Record) (string, error) {
				id := rec.DuplicateStop(args[0])
				if id == "" {
					return "", fmt.Errorf("cannot duplicate stop %s", args[0])
				}
				return fmt.Sprintf("duplicated as %s", id), nil
			})
		},
	}
	return cmd
}

func stopFlags(cmd *cobra.Command, opts *StopOptions) {
	cmd.Flags().StringVar(&opts.Address, "address", "", "visit address")
	cmd.Flags().StringVar(&opts.Org, "org", "", "organization name")
	cmd.Flags().StringVar(&opts.TID, "tid", "", "terminal ID")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason for visit")
	cmd.Flags().StringVar(&opts.Status, "status", "", "stop status (pending|done|declined)")
	cmd.Flags().StringVar(&opts.DeclineReason, "decline-reason", "", "why the visit was declined")
	cmd.Flags().StringVar(&opts.RequestNumber, "request", "", "service request number")
}

// applyStopFlags patches the stop with every flag the user actually set,
// so an empty flag value can still clear a field explicitly.
func applyStopFlags(cmd *cobra.Command, rec *day.Record, id string, opts *StopOptions) error {
	ok := rec.UpdateStop(id, func(s *day.Stop) {
		if cmd.Flags().Changed("address") {
			s.Address = opts.Address
		}
		if cmd.Flags().Changed("org") {
			s.Org = opts.Org
		}
		if cmd.Flags().Changed("tid") {
			s.TID = opts.TID
		}
		if cmd.Flags().Changed("reason") {
			s.Reason = opts.Reason
		}
		if cmd.Flags().Changed("status") {
			s.Status = day.NormalizeStatus(opts.Status, s.Status)
		}
		if cmd.Flags().Changed("decline-reason") {
			s.DeclineReason = opts.DeclineReason
		}
		if cmd.Flags().Changed("request") {
			s.RequestNumber = opts.RequestNumber
		}
	})
	if !ok {
		return fmt.Errorf("no stop with ID %s", id)
	}
	return nil
}

// mutateDay loads the day, applies fn, and persists the result when fn
// succeeds.
func mutateDay(opts *RootOptions, cmd *cobra.Command, fn func(*day.Record) (string, error)) error {
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
	msg, err := fn(&rec)
	if err != nil {
		return WrapExitError(ExitCommandError, err.Error(), nil)
	}
	if err := a.store.SaveDay(ctx, rec); err != nil {
		return WrapExitError(ExitCommandError, "save day", err)
	}
	if opts.Format == "json" {
		return out.Success(rec)
	}
	return out.Success(msg)
}
