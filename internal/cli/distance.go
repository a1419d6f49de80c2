package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDistanceCommand creates the distance command.
func NewDistanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distance",
		Short: "Compute and store the day's driving distance",
		Long: `Geocode every stop of the day in order and compute the driving
distance through them. The result is written back to the record.
Every stop must have an address; geocoding results are cached so
repeated runs only pay for new addresses.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDistance(rootOpts, cmd)
		},
	}
	return cmd
}

func runDistance(opts *RootOptions, cmd *cobra.Command) error {
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

	km, err := a.geo.ComputeDay(ctx, rec)
	if err != nil {
		return WrapExitError(ExitFailure, "compute distance", err)
	}

	rec.SetDistance(km)
	if err := a.store.SaveDay(ctx, rec); err != nil {
		return WrapExitError(ExitCommandError, "save day", err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{"date": rec.Date, "distanceKm": km})
	}
	return out.Success(fmt.Sprintf("%.1f km", km))
}
