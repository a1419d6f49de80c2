// Package cli wires the routelog commands: day inspection and editing,
// distance computation, sending, queue management, settings, and the
// unattended watch mode.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumastack/routelog/internal/day"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Date    string // the day being worked on; defaults to today
	DBPath  string // overrides ROUTELOG_DB

	cfg Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the routelog root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "routelog",
		Short: "Field technician day log",
		Long: "Track a day's visit stops, compute the travel distance and submit\n" +
			"the report to the remote store, with offline queueing and a\n" +
			"scheduled end-of-day auto-send.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Date == "" {
				opts.Date = time.Now().Format(day.DateLayout)
			}
			if _, err := time.Parse(day.DateLayout, opts.Date); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", opts.Date)
			}

			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if opts.DBPath != "" {
				cfg.DBPath = opts.DBPath
			}
			opts.cfg = cfg

			level := cfg.LogLevel
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Date, "date", "", "day to operate on (YYYY-MM-DD, default today)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database path (default from ROUTELOG_DB)")

	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewStopCommand(opts))
	cmd.AddCommand(NewDistanceCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewSettingsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
