package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lumastack/routelog/internal/day"
)

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change office addresses and reason templates",
	}
	cmd.AddCommand(newSettingsShowCommand(rootOpts))
	cmd.AddCommand(newSettingsSetCommand(rootOpts))
	cmd.AddCommand(newSettingsExportCommand(rootOpts))
	cmd.AddCommand(newSettingsImportCommand(rootOpts))
	return cmd
}

func newSettingsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the effective settings",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd.OutOrStdout())
			a, err := openApp(rootOpts, out)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.store.LoadSettings(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "load settings", err)
			}
			if rootOpts.Format == "json" {
				return out.Success(s)
			}
			return out.Success(renderSettings(s))
		},
	}
}

func newSettingsSetCommand(rootOpts *RootOptions) *cobra.Command {
	var start, end string
	var templates []string

	cmd := &cobra.Command{
		Use:           "set",
		Short:         "Change individual settings",
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

			s, err := a.store.LoadSettings(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "load settings", err)
			}
			if cmd.Flags().Changed("start-address") {
				s.StartAddress = start
			}
			if cmd.Flags().Changed("end-address") {
				s.EndAddress = end
			}
			if cmd.Flags().Changed("template") {
				s.ReasonTemplates = parseTemplates(templates)
			}
			if err := a.store.SaveSettings(ctx, s); err != nil {
				return WrapExitError(ExitCommandError, "save settings", err)
			}
			return out.Success("settings saved")
		},
	}

	cmd.Flags().StringVar(&start, "start-address", "", "office departure address")
	cmd.Flags().StringVar(&end, "end-address", "", "office return address")
	cmd.Flags().StringArrayVar(&templates, "template", nil,
		"reason template, 'label' or 'label=#color' (repeatable, replaces the list)")
	return cmd
}

func newSettingsExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export [file]",
		Short:         "Export settings as YAML (stdout when no file)",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd.OutOrStdout())
			a, err := openApp(rootOpts, out)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.store.LoadSettings(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "load settings", err)
			}
			body, err := yaml.Marshal(s)
			if err != nil {
				return WrapExitError(ExitCommandError, "encode settings", err)
			}
			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(args[0], body, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write file", err)
			}
			return out.Success(fmt.Sprintf("settings exported to %s", args[0]))
		},
	}
}

func newSettingsImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "import <file>",
		Short:         "Import settings from a YAML file",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd.OutOrStdout())
			a, err := openApp(rootOpts, out)
			if err != nil {
				return err
			}
			defer a.Close()

			body, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read file", err)
			}
			var s day.Settings
			if err := yaml.Unmarshal(body, &s); err != nil {
				return WrapExitError(ExitCommandError, "parse settings", err)
			}
			// Imports overlay the defaults the same way stored settings do.
			merged := day.DefaultSettings().Merge(s)
			if err := a.store.SaveSettings(cmd.Context(), merged); err != nil {
				return WrapExitError(ExitCommandError, "save settings", err)
			}
			return out.Success("settings imported")
		},
	}
}

func renderSettings(s day.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "start address: %s\n", s.StartAddress)
	fmt.Fprintf(&b, "end address:   %s\n", s.EndAddress)
	b.WriteString("reason templates:\n")
	for _, t := range s.ReasonTemplates {
		if t.Color != "" {
			fmt.Fprintf(&b, "  %s (%s)\n", t.Label, t.Color)
		} else {
			fmt.Fprintf(&b, "  %s\n", t.Label)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseTemplates converts 'label' / 'label=#color' flag values.
func parseTemplates(values []string) []day.ReasonTemplate {
	out := make([]day.ReasonTemplate, 0, len(values))
	for _, v := range values {
		label, color, found := strings.Cut(v, "=")
		t := day.ReasonTemplate{Label: strings.TrimSpace(label)}
		if found {
			t.Color = strings.TrimSpace(color)
		}
		if t.Label != "" {
			out = append(out, t)
		}
	}
	return out
}
