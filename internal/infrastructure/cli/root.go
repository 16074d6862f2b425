package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/phocache/internal/app"
	"github.com/doeshing/phocache/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// Builder constructs the container once flags are parsed.
type Builder func(ctx context.Context, opts app.Options) (*app.Container, error)

// NewRootCmd wires the cobra root command.
func NewRootCmd(opts Options) *cobra.Command {
	return newRootCmd(opts, app.BuildContainer)
}

func newRootCmd(opts Options, build Builder) *cobra.Command {
	// Subcommands hold this pointer; it is filled before any of them runs.
	container := &app.Container{}

	root := &cobra.Command{
		Use:   "phocache",
		Short: "phocache - local photo history cache",
		Long:  "phocache stores captured photos with their analysis results, compressed and capped per category.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsContainer(cmd) {
				return nil
			}
			built, err := build(cmd.Context(), app.Options{
				Verbose:    opts.Verbose,
				ConfigPath: opts.ConfigPath,
				Lenient:    inspectsConfig(cmd),
			})
			if err != nil {
				return err
			}
			*container = *built
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return container.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Config file (default ~/.phocache/config.yaml, or $PHOCACHE_CONFIG)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(commands.NewHistoryCommand(container))
	root.AddCommand(commands.NewStatsCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root
}

func skipsContainer(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion", "__complete":
		return true
	default:
		return false
	}
}

// inspectsConfig reports whether cmd diagnoses the config itself and so
// must run even when the config is invalid.
func inspectsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "doctor", "config":
			return true
		}
	}
	return false
}
