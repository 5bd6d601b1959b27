package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every subcommand, grounded on the
// teacher's RootOptions (internal/cli/root.go): one struct threaded
// through via closures rather than package globals.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	Chdir   string // -C
}

// ValidFormats enumerates the allowed --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the n2go root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "n2go",
		Short:         "n2go - an incremental, Ninja-compatible build engine",
		Long:          "n2go drives a build graph to completion, rebuilding only what staleness analysis says changed.",
		SilenceErrors: true, // runBuild already reports failures through Formatter
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose (debug) logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "summary output format (text|json)")
	cmd.PersistentFlags().StringVarP(&opts.Chdir, "chdir", "C", "", "change to this directory before building")

	cmd.AddCommand(NewBuildCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
