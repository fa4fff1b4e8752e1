package main

import (
	"fmt"
	"io"
	"strings"

	c "github.com/mproffitt/buildwatch/pkg/config"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file and show what it resolves to",
	Long: `Loads and validates the config file, including a dry run of every
resource to detect copies that would be mirrored again, then prints the
resolved processes, resources and test settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var config *c.Config
		if config, err = loadConfig(false); err != nil {
			return
		}
		if err = config.Validate(); err != nil {
			return
		}
		describe(cmd.OutOrStdout(), config)
		return nil
	},
}

func describe(out io.Writer, config *c.Config) {
	fmt.Fprintf(out, "root:   %s\n", config.Root)
	fmt.Fprintf(out, "output: %s\n", config.Output)

	for _, p := range config.Processes {
		fmt.Fprintf(out, "\nprocess %s\n", p.Name)
		if p.Command != "" {
			fmt.Fprintf(out, "  command:      %s\n", p.Command)
		}
		if p.Build != "" {
			fmt.Fprintf(out, "  build:        %s\n", p.Build)
		}
		fmt.Fprintf(out, "  dir:          %s\n", p.Dir)
		if p.ErrorPattern != "" {
			fmt.Fprintf(out, "  errorPattern: %s\n", p.ErrorPattern)
		}
	}

	for i, r := range config.Resources {
		fmt.Fprintf(out, "\nresource %d\n", i)
		fmt.Fprintf(out, "  patterns:     %s\n", strings.Join(r.Patterns, ", "))
		fmt.Fprintf(out, "  destinations: %s\n", strings.Join(r.Destinations, ", "))
		if r.Mode != "" {
			fmt.Fprintf(out, "  mode:         %s\n", r.Mode)
		}
		if len(r.SkipTypes) > 0 {
			fmt.Fprintf(out, "  skipTypes:    %s\n", strings.Join(r.SkipTypes, ", "))
		}
	}

	var t c.Test = config.TestSettings()
	if t.Command == "" {
		return
	}
	fmt.Fprintf(out, "\ntest\n")
	fmt.Fprintf(out, "  command:      %s\n", t.Command)
	fmt.Fprintf(out, "  patterns:     %s\n", strings.Join(t.Patterns, ", "))
	fmt.Fprintf(out, "  dir:          %s\n", t.Dir)
	fmt.Fprintf(out, "  delay:        %s\n", t.Delay())
	fmt.Fprintf(out, "  passChanged:  %t\n", t.PassChanged)
	fmt.Fprintf(out, "  initialRun:   %t\n", t.Initial())
}
