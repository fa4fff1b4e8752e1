package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	c "github.com/mproffitt/buildwatch/pkg/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "buildwatch",
	Short: "Run a project's compilers, mirror its static files and re-run its tests",
	Long: `buildwatch drives the toolchain of a project from a single YAML file.

Processes are compilers or bundlers. Their output is cleaned of timestamps
and noise, labelled, and lines matching the process errorPattern are
highlighted.

Resources are static files matched by glob patterns and mirrored into one
or more destinations, by default the output directory.

The test section names a command re-run whenever files matching its
patterns change. Changes arriving close together are collapsed into a
single run.

Examples:
  buildwatch build              # Build once
  buildwatch build --watch      # Keep the output tree built
  buildwatch watch              # Re-run tests on change
  buildwatch watch 'src/**/*'   # Re-run tests when anything under src changes
  buildwatch check              # Validate the config file`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError Carries the exit code of a failed child through cobra
type exitError struct {
	name string
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d", e.name, e.code)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", c.DefaultConfigFile, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.AddCommand(buildCmd, watchCmd, checkCmd)
}

// loadConfig Reads the config file named by --config
func loadConfig(autoReload bool) (config *c.Config, err error) {
	if _, err = os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file must exist: %w", err)
	}

	if config, err = c.New(configFile, autoReload); err != nil {
		return nil, fmt.Errorf("config file is invalid: %w", err)
	}

	if logLevel != "" {
		c.SetupLogging(logLevel, config.Color)
		config.OnReload(func(config *c.Config) {
			c.SetupLogging(logLevel, config.Color)
		})
	}
	log.Debug(fmt.Sprintf("%+v", config))
	return
}

// interrupted Delivers SIGINT or SIGTERM
func interrupted() <-chan os.Signal {
	var sigc chan os.Signal = make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	return sigc
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		log.Fatal(err)
	}
}
