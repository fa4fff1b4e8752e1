package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	c "github.com/mproffitt/buildwatch/pkg/config"
	"github.com/mproffitt/buildwatch/pkg/debounce"
	"github.com/mproffitt/buildwatch/pkg/desktop"
	o "github.com/mproffitt/buildwatch/pkg/output"
	r "github.com/mproffitt/buildwatch/pkg/runner"
	w "github.com/mproffitt/buildwatch/pkg/watch"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrNoTestCommand Raised when watching without a test command configured
var ErrNoTestCommand = errors.New("no test command configured")

var (
	watchDelay time.Duration
	noInitial  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [patterns...]",
	Short: "Re-run the test command whenever watched files change",
	Long: `Watches the test patterns, or the patterns given as arguments, and runs
the test command once for every burst of changes. With passChanged the
changed files are appended to the command line.

The config file is reloaded when it changes. New settings apply to the
next run.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDelay, "delay", 0, "Quiescence window before a run, overrides delayInMilliseconds")
	watchCmd.Flags().BoolVar(&noInitial, "no-initial", false, "Skip the full run at start")
}

// testSettings Maps the current test config onto runner settings
func testSettings(config *c.Config) r.Settings {
	var t c.Test = config.TestSettings()
	return r.Settings{
		Label:        r.DefaultLabel,
		Command:      t.Command,
		Dir:          t.Dir,
		PassChanged:  t.PassChanged,
		ErrorPattern: t.Pattern(),
		Notify:       t.Notify,
	}
}

func runWatch(cmd *cobra.Command, args []string) (err error) {
	var config *c.Config
	if config, err = loadConfig(true); err != nil {
		return
	}
	config.OnReload(func(*c.Config) {
		log.Info("Configuration reloaded, changes apply to the next run")
	})

	var settings c.Test = config.TestSettings()
	if strings.TrimSpace(settings.Command) == "" {
		return ErrNoTestCommand
	}

	var patterns []string = settings.Patterns
	if len(args) > 0 {
		patterns = args
	}
	if len(patterns) == 0 {
		return fmt.Errorf("test: %w", w.ErrNoPatterns)
	}

	var delay time.Duration = settings.Delay()
	if cmd.Flags().Changed("delay") {
		delay = watchDelay
	}

	// started on the first notification so a reload can enable it
	var notifier *desktop.Lazy = desktop.NewLazy(desktop.New)
	defer notifier.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var run *r.Runner = r.New(func() r.Settings {
		return testSettings(config)
	}, nil, log.StandardLogger(), notifier)

	if settings.Initial() && !noInitial {
		run.Run(ctx, nil)
	}

	config.RLock()
	var root string = config.Root
	config.RUnlock()

	var watcher *w.GlobWatcher
	if watcher, err = w.New(root, patterns); err != nil {
		return
	}
	defer watcher.Close()

	var trigger *debounce.Trigger = debounce.New(delay, run.Action(ctx))
	err = dispatch(watcher.Events(), trigger, patterns, interrupted())
	cancel()
	trigger.Stop()
	return
}

// dispatch Feeds live changes into the trigger until interrupted or the
// watcher stops
func dispatch(events <-chan w.Event, trigger *debounce.Trigger, patterns []string, stop <-chan os.Signal) error {
	var ready bool = false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Op {
			case w.Ready:
				ready = true
				log.Infof("Watching %s", strings.Join(patterns, ", "))
			case w.Add, w.Change:
				if ready {
					log.Debugf("%s %s", ev.Op, ev.Path)
					trigger.Changed(ev.Path)
				}
			case w.Unlink:
				log.Debugf("%s %s", ev.Op, ev.Path)
			case w.Error:
				log.Errorf("%s Watcher error: %v", o.Error(o.ErrorPrefix), ev.Err)
			}
		case sig := <-stop:
			log.Infof("Received %s, shutting down", sig)
			return nil
		}
	}
}
