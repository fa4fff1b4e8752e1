package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	c "github.com/mproffitt/buildwatch/pkg/config"
	"github.com/mproffitt/buildwatch/pkg/mirror"
	o "github.com/mproffitt/buildwatch/pkg/output"
	s "github.com/mproffitt/buildwatch/pkg/supervisor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// LockFile Created in the output directory while a watch build owns it
const LockFile = ".buildwatch.lock"

// ErrLocked Another watch build owns the output directory
var ErrLocked = errors.New("output directory is locked by another watcher")

var buildWatch bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the project once, or keep it built with --watch",
	Long: `Without --watch every process build command is run to completion in
turn, then every resource is copied once. The first failing process stops
the build and its exit code becomes the exit code of buildwatch.

With --watch every process command is started and supervised, and every
resource is mirrored until interrupted. A process that cannot be started
is fatal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var config *c.Config
		if config, err = loadConfig(false); err != nil {
			return
		}
		if err = config.Validate(); err != nil {
			return
		}

		if buildWatch {
			return watchBuild(cmd.Context(), config)
		}
		return build(cmd.Context(), config)
	},
}

func init() {
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "Keep watching after the initial build")
}

func resourceOptions(config *c.Config, r c.Resource) mirror.Options {
	return mirror.Options{
		Root:         config.Root,
		Patterns:     r.Patterns,
		Destinations: []string(r.Destinations),
		Mode:         r.Mode,
		SkipTypes:    r.SkipTypes,
		Logger:       log.StandardLogger(),
	}
}

// build Runs every build command then copies every resource once
func build(ctx context.Context, config *c.Config) (err error) {
	for _, p := range config.Processes {
		if p.Build == "" {
			log.Debugf("Process %s has no build command", p.Name)
			continue
		}

		log.Infof("Building %s: %s", p.Name, p.Build)
		var code int
		code, err = s.Run(ctx, s.Options{
			Label:        p.Name,
			Command:      p.Build,
			Dir:          p.Dir,
			ErrorPattern: p.Pattern(),
		})
		if errors.Is(err, s.ErrStart) {
			log.Error(o.Error(err.Error()))
			return exitError{name: p.Name, code: code}
		}
		if err != nil {
			log.Error(o.Error(fmt.Sprintf("%s failed with exit code %d", p.Name, code)))
			return exitError{name: p.Name, code: code}
		}
	}

	for _, r := range config.Resources {
		if err = mirror.Copy(resourceOptions(config, r)); err != nil {
			return fmt.Errorf("copying %s: %w", strings.Join(r.Patterns, ", "), err)
		}
	}

	log.Info("Done building")
	return nil
}

// watchBuild Supervises every process and mirrors every resource until interrupted
func watchBuild(ctx context.Context, config *c.Config) (err error) {
	if err = os.MkdirAll(config.Output, 0755); err != nil {
		return
	}

	var (
		lock   *flock.Flock = flock.New(filepath.Join(config.Output, LockFile))
		locked bool
	)
	if locked, err = lock.TryLock(); err != nil {
		return fmt.Errorf("locking %s: %w", config.Output, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, config.Output)
	}
	defer lock.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sessions []*s.Session
		mirrors  []*mirror.Mirror
	)
	shutdown := func() {
		for _, mr := range mirrors {
			mr.Close()
		}
		cancel()
		for _, session := range sessions {
			session.Wait()
		}
	}

	for _, p := range config.Processes {
		if p.Command == "" {
			continue
		}
		var session *s.Session = s.Supervise(ctx, s.Options{
			Label:        p.Name,
			Command:      p.Command,
			Dir:          p.Dir,
			ErrorPattern: p.Pattern(),
		})
		if session != nil {
			sessions = append(sessions, session)
		}
	}

	for _, r := range config.Resources {
		var mr *mirror.Mirror
		if mr, err = mirror.Start(resourceOptions(config, r)); err != nil {
			shutdown()
			return fmt.Errorf("mirroring %s: %w", strings.Join(r.Patterns, ", "), err)
		}
		mirrors = append(mirrors, mr)
	}

	var sig os.Signal = <-interrupted()
	log.Infof("Received %s, shutting down", sig)
	shutdown()
	log.Info("Done")
	return nil
}
