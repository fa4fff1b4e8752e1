// Package runner re-runs a test command for each batch of changed files.
package runner

import (
	"context"
	"errors"
	"fmt"
	re "regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/mproffitt/buildwatch/pkg/desktop"
	o "github.com/mproffitt/buildwatch/pkg/output"
	s "github.com/mproffitt/buildwatch/pkg/supervisor"
	log "github.com/sirupsen/logrus"
)

// DefaultLabel Prefix for the output of test runs
const DefaultLabel = "test"

// Settings How a single run is performed. Read afresh for every run.
type Settings struct {
	Label        string
	Command      string
	Dir          string
	PassChanged  bool
	ErrorPattern *re.Regexp
	Notify       bool
}

// Notifier Receives a message when a run completes
type Notifier interface {
	Send(msg desktop.Message)
}

// Runner Runs the configured command once per batch
type Runner struct {
	settings func() Settings
	spawner  s.Spawner
	logger   log.FieldLogger
	notifier Notifier
}

// New Creates a runner. settings is called at the start of every run so
// configuration changes apply to the next batch.
func New(settings func() Settings, spawner s.Spawner, logger log.FieldLogger, notifier Notifier) *Runner {
	if spawner == nil {
		spawner = s.ExecSpawner{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Runner{
		settings: settings,
		spawner:  spawner,
		logger:   logger,
		notifier: notifier,
	}
}

// CommandFor Builds the command line for a batch
func (set Settings) CommandFor(batch []string) string {
	if !set.PassChanged || len(batch) == 0 {
		return set.Command
	}
	return set.Command + " " + shellquote.Join(batch...)
}

// Run Performs one run for the batch. An empty batch runs everything.
//
// Arguments:
//
// - ctx   context.Context Cancelling the context kills the running command
// - batch []string        The changed files
//
// Return:
//
// - error Failure to start or a non-zero exit
func (r *Runner) Run(ctx context.Context, batch []string) (err error) {
	var set Settings = r.settings()
	if set.Label == "" {
		set.Label = DefaultLabel
	}
	if strings.TrimSpace(set.Command) == "" {
		return s.ErrEmptyCommand
	}

	var (
		id      string     = uuid.New().String()
		logger  *log.Entry = r.logger.WithField("run", id[:8])
		command string     = set.CommandFor(batch)
		start   time.Time  = time.Now()
		code    int
	)
	if len(batch) > 0 {
		logger.Infof("Changed: %s", strings.Join(batch, ", "))
	}
	logger.Infof("Running %s", command)

	code, err = s.Run(ctx, s.Options{
		Label:        set.Label,
		Command:      command,
		Dir:          set.Dir,
		ErrorPattern: set.ErrorPattern,
		Spawner:      r.spawner,
		Logger:       logger,
	})

	var msg desktop.Message
	switch {
	case errors.Is(err, s.ErrStart):
		logger.Errorf("%s", o.Error(fmt.Sprintf("Unable to run %s: %s", set.Label, err.Error())))
		msg = desktop.Message{Text: fmt.Sprintf("Unable to run %s", set.Label), Failed: true}
	case err != nil:
		logger.Errorf("%s", o.Error(fmt.Sprintf("%s failed with exit code %d after %s", set.Label, code, since(start))))
		msg = desktop.Message{Text: fmt.Sprintf("%s failed (exit code %d)", set.Label, code), Failed: true}
	default:
		logger.Infof("%s passed in %s", set.Label, since(start))
		msg = desktop.Message{Text: fmt.Sprintf("%s passed", set.Label)}
	}

	if set.Notify && r.notifier != nil {
		r.notifier.Send(msg)
	}
	return
}

// Action Adapts the runner to a debounced trigger
func (r *Runner) Action(ctx context.Context) func(batch []string) {
	return func(batch []string) {
		r.Run(ctx, batch)
	}
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
