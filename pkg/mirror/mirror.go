// Package mirror keeps one or more output directories in sync with the
// files matched by a set of glob patterns.
package mirror

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mproffitt/buildwatch/pkg/mime"
	o "github.com/mproffitt/buildwatch/pkg/output"
	w "github.com/mproffitt/buildwatch/pkg/watch"
	log "github.com/sirupsen/logrus"
	m "hg.sr.ht/~dchapes/mode"
)

// ErrNoDestinations Raised when a mirror has nowhere to copy to
var ErrNoDestinations = errors.New("at least one destination is required")

// Options Describes what to mirror and where
type Options struct {
	// Root Directory relative patterns and destinations are resolved against
	Root         string
	Patterns     []string
	Destinations []string

	// Mode Optional symbolic mode applied to every copy, e.g. "a+x"
	Mode string

	// SkipTypes Content types never copied
	SkipTypes []string

	Logger log.FieldLogger

	// Watcher Overrides the glob watcher created from Patterns
	Watcher w.Watcher
}

// Mirror A running mirror. Close stops watching.
type Mirror struct {
	patterns     []string
	destinations []string
	root         string
	skip         []string
	set          *m.Set
	logger       log.FieldLogger
	watcher      w.Watcher
	ready        bool
	initial      []w.Event
	done         chan struct{}
}

func prepare(opts Options) (mr *Mirror, err error) {
	if len(opts.Patterns) == 0 {
		return nil, w.ErrNoPatterns
	}
	if len(opts.Destinations) == 0 {
		return nil, ErrNoDestinations
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Root == "" {
		opts.Root = "."
	}

	mr = &Mirror{
		patterns: opts.Patterns,
		root:     opts.Root,
		skip:     opts.SkipTypes,
		logger:   opts.Logger,
		watcher:  opts.Watcher,
		done:     make(chan struct{}),
	}
	if mr.set, err = parseMode(opts.Mode); err != nil {
		return nil, fmt.Errorf("invalid mode %q: %w", opts.Mode, err)
	}

	for _, d := range opts.Destinations {
		if !filepath.IsAbs(d) {
			d = filepath.Join(opts.Root, d)
		}
		if err = os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("creating destination %s: %w", d, err)
		}
		mr.destinations = append(mr.destinations, d)
	}
	return
}

// Start Creates every destination directory and begins mirroring
//
// Arguments:
//
// - opts Options The patterns to watch and the destinations to copy into
//
// Return:
//
// - *Mirror The running mirror
// - error   Missing patterns or destinations, an invalid mode or a watch that could not be created
func Start(opts Options) (mr *Mirror, err error) {
	if mr, err = prepare(opts); err != nil {
		return
	}

	if mr.watcher == nil {
		if mr.watcher, err = w.New(mr.root, mr.patterns); err != nil {
			return nil, err
		}
	}

	go mr.dispatch()
	return
}

// Copy Mirrors every currently matched file once, without watching
func Copy(opts Options) (err error) {
	var mr *Mirror
	if mr, err = prepare(opts); err != nil {
		return
	}

	var events []w.Event
	if events, err = w.Glob(mr.root, mr.patterns); err != nil {
		return
	}
	mr.ready = true
	for _, ev := range events {
		mr.Handle(ev)
	}
	return
}

// Close Stops watching. Copies already in flight may still complete.
func (mr *Mirror) Close() error {
	return mr.watcher.Close()
}

// Done Closed once the watcher has stopped delivering events
func (mr *Mirror) Done() <-chan struct{} {
	return mr.done
}

func (mr *Mirror) dispatch() {
	defer close(mr.done)
	for ev := range mr.watcher.Events() {
		mr.Handle(ev)
	}
}

// Handle Applies a single watch event to every destination
//
// File events that arrive before Ready describe the initial scan. They are
// held back and replayed through the same add path once Ready is seen.
func (mr *Mirror) Handle(ev w.Event) {
	switch ev.Op {
	case w.Ready:
		mr.ready = true
		mr.logger.Infof("Watching files for %s => %s", mr.patterns[0], strings.Join(mr.destinations, ", "))
		for _, initial := range mr.initial {
			mr.Handle(initial)
		}
		mr.initial = nil
	case w.Error:
		mr.logger.Errorf("%s Watcher error: %v", o.Error(o.ErrorPrefix), ev.Err)
	case w.Add, w.Change, w.Unlink:
		if !mr.ready {
			mr.initial = append(mr.initial, ev)
			return
		}
		if ev.Op == w.Unlink {
			mr.removeAll(ev)
			return
		}
		mr.copyAll(ev)
	}
}

func (mr *Mirror) source(ev w.Event) string {
	if filepath.IsAbs(ev.Path) {
		return ev.Path
	}
	return filepath.Join(mr.root, ev.Path)
}

func (mr *Mirror) copyAll(ev w.Event) {
	var source string = mr.source(ev)
	if mime.Skip(source, mr.skip) {
		mr.logger.Debugf("Skipping %s", ev.Path)
		return
	}

	for _, dir := range mr.destinations {
		if err := pcopy(source, filepath.Join(dir, ev.Name), mr.set); err != nil {
			mr.logger.Warnf("Unable to copy %s -> %s - %s", ev.Path, dir, err.Error())
			continue
		}
		mr.logger.Infof("Copied %s -> %s", ev.Path, dir)
	}
}

func (mr *Mirror) removeAll(ev w.Event) {
	for _, dir := range mr.destinations {
		var path string = filepath.Join(dir, ev.Name)
		if err := premove(path); err != nil {
			mr.logger.Debugf("Unable to remove %s - %s", path, err.Error())
			continue
		}
		mr.logger.Infof("Removed %s", path)
	}
}
