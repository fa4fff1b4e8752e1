// Package watch reports add, change and unlink events for files matching
// a set of glob patterns. Directories are watched recursively using
// rjeczalik/notify; matching is done with doublestar globs.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rjeczalik/notify"
	log "github.com/sirupsen/logrus"
)

// BufferSize Capacity of the raw and translated event channels
const BufferSize = 1024

// GlobWatcher A Watcher over glob patterns
type GlobWatcher struct {
	root     string
	patterns []pattern
	raw      chan notify.EventInfo
	events   chan Event
	stop     chan bool
	complete chan bool
	once     sync.Once

	// known Matched files currently present, owned by run
	known map[string]bool
}

// New Creates a watcher and starts watching immediately
//
// Arguments:
//
// - root     string   Directory relative patterns are resolved against. Empty means the working directory
// - patterns []string Glob patterns, supporting `**` and `{a,b}`
//
// Return:
//
// - *GlobWatcher The running watcher. An Add for every file already present is sent, followed by Ready
// - error        An invalid pattern or an unusable root
func New(root string, patterns []string) (w *GlobWatcher, err error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}
	if root, err = absRoot(root); err != nil {
		return
	}

	w = &GlobWatcher{
		root:     root,
		patterns: make([]pattern, 0, len(patterns)),
		raw:      make(chan notify.EventInfo, BufferSize),
		events:   make(chan Event, BufferSize),
		stop:     make(chan bool, 1),
		complete: make(chan bool, 1),
		known:    make(map[string]bool),
	}
	for _, g := range patterns {
		var p pattern
		if p, err = compile(root, g); err != nil {
			return nil, err
		}
		w.patterns = append(w.patterns, p)
	}

	go w.run()
	return
}

// Events The channel events are delivered on. It is closed after Close.
func (w *GlobWatcher) Events() <-chan Event {
	return w.events
}

// Close Stops watching. Events already delivered are not affected.
func (w *GlobWatcher) Close() error {
	w.once.Do(func() {
		w.stop <- true
		<-w.complete
	})
	return nil
}

// bases Returns the directories to watch, dropping any nested in another
func (w *GlobWatcher) bases() (bases []string) {
	for _, p := range w.patterns {
		var nested bool = false
		for i, b := range bases {
			if within(b, p.base) {
				nested = true
				break
			}
			if within(p.base, b) {
				bases[i] = p.base
				nested = true
				break
			}
		}
		if !nested {
			bases = append(bases, p.base)
		}
	}
	return
}

func within(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

func (w *GlobWatcher) run() {
	defer func() {
		notify.Stop(w.raw)
		close(w.events)
		w.complete <- true
	}()

	for _, base := range w.bases() {
		if !isDir(base) {
			w.send(Event{Op: Error, Err: fmt.Errorf("cannot watch %s: not a directory", base)})
			continue
		}
		if err := notify.Watch(filepath.Join(base, "..."), w.raw, notify.All); err != nil {
			w.send(Event{Op: Error, Err: fmt.Errorf("failed to set up watch for path %s - %w", base, err)})
			continue
		}
		log.Debugf("Watching %s", base)
	}

	var initial []Event
	for _, p := range w.patterns {
		files, err := p.scan()
		if err != nil {
			continue
		}
		for _, f := range files {
			if w.known[f] {
				continue
			}
			if ev, ok := w.event(Add, f); ok {
				w.known[f] = true
				initial = append(initial, ev)
			}
		}
	}

	for _, ev := range initial {
		if !w.send(ev) {
			return
		}
	}
	if !w.send(Event{Op: Ready}) {
		return
	}

	for {
		select {
		case ei := <-w.raw:
			for _, ev := range w.translate(ei) {
				if !w.send(ev) {
					return
				}
			}
		case <-w.stop:
			return
		}
	}
}

// send Delivers ev unless the watcher is asked to stop first
func (w *GlobWatcher) send(ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.stop:
		return false
	}
}

// event Builds an event for path if it matches one of the patterns
func (w *GlobWatcher) event(op Op, path string) (ev Event, ok bool) {
	for _, p := range w.patterns {
		var name string
		if name, ok = p.match(path); ok {
			ev = Event{Op: op, Path: relative(w.root, path), Name: name}
			return
		}
	}
	return
}

// translate Maps a raw notification onto zero or more watch events
func (w *GlobWatcher) translate(ei notify.EventInfo) (events []Event) {
	var path string = ei.Path()
	switch ei.Event() {
	case notify.Create, notify.Rename:
		if isDir(path) {
			// files moved in with a directory produce no events of their own
			walk(path, func(f string) {
				events = append(events, w.added(f)...)
			})
			return
		}
		if isFile(path) {
			return w.added(path)
		}
		return w.removed(path)
	case notify.Write:
		if !isFile(path) {
			return
		}
		if ev, ok := w.event(Change, path); ok {
			w.known[path] = true
			events = append(events, ev)
		}
	case notify.Remove:
		return w.removed(path)
	}
	return
}

func (w *GlobWatcher) added(path string) []Event {
	ev, ok := w.event(Add, path)
	if !ok {
		return nil
	}
	w.known[path] = true
	return []Event{ev}
}

// removed Unlinks path and, when path was a directory, every known file
// below it. Files moved out with a directory produce no events of their own.
func (w *GlobWatcher) removed(path string) (events []Event) {
	var gone []string
	if w.known[path] {
		gone = append(gone, path)
	}
	var prefix string = path + string(filepath.Separator)
	for f := range w.known {
		if strings.HasPrefix(f, prefix) {
			gone = append(gone, f)
		}
	}
	if len(gone) == 0 {
		gone = append(gone, path)
	}
	sort.Strings(gone)

	for _, f := range gone {
		delete(w.known, f)
		if ev, ok := w.event(Unlink, f); ok {
			events = append(events, ev)
		}
	}
	return
}
