package mirror

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	w "github.com/mproffitt/buildwatch/pkg/watch"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeWatcher struct {
	events chan w.Event
	closed bool
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan w.Event, 16)}
}

func (f *fakeWatcher) Events() <-chan w.Event { return f.events }
func (f *fakeWatcher) Close() error {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(b)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newMirror(t *testing.T, root string, dests ...string) (*Mirror, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	mr, err := prepare(Options{
		Root:         root,
		Patterns:     []string{"src/**/*"},
		Destinations: dests,
		Logger:       logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return mr, hook
}

func TestStartCreatesDestinations(t *testing.T) {
	dir := t.TempDir()
	fw := newFakeWatcher()
	mr, err := Start(Options{
		Root:         dir,
		Patterns:     []string{"src/**/*.styl"},
		Destinations: []string{"out/a", "out/b/c"},
		Logger:       log.New(),
		Watcher:      fw,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	for _, d := range []string{"out/a", "out/b/c"} {
		if !exists(filepath.Join(dir, d)) {
			t.Errorf("destination %s not created", d)
		}
	}
}

func TestStartValidation(t *testing.T) {
	if _, err := Start(Options{Destinations: []string{"out"}}); !errors.Is(err, w.ErrNoPatterns) {
		t.Errorf("expected ErrNoPatterns, got %v", err)
	}
	if _, err := Start(Options{Patterns: []string{"src/*"}}); !errors.Is(err, ErrNoDestinations) {
		t.Errorf("expected ErrNoDestinations, got %v", err)
	}
	if _, err := Start(Options{
		Root:         t.TempDir(),
		Patterns:     []string{"src/*"},
		Destinations: []string{"out"},
		Mode:         "not a mode",
	}); err == nil {
		t.Error("expected an invalid mode error")
	}
}

func TestHandleDefersEventsUntilReady(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.styl"), "X")
	mr, hook := newMirror(t, dir, "out")

	mr.Handle(w.Event{Op: w.Add, Path: "src/a.styl", Name: "a.styl"})
	if exists(filepath.Join(dir, "out", "a.styl")) {
		t.Error("file copied before ready")
	}

	mr.Handle(w.Event{Op: w.Ready})
	if got := readFile(t, filepath.Join(dir, "out", "a.styl")); got != "X" {
		t.Errorf("expected X, got %q", got)
	}

	var copied int
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "Copied src/a.styl") {
			copied++
		}
	}
	if copied != 1 {
		t.Errorf("expected the initial file to be copied once, got %d", copied)
	}
}

func TestHandleAddChangeUnlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "ui", "index.html")
	writeFile(t, src, "<p>one</p>")
	mr, hook := newMirror(t, dir, "out", "dist/static")

	mr.Handle(w.Event{Op: w.Ready})
	mr.Handle(w.Event{Op: w.Add, Path: "src/ui/index.html", Name: "ui/index.html"})
	for _, d := range []string{"out", "dist/static"} {
		if got := readFile(t, filepath.Join(dir, d, "ui", "index.html")); got != "<p>one</p>" {
			t.Errorf("%s: expected copy, got %q", d, got)
		}
	}

	var copied int
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "Copied src/ui/index.html -> ") {
			copied++
		}
	}
	if copied != 2 {
		t.Errorf("expected one log line per destination, got %d", copied)
	}

	writeFile(t, src, "<p>two</p>")
	mr.Handle(w.Event{Op: w.Change, Path: "src/ui/index.html", Name: "ui/index.html"})
	if got := readFile(t, filepath.Join(dir, "dist", "static", "ui", "index.html")); got != "<p>two</p>" {
		t.Errorf("expected updated copy, got %q", got)
	}

	mr.Handle(w.Event{Op: w.Unlink, Path: "src/ui/index.html", Name: "ui/index.html"})
	for _, d := range []string{"out", "dist/static"} {
		if exists(filepath.Join(dir, d, "ui", "index.html")) {
			t.Errorf("%s: copy not removed", d)
		}
	}
}

func TestHandleFailureDoesNotStopLaterEvents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "good.js"), "ok")
	mr, hook := newMirror(t, dir, "out")

	mr.Handle(w.Event{Op: w.Ready})
	mr.Handle(w.Event{Op: w.Add, Path: "src/gone.js", Name: "gone.js"})
	mr.Handle(w.Event{Op: w.Unlink, Path: "src/never.js", Name: "never.js"})
	mr.Handle(w.Event{Op: w.Add, Path: "src/good.js", Name: "good.js"})

	if got := readFile(t, filepath.Join(dir, "out", "good.js")); got != "ok" {
		t.Errorf("expected later copy to succeed, got %q", got)
	}
	for _, e := range hook.AllEntries() {
		if e.Level <= log.ErrorLevel {
			t.Errorf("per file failure escalated: %s", e.Message)
		}
	}
}

func TestHandleWatcherError(t *testing.T) {
	mr, hook := newMirror(t, t.TempDir(), "out")
	mr.Handle(w.Event{Op: w.Error, Err: errors.New("inotify limit reached")})

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel || !strings.Contains(entry.Message, "inotify limit reached") {
		t.Errorf("expected logged watcher error, got %+v", entry)
	}
}

func TestModeApplied(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "run.sh"), "#!/bin/sh\n")
	logger, _ := test.NewNullLogger()
	mr, err := prepare(Options{
		Root:         dir,
		Patterns:     []string{"src/*.sh"},
		Destinations: []string{"out"},
		Mode:         "u+x",
		Logger:       logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	mr.Handle(w.Event{Op: w.Ready})
	mr.Handle(w.Event{Op: w.Add, Path: "src/run.sh", Name: "run.sh"})

	fi, err := os.Stat(filepath.Join(dir, "out", "run.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm()&0100 == 0 {
		t.Errorf("expected owner execute bit, got %v", fi.Mode().Perm())
	}
}

func TestCopyOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.styl"), "a")
	writeFile(t, filepath.Join(dir, "src", "lib", "b.d.ts"), "b")
	writeFile(t, filepath.Join(dir, "src", "c.ts"), "c")

	logger, _ := test.NewNullLogger()
	err := Copy(Options{
		Root:         dir,
		Patterns:     []string{"src/**/*.{styl,d.ts}"},
		Destinations: []string{"_build/src"},
		Logger:       logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := readFile(t, filepath.Join(dir, "_build", "src", "a.styl")); got != "a" {
		t.Errorf("a.styl = %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "_build", "src", "lib", "b.d.ts")); got != "b" {
		t.Errorf("b.d.ts = %q", got)
	}
	if exists(filepath.Join(dir, "_build", "src", "c.ts")) {
		t.Error("c.ts should not be copied")
	}
}

func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMirrorLiveWatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	logger, hook := test.NewNullLogger()

	mr, err := Start(Options{
		Root:         dir,
		Patterns:     []string{"src/**/*.styl"},
		Destinations: []string{"out"},
		Logger:       logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	waitFor(t, func() bool {
		for _, e := range hook.AllEntries() {
			if strings.HasPrefix(e.Message, "Watching files for") {
				return true
			}
		}
		return false
	})

	writeFile(t, filepath.Join(dir, "src", "a.styl"), "X")
	out := filepath.Join(dir, "out", "a.styl")
	waitFor(t, func() bool {
		b, err := os.ReadFile(out)
		return err == nil && string(b) == "X"
	})

	if err := os.Remove(filepath.Join(dir, "src", "a.styl")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return !exists(out) })

	mr.Close()
	select {
	case <-mr.Done():
	case <-time.After(5 * time.Second):
		t.Error("mirror did not stop after close")
	}
}
