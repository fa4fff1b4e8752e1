package watch

import "errors"

// Op The kind of change reported by a watcher
type Op int

const (
	// Ready The initial scan is complete. Events before it describe files
	// that already existed, events after it are live changes.
	Ready Op = iota
	Add
	Change
	Unlink
	// Error A watch level failure not tied to a single file
	Error
)

func (op Op) String() string {
	switch op {
	case Ready:
		return "ready"
	case Add:
		return "add"
	case Change:
		return "change"
	case Unlink:
		return "unlink"
	case Error:
		return "error"
	}
	return "unknown"
}

// Event A single filesystem event for a matched file
type Event struct {
	Op Op

	// Path The file, relative to the watcher root when it lies under it
	Path string

	// Name The file relative to the non-glob base of the pattern it matched
	Name string

	Err error
}

// Watcher Emits events for files matched by a set of glob patterns
type Watcher interface {
	Events() <-chan Event
	Close() error
}

// ErrNoPatterns Raised when a watcher is created without patterns
var ErrNoPatterns = errors.New("at least one pattern is required")
