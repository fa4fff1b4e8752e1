package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// pattern A glob resolved against the watcher root
type pattern struct {
	glob string
	// base is the absolute, non-glob directory prefix of the glob
	base string
	// rest is the remainder of the glob below base
	rest string
}

func compile(root, glob string) (p pattern, err error) {
	var abs string = filepath.ToSlash(glob)
	if !filepath.IsAbs(glob) {
		abs = filepath.ToSlash(root) + "/" + strings.TrimPrefix(abs, "./")
	}
	if !doublestar.ValidatePattern(abs) {
		err = fmt.Errorf("invalid glob pattern %q", glob)
		return
	}

	// notify reports clean paths, so `..` in the base must be resolved
	base, rest := doublestar.SplitPattern(abs)
	base = path.Clean(base)
	abs = base
	if rest != "" {
		abs = strings.TrimSuffix(base, "/") + "/" + rest
	}

	p = pattern{
		glob: abs,
		base: filepath.FromSlash(base),
		rest: rest,
	}
	return
}

// match Tests the absolute path against the pattern and returns the path
// relative to the pattern base
func (p pattern) match(path string) (name string, ok bool) {
	var slashed string = filepath.ToSlash(path)
	if matched, _ := doublestar.Match(p.glob, slashed); !matched {
		return
	}
	rel, err := filepath.Rel(p.base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	return rel, true
}

// scan Lists the regular files currently matching the pattern
func (p pattern) scan() (files []string, err error) {
	files = make([]string, 0)
	if _, err = os.Stat(p.base); err != nil {
		return
	}

	var matches []string
	if matches, err = doublestar.Glob(os.DirFS(p.base), p.rest); err != nil {
		return
	}
	for _, m := range matches {
		var path string = filepath.Join(p.base, filepath.FromSlash(m))
		if isFile(path) {
			files = append(files, path)
		}
	}
	return
}

// Glob Lists files matching the patterns relative to root
//
// Arguments:
//
// - root     string   Directory relative patterns are resolved against. Empty means the working directory
// - patterns []string Glob patterns, supporting `**` and `{a,b}`
//
// Return:
//
// - []Event An Add event per matched file, in pattern order, without duplicates
// - error   The first invalid pattern or scan failure
func Glob(root string, patterns []string) (events []Event, err error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}
	if root, err = absRoot(root); err != nil {
		return
	}

	var seen map[string]bool = make(map[string]bool)
	for _, g := range patterns {
		var (
			p     pattern
			files []string
		)
		if p, err = compile(root, g); err != nil {
			return
		}
		if files, err = p.scan(); err != nil {
			if os.IsNotExist(err) {
				err = nil
				continue
			}
			return
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			name, ok := p.match(f)
			if !ok {
				continue
			}
			events = append(events, Event{Op: Add, Path: relative(root, f), Name: name})
		}
	}
	return
}

func absRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	// notify reports paths with symlinks resolved
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

func relative(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// walk Calls fn for every regular file below dir
func walk(dir string, fn func(path string)) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			fn(path)
		}
		return nil
	})
}
