package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	w "github.com/mproffitt/buildwatch/pkg/watch"
	log "github.com/sirupsen/logrus"
	m "hg.sr.ht/~dchapes/mode"
)

// ErrRecursiveMirror A resource copies files into a location it (or another
// resource) watches
var ErrRecursiveMirror = errors.New("recursive configuration detected")

// Validate Checks the configuration for errors
//
// Besides the field checks this performs a dry run of every resource:
// each currently matched file is mapped onto its mirrored location and the
// result tested against all resource patterns. A match means the copy
// would be picked up again and mirrored forever.
//
// This is not definitive, nor perfect as files that do not exist yet
// cannot be checked, but should catch the majority of cases.
func (c *Config) Validate() (err error) {
	c.RLock()
	defer c.RUnlock()

	for _, p := range c.Processes {
		if p.Name == "" {
			return fmt.Errorf("process with command %q has no name", p.Command)
		}
		if p.Command == "" && p.Build == "" {
			return fmt.Errorf("process %s has neither a command nor a build command", p.Name)
		}
	}

	for i, r := range c.Resources {
		if len(r.Patterns) == 0 {
			return fmt.Errorf("resource %d: %w", i, w.ErrNoPatterns)
		}
		for _, p := range r.Patterns {
			if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
				return fmt.Errorf("resource %d: invalid glob pattern %q", i, p)
			}
		}
		if r.Mode != "" {
			if _, err = m.Parse(r.Mode); err != nil {
				return fmt.Errorf("resource %d: invalid mode %q: %w", i, r.Mode, err)
			}
		}
	}

	if c.Test.Command != "" {
		for _, p := range c.Test.Patterns {
			if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
				return fmt.Errorf("test: invalid glob pattern %q", p)
			}
		}
	}

	return c.dryRun()
}

func (c *Config) dryRun() error {
	var patterns []string = make([]string, 0)
	for _, r := range c.Resources {
		for _, p := range r.Patterns {
			if !filepath.IsAbs(p) {
				p = filepath.Join(c.Root, p)
			}
			patterns = append(patterns, filepath.ToSlash(p))
		}
	}

	for i, r := range c.Resources {
		events, err := w.Glob(c.Root, r.Patterns)
		if err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
		for _, ev := range events {
			for _, dest := range r.Destinations {
				var target string = filepath.ToSlash(filepath.Join(dest, ev.Name))
				log.Tracef("dry-run: %s -> %s", ev.Path, target)
				for _, p := range patterns {
					if ok, _ := doublestar.Match(p, target); ok {
						return fmt.Errorf("%w: %s is mirrored to %s which matches %s",
							ErrRecursiveMirror, ev.Path, target, p)
					}
				}
			}
		}
	}
	return nil
}
