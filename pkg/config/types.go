package config

import (
	re "regexp"
	"sync"
	"time"
)

// Process A compiler or bundler driven by buildwatch
type Process struct {
	Name string `yaml:"name"`
	// Command Long running watch mode command line
	Command string `yaml:"command"`
	// Build One-shot command line used when not watching
	Build        string `yaml:"build"`
	ErrorPattern string `yaml:"errorPattern"`
	Dir          string `yaml:"dir"`

	pattern *re.Regexp
}

// Resource Static files mirrored into the output tree
type Resource struct {
	Patterns     []string     `yaml:"patterns"`
	Destinations Destinations `yaml:"destinations"`
	Mode         string       `yaml:"mode"`
	SkipTypes    []string     `yaml:"skipTypes"`
}

// Destinations One or more directories. A single string is accepted.
type Destinations []string

// Test The watch and re-run settings
type Test struct {
	Patterns            []string      `yaml:"patterns"`
	Command             string        `yaml:"command"`
	Dir                 string        `yaml:"dir"`
	PassChanged         bool          `yaml:"passChanged"`
	ErrorPattern        string        `yaml:"errorPattern"`
	DelayInMilliseconds time.Duration `yaml:"delayInMilliseconds"`
	Notify              bool          `yaml:"notify"`
	InitialRun          *bool         `yaml:"initialRun"`

	pattern *re.Regexp
}

// Config Global config for the application
type Config struct {
	sync.RWMutex `yaml:"-"`
	LogLevel     string     `yaml:"logLevel"`
	Color        string     `yaml:"color"`
	Root         string     `yaml:"root"`
	Output       string     `yaml:"output"`
	Processes    []Process  `yaml:"processes"`
	Resources    []Resource `yaml:"resources"`
	Test         Test       `yaml:"test"`

	filename  string
	listeners []func(*Config)
}
