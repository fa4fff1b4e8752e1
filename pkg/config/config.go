package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	re "regexp"
	"strings"
	"time"

	o "github.com/mproffitt/buildwatch/pkg/output"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// DefaultConfigFile Looked up in the working directory when no file is given
const DefaultConfigFile = "buildwatch.yaml"

// DefaultOutput Build output directory used when none is configured
const DefaultOutput = "_build"

// MaxRetries Maximum number of retries for operations
const MaxRetries = 100

// New Create a new Config object
//
// Arguments:
//
// - configFile string The full path to the config file to load
// - autoReload bool   If true, sets up watches on the config file and automatically reloads it when it changes
//
// Return:
//
// - *Config A pointer to the loaded configuration
// - error   The last error which occured during loading
func New(configFile string, autoReload bool) (c *Config, err error) {
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if configFile, err = filepath.Abs(configFile); err != nil {
		return
	}

	c = &Config{filename: configFile}
	if err = c.load(); err != nil {
		return nil, err
	}
	c.setupLogging()

	if autoReload {
		go c.watch(context.Background(), configFile)
	}
	return
}

// Parse Builds a Config from YAML. Relative paths resolve against root.
func Parse(data []byte, root string) (c *Config, err error) {
	c = &Config{}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err = c.resolve(root); err != nil {
		return nil, err
	}
	return
}

// Filename The file the config was loaded from
func (c *Config) Filename() string {
	return c.filename
}

// OnReload Registers fn to be called after every successful reload
func (c *Config) OnReload(fn func(*Config)) {
	c.Lock()
	defer c.Unlock()
	c.listeners = append(c.listeners, fn)
}

// TestSettings A copy of the test settings, safe to use during a reload
func (c *Config) TestSettings() Test {
	c.RLock()
	defer c.RUnlock()
	var t Test = c.Test
	t.Patterns = append([]string(nil), c.Test.Patterns...)
	return t
}

// Delay The quiescence window for re-runs
func (t *Test) Delay() time.Duration {
	return t.DelayInMilliseconds * time.Millisecond
}

// Initial Whether a full run happens when watching starts
func (t *Test) Initial() bool {
	return t.InitialRun == nil || *t.InitialRun
}

// Pattern The compiled error pattern, nil when none is set
func (t *Test) Pattern() *re.Regexp {
	return t.pattern
}

// Pattern The compiled error pattern, nil when none is set
func (p *Process) Pattern() *re.Regexp {
	return p.pattern
}

// UnmarshalYAML Accepts a single directory or a list
func (d *Destinations) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*d = Destinations{single}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*d = many
	return nil
}

func expandHome(path *string) {
	var p string = (*path)
	if p == "" || p[0] != '~' {
		return
	}
	if p == "~" {
		p = "~/"
	}
	if p[1] != '/' {
		p = "~/" + p[1:]
	}

	dirname, _ := os.UserHomeDir()
	*path = filepath.Join(dirname, p[2:])
}

// load Reads the file and swaps the new values in. A file that fails to
// load leaves the current values untouched.
func (c *Config) load() (err error) {
	log.Infof("Loading config file %s", c.filename)

	var f []byte
	if f, err = os.ReadFile(c.filename); err != nil {
		return
	}

	var next *Config
	if next, err = Parse(f, filepath.Dir(c.filename)); err != nil {
		return fmt.Errorf("invalid config file %s: %w", c.filename, err)
	}

	c.Lock()
	c.LogLevel = next.LogLevel
	c.Color = next.Color
	c.Root = next.Root
	c.Output = next.Output
	c.Processes = next.Processes
	c.Resources = next.Resources
	c.Test = next.Test
	c.Unlock()

	log.Info("Done loading config file")
	return
}

func (c *Config) resolve(dir string) (err error) {
	expandHome(&c.Root)
	if c.Root == "" {
		c.Root = dir
	}
	if !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(dir, c.Root)
	}

	if c.Output == "" {
		c.Output = DefaultOutput
	}
	c.Output = c.abs(c.Output)

	for i := range c.Processes {
		var p *Process = &c.Processes[i]
		if p.Dir = c.abs(p.Dir); p.Dir == "" {
			p.Dir = c.Root
		}
		if p.ErrorPattern != "" {
			if p.pattern, err = re.Compile(p.ErrorPattern); err != nil {
				return fmt.Errorf("process %s: invalid errorPattern: %w", p.Name, err)
			}
		}
	}

	for i := range c.Resources {
		var r *Resource = &c.Resources[i]
		if len(r.Destinations) == 0 {
			r.Destinations = Destinations{c.Output}
		}
		for j := range r.Destinations {
			r.Destinations[j] = c.abs(r.Destinations[j])
		}
	}

	if c.Test.Dir = c.abs(c.Test.Dir); c.Test.Dir == "" {
		c.Test.Dir = c.Root
	}
	if c.Test.ErrorPattern != "" {
		if c.Test.pattern, err = re.Compile(c.Test.ErrorPattern); err != nil {
			return fmt.Errorf("test: invalid errorPattern: %w", err)
		}
	}
	return
}

// abs Expands ~ and resolves path against the root
func (c *Config) abs(path string) string {
	expandHome(&path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

func (c *Config) setupLogging() {
	c.RLock()
	defer c.RUnlock()
	SetupLogging(c.LogLevel, c.Color)
}

// SetupLogging Applies the log level and color mode to the standard logger
func SetupLogging(level, color string) {
	var colored bool = o.SetColorMode(o.ColorMode(color))
	log.SetFormatter(&log.TextFormatter{
		DisableColors: !colored,
		ForceColors:   colored && strings.EqualFold(color, string(o.ColorAlways)),
		FullTimestamp: true,
	})

	switch strings.ToLower(level) {
	case "trace":
		log.SetReportCaller(true)
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetReportCaller(true)
		log.SetLevel(log.DebugLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
