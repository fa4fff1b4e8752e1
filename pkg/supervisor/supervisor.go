// Package supervisor runs long lived compiler and bundler processes and
// streams their output, cleaned and labelled, into the log.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	re "regexp"
	"sync"

	o "github.com/mproffitt/buildwatch/pkg/output"
	log "github.com/sirupsen/logrus"
)

// maxLineLength Longest single line of output accepted from a child
const maxLineLength = 1024 * 1024

// Options Describes one supervised process
type Options struct {
	Label        string
	Command      string
	Dir          string
	ErrorPattern *re.Regexp
	Spawner      Spawner
	Logger       log.FieldLogger
}

// Session Owns a running child and its output streams
type Session struct {
	Label   string
	Command string

	pattern *re.Regexp
	logger  log.FieldLogger
	process Process
	done    chan struct{}
	err     error
}

func (opts *Options) defaults() {
	if opts.Spawner == nil {
		opts.Spawner = ExecSpawner{}
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
}

// Start Spawns the process described by opts and begins draining its output
//
// Arguments:
//
// - ctx  context.Context Cancelling the context kills the child
// - opts Options         The process to start
//
// Return:
//
// - *Session The running session
// - error    Any error raised whilst starting the process
func Start(ctx context.Context, opts Options) (s *Session, err error) {
	opts.defaults()

	var process Process
	if process, err = opts.Spawner.Spawn(ctx, opts.Dir, opts.Command); err != nil {
		return
	}

	s = &Session{
		Label:   opts.Label,
		Command: opts.Command,
		pattern: opts.ErrorPattern,
		logger:  opts.Logger,
		process: process,
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.drain(process.Stdout(), &wg)
	go s.drain(process.Stderr(), &wg)

	go func() {
		defer close(s.done)
		wg.Wait()
		s.err = process.Wait()
		if s.err != nil {
			s.logger.Warnf("Process %s exited: %s", s.Label, s.err.Error())
			return
		}
		s.logger.Debugf("Process %s exited", s.Label)
	}()
	return
}

// Supervise Starts the process and terminates the program if it cannot be started
func Supervise(ctx context.Context, opts Options) *Session {
	opts.defaults()
	s, err := Start(ctx, opts)
	if err != nil {
		opts.Logger.Fatal(o.Error(fmt.Sprintf("Unable to start %s: %s", opts.Label, err.Error())))
		return nil
	}
	opts.Logger.Infof("Started %s: %s", opts.Label, opts.Command)
	return s
}

// ErrStart Wraps the error returned by Run when the process never started
var ErrStart = errors.New("unable to start process")

// Run Starts the process, waits for it and returns its exit code
func Run(ctx context.Context, opts Options) (code int, err error) {
	var s *Session
	if s, err = Start(ctx, opts); err != nil {
		return 1, fmt.Errorf("%w: %w", ErrStart, err)
	}
	err = s.Wait()
	code = ExitCode(err)
	return
}

// Done Closed once the child has exited and its output is drained
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait Blocks until the child exits
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

func (s *Session) drain(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		s.log(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debugf("Stopped reading output of %s - %s", s.Label, err.Error())
		// keep the pipe empty so the child does not block on a full buffer
		io.Copy(io.Discard, r)
	}
}

func (s *Session) log(chunk string) {
	for _, line := range o.Classify(chunk, s.pattern) {
		if line.Error {
			s.logger.Errorf("[%s] %s", s.Label, line.Render())
			continue
		}
		s.logger.Infof("[%s] %s", s.Label, line.Text)
	}
}
