package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	shellquote "github.com/kballard/go-shellquote"
)

// ErrEmptyCommand The command line did not contain a program
var ErrEmptyCommand = errors.New("empty command line")

// Process A started child process. Stdout and Stderr must be drained
// before Wait is called.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
}

// Spawner Starts a child process from a command line
type Spawner interface {
	Spawn(ctx context.Context, dir, command string) (Process, error)
}

// ExecSpawner Runs commands through os/exec. The command line is split
// with shell quoting rules but no shell is involved, so a missing
// executable is reported as a start failure.
type ExecSpawner struct {
	// Env Extra environment, appended to the current one
	Env []string
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

// Spawn Starts command in dir. Cancelling ctx kills the child.
func (e ExecSpawner) Spawn(ctx context.Context, dir, command string) (Process, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}

	var p execProcess = execProcess{cmd: cmd}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, err
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, err
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", args[0], err)
	}
	return &p, nil
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

// ExitCode Extracts the exit status from an error returned by Wait
//
// Returns 0 for a nil error and 1 when no status is available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}
