package supervisor

import (
	"context"
	"errors"
	"io"
	"os/exec"
	re "regexp"
	"strings"
	"testing"
	"time"

	o "github.com/mproffitt/buildwatch/pkg/output"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeProcess struct {
	stdout io.Reader
	stderr io.Reader
	err    error
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }
func (p *fakeProcess) Wait() error       { return p.err }

type fakeSpawner struct {
	stdout   string
	stderr   string
	startErr error
	waitErr  error
	command  string
}

func (f *fakeSpawner) Spawn(ctx context.Context, dir, command string) (Process, error) {
	f.command = command
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeProcess{
		stdout: strings.NewReader(f.stdout),
		stderr: strings.NewReader(f.stderr),
		err:    f.waitErr,
	}, nil
}

func newLogger() (*log.Logger, *test.Hook, *int) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	var exitCode int = -1
	logger.ExitFunc = func(code int) { exitCode = code }
	return logger, hook, &exitCode
}

func labelled(hook *test.Hook, label string) (entries []*log.Entry) {
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "["+label+"] ") {
			entries = append(entries, e)
		}
	}
	return
}

func TestSuperviseLogsBothStreams(t *testing.T) {
	o.SetColorMode(o.ColorNever)
	logger, hook, exitCode := newLogger()
	spawner := &fakeSpawner{
		stdout: "10:00:00 PM - Starting compilation in watch mode...\n\nChild\n",
		stderr: "src/a.ts(1,1): error TS1005: ';' expected.\n",
	}

	s := Supervise(context.Background(), Options{
		Label:        "tsc",
		Command:      "npx tsc --watch",
		ErrorPattern: o.TypeScriptErrors,
		Spawner:      spawner,
		Logger:       logger,
	})
	if s == nil {
		t.Fatal("expected a session")
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if *exitCode != -1 {
		t.Errorf("did not expect an exit, got code %d", *exitCode)
	}
	if spawner.command != "npx tsc --watch" {
		t.Errorf("spawned %q", spawner.command)
	}

	entries := labelled(hook, "tsc")
	if len(entries) != 2 {
		t.Fatalf("expected 2 labelled lines, got %d", len(entries))
	}

	var info, errs int
	for _, e := range entries {
		switch e.Level {
		case log.InfoLevel:
			info++
			if e.Message != "[tsc] Starting compilation in watch mode..." {
				t.Errorf("unexpected info line %q", e.Message)
			}
		case log.ErrorLevel:
			errs++
			if !strings.Contains(e.Message, "error TS1005") {
				t.Errorf("unexpected error line %q", e.Message)
			}
		}
	}
	if info != 1 || errs != 1 {
		t.Errorf("expected 1 info and 1 error line, got %d and %d", info, errs)
	}
}

func TestSuperviseWithoutMatchNeverHighlights(t *testing.T) {
	logger, hook, _ := newLogger()
	s := Supervise(context.Background(), Options{
		Label:        "webpack",
		Command:      "npx webpack --watch",
		ErrorPattern: o.WebpackErrors,
		Spawner:      &fakeSpawner{stdout: "Hash: 1234\nbuilt in 20ms\n", stderr: "warning: large bundle\n"},
		Logger:       logger,
	})
	s.Wait()

	for _, e := range labelled(hook, "webpack") {
		if e.Level != log.InfoLevel {
			t.Errorf("line %q logged at %s", e.Message, e.Level)
		}
	}
}

func TestSuperviseStartFailureIsFatal(t *testing.T) {
	logger, hook, exitCode := newLogger()
	s := Supervise(context.Background(), Options{
		Label:   "tsc",
		Command: "npx tsc --watch",
		Spawner: &fakeSpawner{startErr: errors.New("exec: \"npx\": executable file not found in $PATH")},
		Logger:  logger,
	})

	if s != nil {
		t.Error("expected no session")
	}
	if *exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", *exitCode)
	}
	if n := len(labelled(hook, "tsc")); n != 0 {
		t.Errorf("expected no labelled lines, got %d", n)
	}
}

func TestSuperviseMissingExecutable(t *testing.T) {
	logger, hook, exitCode := newLogger()
	Supervise(context.Background(), Options{
		Label:   "missing",
		Command: "buildwatch-test-no-such-executable --watch",
		Logger:  logger,
	})

	if *exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", *exitCode)
	}
	if n := len(labelled(hook, "missing")); n != 0 {
		t.Errorf("expected no labelled lines, got %d", n)
	}
}

func TestSuperviseNonZeroExitIsNotFatal(t *testing.T) {
	logger, hook, exitCode := newLogger()
	s := Supervise(context.Background(), Options{
		Label:   "stylus",
		Command: "stylus -w src",
		Spawner: &fakeSpawner{stdout: "compiled out/a.css\n", waitErr: errors.New("exit status 2")},
		Logger:  logger,
	})

	if err := s.Wait(); err == nil {
		t.Error("expected wait error")
	}
	if *exitCode != -1 {
		t.Errorf("did not expect an exit, got %d", *exitCode)
	}
	if n := len(labelled(hook, "stylus")); n != 1 {
		t.Errorf("expected 1 labelled line, got %d", n)
	}
}

func TestRunReturnsExitCode(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	logger, _, _ := newLogger()

	code, err := Run(context.Background(), Options{Label: "false", Command: "false", Logger: logger})
	if err == nil {
		t.Error("expected an error")
	}
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestExecSpawnerStreamsOutput(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	logger, hook, _ := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code, err := Run(ctx, Options{
		Label:        "echo",
		Command:      `echo "ERROR: quoted words"`,
		ErrorPattern: re.MustCompile(`^ERROR`),
		Logger:       logger,
	})
	if err != nil || code != 0 {
		t.Fatalf("Run() = %d, %v", code, err)
	}

	entries := labelled(hook, "echo")
	if len(entries) != 1 {
		t.Fatalf("expected 1 line, got %d", len(entries))
	}
	if entries[0].Level != log.ErrorLevel {
		t.Errorf("expected error level, got %s", entries[0].Level)
	}
}

func TestExecSpawnerEmptyCommand(t *testing.T) {
	if _, err := (ExecSpawner{}).Spawn(context.Background(), "", "   "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("nil error should be exit code 0")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Error("unknown error should be exit code 1")
	}
}
