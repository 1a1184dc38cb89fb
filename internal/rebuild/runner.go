package rebuild

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"time"

	"al.essio.dev/pkg/shellescape"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=runner.go CommandRunner

// Command is the rebuild command. Args is executed directly, without a shell.
type Command struct {
	Args []string
	Dir  string
	Env  []string
}

// NewCommand builds a Command from configuration values. env entries are appended
// to the environment of this process in key order.
func NewCommand(args []string, dir string, env map[string]string) Command {
	cmd := Command{
		Args: slices.Clone(args),
		Dir:  dir,
	}
	for _, key := range slices.Sorted(maps.Keys(env)) {
		cmd.Env = append(cmd.Env, key+"="+env[key])
	}
	return cmd
}

// String returns the command quoted for a POSIX shell
func (c Command) String() string {
	return shellescape.QuoteCommand(c.Args)
}

// Result is the outcome of one run
type Result struct {
	// ExitCode is -1 when the process did not start or was killed by a signal
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

// CommandRunner runs a command to completion
type CommandRunner interface {
	Run(cmd Command) *Result
}

type execRunner struct{}

// NewExecRunner returns a CommandRunner backed by os/exec. The process is not tied
// to any context, so it outlives the request and the dispatcher that launched it.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

// Run starts the command and waits for it to exit
func (execRunner) Run(cmd Command) *Result {
	if len(cmd.Args) == 0 {
		return &Result{ExitCode: -1, Err: ErrRebuildDisabled}
	}

	// #nosec G204 -- argv comes from server configuration and never contains request input
	c := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()

	result := &Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}
	if err != nil {
		result.Err = fmt.Errorf("rebuild command %s failed: %w", cmd, err)
	}

	return result
}
