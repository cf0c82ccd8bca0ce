package subprocess

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs a prepared command to completion. Run is the production implementation;
// tests substitute fakes that emulate ffmpeg's outputs.
type Runner func(ctx context.Context, cmd *exec.Cmd) error

// ExitError is returned when a command fails, carrying the tail of its stderr
type ExitError struct {
	Err    error
	Stderr []string
}

func (e *ExitError) Error() string {
	if len(e.Stderr) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Stderr[len(e.Stderr)-1])
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// StderrTail returns the captured stderr of err, if it came from Run
func StderrTail(err error) string {
	var e *ExitError
	if errors.As(err, &e) {
		return strings.Join(e.Stderr, "\n")
	}
	return ""
}

// Run starts cmd in its own process group and waits for it. When ctx is done the whole
// group is killed, so encoders that fork helpers don't outlive the job.
func Run(ctx context.Context, cmd *exec.Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	setProcessGroup(cmd)

	keep := &tail{}
	drain, err := LogOutputs(ctx, cmd, keep)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			killProcessGroup(cmd)
		case <-done:
		}
	}()

	drain()
	err = cmd.Wait()
	if ctx.Err() != nil {
		return fmt.Errorf("%s killed: %w", cmd.Path, ctx.Err())
	}
	if err != nil {
		return &ExitError{Err: err, Stderr: keep.get()}
	}
	return nil
}
