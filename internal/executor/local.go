package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/fsutil"
)

const (
	DefaultShell     = "/bin/sh"
	DefaultGrace     = 5 * time.Second
	DefaultMaxOutput = 1 << 20
)

// Local runs tasks as subprocesses of the current host.
type Local struct {
	Shell string
	// Grace is how long a terminated process tree may take to exit before
	// it is killed.
	Grace     time.Duration
	MaxOutput int
	// DryRun renders the script and reports success without running it.
	DryRun bool
}

// NewLocal returns a runner with the default shell, grace period and output
// limit.
func NewLocal(dryRun bool) *Local {
	return &Local{Shell: DefaultShell, Grace: DefaultGrace, MaxOutput: DefaultMaxOutput, DryRun: dryRun}
}

// Run implements Runner.
func (l *Local) Run(ctx context.Context, t Task) Outcome {
	logger := ctxlog.FromContext(ctx).With("job", t.Name, "attempt", t.Attempt)
	out := Outcome{ID: t.ID, Script: Script(t.Exec), Start: time.Now()}

	if l.DryRun {
		out.Output = out.Script
		out.End = out.Start
		return out
	}

	if err := prepare(t); err != nil {
		return launchFailure(out, errdefs.Run(fmt.Errorf("prepare %s: %w", t.Exec.Dir, err)))
	}

	runCtx := ctx
	if t.HardTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.HardTimeout)
		defer cancel()
	}

	buf := &boundedBuffer{max: l.MaxOutput}
	cmd := exec.Command(l.shell(), "-c", out.Script)
	cmd.Dir = t.Exec.Dir
	cmd.Env = os.Environ()
	cmd.Stdout = buf
	cmd.Stderr = buf
	cmd.WaitDelay = l.grace()
	setProcessGroup(cmd)

	logger.Debug("Executor: starting process.", "dir", t.Exec.Dir)
	if err := cmd.Start(); err != nil {
		return launchFailure(out, errdefs.Run(err))
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		if ctx.Err() != nil {
			out.Interrupted = true
		} else {
			out.HardTimeout = true
		}
		logger.Warn("Executor: terminating process tree.", "reason", context.Cause(runCtx), "pid", cmd.Process.Pid)
		waitErr = terminate(cmd, done, l.grace())
	}

	out.End = time.Now()
	out.Output = buf.String()
	out.ExitCode = exitCode(cmd, waitErr)
	logger.Debug("Executor: process exited.", "exit_code", out.ExitCode, "elapsed", out.Elapsed())
	return out
}

// RunScript runs the validation program at path from dir with input on its
// standard input and returns its exit code. The program output is discarded.
func (l *Local) RunScript(ctx context.Context, path, dir, input string) (int, error) {
	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdin = strings.NewReader(input)
	cmd.WaitDelay = l.grace()
	err := cmd.Run()
	if cmd.ProcessState == nil {
		return -1, errdefs.Run(err)
	}
	return cmd.ProcessState.ExitCode(), nil
}

func (l *Local) shell() string {
	if l.Shell == "" {
		return DefaultShell
	}
	return l.Shell
}

func (l *Local) grace() time.Duration {
	if l.Grace <= 0 {
		return DefaultGrace
	}
	return l.Grace
}

// prepare creates the working directory. A job copying its input gets a
// fresh copy of the source directory; one isolating its output gets an empty
// directory.
func prepare(t Task) error {
	dir := t.Exec.Dir
	if dir == "" {
		return nil
	}
	switch {
	case t.Attributes.CopyInput:
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		return fsutil.CopyTree(t.Exec.SrcDir, dir)
	case t.Attributes.CopyOutput:
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, 0o755)
}

// terminate sends SIGTERM to the process tree, waits up to grace for the
// shell to exit, then kills whatever is left.
func terminate(cmd *exec.Cmd, done <-chan error, grace time.Duration) error {
	signalTree(cmd, false)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		signalTree(cmd, true)
		return err
	case <-timer.C:
		signalTree(cmd, true)
		return <-done
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func launchFailure(out Outcome, err error) Outcome {
	out.End = time.Now()
	out.ExitCode = -1
	out.Err = err
	out.Output = err.Error()
	return out
}
