package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	// defaultCommandTimeout bounds a command run when the definition sets none.
	defaultCommandTimeout = 30 * time.Second

	// killGracePeriod is how long a process gets to exit after SIGTERM
	// before it is forcibly killed.
	killGracePeriod = 5 * time.Second
)

// runCommand executes one substituted command attempt, capturing output.
// Exit code zero is success; a non-zero exit or a timeout fails the attempt.
func runCommand(ctx context.Context, act *CommandAction, vars map[string]any) (stdout, stderr string, err error) {
	if act == nil {
		return "", "", fmt.Errorf("command action not configured")
	}
	name := Substitute(act.Command, vars)
	if name == "" {
		return "", "", fmt.Errorf("command action has no command")
	}
	args := make([]string, len(act.Args))
	for i, a := range act.Args {
		args[i] = Substitute(a, vars)
	}

	timeout := defaultCommandTimeout
	if act.TimeoutMS > 0 {
		timeout = time.Duration(act.TimeoutMS) * time.Millisecond
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	// Terminate gracefully first; CommandContext falls back to SIGKILL
	// after WaitDelay if the process ignores the signal.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGracePeriod

	runErr := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if runErr == nil {
		return stdout, stderr, nil
	}
	if cctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, fmt.Errorf("command timed out after %v", timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = strings.TrimSpace(stdout)
		}
		if msg != "" {
			return stdout, stderr, fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), msg)
		}
		return stdout, stderr, fmt.Errorf("exit code %d", exitErr.ExitCode())
	}
	return stdout, stderr, runErr
}
