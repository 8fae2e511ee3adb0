package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	// maxStderrBytes caps the amount of stderr captured from tool execution.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// ExecResult is the outcome of one external tool process.
type ExecResult struct {
	ExitCode int
	Stderr   string
}

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/zjetlab/zjetrun/internal/dispatch Runner

// Runner executes one external tool invocation. The tool's stdout (its own
// --log/--progress output) is passed through; stderr is captured and capped.
type Runner interface {
	Run(ctx context.Context, entrypoint string, argv []string, timeout time.Duration, logger *slog.Logger) (ExecResult, error)
}

type execRunner struct{}

// NewExecRunner returns the production Runner backed by os/exec.
func NewExecRunner() Runner {
	return &execRunner{}
}

// Run spawns the tool and waits for it. A timeout of zero disables
// enforcement; otherwise SIGTERM is sent on expiry, followed by SIGKILL
// after a grace period, and the error is context.DeadlineExceeded.
func (r *execRunner) Run(ctx context.Context, entrypoint string, argv []string, timeout time.Duration, logger *slog.Logger) (ExecResult, error) {
	cmd := exec.Command(entrypoint, argv...)

	var stderr bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	logger.Debug("spawning tool", "entrypoint", entrypoint, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return ExecResult{ExitCode: -1}, fmt.Errorf("start process: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-timeoutCh:
		logger.Warn("tool execution timed out, sending SIGTERM")
		if cmd.Process != nil {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				logger.Error("failed to send SIGTERM", "error", err)
			}
		}

		grace := time.NewTimer(terminationGracePeriod)
		defer grace.Stop()

		select {
		case <-waitErr:
			logger.Info("tool exited after SIGTERM")
		case <-grace.C:
			logger.Warn("tool did not exit after SIGTERM, sending SIGKILL")
			if cmd.Process != nil {
				if err := cmd.Process.Kill(); err != nil {
					logger.Error("failed to send SIGKILL", "error", err)
				}
			}
			<-waitErr // Wait for process to die
		}

		return ExecResult{ExitCode: -1, Stderr: truncateStderr(stderr.String())}, context.DeadlineExceeded

	case err := <-waitErr:
		res := ExecResult{Stderr: truncateStderr(stderr.String())}
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				res.ExitCode = exitErr.ExitCode()
				return res, nil
			}
			res.ExitCode = -1
			return res, fmt.Errorf("wait for process: %w", err)
		}
		return res, nil
	}
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
