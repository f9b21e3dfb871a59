package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// maxStderr caps how much of a failing command's stderr is kept.
const maxStderr = 8 << 10

// Runner executes an external command. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, logger *slog.Logger, args ...string) ([]byte, []byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, nil, fmt.Errorf("%s not installed (poppler-utils): %w", name, err)
	}

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%s timed out after %s: %w", name, time.Since(start).Round(time.Millisecond), ctx.Err())
	}
	logger.Debug("pdftext.exec",
		"cmd", name,
		"args", args,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", stdout.Len(),
		"ok", err == nil,
	)
	return stdout.Bytes(), clip(stderr.Bytes(), maxStderr), err
}

func clip(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return append(b[:max:max], "...(truncated)"...)
}
