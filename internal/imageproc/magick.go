package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Engine executes a plan and returns the path of the produced file.
type Engine interface {
	Execute(ctx context.Context, plan *Plan) (string, error)
}

// EngineError is a non-zero exit from the engine.
type EngineError struct {
	ExitCode int
	Stderr   string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine exited with status %d: %s", e.ExitCode, e.Stderr)
}

// MagickEngine runs ImageMagick 7 as a subprocess.
type MagickEngine struct {
	binary string
	slots  *semaphore.Weighted
	logger zerolog.Logger
}

// NewMagickEngine creates an engine allowing at most maxConcurrent
// simultaneous processes.
func NewMagickEngine(binary string, maxConcurrent int, logger zerolog.Logger) *MagickEngine {
	if binary == "" {
		binary = "magick"
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &MagickEngine{
		binary: binary,
		slots:  semaphore.NewWeighted(int64(maxConcurrent)),
		logger: logger,
	}
}

func (e *MagickEngine) Execute(ctx context.Context, plan *Plan) (string, error) {
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for engine slot: %w", err)
	}
	defer e.slots.Release(1)

	args := plan.Args()
	e.logger.Info().Str("cmd", e.binary+" "+strings.Join(args, " ")).Msg("running engine")

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			msg := strings.TrimSpace(stderr.String())
			e.logger.Error().Int("exit_code", exitErr.ExitCode()).Str("stderr", msg).Msg("engine failed")
			return "", &EngineError{ExitCode: exitErr.ExitCode(), Stderr: msg}
		}
		return "", fmt.Errorf("failed to run %s: %w", e.binary, err)
	}

	if _, err := os.Stat(plan.OutputPath); err != nil {
		return "", fmt.Errorf("engine reported success but produced no output: %w", err)
	}

	e.logger.Debug().Dur("duration", time.Since(start)).Str("output", plan.OutputPath).Msg("engine finished")
	return plan.OutputPath, nil
}

// Version returns the first line of `magick -version`.
func (e *MagickEngine) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to query %s version: %w", e.binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
