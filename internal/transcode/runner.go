// SPDX-License-Identifier: MIT

package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/pipeline"
)

// Runner executes an encoder invocation. The exec-based implementation is
// replaced by a fake in orchestrator tests.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	binary string
	logger zerolog.Logger
}

// NewFFmpeg creates a runner invoking the given ffmpeg binary.
func NewFFmpeg(binary string, logger zerolog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, logger: logger}
}

// Run invokes ffmpeg and surfaces stderr in the error on failure. ffmpeg
// writes progress to stderr too, so it is only kept when the exit is bad.
func (f *FFmpeg) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.ToolFailures.WithLabelValues("ffmpeg").Inc()
		f.logger.Error().
			Str("event", "encode.failed").
			Str("stderr", tail(stderr.String(), 2048)).
			Err(err).
			Msg("ffmpeg invocation failed")
		return pipeline.NewToolError("ffmpeg", fmt.Errorf("%w: %s", err, tail(stderr.String(), 512)))
	}
	return nil
}

// tail returns the last n bytes of s. ffmpeg's useful diagnostics are at the
// end of its output.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var _ Runner = (*FFmpeg)(nil)
