// SPDX-License-Identifier: MIT

package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/pipeline"
)

// FFprobe is the exec-based Prober.
type FFprobe struct {
	binary string
	logger zerolog.Logger
}

// NewFFprobe creates a prober invoking the given ffprobe binary.
func NewFFprobe(binary string, logger zerolog.Logger) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{binary: binary, logger: logger}
}

// Probe reads the primary video stream properties of path.
func (p *FFprobe) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	raw, err := p.run(ctx,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	if err != nil {
		return nil, err
	}
	info, err := parseVideoInfo(raw)
	if err != nil {
		return nil, pipeline.NewToolError("ffprobe", err)
	}
	return info, nil
}

// SubtitleStreams lists embedded subtitle streams of path.
func (p *FFprobe) SubtitleStreams(ctx context.Context, path string) ([]SubtitleStream, error) {
	raw, err := p.run(ctx,
		"-v", "error",
		"-select_streams", "s",
		"-show_entries", "stream=index,codec_name:stream_tags=language",
		"-print_format", "json",
		path)
	if err != nil {
		return nil, err
	}
	subs, err := parseSubtitleStreams(raw)
	if err != nil {
		return nil, pipeline.NewToolError("ffprobe", err)
	}
	return subs, nil
}

func (p *FFprobe) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.ToolFailures.WithLabelValues("ffprobe").Inc()
		p.logger.Error().
			Str("event", "probe.failed").
			Str("stderr", stderr.String()).
			Err(err).
			Msg("ffprobe invocation failed")
		return nil, pipeline.NewToolError("ffprobe", fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return stdout.Bytes(), nil
}

var _ Prober = (*FFprobe)(nil)
