// SPDX-License-Identifier: MIT

package transcode

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// EncodeSpec describes one full ffmpeg invocation: a single decode of the
// source fanned out into every ladder rendition. One invocation instead of
// one per rung keeps the expensive decode from running N times.
type EncodeSpec struct {
	SourcePath string
	OutputDir  string
	Ladder     []Rendition

	// SourceCodec selects the encoder family: vp9 sources go to HEVC,
	// everything else to H.264.
	SourceCodec string
	HasAudio    bool
	SegmentSecs int
}

// Args renders the full ffmpeg argument list.
func (s EncodeSpec) Args() []string {
	segment := s.SegmentSecs
	if segment <= 0 {
		segment = 6
	}

	args := []string{
		"-hide_banner",
		"-y",
		"-i", s.SourcePath,
	}

	for _, r := range s.Ladder {
		args = append(args, "-map", "0:v:0")
		if s.HasAudio {
			args = append(args, "-map", "0:a:0")
		}

		if s.SourceCodec == "vp9" {
			args = append(args,
				"-c:v", "libx265",
				"-tag:v", "hvc1",
			)
		} else {
			args = append(args,
				"-c:v", "libx264",
				"-pix_fmt", "yuv420p",
				"-profile:v", "high",
				"-level", "4.0",
			)
		}

		args = append(args,
			"-vf", scalePadFilter(r.Width, r.Height),
			"-b:v", kbps(r.BitrateKbps),
			"-maxrate", kbps(2*r.BitrateKbps),
			"-bufsize", kbps(2*r.BitrateKbps),
			"-crf", strconv.Itoa(r.CRF),
		)

		if s.HasAudio {
			args = append(args, "-c:a", "aac", "-b:a", "128k", "-ac", "2")
		} else {
			args = append(args, "-an")
		}

		dir := filepath.Join(s.OutputDir, r.Label)
		args = append(args,
			"-f", "hls",
			"-hls_time", strconv.Itoa(segment),
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", filepath.Join(dir, "segment_%03d.ts"),
			filepath.Join(dir, "index.m3u8"),
		)
	}
	return args
}

// scalePadFilter scales preserving aspect ratio and pads to the exact target
// so every segment of a rendition has identical dimensions.
func scalePadFilter(w, h int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		w, h, w, h)
}

func kbps(n int) string {
	return strconv.Itoa(n) + "k"
}
