// SPDX-License-Identifier: MIT

// Package caption generates editable caption drafts from the audio track.
package caption

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Segment is one timed caption cue.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the model output for one audio track: the detected (or
// forced) language and the timed cues.
type Transcript struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Transcriber converts a normalized mono 16 kHz WAV file into timed text.
// A non-empty language pins the transcription language instead of letting
// the model detect it.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, language string) (Transcript, error)
}

// extractionArgs builds the audio normalization command: the primary audio
// stream downmixed to mono 16 kHz PCM, resampled through soxr with a slight
// volume pullback to avoid clipping introduced by the downmix.
func extractionArgs(sourcePath, wavPath string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-i", sourcePath,
		"-map", "0:a:0",
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-af", "aresample=16000:resampler=soxr:precision=28,volume=0.95",
		wavPath,
	}
}

// normalize cleans raw transcription output: whitespace-trimmed text, empty
// cues dropped, degenerate time ranges fixed up. Cues are then ordered by
// start time and overlapping ranges are clamped so the rendered VTT never
// has a cue starting before its predecessor ended.
func normalize(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.Join(strings.Fields(s.Text), " ")
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			out[i].Start = out[i-1].End
			if out[i].End < out[i].Start {
				out[i].End = out[i].Start
			}
		}
	}
	return out
}

// formatTimestamp renders seconds as a WebVTT timestamp (HH:MM:SS.mmm).
func formatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	h := millis / 3_600_000
	millis -= h * 3_600_000
	m := millis / 60_000
	millis -= m * 60_000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
