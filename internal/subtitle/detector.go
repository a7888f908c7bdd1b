// SPDX-License-Identifier: MIT

package subtitle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/probe"
	"github.com/vidforge/pipeline/internal/transcode"
)

// Detector runs the two-stage cascade against a source file.
type Detector struct {
	Prober  probe.Prober
	Runner  transcode.Runner
	OCR     OCR
	Samples int

	logger zerolog.Logger
}

// NewDetector creates a detector with the default sample count.
func NewDetector(prober probe.Prober, runner transcode.Runner, ocr OCR) *Detector {
	return &Detector{
		Prober:  prober,
		Runner:  runner,
		OCR:     ocr,
		Samples: defaultSamples,
		logger:  log.WithComponent("subtitle"),
	}
}

// Detect runs the cascade against sourcePath.
//
// Stage one asks the container for subtitle streams; a hit short-circuits
// with the deduplicated language list. Stage two samples frames across the
// runtime and OCRs each one. Samples that fail to extract or recognize are
// tracked separately: when the failures alone could have pushed the count
// over the threshold, the run is inconclusive rather than a confirmed
// absence.
func (d *Detector) Detect(ctx context.Context, sourcePath string) (*Result, error) {
	streams, err := d.Prober.SubtitleStreams(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	if len(streams) > 0 {
		langs := dedupeLanguages(streams)
		d.logger.Info().
			Str("event", "subtitle.soft_detected").
			Strs("languages", langs).
			Msg("container carries subtitle streams")
		return &Result{Outcome: OutcomeDetected, Soft: true, Languages: langs}, nil
	}

	info, err := d.Prober.Probe(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	samples := d.Samples
	if samples <= 0 {
		samples = defaultSamples
	}
	timestamps := sampleTimestamps(info.Duration, samples)
	threshold := hardThreshold(len(timestamps))

	tmpDir, err := os.MkdirTemp("", "subtitle-scan-*")
	if err != nil {
		return nil, fmt.Errorf("subtitle scan workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	result := &Result{SamplesChecked: len(timestamps)}
	for i, ts := range timestamps {
		framePath := filepath.Join(tmpDir, fmt.Sprintf("sample_%02d.png", i))
		if err := d.extractFrame(ctx, sourcePath, framePath, ts); err != nil {
			result.SamplesFailed++
			d.logger.Warn().Err(err).Float64("timestamp", ts).Msg("sample extraction failed")
			continue
		}
		ocrRes, err := d.OCR.Recognize(ctx, framePath)
		if err != nil {
			result.SamplesFailed++
			d.logger.Warn().Err(err).Float64("timestamp", ts).Msg("sample recognition failed")
			continue
		}
		if frameHasSubtitleText(ocrRes) {
			result.SamplesWithText++
		}
		// Enough hits already: no need to scan the rest.
		if result.SamplesWithText >= threshold {
			break
		}
	}

	switch {
	case result.SamplesWithText >= threshold:
		result.Outcome = OutcomeDetected
		result.Hard = true
	case result.SamplesWithText+result.SamplesFailed >= threshold:
		result.Outcome = OutcomeInconclusive
	default:
		result.Outcome = OutcomeConfirmedAbsent
	}

	d.logger.Info().
		Str("event", "subtitle.scan_complete").
		Str("outcome", string(result.Outcome)).
		Int("with_text", result.SamplesWithText).
		Int("failed", result.SamplesFailed).
		Int("threshold", threshold).
		Msg("hard subtitle scan finished")
	return result, nil
}

func (d *Detector) extractFrame(ctx context.Context, sourcePath, framePath string, ts float64) error {
	return d.Runner.Run(ctx, []string{
		"-hide_banner",
		"-y",
		"-ss", strconv.FormatFloat(ts, 'f', 2, 64),
		"-i", sourcePath,
		"-vframes", "1",
		framePath,
	})
}

// dedupeLanguages returns the sorted unique language tags of the streams.
func dedupeLanguages(streams []probe.SubtitleStream) []string {
	seen := make(map[string]bool, len(streams))
	var langs []string
	for _, st := range streams {
		if !seen[st.Language] {
			seen[st.Language] = true
			langs = append(langs, st.Language)
		}
	}
	sort.Strings(langs)
	return langs
}
