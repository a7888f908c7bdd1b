// SPDX-License-Identifier: MIT

// Package subtitle detects embedded and burned-in subtitles.
//
// Detection is a two-stage cascade: a cheap container probe for separate
// subtitle streams, then an OCR pass over sampled frames to find text burned
// into the picture. The OCR stage only runs when the container probe finds
// nothing.
package subtitle

import (
	"context"
	"math"
)

// bottomBandStart is the fraction of the frame height above which OCR text
// does not count as a subtitle. Subtitles live in the bottom 30%.
const bottomBandStart = 0.7

// defaultSamples is the number of frames the OCR stage inspects.
const defaultSamples = 10

// Outcome classifies how conclusive a detection run was.
type Outcome string

const (
	// OutcomeDetected means subtitles were positively found.
	OutcomeDetected Outcome = "detected"

	// OutcomeConfirmedAbsent means every sample was inspected and subtitles
	// were ruled out.
	OutcomeConfirmedAbsent Outcome = "confirmed_absent"

	// OutcomeInconclusive means enough samples failed to inspect that the
	// verdict could have gone either way.
	OutcomeInconclusive Outcome = "inconclusive"
)

// Result is the outcome of one full cascade run.
type Result struct {
	Outcome   Outcome
	Soft      bool
	Hard      bool
	Languages []string

	// OCR stage counters, zero when the soft stage short-circuited.
	SamplesChecked  int
	SamplesWithText int
	SamplesFailed   int
}

// TextBox is one region of recognized text in a frame.
type TextBox struct {
	Text   string
	Top    int
	Bottom int
}

// OCRResult is the recognition output for one frame.
type OCRResult struct {
	FrameHeight int
	Boxes       []TextBox
}

// OCR recognizes text in a still image.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (*OCRResult, error)
}

// sampleTimestamps spreads n sample points evenly across the duration. The
// last point is pulled in front of the final second so the seek never lands
// past the end of the stream. Timestamps are rounded to centiseconds to keep
// the extraction commands reproducible.
func sampleTimestamps(duration float64, n int) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0}
	}

	limit := duration - 1
	if limit < 0 {
		limit = 0
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := duration * float64(i) / float64(n-1)
		if t > limit {
			t = limit
		}
		out[i] = math.Round(t*100) / 100
	}
	return out
}

// hardThreshold is the number of text-bearing samples required to call the
// video hard-subtitled: at least 2, or 30% of the sample count, whichever is
// larger.
func hardThreshold(samples int) int {
	t := int(0.3 * float64(samples))
	if t < 2 {
		t = 2
	}
	return t
}

// inBottomBand reports whether a box's vertical center sits in the subtitle
// band of a frame.
func inBottomBand(box TextBox, frameHeight int) bool {
	if frameHeight <= 0 {
		return false
	}
	center := float64(box.Top+box.Bottom) / 2
	return center >= bottomBandStart*float64(frameHeight)
}

// frameHasSubtitleText reports whether any recognized box qualifies as
// subtitle text.
func frameHasSubtitleText(res *OCRResult) bool {
	for _, box := range res.Boxes {
		if box.Text == "" {
			continue
		}
		if inBottomBand(box, res.FrameHeight) {
			return true
		}
	}
	return false
}
