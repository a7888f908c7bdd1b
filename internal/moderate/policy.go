// SPDX-License-Identifier: MIT

// Package moderate scans transcoded assets for policy-violating frames.
package moderate

import (
	"math"

	"github.com/vidforge/pipeline/internal/types"
)

// Policy configures one moderation run.
type Policy struct {
	// Level is the severity class whose cumulative score is compared
	// against Threshold.
	Level types.RiskLevel

	// Threshold flags a frame when the cumulative score at Level reaches it.
	Threshold float64

	// FPS is the frame sampling rate.
	FPS float64

	// BatchSize is how many frames go to the classifier per call.
	BatchSize int
}

// DefaultPolicy returns the standard configuration.
func DefaultPolicy() Policy {
	return Policy{
		Level:     types.RiskMedium,
		Threshold: 0.6,
		FPS:       1,
		BatchSize: 4,
	}
}

// withDefaults fills unset fields.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if !p.Level.IsValid() {
		p.Level = d.Level
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		p.Threshold = d.Threshold
	}
	if p.FPS <= 0 {
		p.FPS = d.FPS
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	return p
}

// Scores holds the raw per-class probabilities for one frame.
type Scores map[types.RiskLevel]float64

// Cumulative folds raw class probabilities into a severity-inclusive score:
// the score at a level is the probability mass at that level or above.
// Neutral stays raw, it is a confidence in harmlessness, not a risk bucket.
func Cumulative(s Scores, level types.RiskLevel) float64 {
	switch level {
	case types.RiskHigh:
		return s[types.RiskHigh]
	case types.RiskMedium:
		return s[types.RiskMedium] + s[types.RiskHigh]
	case types.RiskLow:
		return s[types.RiskLow] + s[types.RiskMedium] + s[types.RiskHigh]
	case types.RiskNeutral:
		return s[types.RiskNeutral]
	default:
		return 0
	}
}

// snapshotScores captures the full per-class picture for one frame, rounded
// for persistence: cumulative scores per risk level, raw neutral confidence.
func snapshotScores(s Scores) map[string]float64 {
	out := make(map[string]float64, len(types.RiskLevels()))
	for _, level := range types.RiskLevels() {
		out[level.String()] = round4(Cumulative(s, level))
	}
	return out
}

// unsafeCutoff is the medium-or-above maximum at which a flagged asset is
// called unsafe outright instead of uncertain.
const unsafeCutoff = 0.7

// verdict derives the final outcome of a completed run from the record's
// counters. A clean run is safe with the strongest neutral score as its
// confidence. A flagged run is unsafe when the worst cumulative medium score
// reached the cutoff, otherwise a human needs to look.
func verdict(r *types.ModerationRecord) (types.ModerationVerdict, float64) {
	if r.FramesFlagged == 0 {
		return types.VerdictSafe, round4(r.MaxNeutral)
	}
	if r.MaxMedium >= unsafeCutoff {
		return types.VerdictUnsafe, round4(r.MaxMedium)
	}
	return types.VerdictUncertain, round4(r.MaxMedium)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
