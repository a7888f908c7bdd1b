// SPDX-License-Identifier: MIT

package moderate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vidforge/pipeline/internal/types"
)

func TestCumulativeFoldsSeverityUpward(t *testing.T) {
	s := Scores{
		types.RiskNeutral: 0.1,
		types.RiskLow:     0.2,
		types.RiskMedium:  0.3,
		types.RiskHigh:    0.4,
	}
	assert.InDelta(t, 0.4, Cumulative(s, types.RiskHigh), 1e-9)
	assert.InDelta(t, 0.7, Cumulative(s, types.RiskMedium), 1e-9)
	assert.InDelta(t, 0.9, Cumulative(s, types.RiskLow), 1e-9)
	// Neutral is a raw confidence, not an inclusive bucket.
	assert.InDelta(t, 0.1, Cumulative(s, types.RiskNeutral), 1e-9)
}

func TestCumulativeMonotoneInSeverity(t *testing.T) {
	s := Scores{
		types.RiskLow:    0.15,
		types.RiskMedium: 0.25,
		types.RiskHigh:   0.05,
	}
	// Widening the bucket can only grow the score.
	assert.GreaterOrEqual(t, Cumulative(s, types.RiskLow), Cumulative(s, types.RiskMedium))
	assert.GreaterOrEqual(t, Cumulative(s, types.RiskMedium), Cumulative(s, types.RiskHigh))
}

func TestSnapshotScoresCumulativePerLevel(t *testing.T) {
	got := snapshotScores(Scores{
		types.RiskNeutral: 0.1,
		types.RiskLow:     0.3,
		types.RiskMedium:  0.2,
		types.RiskHigh:    0.4,
	})
	assert.InDelta(t, 0.1, got["neutral"], 1e-9)
	assert.InDelta(t, 0.9, got["low"], 1e-9)
	assert.InDelta(t, 0.6, got["medium"], 1e-9)
	assert.InDelta(t, 0.4, got["high"], 1e-9)
}

func TestVerdictSafeWhenNothingFlagged(t *testing.T) {
	r := &types.ModerationRecord{FramesScored: 50, MaxNeutral: 0.98765}
	v, conf := verdict(r)
	assert.Equal(t, types.VerdictSafe, v)
	assert.InDelta(t, 0.9877, conf, 1e-9)
}

func TestVerdictUnsafeAboveCutoff(t *testing.T) {
	r := &types.ModerationRecord{FramesFlagged: 3, MaxMedium: 0.82}
	v, conf := verdict(r)
	assert.Equal(t, types.VerdictUnsafe, v)
	assert.InDelta(t, 0.82, conf, 1e-9)
}

func TestVerdictUncertainBelowCutoff(t *testing.T) {
	r := &types.ModerationRecord{FramesFlagged: 1, MaxMedium: 0.65}
	v, conf := verdict(r)
	assert.Equal(t, types.VerdictUncertain, v)
	assert.InDelta(t, 0.65, conf, 1e-9)
}

func TestPolicyWithDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	assert.Equal(t, DefaultPolicy(), p)

	p = Policy{Level: types.RiskHigh, Threshold: 0.8, FPS: 2, BatchSize: 8}.withDefaults()
	assert.Equal(t, types.RiskHigh, p.Level)
	assert.InDelta(t, 0.8, p.Threshold, 1e-9)
	assert.InDelta(t, 2.0, p.FPS, 1e-9)
	assert.Equal(t, 8, p.BatchSize)

	// Out-of-range threshold falls back.
	p = Policy{Threshold: 1.5}.withDefaults()
	assert.InDelta(t, 0.6, p.Threshold, 1e-9)
}
