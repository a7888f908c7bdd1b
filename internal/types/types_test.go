// SPDX-License-Identifier: MIT

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetStatusValidity(t *testing.T) {
	for _, s := range []AssetStatus{
		AssetUploading, AssetAwaitCaptionEdit, AssetProcessing, AssetPendingReview,
		AssetApproved, AssetRejected, AssetTakenDown, AssetFailed,
	} {
		assert.True(t, s.IsValid(), "status %q should be valid", s)
	}
	assert.False(t, AssetStatus("bogus").IsValid())
	assert.False(t, AssetStatus("").IsValid())
}

func TestAssetStatusTerminal(t *testing.T) {
	assert.True(t, AssetTakenDown.IsTerminal())
	assert.True(t, AssetFailed.IsTerminal())
	assert.False(t, AssetRejected.IsTerminal())
	assert.False(t, AssetProcessing.IsTerminal())
}

func TestAssetStatusJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(AssetPendingReview)
	require.NoError(t, err)
	assert.Equal(t, `"pending_review"`, string(data))

	var s AssetStatus
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, AssetPendingReview, s)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &s))
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobPending, JobRunning, true},
		{JobPending, JobSuccess, false},
		{JobRunning, JobSuccess, true},
		{JobRunning, JobFailure, true},
		{JobSuccess, JobRunning, false},
		{JobFailure, JobRunning, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestJobKindValidity(t *testing.T) {
	assert.True(t, JobTranscode.IsValid())
	assert.True(t, JobModerate.IsValid())
	assert.True(t, JobExtractMetadata.IsValid())
	assert.False(t, JobKind("shrink").IsValid())
}

func TestRiskLevelSeverityOrdering(t *testing.T) {
	levels := RiskLevels()
	require.Len(t, levels, 4)
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i].Severity(), levels[i-1].Severity())
	}
	assert.Equal(t, -1, RiskLevel("extreme").Severity())
}

func TestParseRiskLevel(t *testing.T) {
	level, err := ParseRiskLevel("medium")
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, level)

	_, err = ParseRiskLevel("severe")
	assert.Error(t, err)
}

func TestModerationStatusTerminal(t *testing.T) {
	assert.True(t, ModerationCompleted.IsTerminal())
	assert.True(t, ModerationFailed.IsTerminal())
	assert.False(t, ModerationProcessing.IsTerminal())
	assert.False(t, ModerationPending.IsTerminal())
}

func TestSubtitleTypeValidity(t *testing.T) {
	assert.True(t, SubtitleNone.IsValid())
	assert.True(t, SubtitleSoft.IsValid())
	assert.True(t, SubtitleHard.IsValid())
	assert.False(t, SubtitleType("burned").IsValid())
}
