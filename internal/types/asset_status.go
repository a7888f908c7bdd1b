// SPDX-License-Identifier: MIT

// Package types provides type-safe enumerations shared across the pipeline.
//
// This package centralizes typed constants and state types to prevent
// string-based bugs and enable exhaustive switch statements.
package types

import (
	"encoding/json"
	"fmt"
)

// AssetStatus represents the lifecycle state of a video asset.
type AssetStatus string

// Asset lifecycle states.
const (
	// AssetUploading indicates the source file upload is in flight or just
	// finished and no pipeline stage has claimed the asset yet.
	AssetUploading AssetStatus = "uploading"

	// AssetAwaitCaptionEdit indicates the asset is parked for manual caption
	// editing before transcoding starts.
	AssetAwaitCaptionEdit AssetStatus = "await_caption_edit"

	// AssetProcessing indicates the transcode orchestrator owns the asset.
	AssetProcessing AssetStatus = "processing"

	// AssetPendingReview indicates transcoding finished and the asset awaits
	// moderation review.
	AssetPendingReview AssetStatus = "pending_review"

	// AssetApproved indicates the asset passed review.
	AssetApproved AssetStatus = "approved"

	// AssetRejected indicates the asset failed review.
	AssetRejected AssetStatus = "rejected"

	// AssetTakenDown indicates a previously approved asset was removed.
	AssetTakenDown AssetStatus = "taken_down"

	// AssetFailed indicates an unrecoverable processing error.
	AssetFailed AssetStatus = "failed"
)

// String implements fmt.Stringer.
func (s AssetStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is one of the defined constants.
func (s AssetStatus) IsValid() bool {
	switch s {
	case AssetUploading, AssetAwaitCaptionEdit, AssetProcessing, AssetPendingReview,
		AssetApproved, AssetRejected, AssetTakenDown, AssetFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final state. Rejected assets may
// be re-reviewed, so only taken_down and failed are terminal.
func (s AssetStatus) IsTerminal() bool {
	return s == AssetTakenDown || s == AssetFailed
}

// MarshalJSON implements json.Marshaler.
func (s AssetStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *AssetStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := AssetStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid asset status: %q", str)
	}
	*s = status
	return nil
}

// SubtitleType classifies how subtitles are carried by an asset.
type SubtitleType string

const (
	// SubtitleNone means no subtitles were detected.
	SubtitleNone SubtitleType = "none"

	// SubtitleSoft means the container carries separate subtitle streams.
	SubtitleSoft SubtitleType = "soft"

	// SubtitleHard means subtitles are burned into the video frames.
	SubtitleHard SubtitleType = "hard"
)

// String implements fmt.Stringer.
func (t SubtitleType) String() string {
	return string(t)
}

// IsValid checks whether the subtitle type is one of the defined constants.
func (t SubtitleType) IsValid() bool {
	switch t {
	case SubtitleNone, SubtitleSoft, SubtitleHard:
		return true
	default:
		return false
	}
}
