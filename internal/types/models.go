// SPDX-License-Identifier: MIT

package types

import "time"

// TechnicalMetadata holds the probed source-stream properties of an asset.
type TechnicalMetadata struct {
	Duration         float64 `json:"duration"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FrameRate        float64 `json:"frame_rate"`
	Codec            string  `json:"codec"`
	AudioCodec       string  `json:"audio_codec,omitempty"`
	AspectRatio      string  `json:"aspect_ratio"`
	BitrateKbps      int     `json:"bitrate_kbps,omitempty"`
	VideoBitrateKbps int     `json:"video_bitrate_kbps,omitempty"`
	AudioBitrateKbps int     `json:"audio_bitrate_kbps,omitempty"`
	SizeBytes        int64   `json:"size_bytes,omitempty"`
}

// Asset is a single uploaded video tracked through the pipeline.
type Asset struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id"`
	Status          AssetStatus        `json:"status"`
	SourcePath      string             `json:"source_path"`
	Metadata        *TechnicalMetadata `json:"metadata,omitempty"`
	ManifestPath    string             `json:"manifest_path,omitempty"`
	ThumbnailPath   string             `json:"thumbnail_path,omitempty"`
	SubtitleType    SubtitleType       `json:"subtitle_type"`
	SubtitleLangs   []string           `json:"subtitle_languages,omitempty"`
	SubtitleCheckAt *time.Time         `json:"subtitle_checked_at,omitempty"`
	CaptionDraftRef string             `json:"caption_draft_ref,omitempty"`
	CaptionLanguage string             `json:"caption_language,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Job is one queued unit of pipeline work against an asset.
type Job struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlaggedFrame records one frame the moderation engine flagged. Level is the
// policy level the frame was judged against; Scores is the full per-class
// snapshot at flagging time (cumulative per level, neutral raw).
type FlaggedFrame struct {
	Index      int                `json:"index"`
	Timestamp  float64            `json:"timestamp"`
	Confidence float64            `json:"confidence"`
	Level      string             `json:"level"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	StillPath  string             `json:"still_path,omitempty"`
}

// ModerationRecord is the persisted state of one moderation run. The
// per-level maxima are cumulative scores (probability mass at that level or
// above), so MaxLow >= MaxMedium >= MaxHigh always holds; MaxNeutral tracks
// the raw neutral confidence.
type ModerationRecord struct {
	AssetID       string            `json:"asset_id"`
	Status        ModerationStatus  `json:"status"`
	PolicyLevel   RiskLevel         `json:"policy_level"`
	Threshold     float64           `json:"threshold"`
	FramesScored  int               `json:"frames_scored"`
	FramesFlagged int               `json:"frames_flagged"`
	Flagged       []FlaggedFrame    `json:"flagged,omitempty"`
	MaxNeutral    float64           `json:"max_neutral"`
	MaxLow        float64           `json:"max_low"`
	MaxMedium     float64           `json:"max_medium"`
	MaxHigh       float64           `json:"max_high"`
	Verdict       ModerationVerdict `json:"verdict,omitempty"`
	Confidence    float64           `json:"confidence"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}
