// SPDX-License-Identifier: MIT

package caption

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/vidforge/pipeline/internal/fsutil"
	"github.com/vidforge/pipeline/internal/log"
	"github.com/vidforge/pipeline/internal/transcode"
)

// Generator produces caption drafts from source files.
type Generator struct {
	Runner      transcode.Runner
	Transcriber Transcriber

	// DefaultLanguage pins the transcription language for every run that
	// does not request one itself. Empty means auto-detect.
	DefaultLanguage string

	logger zerolog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(runner transcode.Runner, tr Transcriber) *Generator {
	return &Generator{
		Runner:      runner,
		Transcriber: tr,
		logger:      log.WithComponent("caption"),
	}
}

// Generate extracts and normalizes the audio track, transcribes it and
// returns the cleaned transcript. A non-empty language forces transcription
// in that language, otherwise DefaultLanguage (and failing that, model
// detection) applies. The intermediate WAV lives in a scratch directory that
// is removed on every exit path.
func (g *Generator) Generate(ctx context.Context, sourcePath, language string) (Transcript, error) {
	if language == "" {
		language = g.DefaultLanguage
	}

	tmpDir, err := os.MkdirTemp("", "caption-audio-*")
	if err != nil {
		return Transcript{}, fmt.Errorf("caption workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "audio.wav")
	if err := g.Runner.Run(ctx, extractionArgs(sourcePath, wavPath)); err != nil {
		return Transcript{}, err
	}

	raw, err := g.Transcriber.Transcribe(ctx, wavPath, language)
	if err != nil {
		return Transcript{}, err
	}
	tr := Transcript{Language: raw.Language, Segments: normalize(raw.Segments)}

	g.logger.Info().
		Str("event", "caption.transcribed").
		Str("language", tr.Language).
		Int("cues_raw", len(raw.Segments)).
		Int("cues", len(tr.Segments)).
		Msg("caption draft generated")
	return tr, nil
}

// RenderVTT serializes segments as a WebVTT document.
func RenderVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, s := range segments {
		b.WriteString(formatTimestamp(s.Start))
		b.WriteString(" --> ")
		b.WriteString(formatTimestamp(s.End))
		b.WriteByte('\n')
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// DraftRelPath returns the draft location for an asset, relative to the
// media root.
func DraftRelPath(assetID string) string {
	return filepath.ToSlash(filepath.Join("captions", assetID, "draft.vtt"))
}

// SaveDraft writes the VTT draft atomically under the media root and returns
// its relative path.
func SaveDraft(mediaRoot, assetID string, segments []Segment) (string, error) {
	rel := DraftRelPath(assetID)
	abs, err := fsutil.ConfineRelPath(mediaRoot, rel)
	if err != nil {
		return "", err
	}
	if err := fsutil.EnsureDir(filepath.Dir(abs)); err != nil {
		return "", err
	}
	if err := renameio.WriteFile(abs, []byte(RenderVTT(segments)), 0o644); err != nil {
		return "", fmt.Errorf("write caption draft: %w", err)
	}
	return rel, nil
}
