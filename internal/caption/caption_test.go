// SPDX-License-Identifier: MIT

package caption

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionArgs(t *testing.T) {
	args := extractionArgs("/media/src.mp4", "/tmp/audio.wav")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-map 0:a:0")
	assert.Contains(t, joined, "-vn")
	assert.Contains(t, joined, "-ac 1")
	assert.Contains(t, joined, "-ar 16000")
	assert.Contains(t, joined, "-acodec pcm_s16le")
	assert.Contains(t, joined, "aresample=16000:resampler=soxr:precision=28,volume=0.95")
	assert.Equal(t, "/tmp/audio.wav", args[len(args)-1])
}

func TestNormalize(t *testing.T) {
	in := []Segment{
		{Start: 0, End: 2.5, Text: "  hello   world  "},
		{Start: 3, End: 4, Text: "   "},
		{Start: -1, End: 2, Text: "clamped"},
		{Start: 6, End: 5, Text: "inverted"},
	}
	out := normalize(in)
	require.Len(t, out, 3)
	assert.Equal(t, "hello world", out[0].Text)
	assert.Equal(t, 0.0, out[0].Start)
	// The negative-start cue lands at 0 too and gets nudged past its
	// predecessor.
	assert.Equal(t, "clamped", out[1].Text)
	assert.Equal(t, 2.5, out[1].Start)
	assert.Equal(t, out[2].Start, out[2].End)
}

func TestNormalizeOrdersAndClampsOverlaps(t *testing.T) {
	in := []Segment{
		{Start: 5, End: 7, Text: "third"},
		{Start: 0, End: 3, Text: "first"},
		{Start: 2, End: 4, Text: "second"},
	}
	out := normalize(in)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{out[0].Text, out[1].Text, out[2].Text})

	// The overlapping cue is pushed to start where its predecessor ended.
	assert.Equal(t, 3.0, out[1].Start)
	assert.Equal(t, 4.0, out[1].End)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].Start, out[i-1].End)
	}
}

func TestNormalizeSwallowedOverlapKeepsValidRange(t *testing.T) {
	// The second cue lies entirely inside the first: clamping must not
	// produce an inverted range.
	out := normalize([]Segment{
		{Start: 0, End: 10, Text: "long"},
		{Start: 2, End: 4, Text: "inner"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, 10.0, out[1].Start)
	assert.Equal(t, 10.0, out[1].End)
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{61.042, "00:01:01.042"},
		{3661.999, "01:01:01.999"},
		{-5, "00:00:00.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTimestamp(tt.in))
	}
}

func TestRenderVTT(t *testing.T) {
	vtt := RenderVTT([]Segment{
		{Start: 0, End: 2.5, Text: "first cue"},
		{Start: 3, End: 5.25, Text: "second cue"},
	})
	assert.True(t, strings.HasPrefix(vtt, "WEBVTT\n\n"))
	assert.Contains(t, vtt, "00:00:00.000 --> 00:00:02.500\nfirst cue\n")
	assert.Contains(t, vtt, "00:00:03.000 --> 00:00:05.250\nsecond cue\n")
}

type fakeTranscriber struct {
	transcript Transcript
	err        error
	gotPath    string
	gotLang    string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, wavPath, language string) (Transcript, error) {
	f.gotPath = wavPath
	f.gotLang = language
	return f.transcript, f.err
}

// wavWriter pretends to be ffmpeg: it creates the output file named by the
// final argument.
type wavWriter struct {
	calls int
	fail  bool
}

func (w *wavWriter) Run(_ context.Context, args []string) error {
	w.calls++
	if w.fail {
		return fmt.Errorf("no audio stream")
	}
	return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
}

func TestGenerate(t *testing.T) {
	tr := &fakeTranscriber{transcript: Transcript{
		Language: "en",
		Segments: []Segment{
			{Start: 0, End: 2, Text: " hello "},
			{Start: 2, End: 3, Text: ""},
		},
	}}
	g := NewGenerator(&wavWriter{}, tr)

	got, err := g.Generate(context.Background(), "/media/src.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)
	assert.Empty(t, tr.gotLang, "no language forced")
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "hello", got.Segments[0].Text)

	// The scratch WAV is cleaned up after the run.
	_, statErr := os.Stat(tr.gotPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateForcedLanguage(t *testing.T) {
	tr := &fakeTranscriber{transcript: Transcript{Language: "de"}}
	g := NewGenerator(&wavWriter{}, tr)
	g.DefaultLanguage = "en"

	// A per-run language wins over the generator default.
	_, err := g.Generate(context.Background(), "/media/src.mp4", "de")
	require.NoError(t, err)
	assert.Equal(t, "de", tr.gotLang)

	// Without one, the default applies.
	_, err = g.Generate(context.Background(), "/media/src.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, "en", tr.gotLang)
}

func TestGenerateExtractionFailure(t *testing.T) {
	g := NewGenerator(&wavWriter{fail: true}, &fakeTranscriber{})
	_, err := g.Generate(context.Background(), "/media/src.mp4", "")
	assert.Error(t, err)
}

func TestSaveDraft(t *testing.T) {
	root := t.TempDir()
	rel, err := SaveDraft(root, "asset-9", []Segment{{Start: 0, End: 1, Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "captions/asset-9/draft.vtt", rel)

	data, err := os.ReadFile(filepath.Join(root, "captions", "asset-9", "draft.vtt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "WEBVTT")
	assert.Contains(t, string(data), "hi")
}

func TestSaveDraftRejectsTraversal(t *testing.T) {
	_, err := SaveDraft(t.TempDir(), "../evil", nil)
	assert.Error(t, err)
}
