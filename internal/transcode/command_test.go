// SPDX-License-Identifier: MIT

package transcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func count(args []string, want string) int {
	n := 0
	for _, a := range args {
		if a == want {
			n++
		}
	}
	return n
}

func TestEncodeSpecSingleInputMultiOutput(t *testing.T) {
	ladder, err := BuildLadder(1920, 1080)
	require.NoError(t, err)

	args := EncodeSpec{
		SourcePath:  "/media/src.mp4",
		OutputDir:   "/media/out",
		Ladder:      ladder,
		SourceCodec: "h264",
		HasAudio:    true,
	}.Args()

	// One decode, one output block per rung.
	assert.Equal(t, 1, count(args, "-i"))
	assert.Equal(t, len(ladder), count(args, "0:v:0"))
	assert.Equal(t, len(ladder), count(args, "0:a:0"))
	assert.Equal(t, len(ladder), count(args, "libx264"))
	assert.Equal(t, len(ladder), count(args, "aac"))

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "/media/out/1080p/index.m3u8")
	assert.Contains(t, joined, "/media/out/360p/segment_%03d.ts")
	assert.Contains(t, joined, "-hls_time 6")
	assert.Contains(t, joined, "-hls_playlist_type vod")
	assert.Contains(t, joined, "-b:v 5000k")
	assert.Contains(t, joined, "-maxrate 10000k")
	assert.Contains(t, joined, "-bufsize 10000k")
	assert.Contains(t, joined, "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2")
}

func TestEncodeSpecVP9SourceUsesHEVC(t *testing.T) {
	ladder, err := BuildLadder(1280, 720)
	require.NoError(t, err)

	args := EncodeSpec{
		SourcePath:  "/media/src.webm",
		OutputDir:   "/media/out",
		Ladder:      ladder,
		SourceCodec: "vp9",
		HasAudio:    true,
	}.Args()

	assert.Equal(t, len(ladder), count(args, "libx265"))
	assert.Equal(t, len(ladder), count(args, "hvc1"))
	assert.Zero(t, count(args, "libx264"))
}

func TestEncodeSpecSilentSourceDropsAudio(t *testing.T) {
	ladder, err := BuildLadder(1280, 720)
	require.NoError(t, err)

	args := EncodeSpec{
		SourcePath:  "/media/src.mp4",
		OutputDir:   "/media/out",
		Ladder:      ladder,
		SourceCodec: "h264",
		HasAudio:    false,
	}.Args()

	assert.Equal(t, len(ladder), count(args, "-an"))
	assert.Zero(t, count(args, "0:a:0"))
	assert.Zero(t, count(args, "aac"))
}

func TestEncodeSpecCustomSegmentLength(t *testing.T) {
	ladder, err := BuildLadder(640, 360)
	require.NoError(t, err)

	args := EncodeSpec{
		SourcePath:  "/media/src.mp4",
		OutputDir:   "/media/out",
		Ladder:      ladder,
		SegmentSecs: 4,
	}.Args()
	assert.Contains(t, strings.Join(args, " "), "-hls_time 4")
}
