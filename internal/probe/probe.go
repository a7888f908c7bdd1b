// SPDX-License-Identifier: MIT

// Package probe extracts technical stream metadata from source files.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// VideoInfo is the probed shape of the primary video stream plus the
// container-level properties the catalog records. Bitrates are kbps; zero
// means the container did not report one.
type VideoInfo struct {
	Duration         float64
	Width            int
	Height           int
	FrameRate        float64
	Codec            string
	AudioCodec       string
	AspectRatio      string
	BitrateKbps      int
	VideoBitrateKbps int
	AudioBitrateKbps int
	SizeBytes        int64
	HasAudio         bool
}

// SubtitleStream describes one embedded subtitle stream.
type SubtitleStream struct {
	Index    int
	Codec    string
	Language string
}

// Prober answers metadata questions about a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
	SubtitleStreams(ctx context.Context, path string) ([]SubtitleStream, error)
}

// ffprobe JSON shapes, limited to the fields we read.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	Duration     string            `json:"duration"`
	BitRate      string            `json:"bit_rate"`
	Tags         map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
	Size     string `json:"size"`
}

// parseVideoInfo extracts the primary video stream from raw ffprobe JSON.
func parseVideoInfo(raw []byte) (*VideoInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var video, audio *ffprobeStream
	for i := range out.Streams {
		switch out.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &out.Streams[i]
			}
		case "audio":
			if audio == nil {
				audio = &out.Streams[i]
			}
		}
	}
	if video == nil {
		return nil, fmt.Errorf("no video stream found")
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", video.Width, video.Height)
	}

	info := &VideoInfo{
		Width:            video.Width,
		Height:           video.Height,
		Codec:            video.CodecName,
		FrameRate:        parseRational(video.AvgFrameRate),
		AspectRatio:      CanonicalAspectRatio(video.Width, video.Height),
		BitrateKbps:      parseKbps(out.Format.BitRate),
		VideoBitrateKbps: parseKbps(video.BitRate),
		HasAudio:         audio != nil,
	}
	if info.FrameRate == 0 {
		info.FrameRate = parseRational(video.RFrameRate)
	}
	if audio != nil {
		info.AudioCodec = audio.CodecName
		info.AudioBitrateKbps = parseKbps(audio.BitRate)
	}
	if size, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil && size > 0 {
		info.SizeBytes = size
	}

	// Container duration is authoritative; some streams carry their own.
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	} else if d, err := strconv.ParseFloat(video.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("could not determine duration")
	}
	return info, nil
}

// parseSubtitleStreams extracts subtitle streams, sorted by language tag.
func parseSubtitleStreams(raw []byte) ([]SubtitleStream, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var subs []SubtitleStream
	for _, st := range out.Streams {
		lang := st.Tags["language"]
		if lang == "" {
			lang = "und"
		}
		subs = append(subs, SubtitleStream{Index: st.Index, Codec: st.CodecName, Language: lang})
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Language != subs[j].Language {
			return subs[i].Language < subs[j].Language
		}
		return subs[i].Index < subs[j].Index
	})
	return subs, nil
}

// parseKbps converts an ffprobe bits-per-second string to kbps, returning 0
// when the field is absent or malformed.
func parseKbps(s string) int {
	bps, err := strconv.ParseInt(s, 10, 64)
	if err != nil || bps <= 0 {
		return 0
	}
	return int(bps / 1000)
}

// parseRational parses an ffprobe "num/den" rate, returning 0 for the
// degenerate "0/0" markers ffprobe emits on streams without a rate.
func parseRational(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

var canonicalRatios = []struct {
	name  string
	value float64
}{
	{"16:9", 16.0 / 9.0},
	{"9:16", 9.0 / 16.0},
	{"4:3", 4.0 / 3.0},
	{"3:4", 3.0 / 4.0},
	{"21:9", 21.0 / 9.0},
	{"9:21", 9.0 / 21.0},
	{"1:1", 1.0},
	{"3:2", 3.0 / 2.0},
	{"2:3", 2.0 / 3.0},
}

// CanonicalAspectRatio maps pixel dimensions to a well-known display ratio.
// Dimensions within 2% of a canonical ratio snap to it (854x480 is "16:9"
// despite reducing to 427:240); anything else reduces by gcd.
func CanonicalAspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	ratio := float64(width) / float64(height)
	for _, c := range canonicalRatios {
		if math.Abs(ratio-c.value)/c.value <= 0.02 {
			return c.name
		}
	}
	g := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/g, height/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
