// SPDX-License-Identifier: MIT

// Package transcode turns a probed source file into a verified HLS tree.
package transcode

import (
	"fmt"

	"github.com/vidforge/pipeline/internal/hls"
)

// Rendition is one rung of the encoding ladder. Width and Height describe
// the landscape orientation of the rung; portrait sources get them swapped.
type Rendition struct {
	Label       string
	Width       int
	Height      int
	BitrateKbps int
	CRF         int
}

// Variant converts the rendition to its manifest representation.
func (r Rendition) Variant() hls.Variant {
	return hls.Variant{Name: r.Label, Width: r.Width, Height: r.Height, BitrateKbps: r.BitrateKbps}
}

// standardLadder in descending quality. The rung height doubles as the short
// edge constraint against the source.
var standardLadder = []Rendition{
	{Label: "2160p", Width: 3840, Height: 2160, BitrateKbps: 15000, CRF: 22},
	{Label: "1440p", Width: 2560, Height: 1440, BitrateKbps: 8000, CRF: 22},
	{Label: "1080p", Width: 1920, Height: 1080, BitrateKbps: 5000, CRF: 23},
	{Label: "720p", Width: 1280, Height: 720, BitrateKbps: 2800, CRF: 23},
	{Label: "480p", Width: 854, Height: 480, BitrateKbps: 1400, CRF: 24},
	{Label: "360p", Width: 640, Height: 360, BitrateKbps: 800, CRF: 25},
}

// BuildLadder selects the renditions to encode for a source of the given
// pixel dimensions. Rungs whose short edge exceeds the source short edge are
// dropped so we never upscale. Portrait sources keep the same rung set but
// swap each rung's dimensions. A source smaller than the lowest rung gets a
// single pass-through rendition at its native size.
func BuildLadder(srcWidth, srcHeight int) ([]Rendition, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("invalid source dimensions %dx%d", srcWidth, srcHeight)
	}

	shortEdge := srcWidth
	if srcHeight < shortEdge {
		shortEdge = srcHeight
	}
	portrait := srcHeight > srcWidth

	var ladder []Rendition
	for _, r := range standardLadder {
		if r.Height > shortEdge {
			continue
		}
		if portrait {
			r.Width, r.Height = r.Height, r.Width
		}
		ladder = append(ladder, r)
	}
	if len(ladder) > 0 {
		return ladder, nil
	}

	bitrate := srcWidth * srcHeight / 1000
	if bitrate < 800 {
		bitrate = 800
	}
	return []Rendition{{
		Label:       fmt.Sprintf("%dp", shortEdge),
		Width:       srcWidth,
		Height:      srcHeight,
		BitrateKbps: bitrate,
		CRF:         23,
	}}, nil
}

// Variants converts a ladder to its manifest representation.
func Variants(ladder []Rendition) []hls.Variant {
	out := make([]hls.Variant, len(ladder))
	for i, r := range ladder {
		out[i] = r.Variant()
	}
	return out
}
