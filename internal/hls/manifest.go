// SPDX-License-Identifier: MIT

// Package hls writes and verifies the HLS output tree of a transcode run.
//
// Layout under one asset's output directory:
//
//	master.m3u8
//	{height}p/index.m3u8
//	{height}p/segment_000.ts ...
package hls

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Variant is one ladder rung as it appears in the master manifest. Name is
// the rung label ("1080p"), which for portrait sources differs from the
// pixel height.
type Variant struct {
	Name        string
	Width       int
	Height      int
	BitrateKbps int
}

// PlaylistDir returns the per-variant directory name, e.g. "1080p".
func (v Variant) PlaylistDir() string {
	return v.Name
}

// PlaylistRef returns the media playlist path relative to the master.
func (v Variant) PlaylistRef() string {
	return v.PlaylistDir() + "/index.m3u8"
}

// WriteMaster renders master.m3u8 for the given variants and writes it
// atomically. A crash mid-write must never leave a truncated master behind,
// since players treat its presence as "the asset is playable".
func WriteMaster(dir string, variants []Variant) error {
	if len(variants) == 0 {
		return fmt.Errorf("write master: no variants")
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d000,RESOLUTION=%dx%d\n",
			v.BitrateKbps, v.Width, v.Height)
		b.WriteString(v.PlaylistRef())
		b.WriteByte('\n')
	}

	path := filepath.Join(dir, "master.m3u8")
	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write master manifest: %w", err)
	}
	return nil
}

// ParseMasterRefs returns the media playlist references listed in a master
// manifest, in order.
func ParseMasterRefs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open master manifest: %w", err)
	}
	defer f.Close()

	var refs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read master manifest: %w", err)
	}
	return refs, nil
}

// countSegments counts .ts references in one media playlist.
func countSegments(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ".ts") {
			n++
		}
	}
	return n, sc.Err()
}
