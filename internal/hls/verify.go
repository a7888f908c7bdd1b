// SPDX-License-Identifier: MIT

package hls

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vidforge/pipeline/internal/pipeline"
)

// VerifyTree checks that the output directory holds a complete HLS tree for
// the given variants: the master manifest references every variant, and each
// media playlist exists and references at least one segment. Any violation is
// an IntegrityError, which the orchestrator treats as grounds to purge the
// tree and retry the encode.
func VerifyTree(dir string, variants []Variant) error {
	masterPath := filepath.Join(dir, "master.m3u8")
	if _, err := os.Stat(masterPath); err != nil {
		return &pipeline.IntegrityError{Path: masterPath, Reason: "master manifest missing"}
	}

	refs, err := ParseMasterRefs(masterPath)
	if err != nil {
		return &pipeline.IntegrityError{Path: masterPath, Reason: err.Error()}
	}
	referenced := make(map[string]bool, len(refs))
	for _, ref := range refs {
		referenced[ref] = true
	}

	for _, v := range variants {
		if !referenced[v.PlaylistRef()] {
			return &pipeline.IntegrityError{
				Path:   masterPath,
				Reason: fmt.Sprintf("variant %s not referenced by master", v.PlaylistDir()),
			}
		}
		if err := VerifyVariant(dir, v); err != nil {
			return err
		}
	}
	return nil
}

// VerifyVariant checks a single variant's media playlist: it must exist and
// reference at least one segment. Used on its own to decide which renditions
// a resumed encode can skip.
func VerifyVariant(dir string, v Variant) error {
	playlist := filepath.Join(dir, v.PlaylistDir(), "index.m3u8")
	n, err := countSegments(playlist)
	if err != nil {
		return &pipeline.IntegrityError{Path: playlist, Reason: "media playlist unreadable: " + err.Error()}
	}
	if n == 0 {
		return &pipeline.IntegrityError{Path: playlist, Reason: "media playlist references no segments"}
	}
	return nil
}

// Purge removes the entire output tree of a failed run so a retry starts
// from a clean slate.
func Purge(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge hls tree %s: %w", dir, err)
	}
	return nil
}
