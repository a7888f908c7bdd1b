// SPDX-License-Identifier: MIT

// Package fsutil provides filesystem helpers shared by the pipeline stages.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidforge/pipeline/internal/pipeline"
)

// ConfineRelPath ensures that joining root and relTarget results in a path
// underneath root. It protects against traversal via "..", absolute targets
// and backslash bypasses. Asset identifiers end up embedded in media paths,
// so every caller routing an external id into the filesystem goes through
// this check.
func ConfineRelPath(root, relTarget string) (string, error) {
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}

	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) || strings.HasPrefix(cleanRel, "/") {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	return filepath.Join(absRoot, cleanRel), nil
}

// IsRegularFile returns an error unless path exists and is a regular file.
// A missing path maps to ErrNotFound so callers never retry it.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, pipeline.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

// EnsureDir creates dir and all parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}
