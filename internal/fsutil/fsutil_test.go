// SPDX-License-Identifier: MIT

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/pipeline/internal/pipeline"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{"simple", "videos/hls/abc123/master.m3u8", false},
		{"dot segments collapse inside", "videos/../videos/a.mp4", false},
		{"traversal", "../etc/passwd", true},
		{"traversal nested", "a/../../etc/passwd", true},
		{"absolute", "/etc/passwd", true},
		{"backslash", `videos\..\..\x`, true},
		{"bare dotdot", "..", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(root, tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
			rel, err := filepath.Rel(root, got)
			require.NoError(t, err)
			assert.False(t, filepath.IsAbs(rel))
		})
	}
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.NoError(t, IsRegularFile(file))
	assert.Error(t, IsRegularFile(dir))
	assert.ErrorIs(t, IsRegularFile(filepath.Join(dir, "missing")), pipeline.ErrNotFound)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
