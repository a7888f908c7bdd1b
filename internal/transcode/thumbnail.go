// SPDX-License-Identifier: MIT

package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/vidforge/pipeline/internal/fsutil"
)

const (
	thumbnailWidth   = 480
	thumbnailQuality = 85
)

// GenerateThumbnail extracts the poster frame at the midpoint of the video
// and writes a 480-wide JPEG to thumbPath. The frame is pulled losslessly and
// resized in-process so the JPEG settings stay in one place.
func GenerateThumbnail(ctx context.Context, runner Runner, sourcePath, thumbPath string, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("generate thumbnail: invalid duration %f", duration)
	}
	if err := fsutil.EnsureDir(filepath.Dir(thumbPath)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(thumbPath), "frame-*.png")
	if err != nil {
		return fmt.Errorf("generate thumbnail: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	midpoint := strconv.FormatFloat(duration/2, 'f', 3, 64)
	err = runner.Run(ctx, []string{
		"-hide_banner",
		"-y",
		"-ss", midpoint,
		"-i", sourcePath,
		"-vframes", "1",
		tmpPath,
	})
	if err != nil {
		return err
	}

	img, err := imaging.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("decode extracted frame: %w", err)
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	return nil
}
