// SPDX-License-Identifier: MIT

package moderate

import (
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/vidforge/pipeline/internal/fsutil"
)

const stillQuality = 85

// writeStill re-encodes an extracted frame as a JPEG at the archive path.
func writeStill(framePath, destPath string) error {
	if err := fsutil.EnsureDir(filepath.Dir(destPath)); err != nil {
		return err
	}
	img, err := imaging.Open(framePath)
	if err != nil {
		return fmt.Errorf("decode frame %s: %w", framePath, err)
	}
	if err := imaging.Save(img, destPath, imaging.JPEGQuality(stillQuality)); err != nil {
		return fmt.Errorf("save still %s: %w", destPath, err)
	}
	return nil
}
