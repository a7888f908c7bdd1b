// SPDX-License-Identifier: MIT

package moderate

import "context"

// Handle is one acquired classifier session. Implementations hold expensive
// resources (a loaded model, a GPU slot) that must be released when the run
// ends, on every exit path.
type Handle interface {
	// Score classifies a batch of frame image files, returning one score set
	// per input path in order.
	Score(ctx context.Context, framePaths []string) ([]Scores, error)

	// Close releases the session's resources.
	Close() error
}

// Classifier hands out scoring sessions.
type Classifier interface {
	Acquire(ctx context.Context) (Handle, error)
}
