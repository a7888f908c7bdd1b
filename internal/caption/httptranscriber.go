// SPDX-License-Identifier: MIT

package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/pipeline"
)

// HTTPTranscriber streams the prepared WAV to the speech sidecar. Decoding
// is greedy and deterministic on the sidecar (wide beam, zero temperature),
// so identical audio yields identical cues.
type HTTPTranscriber struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTranscriber creates a client for the sidecar at baseURL.
func NewHTTPTranscriber(baseURL string) *HTTPTranscriber {
	return &HTTPTranscriber{
		baseURL: baseURL,
		// Transcription runs at a fraction of realtime; long uploads need a
		// generous ceiling.
		client: &http.Client{Timeout: 30 * time.Minute},
	}
}

// Transcribe sends the WAV file and returns the raw transcript. A non-empty
// language is passed through to the sidecar, which then skips detection.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, wavPath, language string) (Transcript, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("open audio %s: %w", wavPath, err)
	}
	defer f.Close()

	endpoint := t.baseURL + "/transcribe"
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return Transcript{}, err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.ToolFailures.WithLabelValues("speech").Inc()
		return Transcript{}, pipeline.NewToolError("speech", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.ToolFailures.WithLabelValues("speech").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Transcript{}, pipeline.NewToolError("speech", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out Transcript
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcript{}, pipeline.NewToolError("speech", fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

var _ Transcriber = (*HTTPTranscriber)(nil)
