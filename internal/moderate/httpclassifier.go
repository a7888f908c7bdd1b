// SPDX-License-Identifier: MIT

package moderate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vidforge/pipeline/internal/metrics"
	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/types"
)

// HTTPClassifier talks to the image classification sidecar. The sidecar
// loads its model per session: Acquire opens one, Score batches against it
// and Close frees the slot, mirroring how GPU capacity is leased there.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClassifier creates a client for the sidecar at baseURL.
func NewHTTPClassifier(baseURL string) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// Acquire opens a scoring session.
func (c *HTTPClassifier) Acquire(ctx context.Context) (Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ToolFailures.WithLabelValues("classifier").Inc()
		return nil, pipeline.NewToolError("classifier", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		metrics.ToolFailures.WithLabelValues("classifier").Inc()
		return nil, pipeline.NewToolError("classifier", fmt.Errorf("acquire session: status %d", resp.StatusCode))
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pipeline.NewToolError("classifier", fmt.Errorf("decode session: %w", err))
	}
	if out.SessionID == "" {
		return nil, pipeline.NewToolError("classifier", fmt.Errorf("empty session id"))
	}
	return &httpHandle{c: c, sessionID: out.SessionID}, nil
}

type httpHandle struct {
	c         *HTTPClassifier
	sessionID string
}

type scoreRequest struct {
	Frames []scoreFrame `json:"frames"`
}

type scoreFrame struct {
	Name string `json:"name"`
	Data []byte `json:"data"` // base64 via encoding/json
}

type scoreResponse struct {
	Scores []map[string]float64 `json:"scores"`
}

// Score classifies a batch of frame files within the session.
func (h *httpHandle) Score(ctx context.Context, framePaths []string) ([]Scores, error) {
	reqBody := scoreRequest{Frames: make([]scoreFrame, 0, len(framePaths))}
	for _, p := range framePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", p, err)
		}
		reqBody.Frames = append(reqBody.Frames, scoreFrame{Name: p, Data: data})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/sessions/%s/score", h.c.baseURL, h.sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.client.Do(req)
	if err != nil {
		metrics.ToolFailures.WithLabelValues("classifier").Inc()
		return nil, pipeline.NewToolError("classifier", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.ToolFailures.WithLabelValues("classifier").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, pipeline.NewToolError("classifier", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pipeline.NewToolError("classifier", fmt.Errorf("decode scores: %w", err))
	}

	scores := make([]Scores, len(out.Scores))
	for i, raw := range out.Scores {
		s := make(Scores, len(raw))
		for k, v := range raw {
			level, err := types.ParseRiskLevel(k)
			if err != nil {
				return nil, pipeline.NewToolError("classifier", fmt.Errorf("frame %d: %w", i, err))
			}
			s[level] = v
		}
		scores[i] = s
	}
	return scores, nil
}

// Close releases the session slot. Best effort with its own deadline, since
// the job context may already be canceled.
func (h *httpHandle) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/sessions/%s", h.c.baseURL, h.sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.c.client.Do(req)
	if err != nil {
		return fmt.Errorf("release session %s: %w", h.sessionID, err)
	}
	_ = resp.Body.Close()
	return nil
}

var _ Classifier = (*HTTPClassifier)(nil)
