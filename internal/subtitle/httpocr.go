// SPDX-License-Identifier: MIT

package subtitle

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
)

// HTTPOCR talks to the OCR sidecar service. The sidecar accepts a raw image
// body on POST /recognize and answers with the recognized boxes.
type HTTPOCR struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOCR creates a client for the sidecar at baseURL.
func NewHTTPOCR(baseURL string) *HTTPOCR {
	return &HTTPOCR{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type ocrResponse struct {
	FrameHeight int `json:"frame_height"`
	Boxes       []struct {
		Text   string `json:"text"`
		Top    int    `json:"top"`
		Bottom int    `json:"bottom"`
	} `json:"boxes"`
}

// Recognize sends the image to the sidecar.
func (o *HTTPOCR) Recognize(ctx context.Context, imagePath string) (*OCRResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", imagePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/recognize", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := o.client.Do(req)
	if err != nil {
		metrics.ToolFailures.WithLabelValues("ocr").Inc()
		return nil, pipeline.NewToolError("ocr", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.ToolFailures.WithLabelValues("ocr").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, pipeline.NewToolError("ocr", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pipeline.NewToolError("ocr", fmt.Errorf("decode response: %w", err))
	}

	result := &OCRResult{FrameHeight: out.FrameHeight}
	for _, b := range out.Boxes {
		result.Boxes = append(result.Boxes, TextBox{Text: b.Text, Top: b.Top, Bottom: b.Bottom})
	}
	return result, nil
}

var _ OCR = (*HTTPOCR)(nil)
