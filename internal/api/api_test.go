// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/pipeline/internal/caption"
	"github.com/vidforge/pipeline/internal/queue"
	"github.com/vidforge/pipeline/internal/store"
	"github.com/vidforge/pipeline/internal/types"
)

type apiFixture struct {
	server *Server
	store  *store.Store
	queue  *queue.MemoryQueue
	root   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	q := queue.NewMemoryQueue(16)
	root := t.TempDir()
	return &apiFixture{server: NewServer(s, q, root), store: s, queue: q, root: root}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	fx.server.Router().ServeHTTP(rec, req)
	return rec
}

func (fx *apiFixture) createAsset(t *testing.T) *types.Asset {
	t.Helper()
	asset := &types.Asset{
		ID:         uuid.NewString(),
		OwnerID:    "user-1",
		Status:     types.AssetUploading,
		SourcePath: "videos/source/a.mp4",
	}
	require.NoError(t, fx.store.CreateAsset(context.Background(), asset))
	return asset
}

func TestHealthz(t *testing.T) {
	fx := newAPIFixture(t)
	rec := fx.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	rec := fx.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCreateAsset(t *testing.T) {
	fx := newAPIFixture(t)
	rec := fx.do(t, http.MethodPost, "/api/v1/assets", map[string]string{
		"owner_id":    "user-1",
		"source_path": "videos/source/a.mp4",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got types.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, types.AssetUploading, got.Status)
}

func TestCreateAssetValidation(t *testing.T) {
	fx := newAPIFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/assets", map[string]string{"owner_id": "u"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/api/v1/assets", map[string]string{
		"owner_id":    "u",
		"source_path": "../../etc/passwd",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAsset(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)

	rec := fx.do(t, http.MethodGet, "/api/v1/assets/"+asset.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, asset.ID, got.ID)

	rec = fx.do(t, http.MethodGet, "/api/v1/assets/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateJobEnqueues(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/assets/"+asset.ID+"/jobs", map[string]any{
		"kind":      "moderate",
		"level":     "high",
		"threshold": 0.8,
		"reset":     true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job types.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, types.JobModerate, job.Kind)
	assert.Equal(t, types.JobPending, job.Status)

	msg, err := fx.queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, job.ID, msg.JobID)
	assert.Equal(t, asset.ID, msg.AssetID)
	assert.Equal(t, "high", msg.Level)
	assert.InDelta(t, 0.8, msg.Threshold, 1e-9)
	assert.True(t, msg.Reset)

	// The job is queryable right away.
	rec = fx.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateJobValidation(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/assets/"+asset.ID+"/jobs", map[string]string{"kind": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/api/v1/assets/"+asset.ID+"/jobs", map[string]string{
		"kind": "moderate", "level": "extreme",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/api/v1/assets/missing/jobs", map[string]string{"kind": "transcode"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateJobRejectsTerminalAsset(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)
	_, err := fx.store.TransitionStatus(context.Background(), asset.ID,
		[]types.AssetStatus{types.AssetUploading}, types.AssetFailed)
	require.NoError(t, err)

	rec := fx.do(t, http.MethodPost, "/api/v1/assets/"+asset.ID+"/jobs", map[string]string{"kind": "transcode"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetModeration(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)

	rec := fx.do(t, http.MethodGet, "/api/v1/assets/"+asset.ID+"/moderation", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, fx.store.BeginModeration(context.Background(), asset.ID, types.RiskMedium, 0.6, false))
	rec = fx.do(t, http.MethodGet, "/api/v1/assets/"+asset.ID+"/moderation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var record types.ModerationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, types.ModerationProcessing, record.Status)
}

func TestCaptionsRoundTrip(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)

	// No draft yet.
	rec := fx.do(t, http.MethodGet, "/api/v1/assets/"+asset.ID+"/captions.vtt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = fx.do(t, http.MethodPut, "/api/v1/assets/"+asset.ID+"/captions", map[string]any{
		"segments": []caption.Segment{{Start: 0, End: 2, Text: "edited cue"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/api/v1/assets/"+asset.ID+"/captions.vtt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/vtt")
	assert.Contains(t, rec.Body.String(), "edited cue")
}

func TestPutCaptionsValidation(t *testing.T) {
	fx := newAPIFixture(t)
	asset := fx.createAsset(t)

	rec := fx.do(t, http.MethodPut, "/api/v1/assets/"+asset.ID+"/captions", map[string]any{"segments": []caption.Segment{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPut, "/api/v1/assets/missing/captions", map[string]any{
		"segments": []caption.Segment{{Start: 0, End: 1, Text: "x"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
