// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidforge/pipeline/internal/caption"
	"github.com/vidforge/pipeline/internal/fsutil"
	"github.com/vidforge/pipeline/internal/pipeline"
	"github.com/vidforge/pipeline/internal/queue"
	"github.com/vidforge/pipeline/internal/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps persistence errors to HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

type createAssetRequest struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	SourcePath string `json:"source_path"`
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" || req.SourcePath == "" {
		writeError(w, http.StatusBadRequest, "owner_id and source_path are required")
		return
	}
	if _, err := fsutil.ConfineRelPath(s.MediaRoot, req.SourcePath); err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_path")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	asset := &types.Asset{
		ID:         req.ID,
		OwnerID:    req.OwnerID,
		Status:     types.AssetUploading,
		SourcePath: req.SourcePath,
	}
	if err := s.Store.CreateAsset(r.Context(), asset); err != nil {
		s.logger.Error().Err(err).Msg("creating asset")
		writeError(w, http.StatusConflict, "asset already exists")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.Store.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

type createJobRequest struct {
	Kind      types.JobKind `json:"kind"`
	Level     string        `json:"level,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
	Reset     bool          `json:"reset,omitempty"`
	Language  string        `json:"language,omitempty"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Kind.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid job kind")
		return
	}
	if req.Level != "" {
		if _, err := types.ParseRiskLevel(req.Level); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	asset, err := s.Store.GetAsset(r.Context(), assetID)
	if err != nil {
		storeError(w, err)
		return
	}
	if asset.Status.IsTerminal() && req.Kind != types.JobModerate {
		writeError(w, http.StatusConflict, "asset is in a terminal state")
		return
	}

	job := &types.Job{ID: uuid.NewString(), AssetID: assetID, Kind: req.Kind}
	if err := s.Store.CreateJob(r.Context(), job); err != nil {
		s.logger.Error().Err(err).Msg("creating job")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	err = s.Queue.Enqueue(r.Context(), queue.Message{
		JobID:     job.ID,
		AssetID:   assetID,
		Kind:      req.Kind,
		Level:     req.Level,
		Threshold: req.Threshold,
		Reset:     req.Reset,
		Language:  req.Language,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("enqueueing job")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetModeration(w http.ResponseWriter, r *http.Request) {
	record, err := s.Store.GetModeration(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetCaptions(w http.ResponseWriter, r *http.Request) {
	asset, err := s.Store.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		storeError(w, err)
		return
	}
	if asset.CaptionDraftRef == "" {
		writeError(w, http.StatusNotFound, "no caption draft")
		return
	}
	abs, err := fsutil.ConfineRelPath(s.MediaRoot, asset.CaptionDraftRef)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	http.ServeFile(w, r, abs)
}

type putCaptionsRequest struct {
	Segments []caption.Segment `json:"segments"`
}

// handlePutCaptions saves an owner-edited caption draft.
func (s *Server) handlePutCaptions(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	var req putCaptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Segments) == 0 {
		writeError(w, http.StatusBadRequest, "segments are required")
		return
	}

	asset, err := s.Store.GetAsset(r.Context(), assetID)
	if err != nil {
		storeError(w, err)
		return
	}
	rel, err := caption.SaveDraft(s.MediaRoot, assetID, req.Segments)
	if err != nil {
		s.logger.Error().Err(err).Msg("saving caption draft")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Editing cues does not change the detected language.
	if err := s.Store.SetCaptionDraft(r.Context(), assetID, rel, asset.CaptionLanguage); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft": rel})
}
