package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyperjump/egaku/internal/keyword"
	"github.com/hyperjump/egaku/internal/models"
	"github.com/hyperjump/egaku/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	requestID := uuid.NewString()
	s.logger.Debug("match request", zap.String("request_id", requestID), zap.Int("points", len(req.Points)))

	result, err := s.service.Match(r.Context(), req.Points)
	if err != nil {
		s.logger.Error("match failed", zap.String("request_id", requestID), zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	result.Name = result.String()
	result.RequestID = requestID
	s.respondJSON(w, http.StatusOK, result)
}

type rankResponse struct {
	RequestID string               `json:"request_id"`
	Results   []models.RankedMatch `json:"results"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.K == 0 {
		req.K = s.config.Match.TopK
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	requestID := uuid.NewString()
	s.logger.Debug("rank request", zap.String("request_id", requestID), zap.Int("k", req.K))

	ranked, err := s.service.Rank(r.Context(), req.Points, req.K)
	if err != nil {
		s.logger.Error("rank failed", zap.String("request_id", requestID), zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if ranked == nil {
		ranked = []models.RankedMatch{}
	}
	s.respondJSON(w, http.StatusOK, rankResponse{RequestID: requestID, Results: ranked})
}

type drawingSummary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (s *Server) handleListDrawings(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	lib := s.service.Store().Snapshot()
	names := lib.Names()
	if q := r.URL.Query().Get("q"); q != "" {
		if s.catalog == nil {
			s.respondError(w, http.StatusNotImplemented, "catalog search not enabled")
			return
		}
		hits, err := s.catalog.Search(r.Context(), q, limit)
		if err != nil {
			s.logger.Error("catalog search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		names = keyword.Names(hits)
	}

	out := make([]drawingSummary, 0, min(len(names), limit))
	for _, name := range names {
		if len(out) == limit {
			break
		}
		if seq, ok := lib.Get(name); ok {
			out = append(out, drawingSummary{Name: name, Count: len(seq)})
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"drawings": out, "total": lib.Len()})
}

func (s *Server) handleGetDrawing(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.storage != nil {
		d, err := s.storage.GetDrawing(r.Context(), name)
		if err == nil {
			s.respondJSON(w, http.StatusOK, d)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("get drawing failed", zap.String("name", name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	seq, ok := s.service.Store().Snapshot().Get(name)
	if !ok {
		s.respondError(w, http.StatusNotFound, "drawing not found")
		return
	}
	s.respondJSON(w, http.StatusOK, &models.Drawing{Name: name, Count: len(seq), Points: seq})
}

func (s *Server) handlePutDrawing(w http.ResponseWriter, r *http.Request) {
	var d models.Drawing
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := d.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	d.SourcePath = ""
	s.logger.Debug("store drawing request", zap.String("name", d.Name), zap.Int("points", len(d.Points)))

	ctx := r.Context()
	if s.storage != nil {
		if err := s.storage.PutDrawing(ctx, &d); err != nil {
			s.logger.Error("store drawing failed", zap.String("name", d.Name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if err := s.service.Store().Upsert(d.Name, d.Points); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.catalog != nil {
		if err := s.catalog.Index(ctx, d.Name, d.Description); err != nil {
			s.logger.Warn("catalog index failed", zap.String("name", d.Name), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": d.ID, "name": d.Name, "status": "stored"})
}

func (s *Server) handleDeleteDrawing(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx := r.Context()
	s.logger.Debug("delete drawing request", zap.String("name", name))

	_, found := s.service.Store().Snapshot().Get(name)
	if s.storage != nil {
		err := s.storage.DeleteDrawing(ctx, name)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Error("delete drawing failed", zap.String("name", name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if !found {
		s.respondError(w, http.StatusNotFound, "drawing not found")
		return
	}
	s.service.Store().Delete(name)
	if s.catalog != nil {
		if err := s.catalog.Delete(ctx, name); err != nil {
			s.logger.Warn("catalog delete failed", zap.String("name", name), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"name": name, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	store := s.service.Store()
	resp := map[string]interface{}{
		"ready":         store.Ready() && s.service.Matcher().Ready(),
		"library_ready": store.Ready(),
		"references":    store.Len(),
	}
	if s.storage != nil {
		n, err := s.storage.CountDrawings(r.Context())
		if err != nil {
			s.logger.Error("status: count drawings failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["stored_drawings"] = n
		if size, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
			resp["database_size_bytes"] = size
		}
	}
	resp["config"] = map[string]interface{}{
		"embedding_backend":    s.config.Embedding.Backend,
		"points":               s.service.Matcher().Points(),
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"sampling_policy":      s.config.Sampling.Policy,
		"jitter_ratio":         s.config.Sampling.JitterRatio,
		"match_workers":        s.config.Match.Workers,
		"top_k":                s.config.Match.TopK,
		"database_path":        s.config.Storage.DatabasePath,
		"library_directories":  s.config.Library.Directories,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
