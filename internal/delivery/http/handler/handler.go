package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/delivery/http/request"
	"github.com/user/imagegrab-service/internal/delivery/http/response"
	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/usecase"
	"github.com/user/imagegrab-service/pkg/utils"
)

// ImageDownloader serves one image as a named file.
type ImageDownloader interface {
	Download(ctx context.Context, url, name string) (*entity.ArchiveEntry, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	sessions   usecase.SessionManager
	downloader ImageDownloader
	checks     map[string]HealthCheck
	logger     *zap.Logger
}

func NewHandler(sessions usecase.SessionManager, downloader ImageDownloader, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		downloader: downloader,
		checks:     checks,
		logger:     logger,
	}
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !validPageURL(req.PageURL) {
		h.writeJSONError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	th, details, err := req.Resolve()
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Start(r.Context(), usecase.StartRequest{
		PageURL:        req.PageURL,
		Thresholds:     th,
		DetailsEnabled: details,
	})
	if err != nil {
		h.writeError(w, "Failed to start grab", err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.NewSessionResponse(s))
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "Failed to get session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewSessionResponse(s))
}

func (h *Handler) HandleRegrab(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Regrab(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "Failed to restart grab", err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.NewSessionResponse(s))
}

func (h *Handler) HandleRank(w http.ResponseWriter, r *http.Request) {
	var req request.RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Rank(r.Context(), chi.URLParam(r, "id"), req.Key, req.Version)
	if err != nil {
		h.writeError(w, "Failed to rank collection", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewSessionResponse(s))
}

func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	var req request.ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	archive, err := h.sessions.Archive(r.Context(), chi.URLParam(r, "id"), req.Identifiers)
	if err != nil {
		h.writeError(w, "Failed to build archive", err)
		return
	}
	h.writeAttachment(w, usecase.ArchiveFileName, "application/zip", archive)
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, "Failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", http.StatusBadRequest)
		return
	}
	if !validPageURL(rawURL) {
		h.writeJSONError(w, "Invalid URL format in query parameter", http.StatusBadRequest)
		return
	}

	entry, err := h.downloader.Download(r.Context(), rawURL, r.URL.Query().Get("name"))
	if err != nil {
		h.writeError(w, "Failed to download image", err)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(entry.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.writeAttachment(w, entry.Name, contentType, entry.Bytes)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "ok"}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthy = false
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		healthStatus["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	h.writeJSON(w, http.StatusOK, healthStatus)
}

func validPageURL(raw string) bool {
	if _, err := url.ParseRequestURI(raw); err != nil {
		return false
	}
	return utils.IsFetchable(raw)
}

// statusFor maps domain errors to HTTP statuses. Zero means internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrEmptySelection),
		errors.Is(err, entity.ErrInvalidSortKey),
		errors.Is(err, usecase.ErrNotInCollection):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrStaleVersion),
		errors.Is(err, entity.ErrCollectionLoading):
		return http.StatusConflict
	case errors.Is(err, entity.ErrUnsupportedResourceType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, entity.ErrNoCandidates):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrFetchFailed),
		errors.Is(err, entity.ErrPageUnavailable):
		return http.StatusBadGateway
	}
	return 0
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	if status := statusFor(err); status != 0 {
		h.writeJSONError(w, err.Error(), status)
		return
	}
	h.logger.Error(msg, zap.Error(err))
	h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeAttachment(w http.ResponseWriter, name, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write attachment", zap.String("name", name), zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
