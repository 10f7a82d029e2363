package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/velvetchat/velvet-api/services/chat-service/internal/model"
)

type MediaStore interface {
	RandomLocked(ctx context.Context, creatorCode, userID, mediaType string) (model.Media, bool, bool, error)
	List(ctx context.Context, creatorCode string) ([]model.Media, error)
	Insert(ctx context.Context, m *model.Media) error
	Delete(ctx context.Context, id string) (bool, error)
	Unlock(ctx context.Context, userID, creatorCode, mediaID string) error
}

type MediaHandler struct {
	store  MediaStore
	logger *slog.Logger
}

func NewMediaHandler(store MediaStore, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

type mediaItem struct {
	ID          string `json:"id"`
	CreatorCode string `json:"creatorCode"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Caption     string `json:"caption,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// Serve routes the media endpoint: the default GET picks a random item the
// user hasn't unlocked, mode=list is the creator dashboard view, DELETE
// removes an item.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	creatorCode := strings.TrimSpace(r.URL.Query().Get("creatorCode"))
	if creatorCode == "" {
		http.Error(w, "creatorCode required", http.StatusBadRequest)
		return
	}

	mode := strings.TrimSpace(r.URL.Query().Get("mode"))
	switch r.Method {
	case http.MethodGet:
		if mode == "list" {
			h.list(w, r, creatorCode)
			return
		}
		h.random(w, r, creatorCode)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *MediaHandler) random(w http.ResponseWriter, r *http.Request, creatorCode string) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	mediaType := strings.TrimSpace(r.URL.Query().Get("type"))

	m, available, alreadyUnlocked, err := h.store.RandomLocked(r.Context(), creatorCode, userID, mediaType)
	if err != nil {
		http.Error(w, "failed to load media", http.StatusInternalServerError)
		return
	}
	if !available {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"message":   "No content available yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available":       true,
		"media":           toMediaItem(m),
		"alreadyUnlocked": alreadyUnlocked,
	})
}

func (h *MediaHandler) list(w http.ResponseWriter, r *http.Request, creatorCode string) {
	items, err := h.store.List(r.Context(), creatorCode)
	if err != nil {
		http.Error(w, "failed to list media", http.StatusInternalServerError)
		return
	}
	out := make([]mediaItem, 0, len(items))
	for _, m := range items {
		out = append(out, toMediaItem(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": out})
}

func (h *MediaHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to delete media", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type uploadMediaRequest struct {
	CreatorCode string `json:"creatorCode"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	Caption     string `json:"caption"`
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req uploadMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CreatorCode = strings.TrimSpace(req.CreatorCode)
	req.Type = strings.TrimSpace(req.Type)
	req.URL = strings.TrimSpace(req.URL)
	if req.CreatorCode == "" || req.Type == "" || req.URL == "" {
		http.Error(w, "creatorCode, type, and url required", http.StatusBadRequest)
		return
	}

	m := &model.Media{
		CreatorCode: req.CreatorCode,
		Type:        req.Type,
		URL:         req.URL,
		Caption:     strings.TrimSpace(req.Caption),
	}
	if err := h.store.Insert(r.Context(), m); err != nil {
		http.Error(w, "failed to store media", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toMediaItem(*m))
}

type unlockRequest struct {
	UserID      string `json:"userId"`
	CreatorCode string `json:"creatorCode"`
	MediaID     string `json:"mediaId"`
}

// Unlock marks a media item as unlocked for the user. The credit spend
// happens client-side against the billing balance before this call.
func (h *MediaHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.CreatorCode = strings.TrimSpace(req.CreatorCode)
	req.MediaID = strings.TrimSpace(req.MediaID)
	if req.UserID == "" || req.CreatorCode == "" || req.MediaID == "" {
		http.Error(w, "userId, creatorCode, and mediaId required", http.StatusBadRequest)
		return
	}

	if err := h.store.Unlock(r.Context(), req.UserID, req.CreatorCode, req.MediaID); err != nil {
		http.Error(w, "failed to unlock media", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func toMediaItem(m model.Media) mediaItem {
	return mediaItem{
		ID:          m.ID,
		CreatorCode: m.CreatorCode,
		Type:        m.Type,
		URL:         m.URL,
		Caption:     m.Caption,
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
