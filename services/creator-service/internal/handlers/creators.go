package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/velvetchat/velvet-api/services/creator-service/internal/model"
	"github.com/velvetchat/velvet-api/services/creator-service/internal/storage"
)

// codeCharset avoids characters that read ambiguously when users type a
// creator code by hand (no 0/O, 1/I).
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeSuffixLen = 6

type CreatorStore interface {
	CreateCreator(ctx context.Context, c *model.Creator) error
	ListCreators(ctx context.Context) ([]model.Creator, error)
	GetCreatorByCode(ctx context.Context, code string) (model.Creator, bool, error)
	UpdateCreator(ctx context.Context, id string, u storage.CreatorUpdate) (bool, error)
	DeleteCreator(ctx context.Context, id string) (bool, error)
}

type CreatorHandler struct {
	store  CreatorStore
	logger *slog.Logger
}

func NewCreatorHandler(store CreatorStore, logger *slog.Logger) *CreatorHandler {
	return &CreatorHandler{store: store, logger: logger}
}

type creatorItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Age       int    `json:"age,omitempty"`
	Location  string `json:"location,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type createCreatorRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Location string `json:"location"`
	Bio      string `json:"bio"`
}

// Serve routes collection-level requests: GET lists, POST creates.
func (h *CreatorHandler) Serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CreatorHandler) list(w http.ResponseWriter, r *http.Request) {
	if code := strings.TrimSpace(r.URL.Query().Get("code")); code != "" {
		c, found, err := h.store.GetCreatorByCode(r.Context(), code)
		if err != nil {
			http.Error(w, "failed to load creator", http.StatusInternalServerError)
			return
		}
		if !found {
			http.Error(w, "creator not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toCreatorItem(c))
		return
	}

	creators, err := h.store.ListCreators(r.Context())
	if err != nil {
		http.Error(w, "failed to list creators", http.StatusInternalServerError)
		return
	}
	items := make([]creatorItem, 0, len(creators))
	for _, c := range creators {
		items = append(items, toCreatorItem(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"creators": items})
}

func (h *CreatorHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCreatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	c := &model.Creator{
		Name:     req.Name,
		Age:      req.Age,
		Location: strings.TrimSpace(req.Location),
		Bio:      strings.TrimSpace(req.Bio),
		Status:   "active",
	}

	// A fresh random suffix on each attempt makes collisions vanishingly
	// rare; three tries is plenty.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		c.Code = generateCreatorCode(req.Name)
		err = h.store.CreateCreator(r.Context(), c)
		if !errors.Is(err, storage.ErrCodeTaken) {
			break
		}
	}
	if err != nil {
		h.logger.Error("create creator failed", "err", err)
		http.Error(w, "failed to create creator", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"id":      c.ID,
		"code":    c.Code,
		"creator": toCreatorItem(*c),
	})
}

type updateCreatorRequest struct {
	ID       string  `json:"id"`
	Age      *int    `json:"age"`
	Location *string `json:"location"`
	Bio      *string `json:"bio"`
	Status   *string `json:"status"`
}

func (h *CreatorHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateCreatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	updated, err := h.store.UpdateCreator(r.Context(), req.ID, storage.CreatorUpdate{
		Age:      req.Age,
		Location: req.Location,
		Bio:      req.Bio,
		Status:   req.Status,
	})
	if err != nil {
		http.Error(w, "failed to update creator", http.StatusInternalServerError)
		return
	}
	if !updated {
		http.Error(w, "creator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *CreatorHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	deleted, err := h.store.DeleteCreator(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to delete creator", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "creator not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// generateCreatorCode derives the public handle: the name uppercased with
// spaces stripped, a dash, and a random suffix.
func generateCreatorCode(name string) string {
	base := strings.ToUpper(strings.ReplaceAll(name, " ", ""))
	suffix := make([]byte, codeSuffixLen)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; there is no sensible recovery.
			panic(err)
		}
		suffix[i] = codeCharset[n.Int64()]
	}
	return base + "-" + string(suffix)
}

func toCreatorItem(c model.Creator) creatorItem {
	return creatorItem{
		ID:        c.ID,
		Name:      c.Name,
		Code:      c.Code,
		Age:       c.Age,
		Location:  c.Location,
		Bio:       c.Bio,
		Status:    c.Status,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
