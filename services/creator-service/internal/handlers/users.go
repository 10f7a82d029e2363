package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/velvetchat/velvet-api/services/creator-service/internal/model"
)

type UserStore interface {
	ListUsers(ctx context.Context) ([]model.UserAccount, error)
}

type UserHandler struct {
	store  UserStore
	logger *slog.Logger
}

func NewUserHandler(store UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{store: store, logger: logger}
}

type userItem struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	CreatorCode string         `json:"creatorCode,omitempty"`
	Credits     map[string]int `json:"credits"`
	TotalSpent  int64          `json:"totalSpent"`
	CreatedAt   string         `json:"createdAt"`
}

// List serves the admin user roster with live credit balances.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		http.Error(w, "failed to list users", http.StatusInternalServerError)
		return
	}

	items := make([]userItem, 0, len(users))
	for _, u := range users {
		items = append(items, userItem{
			ID:          u.ID,
			Email:       u.Email,
			CreatorCode: u.CreatorCode,
			Credits: map[string]int{
				"chocolates": u.Chocolates,
				"roses":      u.Roses,
				"champagne":  u.Champagne,
				"hearts":     u.Hearts,
			},
			TotalSpent: u.TotalSpent,
			CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": items})
}
