package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/velvetchat/velvet-api/services/booking-service/internal/schedule"
)

type AvailabilityStore interface {
	Template(ctx context.Context, creatorCode string) ([]schedule.TemplateSlot, bool, error)
	Save(ctx context.Context, creatorCode string, slots []schedule.TemplateSlot) error
}

// BookedTimesLister reports start times already held by active bookings.
type BookedTimesLister interface {
	BookedTimes(ctx context.Context, creatorCode string, from time.Time) ([]time.Time, error)
}

type AvailabilityHandler struct {
	store    AvailabilityStore
	bookings BookedTimesLister
	creators CreatorDirectory
	logger   *slog.Logger
	now      func() time.Time
}

func NewAvailabilityHandler(store AvailabilityStore, bookings BookedTimesLister, creators CreatorDirectory, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		store:    store,
		bookings: bookings,
		creators: creators,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type slotItem struct {
	StartTime string `json:"startTime"`
	DateLabel string `json:"dateLabel"`
	TimeLabel string `json:"timeLabel"`
	DayOfWeek int    `json:"dayOfWeek"`
}

type saveTemplateRequest struct {
	CreatorCode string                  `json:"creatorCode"`
	Slots       []schedule.TemplateSlot `json:"slots"`
}

// Slots serves the bookable start times for a creator over the coming two
// weeks: the weekly template expanded to concrete times, minus anything
// already booked and anything inside the lead window.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	creatorCode := strings.TrimSpace(r.URL.Query().Get("creatorCode"))
	if creatorCode == "" {
		http.Error(w, "creatorCode required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, found, err := h.creators.CreatorName(ctx, creatorCode); err != nil {
		http.Error(w, "failed to look up creator", http.StatusInternalServerError)
		return
	} else if !found {
		http.Error(w, "unknown creator code", http.StatusNotFound)
		return
	}

	template, _, err := h.store.Template(ctx, creatorCode)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	now := h.now()
	booked, err := h.bookings.BookedTimes(ctx, creatorCode, now)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	slots := schedule.UpcomingSlots(now, template, booked)
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.StartTime.Format(time.RFC3339),
			DateLabel: s.DateLabel,
			TimeLabel: s.TimeLabel,
			DayOfWeek: s.DayOfWeek,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

// SaveTemplate replaces a creator's weekly availability template.
func (h *AvailabilityHandler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req saveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CreatorCode = strings.TrimSpace(req.CreatorCode)
	if req.CreatorCode == "" {
		http.Error(w, "creatorCode required", http.StatusBadRequest)
		return
	}
	for _, s := range req.Slots {
		if !s.Valid() {
			http.Error(w, "slot entries need dayOfWeek 0-6, hour 0-23, minute 0 or 30", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	if _, found, err := h.creators.CreatorName(ctx, req.CreatorCode); err != nil {
		http.Error(w, "failed to look up creator", http.StatusInternalServerError)
		return
	} else if !found {
		http.Error(w, "unknown creator code", http.StatusNotFound)
		return
	}

	if err := h.store.Save(ctx, req.CreatorCode, req.Slots); err != nil {
		h.logger.Error("save availability template failed", "creator_code", req.CreatorCode, "err", err)
		http.Error(w, "failed to save availability", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int{"saved": len(req.Slots)})
}
