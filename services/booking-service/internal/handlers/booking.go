package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/model"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/rooms"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/storage"
)

// RoomExpiryGrace keeps the meeting room open past the booked end so calls
// that run long are not cut off.
const RoomExpiryGrace = time.Hour

type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, evt outbox.Event) error
	SlotTaken(ctx context.Context, creatorCode string, at time.Time) (bool, error)
	Cancel(ctx context.Context, id string, eventFn func(b model.Booking) outbox.Event) (model.Booking, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Booking, error)
	ListByCreator(ctx context.Context, creatorCode string, limit int) ([]model.Booking, error)
}

// CreatorDirectory resolves creator codes to display names.
type CreatorDirectory interface {
	CreatorName(ctx context.Context, creatorCode string) (string, bool, error)
}

type BookingHandler struct {
	store    BookingStore
	creators CreatorDirectory
	rooms    rooms.Provisioner
	logger   *slog.Logger
}

func NewBookingHandler(store BookingStore, creators CreatorDirectory, provisioner rooms.Provisioner, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{store: store, creators: creators, rooms: provisioner, logger: logger}
}

type createBookingRequest struct {
	UserID            string `json:"userId"`
	CreatorCode       string `json:"creatorCode"`
	Duration          int    `json:"durationMins"`
	ScheduledAt       string `json:"scheduledAt"`
	CheckoutSessionID string `json:"checkoutSessionId"`
}

type bookingItem struct {
	BookingID   string `json:"bookingId"`
	UserID      string `json:"userId"`
	CreatorCode string `json:"creatorCode"`
	CreatorName string `json:"creatorName"`
	Duration    int    `json:"durationMins"`
	ScheduledAt string `json:"scheduledAt"`
	EndTime     string `json:"endTime"`
	Status      string `json:"status"`
	RoomURL     string `json:"roomUrl,omitempty"`
	HostRoomURL string `json:"hostRoomUrl,omitempty"`
	CancelledAt string `json:"cancelledAt,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type cancelBookingRequest struct {
	BookingID string `json:"bookingId"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"bookingId"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelledAt"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.CreatorCode = strings.TrimSpace(req.CreatorCode)
	req.CheckoutSessionID = strings.TrimSpace(req.CheckoutSessionID)
	if req.UserID == "" || req.CreatorCode == "" {
		http.Error(w, "userId and creatorCode required", http.StatusBadRequest)
		return
	}
	if req.Duration != 15 && req.Duration != 30 {
		http.Error(w, "durationMins must be 15 or 30", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		http.Error(w, "invalid scheduledAt", http.StatusBadRequest)
		return
	}
	start = start.UTC()
	if !start.After(time.Now().UTC()) {
		http.Error(w, "scheduledAt must be in the future", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	creatorName, found, err := h.creators.CreatorName(ctx, req.CreatorCode)
	if err != nil {
		http.Error(w, "failed to look up creator", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "unknown creator code", http.StatusNotFound)
		return
	}

	// Advisory pre-check; the insert's unique index remains authoritative.
	// Saves provisioning a room that would be thrown away on conflict.
	taken, err := h.store.SlotTaken(ctx, req.CreatorCode, start)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "time slot already booked", http.StatusConflict)
		return
	}

	end := start.Add(time.Duration(req.Duration) * time.Minute)

	// Provision the room before persisting so a confirmed booking always
	// carries a working link. A failed insert leaks the room; rooms expire
	// on their own.
	room, err := h.rooms.CreateRoom(ctx, end.Add(RoomExpiryGrace))
	if err != nil {
		h.logger.Error("room provisioning failed", "creator_code", req.CreatorCode, "err", err)
		http.Error(w, "meeting room provider unavailable", http.StatusBadGateway)
		return
	}

	b := &model.Booking{
		UserID:            req.UserID,
		CreatorCode:       req.CreatorCode,
		CreatorName:       creatorName,
		DurationMins:      req.Duration,
		ScheduledAt:       start,
		EndTime:           end,
		Status:            model.StatusConfirmed,
		RoomURL:           room.RoomURL,
		HostRoomURL:       room.HostRoomURL,
		MeetingID:         room.MeetingID,
		CheckoutSessionID: req.CheckoutSessionID,
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":       b.UserID,
		"creator_code":  b.CreatorCode,
		"creator_name":  b.CreatorName,
		"duration_mins": b.DurationMins,
		"scheduled_at":  b.ScheduledAt.Format(time.RFC3339),
		"end_time":      b.EndTime.Format(time.RFC3339),
		"room_url":      b.RoomURL,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}

	err = h.store.Create(ctx, b, outbox.Event{
		AggregateType: "booking",
		EventType:     "booking.confirmed.v1",
		Payload:       payload,
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toBookingItem(*b, false))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	creatorCode := strings.TrimSpace(r.URL.Query().Get("creatorCode"))
	if (userID == "") == (creatorCode == "") {
		http.Error(w, "exactly one of userId or creatorCode required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var bookings []model.Booking
	var err error
	forCreator := creatorCode != ""
	if forCreator {
		bookings, err = h.store.ListByCreator(r.Context(), creatorCode, limit)
	} else {
		bookings, err = h.store.ListByUser(r.Context(), userID, limit)
	}
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b, forCreator))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "bookingId required", http.StatusBadRequest)
		return
	}

	b, err := h.store.Cancel(r.Context(), req.BookingID, func(b model.Booking) outbox.Event {
		payload, _ := json.Marshal(map[string]any{
			"booking_id":   b.ID,
			"user_id":      b.UserID,
			"creator_code": b.CreatorCode,
			"scheduled_at": b.ScheduledAt.UTC().Format(time.RFC3339),
			"cancelled_at": b.CancelledAt.UTC().Format(time.RFC3339),
		})
		return outbox.Event{
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     "booking.cancelled.v1",
			Payload:       payload,
		}
	})
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, storage.ErrAlreadyCancelled) {
			h.writeCancelResponse(w, b)
			return
		}
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, b)
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, b model.Booking) {
	resp := cancelBookingResponse{
		BookingID: b.ID,
		Status:    model.StatusCancelled,
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// toBookingItem shapes a booking for the wire. The host room link carries
// host controls and is only included on the creator-facing view.
func toBookingItem(b model.Booking, forCreator bool) bookingItem {
	item := bookingItem{
		BookingID:   b.ID,
		UserID:      b.UserID,
		CreatorCode: b.CreatorCode,
		CreatorName: b.CreatorName,
		Duration:    b.DurationMins,
		ScheduledAt: b.ScheduledAt.UTC().Format(time.RFC3339),
		EndTime:     b.EndTime.UTC().Format(time.RFC3339),
		Status:      b.Status,
		RoomURL:     b.RoomURL,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if forCreator {
		item.HostRoomURL = b.HostRoomURL
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}
