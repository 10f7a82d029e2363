package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/model"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/rooms"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/storage"
)

type fakeBookingStore struct {
	mu       sync.Mutex
	taken    map[string]bool
	created  []model.Booking
	byID     map[string]model.Booking
	events   []outbox.Event
	createID int
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{taken: map[string]bool{}, byID: map[string]model.Booking{}}
}

func (s *fakeBookingStore) Create(ctx context.Context, b *model.Booking, evt outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.CreatorCode + "|" + b.ScheduledAt.UTC().Format(time.RFC3339)
	if s.taken[key] {
		return storage.ErrSlotTaken
	}
	s.taken[key] = true
	s.createID++
	b.ID = fmt.Sprintf("bk-%04d", s.createID)
	b.CreatedAt = time.Now().UTC()
	s.created = append(s.created, *b)
	s.byID[b.ID] = *b
	s.events = append(s.events, evt)
	return nil
}

func (s *fakeBookingStore) SlotTaken(ctx context.Context, creatorCode string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken[creatorCode+"|"+at.UTC().Format(time.RFC3339)], nil
}

func (s *fakeBookingStore) Cancel(ctx context.Context, id string, eventFn func(b model.Booking) outbox.Event) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	if b.Status == model.StatusCancelled {
		return b, storage.ErrAlreadyCancelled
	}
	now := time.Now().UTC()
	b.Status = model.StatusCancelled
	b.CancelledAt = &now
	s.byID[id] = b
	// Cancelled rows no longer hold the slot, matching the partial index.
	delete(s.taken, b.CreatorCode+"|"+b.ScheduledAt.UTC().Format(time.RFC3339))
	s.events = append(s.events, eventFn(b))
	return b, nil
}

func (s *fakeBookingStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.created {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) ListByCreator(ctx context.Context, creatorCode string, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.created {
		if b.CreatorCode == creatorCode {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	names map[string]string
}

func (d fakeDirectory) CreatorName(ctx context.Context, code string) (string, bool, error) {
	name, ok := d.names[code]
	return name, ok, nil
}

type fakeProvisioner struct {
	fail  bool
	calls int
}

func (p *fakeProvisioner) CreateRoom(ctx context.Context, expiresAt time.Time) (rooms.Room, error) {
	p.calls++
	if p.fail {
		return rooms.Room{}, context.DeadlineExceeded
	}
	return rooms.Room{
		MeetingID:   "m-1",
		RoomURL:     "https://rooms.example/r",
		HostRoomURL: "https://rooms.example/r?host=1",
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestHandler(store *fakeBookingStore, prov *fakeProvisioner) *BookingHandler {
	dir := fakeDirectory{names: map[string]string{"LUNA-ABC234": "Luna"}}
	return NewBookingHandler(store, dir, prov, testLogger())
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func futureSlot() string {
	return time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour).Format(time.RFC3339)
}

func TestCreateBooking(t *testing.T) {
	store := newFakeBookingStore()
	prov := &fakeProvisioner{}
	h := newTestHandler(store, prov)

	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + futureSlot() + `","checkoutSessionId":"cs_test_123"}`
	rec := postJSON(t, h.Create, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed status, got %q", resp.Status)
	}
	if resp.RoomURL == "" {
		t.Fatal("expected room url in response")
	}
	if resp.HostRoomURL != "" {
		t.Fatal("host room url must not be exposed to the booking user")
	}
	if prov.calls != 1 {
		t.Fatalf("expected one provisioning call, got %d", prov.calls)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one stored booking, got %d", len(store.created))
	}
	b := store.created[0]
	if got := b.EndTime.Sub(b.ScheduledAt); got != 30*time.Minute {
		t.Fatalf("expected 30m duration, got %s", got)
	}
	if b.CheckoutSessionID != "cs_test_123" {
		t.Fatalf("expected checkout session ref to be stored, got %q", b.CheckoutSessionID)
	}
	if len(store.events) != 1 || store.events[0].EventType != "booking.confirmed.v1" {
		t.Fatalf("expected booking.confirmed.v1 event, got %+v", store.events)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	h := newTestHandler(newFakeBookingStore(), &fakeProvisioner{})
	slot := futureSlot()

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing user", `{"creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + slot + `"}`},
		{"bad duration", `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":45,"scheduledAt":"` + slot + `"}`},
		{"bad time", `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"tomorrow"}`},
		{"past time", `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"2020-01-01T10:00:00Z"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.Create, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestCreateBookingUnknownCreator(t *testing.T) {
	prov := &fakeProvisioner{}
	h := newTestHandler(newFakeBookingStore(), prov)

	body := `{"userId":"u1","creatorCode":"NOPE-XXXXXX","durationMins":15,"scheduledAt":"` + futureSlot() + `"}`
	rec := postJSON(t, h.Create, body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if prov.calls != 0 {
		t.Fatal("must not provision a room for an unknown creator")
	}
}

func TestCreateBookingProvisionerDown(t *testing.T) {
	store := newFakeBookingStore()
	h := newTestHandler(store, &fakeProvisioner{fail: true})

	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":15,"scheduledAt":"` + futureSlot() + `"}`
	rec := postJSON(t, h.Create, body)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if len(store.created) != 0 {
		t.Fatal("booking must not persist when provisioning fails")
	}
}

func TestCreateBookingSlotConflict(t *testing.T) {
	store := newFakeBookingStore()
	h := newTestHandler(store, &fakeProvisioner{})

	slot := futureSlot()
	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + slot + `"}`
	if rec := postJSON(t, h.Create, body); rec.Code != http.StatusCreated {
		t.Fatalf("first booking: expected 201, got %d", rec.Code)
	}

	body2 := `{"userId":"u2","creatorCode":"LUNA-ABC234","durationMins":15,"scheduledAt":"` + slot + `"}`
	rec := postJSON(t, h.Create, body2)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking for same slot: expected 409, got %d", rec.Code)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected exactly one persisted booking, got %d", len(store.created))
	}
}

func TestCreateBookingConflictSkipsProvisioning(t *testing.T) {
	store := newFakeBookingStore()
	prov := &fakeProvisioner{}
	h := newTestHandler(store, prov)

	slot := futureSlot()
	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + slot + `"}`
	if rec := postJSON(t, h.Create, body); rec.Code != http.StatusCreated {
		t.Fatalf("first booking: expected 201, got %d", rec.Code)
	}
	if prov.calls != 1 {
		t.Fatalf("expected 1 provisioning call, got %d", prov.calls)
	}

	rec := postJSON(t, h.Create, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if prov.calls != 1 {
		t.Fatalf("conflict should not provision a room, got %d calls", prov.calls)
	}
}

func TestCreateBookingConcurrentSameSlot(t *testing.T) {
	store := newFakeBookingStore()
	h := newTestHandler(store, &fakeProvisioner{})
	slot := futureSlot()

	const racers = 8
	codes := make(chan int, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + slot + `"}`
			rec := postJSON(t, h.Create, body)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	created, conflict := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflict++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if created != 1 || conflict != racers-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", racers-1, created, conflict)
	}
}

func TestCancelBooking(t *testing.T) {
	store := newFakeBookingStore()
	h := newTestHandler(store, &fakeProvisioner{})

	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + futureSlot() + `"}`
	rec := postJSON(t, h.Create, body)
	var created bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = postJSON(t, h.Cancel, `{"bookingId":"`+created.BookingID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp cancelBookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode cancel response: %v", err)
	}
	if resp.Status != model.StatusCancelled || resp.CancelledAt == "" {
		t.Fatalf("unexpected cancel response %+v", resp)
	}
	if evt := store.events[len(store.events)-1]; evt.EventType != "booking.cancelled.v1" {
		t.Fatalf("expected booking.cancelled.v1 event, got %q", evt.EventType)
	}

	// Cancelling again reports the existing cancellation.
	rec = postJSON(t, h.Cancel, `{"bookingId":"`+created.BookingID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat cancel: expected 200, got %d", rec.Code)
	}
}

func TestCancelFreesSlotForRebooking(t *testing.T) {
	store := newFakeBookingStore()
	h := newTestHandler(store, &fakeProvisioner{})

	slot := futureSlot()
	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + slot + `"}`
	rec := postJSON(t, h.Create, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	if rec := postJSON(t, h.Cancel, `{"bookingId":"`+created.BookingID+`"}`); rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}

	body2 := `{"userId":"u2","creatorCode":"LUNA-ABC234","durationMins":15,"scheduledAt":"` + slot + `"}`
	if rec := postJSON(t, h.Create, body2); rec.Code != http.StatusCreated {
		t.Fatalf("rebooking a cancelled slot: expected 201, got %d", rec.Code)
	}
}

func TestCancelBookingNotFound(t *testing.T) {
	h := newTestHandler(newFakeBookingStore(), &fakeProvisioner{})
	rec := postJSON(t, h.Cancel, `{"bookingId":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListBookingsHostURLVisibility(t *testing.T) {
	store := newFakeBookingStore()
	h := newTestHandler(store, &fakeProvisioner{})

	body := `{"userId":"u1","creatorCode":"LUNA-ABC234","durationMins":30,"scheduledAt":"` + futureSlot() + `"}`
	if rec := postJSON(t, h.Create, body); rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/bookings?userId=u1", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	var userItems []bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &userItems); err != nil {
		t.Fatalf("decode user list: %v", err)
	}
	if len(userItems) != 1 || userItems[0].HostRoomURL != "" {
		t.Fatalf("user view must not include host room url: %+v", userItems)
	}

	req = httptest.NewRequest(http.MethodGet, "/bookings?creatorCode=LUNA-ABC234", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	var creatorItems []bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &creatorItems); err != nil {
		t.Fatalf("decode creator list: %v", err)
	}
	if len(creatorItems) != 1 || creatorItems[0].HostRoomURL == "" {
		t.Fatalf("creator view must include host room url: %+v", creatorItems)
	}
}

func TestListBookingsRequiresExactlyOneFilter(t *testing.T) {
	h := newTestHandler(newFakeBookingStore(), &fakeProvisioner{})

	for _, target := range []string{"/bookings", "/bookings?userId=u1&creatorCode=LUNA-ABC234"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}
