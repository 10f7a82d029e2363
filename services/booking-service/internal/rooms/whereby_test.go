package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWherebyClient_CreateRoom(t *testing.T) {
	expires := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/meetings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req createMeetingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.EndDate != "2026-03-10T15:30:00Z" {
			t.Errorf("unexpected endDate %q", req.EndDate)
		}
		if len(req.Fields) != 1 || req.Fields[0] != "hostRoomUrl" {
			t.Errorf("unexpected fields %v", req.Fields)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Room{
			MeetingID:   "m-123",
			RoomURL:     "https://rooms.example/abc",
			HostRoomURL: "https://rooms.example/abc?host=1",
		})
	}))
	defer srv.Close()

	c := NewWherebyClient(srv.URL, "test-key")
	room, err := c.CreateRoom(context.Background(), expires)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.MeetingID != "m-123" || room.RoomURL == "" || room.HostRoomURL == "" {
		t.Fatalf("unexpected room %+v", room)
	}
}

func TestWherebyClient_CreateRoomUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewWherebyClient(srv.URL, "test-key")
	if _, err := c.CreateRoom(context.Background(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error on upstream failure")
	}
}

func TestWherebyClient_CreateRoomMissingRoomURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meetingId":"m-1"}`))
	}))
	defer srv.Close()

	c := NewWherebyClient(srv.URL, "test-key")
	if _, err := c.CreateRoom(context.Background(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error on missing roomUrl")
	}
}
