package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/velvetchat/velvet-api/services/chat-service/internal/model"
)

type fakeMediaStore struct {
	items    map[string]model.Media
	unlocked map[string]bool // userID|mediaID
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{items: map[string]model.Media{}, unlocked: map[string]bool{}}
}

func (s *fakeMediaStore) RandomLocked(ctx context.Context, creatorCode, userID, mediaType string) (model.Media, bool, bool, error) {
	var all, locked []model.Media
	for _, m := range s.items {
		if m.CreatorCode != creatorCode {
			continue
		}
		if mediaType != "" && m.Type != mediaType {
			continue
		}
		all = append(all, m)
		if !s.unlocked[userID+"|"+m.ID] {
			locked = append(locked, m)
		}
	}
	if len(all) == 0 {
		return model.Media{}, false, false, nil
	}
	if len(locked) == 0 {
		return all[0], true, true, nil
	}
	return locked[0], true, false, nil
}

func (s *fakeMediaStore) List(ctx context.Context, creatorCode string) ([]model.Media, error) {
	var out []model.Media
	for _, m := range s.items {
		if m.CreatorCode == creatorCode {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMediaStore) Insert(ctx context.Context, m *model.Media) error {
	m.ID = "media-" + m.Type
	m.CreatedAt = time.Now().UTC()
	s.items[m.ID] = *m
	return nil
}

func (s *fakeMediaStore) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *fakeMediaStore) Unlock(ctx context.Context, userID, creatorCode, mediaID string) error {
	s.unlocked[userID+"|"+mediaID] = true
	return nil
}

func newMediaTestHandler(store *fakeMediaStore) *MediaHandler {
	return NewMediaHandler(store, slog.New(slog.DiscardHandler))
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func TestMediaRandomLocked(t *testing.T) {
	store := newFakeMediaStore()
	store.items["m1"] = model.Media{ID: "m1", CreatorCode: "LUNA-ABC234", Type: "photo", URL: "https://cdn.example/1.jpg"}
	h := newMediaTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/chat/media?creatorCode=LUNA-ABC234&userId=u1", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Available       bool      `json:"available"`
		Media           mediaItem `json:"media"`
		AlreadyUnlocked bool      `json:"alreadyUnlocked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Available || resp.Media.ID != "m1" || resp.AlreadyUnlocked {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMediaRandomAllUnlocked(t *testing.T) {
	store := newFakeMediaStore()
	store.items["m1"] = model.Media{ID: "m1", CreatorCode: "LUNA-ABC234", Type: "photo", URL: "https://cdn.example/1.jpg"}
	store.unlocked["u1|m1"] = true
	h := newMediaTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/chat/media?creatorCode=LUNA-ABC234&userId=u1", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	var resp struct {
		Available       bool `json:"available"`
		AlreadyUnlocked bool `json:"alreadyUnlocked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Available || !resp.AlreadyUnlocked {
		t.Fatalf("expected already-unlocked fallback, got %+v", resp)
	}
}

func TestMediaRandomNoContent(t *testing.T) {
	h := newMediaTestHandler(newFakeMediaStore())

	req := httptest.NewRequest(http.MethodGet, "/chat/media?creatorCode=LUNA-ABC234", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Available {
		t.Fatal("expected available=false for empty catalog")
	}
}

func TestMediaUploadListDelete(t *testing.T) {
	store := newFakeMediaStore()
	h := newMediaTestHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/chat/media/upload",
		jsonBody(`{"creatorCode":"LUNA-ABC234","type":"photo","url":"https://cdn.example/1.jpg","caption":"beach"}`))
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/media?creatorCode=LUNA-ABC234&mode=list", nil)
	rec = httptest.NewRecorder()
	h.Serve(rec, req)
	var listResp struct {
		Items []mediaItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(listResp.Items))
	}

	req = httptest.NewRequest(http.MethodDelete, "/chat/media?creatorCode=LUNA-ABC234&id="+listResp.Items[0].ID, nil)
	rec = httptest.NewRecorder()
	h.Serve(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if len(store.items) != 0 {
		t.Fatal("item should be deleted")
	}
}

func TestMediaUnlock(t *testing.T) {
	store := newFakeMediaStore()
	store.items["m1"] = model.Media{ID: "m1", CreatorCode: "LUNA-ABC234", Type: "photo"}
	h := newMediaTestHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/chat/media/unlock",
		jsonBody(`{"userId":"u1","creatorCode":"LUNA-ABC234","mediaId":"m1"}`))
	rec := httptest.NewRecorder()
	h.Unlock(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.unlocked["u1|m1"] {
		t.Fatal("unlock not recorded")
	}
}
