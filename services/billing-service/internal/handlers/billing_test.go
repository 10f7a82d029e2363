package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velvetchat/velvet-api/services/billing-service/internal/credits"
)

func TestBalanceEndpoint(t *testing.T) {
	repo := newFakeGranter()
	repo.balances["u1|LUNA-ABC234"] = credits.Balance{Chocolates: 60, Roses: 2}
	h := newWebhookHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/balance?userId=u1&creatorCode=LUNA-ABC234", nil)
	rec := httptest.NewRecorder()
	h.BalanceEndpoint(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var b credits.Balance
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Chocolates != 60 || b.Roses != 2 {
		t.Fatalf("unexpected balance %+v", b)
	}
}

func TestBalanceEndpointUnknownUserReadsZero(t *testing.T) {
	h := newWebhookHandler(newFakeGranter())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/balance?userId=nobody&creatorCode=LUNA-ABC234", nil)
	rec := httptest.NewRecorder()
	h.BalanceEndpoint(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var b credits.Balance
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b != (credits.Balance{}) {
		t.Fatalf("expected zero balance, got %+v", b)
	}
}

func TestBalanceEndpointRequiresBothFilters(t *testing.T) {
	h := newWebhookHandler(newFakeGranter())

	for _, url := range []string{
		"/api/v1/billing/balance",
		"/api/v1/billing/balance?userId=u1",
		"/api/v1/billing/balance?creatorCode=LUNA-ABC234",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		h.BalanceEndpoint(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, rec.Code)
		}
	}
}
