package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/velvetchat/velvet-api/libs/auth"
	"github.com/velvetchat/velvet-api/services/creator-service/internal/storage"
)

func TestPasswordHashing(t *testing.T) {
	password := "pass123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

type fakeAdminDirectory struct {
	users map[string]storage.AdminUser
}

func (d fakeAdminDirectory) AdminByEmail(ctx context.Context, email string) (storage.AdminUser, bool, error) {
	u, ok := d.users[email]
	return u, ok, nil
}

const testJWTSecret = "test-secret"

func newAuthTestHandler(t *testing.T) *AuthHandler {
	t.Helper()
	adminHash, err := hashPassword("s3cret")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	userHash, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	dir := fakeAdminDirectory{users: map[string]storage.AdminUser{
		"admin@velvet.chat": {ID: "u-admin", Email: "admin@velvet.chat", PasswordHash: adminHash, IsAdmin: true},
		"user@velvet.chat":  {ID: "u-plain", Email: "user@velvet.chat", PasswordHash: userHash, IsAdmin: false},
	}}
	return NewAuthHandler(dir, slog.New(slog.DiscardHandler), testJWTSecret)
}

func postLogin(h *AuthHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLoginIssuesAdminToken(t *testing.T) {
	h := newAuthTestHandler(t)

	rec := postLogin(h, `{"email":"admin@velvet.chat","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := auth.ParseAndVerifyHS256(resp.Token, testJWTSecret)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Role != "admin" || claims.Sub != "u-admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := newAuthTestHandler(t)
	rec := postLogin(h, `{"email":"admin@velvet.chat","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginRejectsNonAdmin(t *testing.T) {
	h := newAuthTestHandler(t)
	rec := postLogin(h, `{"email":"user@velvet.chat","password":"hunter2"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := newAuthTestHandler(t)
	protected := h.RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	req := httptest.NewRequest(http.MethodPost, "/creators", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	// Valid admin token.
	loginRec := postLogin(h, `{"email":"admin@velvet.chat","password":"s3cret"}`)
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/creators", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin token: expected 200, got %d", rec.Code)
	}

	// Tampered token.
	req = httptest.NewRequest(http.MethodPost, "/creators", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token+"x")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token: expected 401, got %d", rec.Code)
	}
}
