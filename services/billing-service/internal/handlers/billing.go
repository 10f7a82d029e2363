package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/services/billing-service/internal/credits"
	"github.com/velvetchat/velvet-api/services/billing-service/internal/storage"
)

// CreditGranter applies a completed purchase atomically. Balances are scoped
// per (user, creator) pair; a grant never touches other creators' rows.
type CreditGranter interface {
	Grant(ctx context.Context, sessionID, userID, creatorCode string, d credits.Delta, completedAt time.Time, evt outbox.Event) (credits.Balance, error)
	Balance(ctx context.Context, userID, creatorCode string) (credits.Balance, bool, error)
	UpsertCheckoutSession(ctx context.Context, s storage.CheckoutSession) error
}

type Handler struct {
	repo                   CreditGranter
	logger                 *slog.Logger
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
	stripe                 *stripeclient.API
	checkoutSuccessURL     string
	checkoutCancelURL      string
}

type Config struct {
	StripeWebhookSecret           string
	StripeWebhookToleranceSeconds int
	StripeSecretKey               string
	CheckoutSuccessURL            string
	CheckoutCancelURL             string
}

func New(repo CreditGranter, logger *slog.Logger, cfg Config) *Handler {
	tolSeconds := cfg.StripeWebhookToleranceSeconds
	if tolSeconds <= 0 {
		tolSeconds = 300
	}
	h := &Handler{
		repo:                   repo,
		logger:                 logger,
		stripeWebhookSecret:    strings.TrimSpace(cfg.StripeWebhookSecret),
		stripeWebhookTolerance: time.Duration(tolSeconds) * time.Second,
		checkoutSuccessURL:     strings.TrimSpace(cfg.CheckoutSuccessURL),
		checkoutCancelURL:      strings.TrimSpace(cfg.CheckoutCancelURL),
	}
	// Per-handler client; the package-global stripe.Key stays unset.
	if key := strings.TrimSpace(cfg.StripeSecretKey); key != "" {
		h.stripe = stripeclient.New(key, nil)
	}
	return h
}

type checkoutRequest struct {
	PackageID   string `json:"packageId"`
	PackageName string `json:"packageName"`
	AmountPence int64  `json:"amountPence"`
	UserID      string `json:"userId"`
	CreatorCode string `json:"creatorCode"`
}

// Checkout opens a Stripe Checkout session in one-off payment mode. The
// package id rides along in the session metadata so the webhook can map the
// payment back to a credit grant.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.stripe == nil {
		http.Error(w, "stripe checkout not configured (STRIPE_SECRET_KEY missing)", http.StatusNotImplemented)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PackageID = strings.TrimSpace(req.PackageID)
	req.PackageName = strings.TrimSpace(req.PackageName)
	req.UserID = strings.TrimSpace(req.UserID)
	req.CreatorCode = strings.TrimSpace(req.CreatorCode)
	if req.PackageID == "" || req.UserID == "" || req.CreatorCode == "" {
		http.Error(w, "packageId, userId, and creatorCode required", http.StatusBadRequest)
		return
	}
	if !credits.KnownPackage(req.PackageID) {
		http.Error(w, "unknown packageId", http.StatusBadRequest)
		return
	}
	if req.AmountPence <= 0 {
		http.Error(w, "amountPence must be positive", http.StatusBadRequest)
		return
	}
	if req.PackageName == "" {
		req.PackageName = req.PackageID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(h.checkoutSuccessURL),
		CancelURL:  stripe.String(h.checkoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyGBP)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.PackageName),
						Description: stripe.String("Velvet credits"),
					},
					UnitAmount: stripe.Int64(req.AmountPence),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"packageId":   req.PackageID,
			"userId":      req.UserID,
			"creatorCode": req.CreatorCode,
		},
	}
	if idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); idemKey != "" {
		params.IdempotencyKey = stripe.String(idemKey)
	}

	sess, err := h.stripe.CheckoutSessions.New(params)
	if err != nil {
		h.logger.Error("stripe checkout session create failed", "err", err)
		http.Error(w, "failed to create checkout session", http.StatusBadGateway)
		return
	}

	if err := h.repo.UpsertCheckoutSession(r.Context(), storage.CheckoutSession{
		StripeSessionID: sess.ID,
		UserID:          req.UserID,
		CreatorCode:     req.CreatorCode,
		PackageID:       req.PackageID,
		Status:          "created",
		URL:             sess.URL,
	}); err != nil {
		http.Error(w, "failed to persist checkout session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"url":       sess.URL,
	})
}

// Balance serves a user's credit counts with one creator. Users who never
// bought anything from that creator read as all zeroes.
func (h *Handler) BalanceEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	creatorCode := strings.TrimSpace(r.URL.Query().Get("creatorCode"))
	if userID == "" || creatorCode == "" {
		http.Error(w, "userId and creatorCode required", http.StatusBadRequest)
		return
	}

	b, _, err := h.repo.Balance(r.Context(), userID, creatorCode)
	if err != nil {
		http.Error(w, "failed to load balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
