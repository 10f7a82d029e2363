package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/services/billing-service/internal/credits"
)

// StripeWebhook handles Stripe webhooks (no JWT auth; signature verification
// is the auth). Only checkout.session.completed changes state; every other
// event type is acknowledged and dropped.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.stripeWebhookSecret == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.stripeWebhookSecret, h.stripeWebhookTolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("billing provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	if evtType != "checkout.session.completed" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		h.logger.Error("stripe: invalid checkout session payload", "err", err)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	packageID := strings.TrimSpace(session.Metadata["packageId"])
	userID := strings.TrimSpace(session.Metadata["userId"])
	creatorCode := strings.TrimSpace(session.Metadata["creatorCode"])
	if packageID == "" || userID == "" || creatorCode == "" {
		h.logger.Warn("stripe: missing metadata on checkout session (packageId/userId/creatorCode)",
			"provider_event_id", evt.ID, "session_id", session.ID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	delta, ok := credits.DeltaFor(packageID)
	if !ok {
		h.logger.Warn("stripe: unknown package on completed checkout",
			"package_id", packageID, "session_id", session.ID, "user_id", userID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":      userID,
		"creator_code": creatorCode,
		"package_id":   packageID,
		"chocolates":   delta.Chocolates,
		"roses":        delta.Roses,
		"champagne":    delta.Champagne,
		"hearts":       delta.Hearts,
		"occurred_at":  occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}

	balance, err := h.repo.Grant(r.Context(), session.ID, userID, creatorCode, delta, occurredAt, outbox.Event{
		AggregateType: "credit_balance",
		AggregateID:   userID,
		EventType:     "credits.granted.v1",
		Payload:       payload,
	})
	if err != nil {
		h.logger.Error("credit grant failed", "err", err, "user_id", userID, "package_id", packageID)
		http.Error(w, "failed to apply credits", http.StatusInternalServerError)
		return
	}

	h.logger.Info("credits granted",
		"user_id", userID,
		"creator_code", creatorCode,
		"package_id", packageID,
		"chocolates", balance.Chocolates,
		"roses", balance.Roses,
		"champagne", balance.Champagne,
		"hearts", balance.Hearts,
	)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
