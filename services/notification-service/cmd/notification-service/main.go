package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/velvetchat/velvet-api/libs/config"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/libs/httpx"
	"github.com/velvetchat/velvet-api/libs/kafkax"
	otelx "github.com/velvetchat/velvet-api/libs/otel"
	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/libs/runtime"
	"github.com/velvetchat/velvet-api/services/notification-service/internal/consumer"
	"github.com/velvetchat/velvet-api/services/notification-service/internal/email"
	"github.com/velvetchat/velvet-api/services/notification-service/internal/inbox"
	"github.com/velvetchat/velvet-api/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type bookingConfirmedPayload struct {
	UserID       string `json:"user_id"`
	CreatorCode  string `json:"creator_code"`
	CreatorName  string `json:"creator_name"`
	DurationMins int    `json:"duration_mins"`
	ScheduledAt  string `json:"scheduled_at"`
	RoomURL      string `json:"room_url"`
}

type bookingCancelledPayload struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	CreatorCode string `json:"creator_code"`
	ScheduledAt string `json:"scheduled_at"`
}

func writeOutboxSent(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, bookingID, userID, recipient string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	payload, err := json.Marshal(map[string]any{
		"booking_id": bookingID,
		"user_id":    userID,
		"channel":    "email",
		"recipient":  recipient,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   bookingID,
		EventType:     "notification.sent.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8087")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@velvetchat.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  []string{"booking.confirmed.v1", "booking.cancelled.v1"},
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		bookingID := string(msg.Key)

		var (
			userID  string
			subject string
			body    string
		)
		switch meta.EventType {
		case "booking.confirmed.v1":
			var payload bookingConfirmedPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid booking.confirmed payload", "err", err)
				return nil
			}
			scheduledAt, err := time.Parse(time.RFC3339, payload.ScheduledAt)
			if err != nil {
				logger.Error("invalid scheduled_at", "err", err)
				return nil
			}
			userID = payload.UserID
			subject, body = email.BookingConfirmation(payload.CreatorName, scheduledAt, payload.DurationMins, payload.RoomURL)
		case "booking.cancelled.v1":
			var payload bookingCancelledPayload
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid booking.cancelled payload", "err", err)
				return nil
			}
			scheduledAt, err := time.Parse(time.RFC3339, payload.ScheduledAt)
			if err != nil {
				logger.Error("invalid scheduled_at", "err", err)
				return nil
			}
			userID = payload.UserID
			if payload.BookingID != "" {
				bookingID = payload.BookingID
			}
			subject, body = email.BookingCancellation(payload.CreatorCode, scheduledAt)
		default:
			logger.Info("event type ignored", "event_type", meta.EventType)
			return nil
		}

		if strings.TrimSpace(userID) == "" {
			logger.Error("missing user_id in event", "event_type", meta.EventType)
			return nil
		}

		recipient, found, err := notificationsRepo.UserEmail(ctx, userID)
		if err != nil {
			logger.Error("user lookup failed", "err", err, "user_id", userID)
			return err
		}
		if !found || strings.TrimSpace(recipient) == "" {
			logger.Info("no email on file, skipping notification", "user_id", userID)
			return nil
		}

		status := "sent"
		if err := emailSender.Send(recipient, subject, body); err != nil {
			status = "failed"
			logger.Error("email send failed", "err", err, "recipient", recipient)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			BookingID: bookingID,
			UserID:    userID,
			Channel:   "email",
			Recipient: recipient,
			Subject:   subject,
			Status:    status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		if status == "sent" {
			if err := writeOutboxSent(ctx, pool, outboxRepo, bookingID, userID, recipient); err != nil {
				logger.Error("failed to enqueue notification.sent", "err", err)
				return err
			}
		}

		logger.Info("notification processed", "booking_id", bookingID, "event_type", meta.EventType, "status", status)
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
