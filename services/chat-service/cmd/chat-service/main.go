package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/velvetchat/velvet-api/libs/config"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/libs/httpx"
	otelx "github.com/velvetchat/velvet-api/libs/otel"
	"github.com/velvetchat/velvet-api/libs/runtime"
	"github.com/velvetchat/velvet-api/services/chat-service/internal/handlers"
	"github.com/velvetchat/velvet-api/services/chat-service/internal/llm"
	"github.com/velvetchat/velvet-api/services/chat-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "chat-service")
	port, err := config.Port("PORT", "8085")
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

	llmKey, err := config.RequiredString("OPENROUTER_API_KEY")
	if err != nil {
		panic(err)
	}
	completer := llm.NewClient(llm.Config{
		BaseURL: config.String("OPENROUTER_API_URL", "https://openrouter.ai/api/v1"),
		APIKey:  llmKey,
		Model:   config.String("OPENROUTER_MODEL", "venice/uncensored:free"),
		Referer: config.String("OPENROUTER_REFERER", ""),
		Title:   config.String("OPENROUTER_TITLE", "Velvet Chat"),
	})

	messageRepo := storage.NewMessageRepository(pool)
	mediaRepo := storage.NewMediaRepository(pool)
	replyHandler := handlers.NewReplyHandler(messageRepo, completer, logger)
	mediaHandler := handlers.NewMediaHandler(mediaRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)

	// Inference is the expensive path; cap it per client even when the
	// rest of the API is open.
	replyRoute := http.Handler(http.HandlerFunc(replyHandler.Reply))
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("REPLY_RATE_LIMIT", 20),
			time.Duration(config.Int("REPLY_RATE_WINDOW_SECONDS", 60))*time.Second,
			"chat:reply")
		replyRoute = limiter.Middleware(logger, true)(replyRoute)
	} else {
		limiter := httpx.NewRateLimiter(config.Int("REPLY_RATE_LIMIT", 20), time.Minute)
		replyRoute = limiter.Middleware()(replyRoute)
	}
	mux.Handle("/api/v1/chat/reply", replyRoute)
	mux.HandleFunc("/api/v1/chat/media", mediaHandler.Serve)
	mux.HandleFunc("/api/v1/chat/media/upload", mediaHandler.Upload)
	mux.HandleFunc("/api/v1/chat/media/unlock", mediaHandler.Unlock)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			MaxAge:         config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "chat")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
