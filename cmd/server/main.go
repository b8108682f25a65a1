package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/umar/agency-chat/internal/bookings"
	"github.com/umar/agency-chat/internal/chat"
	"github.com/umar/agency-chat/internal/config"
	"github.com/umar/agency-chat/internal/handlers"
	"github.com/umar/agency-chat/internal/middleware"
	redisc "github.com/umar/agency-chat/internal/redis"
	"github.com/umar/agency-chat/internal/seed"
	"github.com/umar/agency-chat/internal/store"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("starting chat server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st := store.New()

	if cfg.SeedFile != "" {
		n, err := seed.LoadFile(st, cfg.SeedFile)
		if err != nil {
			slog.Error("failed to load seed file", "path", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
		slog.Info("seeded chats", "count", n, "path", cfg.SeedFile)
	}

	bookingRouter := bookings.NewRouter(st)

	hubOpts := []chat.HubOption{chat.WithSendLimit(cfg.SendRatePerSecond, cfg.SendBurst)}

	// Redis is optional; without it presence is local and booking updates
	// only arrive through the webhook.
	if cfg.RedisURL != "" {
		redisClient, err := redisc.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to init Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("connected to Redis")

		hubOpts = append(hubOpts, chat.WithPresence(redisc.NewPresence(redisClient)))

		if err := redisc.SubscribeBookingStatus(ctx, redisClient, bookingRouter.HandlePayload); err != nil {
			slog.Error("failed to subscribe to booking updates", "error", err)
			os.Exit(1)
		}
		slog.Info("subscribed to booking updates", "channel", redisc.BookingStatusChannel)
	}

	// Create WebSocket hub
	hub := chat.NewHub(st, hubOpts...)
	go hub.Run()

	sendLimiter := middleware.NewLimiter(cfg.SendRatePerSecond, cfg.SendBurst)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sendLimiter.Cleanup()
			}
		}
	}()

	router := handlers.NewRouter(handlers.Deps{
		Store:         st,
		Hub:           hub,
		Bookings:      bookingRouter,
		SendLimiter:   sendLimiter,
		JWTSecret:     cfg.JWTSecret,
		SessionTTL:    cfg.SessionTTL,
		WebhookSecret: cfg.BookingWebhookSecret,
		CORSOrigin:    cfg.CORSOrigin,
	})

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stop()
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
