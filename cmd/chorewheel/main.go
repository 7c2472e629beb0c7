package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/logging"
	"github.com/dukerupert/chorewheel/internal/media"
	"github.com/dukerupert/chorewheel/internal/server"
)

func main() {
	port := os.Getenv("CHOREWHEEL_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CHOREWHEEL_DB_PATH")
	if dbPath == "" {
		dbPath = "chorewheel.db"
	}

	logger := logging.Setup(os.Getenv("CHOREWHEEL_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		AssignHour: envHour("CHOREWHEEL_ASSIGN_HOUR", 6),
		CloseHour:  envHour("CHOREWHEEL_CLOSE_HOUR", 21),
		Media: media.Config{
			Endpoint:      os.Getenv("CHOREWHEEL_S3_ENDPOINT"),
			Bucket:        os.Getenv("CHOREWHEEL_S3_BUCKET"),
			Region:        os.Getenv("CHOREWHEEL_S3_REGION"),
			AccessKey:     os.Getenv("CHOREWHEEL_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("CHOREWHEEL_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("CHOREWHEEL_S3_PUBLIC_URL"),
		},
	}
	if raw := os.Getenv("CHOREWHEEL_ASSIGN_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("invalid CHOREWHEEL_ASSIGN_SEED: %v", err)
		}
		cfg.AssignSeed = &seed
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.Cron().Start(ctx)
	defer srv.Cron().Stop()

	// Periodic cleanup of expired sessions and stale rate-limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Warn("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Chorewheel running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envHour(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h < 0 || h > 23 {
		log.Fatalf("invalid %s: %q (want 0-23)", key, raw)
	}
	return h
}
