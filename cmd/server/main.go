package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rojikaru/article-ajax/internal/auth"
	"github.com/rojikaru/article-ajax/internal/config"
	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/logging"
	"github.com/rojikaru/article-ajax/internal/presence"
	"github.com/rojikaru/article-ajax/internal/realtime"
	"github.com/rojikaru/article-ajax/internal/server"
	"github.com/rojikaru/article-ajax/internal/store"
	"github.com/rojikaru/article-ajax/internal/version"
)

// sampleArticles is the published catalogue present at first start.
func sampleArticles() []domain.Article {
	jan15 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	jan20 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	return []domain.Article{
		{
			ID:         1,
			Title:      "JavaScript Fundamentals",
			Body:       "JavaScript is a versatile programming language that powers the web. It enables dynamic content, interactive features, and modern web applications. From simple DOM manipulation to complex frameworks, JavaScript continues to evolve and shape the digital landscape.",
			AuthorName: "John Doe",
			Status:     domain.StatusPublished,
			CreatedAt:  jan15,
			UpdatedAt:  jan15,
		},
		{
			ID:         2,
			Title:      "Modern Web Development",
			Body:       "Web development has transformed dramatically over the past decade. Modern tools, frameworks, and methodologies have revolutionized how we build applications. From responsive design to progressive web apps, developers now have powerful tools at their disposal.",
			AuthorName: "Jane Smith",
			Status:     domain.StatusPublished,
			CreatedAt:  jan20,
			UpdatedAt:  jan20,
		},
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, registry *realtime.Registry, broadcaster *realtime.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		registry.Close("Server shutting down")

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	articles := store.New(clock)
	articles.Seed(sampleArticles())

	tracker := presence.NewTracker(clock)
	registry := realtime.NewRegistry(clock)
	broadcaster := realtime.NewBroadcaster(registry, clock)
	directory := auth.NewDirectory()

	srv := server.NewServer(cfg, articles, tracker, registry, broadcaster, directory)

	done := runGracefulShutdown(srv, registry, broadcaster)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
