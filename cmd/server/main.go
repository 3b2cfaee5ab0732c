package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncanvas/flowengine/internal/config"
	"github.com/ncanvas/flowengine/internal/llm"
	"github.com/ncanvas/flowengine/internal/logging"
	"github.com/ncanvas/flowengine/internal/search"
	"github.com/ncanvas/flowengine/internal/transport"
)

func main() {
	var (
		listenAddr = flag.String("listen", "", "Listen address (overrides config)")
	)
	flag.Parse()

	cfg := config.Load()
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("lm_base_url", cfg.LMBaseURL).
		Int("default_max_concurrent", cfg.DefaultMaxConcurrent).
		Msg("starting workflow execution engine")

	lmClient := llm.NewClient(cfg.LMBaseURL, cfg.LMAPIKey, log)

	var searchClient search.Client
	if cfg.SearchURL != "" {
		searchClient = search.NewHTTPClient(cfg.SearchURL, cfg.SearchAPIKey)
	}

	sessionHandler := transport.NewHandler(lmClient, searchClient, log, cfg.DefaultMaxConcurrent)
	transport.SetCheckOrigin(corsCheck(cfg.CORSOrigins))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/ws", sessionHandler)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming connection; writes are paced by the session, not the server
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server exited gracefully")
}

// corsCheck allows any origin when origins contains "*", else only an
// exact match against the configured allow-list.
func corsCheck(origins []string) func(r *http.Request) bool {
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range origins {
			if o == origin {
				return true
			}
		}
		return false
	}
}
