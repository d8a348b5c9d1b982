package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hosseinshamlooo/lexi-ai/internal/analytics"
	"github.com/hosseinshamlooo/lexi-ai/internal/config"
	"github.com/hosseinshamlooo/lexi-ai/internal/gateway"
	"github.com/hosseinshamlooo/lexi-ai/internal/httpserver"
	"github.com/hosseinshamlooo/lexi-ai/internal/insights"
	"github.com/hosseinshamlooo/lexi-ai/internal/translate"
)

const sessionTTL = 30 * time.Minute

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	factory := func() *gateway.OpenAI {
		return gateway.NewOpenAI(cfg.OpenAIKey, cfg.ChatModelID, cfg.TranscribeModel)
	}
	sessions := httpserver.NewSessionManager(factory, sessionTTL)
	defer sessions.Close()

	analyzer := analytics.NewAnalyzer(factory())
	translator := translate.NewClient(cfg.LingvaBaseURL)

	var store insights.Store
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		supa, err := insights.NewSupabaseStore(insights.SupabaseConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Fatalf("supabase setup failed: %v", err)
		}
		store = supa
	} else {
		log.Println("SUPABASE_URL not set - keeping insights in memory only")
		store = insights.NewMemStore()
	}

	srv := httpserver.New(sessions, analyzer, translator, store)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Echo,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
