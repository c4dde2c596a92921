package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brunobiangulo/contractgraph"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONTRACTGRAPH_CONFIG"), "Path to config file (YAML)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := contractgraph.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("CONTRACTGRAPH_API_KEY")
	var origins []string
	if v := os.Getenv("CONTRACTGRAPH_CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	p, err := contractgraph.New(cfg)
	if err != nil {
		slog.Error("creating pipeline", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(newHandler(p, cfg.DataDir), apiKey, origins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // a full run can take minutes
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// newRouter registers the routes and wraps them in the middleware chain:
// recovery -> cors -> auth -> logging -> mux.
func newRouter(h *handler, apiKey string, origins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process", h.handleProcess)
	mux.HandleFunc("GET /contracts/{id}/summary", h.handleSummary)
	mux.HandleFunc("GET /documents", h.handleListDocuments)
	mux.HandleFunc("GET /documents/{id}", h.handleGetDocument)
	mux.HandleFunc("GET /health", h.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(origins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
