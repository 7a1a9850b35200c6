// Package dummy serves a simulated target whose endpoints behave like the
// operation catalog: each call sleeps the operation's latency and fails with
// its probability.
package dummy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"shakeout/internal/ops"
)

type ServerConfig struct {
	Port    int
	Catalog ops.Catalog
	// Sleep replaces the simulated latency wait, mainly for tests.
	Sleep ops.SleepFunc
}

// Handler routes /health, /ops and /ops/{name}.
func Handler(cfg ServerConfig) http.Handler {
	if cfg.Catalog == nil {
		cfg.Catalog = ops.DefaultCatalog()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = ops.Sleep
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/ops", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cfg.Catalog)
	})

	r.HandleFunc("/ops/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		spec, ok := cfg.Catalog.Lookup(name)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown operation " + name})
			return
		}

		rng := rand.New(rand.NewSource(rand.Int63()))
		err := spec.Bind(rng, cfg.Sleep)(r.Context())
		if err != nil {
			kind := ops.KindOf(err)
			writeJSON(w, StatusFor(kind), map[string]string{"error": err.Error(), "kind": string(kind)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"operation": name, "status": "ok"})
	})

	return r
}

// StatusFor maps a failure kind to the HTTP status a real collaborator would
// answer with.
func StatusFor(kind ops.Kind) int {
	switch kind {
	case ops.KindRateLimit:
		return http.StatusTooManyRequests
	case ops.KindTimeout:
		return http.StatusGatewayTimeout
	case ops.KindCredentialExpired:
		return http.StatusUnauthorized
	case ops.KindConflict:
		return http.StatusConflict
	case ops.KindConnectionLoss:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves until ctx is done, then shuts down gracefully.
func Start(ctx context.Context, cfg ServerConfig, logger *zap.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("👻 Dummy Server running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /health, /ops, /ops/{name}")
	logger.Info("dummy server listening", zap.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
