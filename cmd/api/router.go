package main

import (
	"context"
	"net/http"
	"time"

	"booklens/internal/config"
	"booklens/internal/httpx"
)

type routes struct {
	books interface {
		List(http.ResponseWriter, *http.Request)
		Get(http.ResponseWriter, *http.Request)
		Content(http.ResponseWriter, *http.Request)
	}
	analysis interface {
		Analysis(http.ResponseWriter, *http.Request)
	}
	ingest interface {
		Ingest(http.ResponseWriter, *http.Request)
		Runs(http.ResponseWriter, *http.Request)
	}
	metrics http.Handler
	ready   func(ctx context.Context) error
}

func newRouter(rt routes) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Handle("GET /metrics", rt.metrics)

	router.HandleFunc("GET /books", rt.books.List)
	router.HandleFunc("GET /books/{id}", rt.books.Get)
	router.HandleFunc("GET /books/{id}/content", rt.books.Content)
	router.HandleFunc("GET /books/{id}/analysis/{kind}", rt.analysis.Analysis)

	router.HandleFunc("POST /internal/ingest/{id}", rt.ingest.Ingest)
	router.HandleFunc("GET /internal/ingest/runs", rt.ingest.Runs)

	return router
}

// withMiddleware wraps h in the server middleware, outermost first. Recovery
// sits inside the access log so it sees the request id and the wrapped
// writer, and never writes an error body after a stream has started.
func withMiddleware(h http.Handler, cfg config.Config, rateLimit func(http.Handler) http.Handler) http.Handler {
	return httpx.Chain(h,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSAllowedOrigins),
		rateLimit,
		httpx.RequestSizeLimitMiddleware(cfg.MaxRequestBytes),
	)
}
