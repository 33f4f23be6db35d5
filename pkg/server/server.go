// Package server exposes episode search over HTTP for the web front end.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/search"
	"podcast-search/pkg/store"
)

// Searcher is the read side of the search engine.
type Searcher interface {
	Search(raw string) search.Result
	Rebuild(ctx context.Context) (int, error)
}

// EpisodeGetter resolves one episode by key.
type EpisodeGetter interface {
	Get(ctx context.Context, key domain.EpisodeKey) (*domain.Episode, error)
}

var _ EpisodeGetter = (store.Store)(nil)

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Query   string           `json:"query"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
	Results []domain.Episode `json:"results"`
}

// NewRouter builds the HTTP handler.
func NewRouter(searcher Searcher, episodes EpisodeGetter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query().Get("q")
			res := searcher.Search(q)
			writeJSON(w, http.StatusOK, SearchResponse{
				Query:   q,
				Count:   len(res.Episodes),
				Total:   res.Total,
				Results: res.Episodes,
			})
		})

		r.Get("/episodes/{podcast}/{id}", func(w http.ResponseWriter, req *http.Request) {
			key := domain.EpisodeKey{
				PodcastID: chi.URLParam(req, "podcast"),
				ID:        chi.URLParam(req, "id"),
			}
			ep, err := episodes.Get(req.Context(), key)
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "episode not found"})
				return
			}
			if err != nil {
				zap.L().Error("get episode failed", zap.Stringer("key", key), zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}
			writeJSON(w, http.StatusOK, ep)
		})

		r.Post("/index/rebuild", func(w http.ResponseWriter, req *http.Request) {
			n, err := searcher.Rebuild(req.Context())
			if err != nil {
				zap.L().Error("index rebuild failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "index rebuild failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"documents": n})
		})
	})

	return r
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
