// Package server is the relay: the trusted HTTP endpoints that perform item
// writes and photo uploads with the service's own credentials when a
// client's direct path is rejected.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raine/wardrobe/internal/llm"
	"github.com/raine/wardrobe/internal/metrics"
	"github.com/raine/wardrobe/internal/storage"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/rs/zerolog/log"
)

const (
	// PruneInterval is how often old idempotency keys are pruned.
	PruneInterval = time.Hour

	// IdempotencyKeyMaxAge is how long a key keeps protecting a mutation.
	IdempotencyKeyMaxAge = 24 * time.Hour

	shutdownTimeout = 10 * time.Second
)

// ItemStore writes items with elevated trust.
type ItemStore interface {
	Insert(ctx context.Context, item wardrobe.Item) ([]wardrobe.Item, error)
	Update(ctx context.Context, id, ownerID string, patch map[string]any) ([]wardrobe.Item, error)
	Delete(ctx context.Context, id, ownerID string) ([]wardrobe.Item, error)
	Get(ctx context.Context, id, ownerID string) (*wardrobe.Item, error)
}

// ObjectStore receives uploaded photos.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PublicURL(key string) string
}

// KeyStore persists idempotency keys and can drop stale ones.
type KeyStore interface {
	storage.IdempotencyStore
	PruneIdempotencyKeys(cutoff time.Time) (int64, error)
}

// Opts wires a Server.
type Opts struct {
	Items    ItemStore
	Objects  ObjectStore
	Keys     KeyStore
	Verifier *TokenVerifier
	// Provider backs /api/clothes-finder. The endpoint answers 503 when nil.
	Provider llm.Provider
}

// Server is the relay HTTP server.
type Server struct {
	items    ItemStore
	objects  ObjectStore
	keys     KeyStore
	verifier *TokenVerifier
	provider llm.Provider
	newID    func() string
}

// New creates a relay server.
func New(opts Opts) *Server {
	return &Server{
		items:    opts.Items,
		objects:  opts.Objects,
		keys:     opts.Keys,
		verifier: opts.Verifier,
		provider: opts.Provider,
		newID:    uuid.NewString,
	}
}

// Router builds the gin engine with every relay route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = wardrobe.MaxUploadSize + 1<<20

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/clothes-finder", s.handleClothesFinder)

	items := api.Group("/wardrobe", requireUser(s.verifier))
	items.POST("/add", s.handleAdd)
	items.POST("/update", s.handleUpdate)
	items.POST("/delete", s.handleDelete)
	items.POST("/upload", s.handleUpload)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("relay server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("stopping relay server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// RunPruner removes expired idempotency keys until ctx is cancelled.
func (s *Server) RunPruner(ctx context.Context) {
	log.Info().Dur("interval", PruneInterval).Msg("starting idempotency key pruner")

	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("idempotency key pruner stopped")
			return
		case <-ticker.C:
			s.pruneKeys(time.Now())
		}
	}
}

func (s *Server) pruneKeys(now time.Time) {
	n, err := s.keys.PruneIdempotencyKeys(now.Add(-IdempotencyKeyMaxAge))
	if err != nil {
		log.Error().Err(err).Msg("failed to prune idempotency keys")
		return
	}
	if n > 0 {
		log.Info().Int64("pruned", n).Msg("pruned idempotency keys")
	}
}

// requestLogger logs each request and counts it per route and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RelayRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
