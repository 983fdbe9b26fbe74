package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raine/wardrobe/internal/metrics"
	"github.com/raine/wardrobe/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long a cached analysis stays valid.
const DefaultTTL = 24 * time.Hour

// Fingerprint derives the cache key for a file. It is a cheap identity proxy
// built from name, size and modification time, not a content hash.
func Fingerprint(name string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s-%d-%d", name, size, modTime.UnixMilli())
}

// Reconciler fans an image out to every provider, merges the partial
// results and memoizes them by fingerprint.
type Reconciler struct {
	providers []Provider
	cache     storage.CacheStore
	ttl       time.Duration
	now       func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithTTL sets the cache validity window.
func WithTTL(ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a reconciler. cache may be nil to disable caching.
func NewReconciler(cache storage.CacheStore, providers []Provider, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		providers: providers,
		cache:     cache,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the configured provider names.
func (r *Reconciler) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Analyze returns the merged analysis of img. ok is false when every provider
// failed; callers then fall back to filename inference. Analyze never returns
// an error.
func (r *Reconciler) Analyze(ctx context.Context, img Image) (analysis *Analysis, ok bool) {
	key := Fingerprint(img.Name, img.Size, img.ModTime)

	if cached := r.lookup(key); cached != nil {
		return cached, true
	}

	results := make([]*ProviderResult, len(r.providers))
	var g errgroup.Group
	for i, p := range r.providers {
		g.Go(func() error {
			start := time.Now()
			res, err := analyzeSafely(ctx, p, img)
			metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(p.Name(), string(ErrorKindOf(err))).Inc()
				log.Warn().Err(err).Str("provider", p.Name()).Str("key", key).Msg("analysis provider failed")
				return nil
			}
			metrics.ProviderCalls.WithLabelValues(p.Name(), "success").Inc()
			results[i] = res
			return nil
		})
	}
	// Provider failures are absorbed above; Wait only joins.
	_ = g.Wait()

	merged := make(map[string]ProviderResult, len(r.providers))
	succeeded := 0
	for i, p := range r.providers {
		if results[i] == nil {
			merged[p.Name()] = emptyResult()
			continue
		}
		merged[p.Name()] = *normalize(results[i].Tags, results[i].Labels)
		succeeded++
	}

	if succeeded == 0 {
		metrics.HeuristicFallbacks.Inc()
		log.Warn().Str("key", key).Int("providers", len(r.providers)).Msg("all analysis providers failed")
		return nil, false
	}

	analysis = &Analysis{Providers: merged, CreatedAt: r.now()}
	r.store(key, analysis)
	return analysis, true
}

// analyzeSafely turns a provider panic into an unavailable error.
func analyzeSafely(ctx context.Context, p Provider, img Image) (res *ProviderResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, providerErr(p.Name(), KindUnavailable, fmt.Errorf("panic: %v", rec))
		}
	}()
	return p.Analyze(ctx, img)
}

func (r *Reconciler) lookup(key string) *Analysis {
	if r.cache == nil {
		return nil
	}

	entry, err := r.cache.GetAnalysis(key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("key", key).Msg("failed to check analysis cache")
		return nil
	}
	if entry == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		log.Debug().Str("key", key).Msg("analysis cache miss")
		return nil
	}
	if r.now().Sub(entry.CreatedAt) >= r.ttl {
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		log.Debug().Str("key", key).Time("createdAt", entry.CreatedAt).Msg("analysis cache entry expired")
		return nil
	}

	var providers map[string]ProviderResult
	if err := json.Unmarshal(entry.Result, &providers); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("key", key).Msg("ignoring unreadable analysis cache entry")
		return nil
	}
	for name, res := range providers {
		providers[name] = *normalize(res.Tags, res.Labels)
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	log.Debug().Str("key", key).Msg("analysis cache hit")
	return &Analysis{Providers: providers, CreatedAt: entry.CreatedAt, Cached: true}
}

func (r *Reconciler) store(key string, analysis *Analysis) {
	if r.cache == nil {
		return
	}

	payload, err := json.Marshal(analysis.Providers)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to encode analysis result")
		return
	}
	err = r.cache.PutAnalysis(key, &storage.AnalysisCacheEntry{
		Key:       key,
		CreatedAt: analysis.CreatedAt,
		Result:    payload,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache analysis result")
		return
	}
	log.Debug().Str("key", key).Msg("cached analysis result")
}
