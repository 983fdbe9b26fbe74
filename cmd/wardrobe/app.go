package main

import (
	"context"
	"fmt"

	"github.com/raine/wardrobe/config"
	"github.com/raine/wardrobe/internal/dispatch"
	"github.com/raine/wardrobe/internal/intake"
	"github.com/raine/wardrobe/internal/llm"
	"github.com/raine/wardrobe/internal/objectstore"
	"github.com/raine/wardrobe/internal/relay"
	"github.com/raine/wardrobe/internal/remote"
	"github.com/raine/wardrobe/internal/storage"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/rs/zerolog/log"
)

// app is the wired client side of the pipeline.
type app struct {
	owner      string
	store      *storage.SQLiteStore
	collection *wardrobe.Collection
	dispatcher *dispatch.Dispatcher
	intake     *intake.Service
}

// newApp wires the pipeline. With loadItems the user's items are fetched so
// updates can be checked against the stored values.
func newApp(ctx context.Context, cfg *config.Config, loadItems bool) (*app, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}

	storeOpts := []storage.Option{storage.WithCacheCapacity(cfg.Cache.Capacity)}
	if cfg.Cache.SessionKey != "" {
		storeOpts = append(storeOpts, storage.WithSessionKey(cfg.Cache.SessionKey))
	}
	store, err := storage.NewSQLiteStore(cfg.Cache.DBPath, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	sessionOpts := remote.SessionOpts{
		BaseURL:      cfg.Remote.URL,
		APIKey:       cfg.Remote.AnonKey,
		AccessToken:  cfg.Remote.AccessToken,
		RefreshToken: cfg.Remote.RefreshToken,
		UserID:       cfg.Remote.UserID,
		Timeout:      cfg.HTTPTimeout,
	}
	if cfg.Cache.SessionKey != "" {
		restoreSession(store, &sessionOpts)
	}
	session := remote.NewSession(sessionOpts)
	items := remote.NewClient(remote.ClientOpts{
		BaseURL: cfg.Remote.URL,
		APIKey:  cfg.Remote.AnonKey,
		Tokens:  session,
		Timeout: cfg.HTTPTimeout,
	})
	relayClient := relay.NewClient(relay.ClientOpts{
		BaseURL: cfg.Relay.URL,
		Tokens:  session,
		Timeout: cfg.HTTPTimeout,
	})

	var objects dispatch.ObjectStore
	if cfg.S3Configured() {
		s3Store, err := objectstore.NewS3Store(ctx, cfg.ObjectStore())
		if err != nil {
			store.Close()
			return nil, err
		}
		objects = s3Store
	} else {
		log.Debug().Msg("object storage not configured, uploads go through the relay")
	}
	coordinator := dispatch.NewCoordinator(objects, relayClient)

	providers, err := analysisProviders(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	reconciler := llm.NewReconciler(store, providers, llm.WithTTL(cfg.Cache.TTL))

	owner := session.CurrentUser().ID
	var seed []wardrobe.Item
	if loadItems {
		seed, err = items.List(ctx, owner)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to load items: %w", err)
		}
	}
	collection := wardrobe.NewCollection(seed...)

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherOpts{
		Primary:    items,
		Fallback:   relayClient,
		Session:    session,
		Collection: collection,
		Assets:     coordinator,
	})

	return &app{
		owner:      owner,
		store:      store,
		collection: collection,
		dispatcher: dispatcher,
		intake:     intake.NewService(reconciler, coordinator, dispatcher),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// item returns the owner's item with id from the loaded collection.
func (a *app) item(id string) (wardrobe.Item, error) {
	it, ok := a.collection.Get(id)
	if !ok {
		return wardrobe.Item{}, fmt.Errorf("item %s not found", id)
	}
	return it, nil
}

// analysisProviders returns every provider with credentials. The
// clothes-finder endpoint defaults to the relay server.
func analysisProviders(ctx context.Context, cfg *config.Config) ([]llm.Provider, error) {
	var providers []llm.Provider

	if key := cfg.Providers.GeminiAPIKey; key != "" {
		gemini, err := llm.NewGeminiProvider(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini: %w", err)
		}
		providers = append(providers, gemini)
	}

	if key := cfg.Providers.OpenAIAPIKey; key != "" {
		var opts []llm.OpenAIOption
		if cfg.Providers.OpenAIBaseURL != "" {
			opts = append(opts, llm.WithOpenAIBaseURL(cfg.Providers.OpenAIBaseURL))
		}
		if cfg.Providers.OpenAIModel != "" {
			opts = append(opts, llm.WithOpenAIModel(cfg.Providers.OpenAIModel))
		}
		providers = append(providers, llm.NewOpenAIProvider(key, opts...))
	}

	finderURL := cfg.Providers.ClothesFinderURL
	if finderURL == "" {
		finderURL = cfg.Relay.URL
	}
	providers = append(providers, llm.NewClothesFinderProvider(finderURL, cfg.HTTPTimeout))

	return providers, nil
}

// restoreSession swaps the configured tokens for the last rotated pair, if one
// was saved, and persists future rotations. Refresh tokens are single use, so
// the pair from the environment goes stale after the first refresh.
func restoreSession(store storage.SessionStore, opts *remote.SessionOpts) {
	saved, err := store.GetSession(opts.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load saved session")
	} else if saved != nil {
		opts.AccessToken = saved.AccessToken
		opts.RefreshToken = saved.RefreshToken
		log.Debug().Str("userId", opts.UserID).Time("savedAt", saved.UpdatedAt).Msg("restored saved session")
	}

	opts.OnRefresh = func(tok remote.Tokens) {
		err := store.SaveSession(&storage.StoredSession{
			UserID:       tok.UserID,
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.ExpiresAt,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to save refreshed session")
		}
	}
}
