package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raine/wardrobe/config"
	"github.com/raine/wardrobe/internal/llm"
	"github.com/raine/wardrobe/internal/objectstore"
	"github.com/raine/wardrobe/internal/remote"
	"github.com/raine/wardrobe/internal/server"
	"github.com/raine/wardrobe/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	closeLog := setupLogging(cfg)
	defer closeLog()

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("missing required config")
	}

	store, err := storage.NewSQLiteStore(cfg.Cache.DBPath, storage.WithCacheCapacity(cfg.Cache.Capacity))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.Cache.DBPath).Msg("store initialized")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := server.Opts{
		Items: remote.NewClient(remote.ClientOpts{
			BaseURL: cfg.Remote.URL,
			APIKey:  cfg.Remote.ServiceKey,
			Timeout: cfg.HTTPTimeout,
		}),
		Keys:     store,
		Verifier: server.NewTokenVerifier(cfg.Server.JWTSecret),
	}

	if cfg.S3Configured() {
		objects, err := objectstore.NewS3Store(ctx, cfg.ObjectStore())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize object storage")
		}
		opts.Objects = objects
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("object storage initialized")
	} else {
		log.Warn().Msg("object storage not configured, uploads are disabled")
	}

	provider, err := serverProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize analysis provider")
	}
	if provider != nil {
		opts.Provider = provider
		log.Info().Str("provider", provider.Name()).Msg("clothes-finder analysis enabled")
	}

	srv := server.New(opts)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		srv.RunPruner(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// setupLogging configures the global logger and returns a function that
// closes the log file, if any.
func setupLogging(cfg *config.Config) func() {
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// JOURNAL_STREAM is set by systemd when running as a service.
	_, underSystemd := os.LookupEnv("JOURNAL_STREAM")
	if underSystemd || cfg.LogFile == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return func() {}
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		log.Warn().Err(err).Str("logFile", cfg.LogFile).Msg("failed to open log file")
		return func() {}
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")
	return func() { logFile.Close() }
}

// serverProvider picks the provider behind /api/clothes-finder. Gemini is
// preferred; nil means the endpoint is disabled.
func serverProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch {
	case cfg.Providers.GeminiAPIKey != "":
		gemini, err := llm.NewGeminiProvider(ctx, cfg.Providers.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case cfg.Providers.OpenAIAPIKey != "":
		return llm.NewOpenAIProvider(cfg.Providers.OpenAIAPIKey, openAIOptions(cfg)...), nil
	default:
		return nil, nil
	}
}

func openAIOptions(cfg *config.Config) []llm.OpenAIOption {
	var opts []llm.OpenAIOption
	if cfg.Providers.OpenAIBaseURL != "" {
		opts = append(opts, llm.WithOpenAIBaseURL(cfg.Providers.OpenAIBaseURL))
	}
	if cfg.Providers.OpenAIModel != "" {
		opts = append(opts, llm.WithOpenAIModel(cfg.Providers.OpenAIModel))
	}
	return opts
}
