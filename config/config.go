package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/raine/wardrobe/internal/objectstore"
)

const (
	AppName     = "wardrobe"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Config is the process configuration, read from the environment.
type Config struct {
	LogLevel    string        `env:"LOG_LEVEL" env-default:"info"`
	LogFile     string        `env:"LOG_FILE"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`

	Remote    RemoteConfig
	S3        S3Config
	Relay     RelayConfig
	Server    ServerConfig
	Providers ProviderConfig
	Cache     CacheConfig
}

// RemoteConfig points at the hosted store and the caller's session.
type RemoteConfig struct {
	URL          string `env:"REMOTE_URL"`
	AnonKey      string `env:"REMOTE_ANON_KEY"`
	ServiceKey   string `env:"REMOTE_SERVICE_KEY"`
	AccessToken  string `env:"ACCESS_TOKEN"`
	RefreshToken string `env:"REFRESH_TOKEN"`
	UserID       string `env:"USER_ID"`
}

// S3Config is the photo bucket.
type S3Config struct {
	Endpoint      string `env:"S3_ENDPOINT"`
	Region        string `env:"S3_REGION" env-default:"us-east-1"`
	Bucket        string `env:"S3_BUCKET" env-default:"wardrobe"`
	AccessKey     string `env:"S3_ACCESS_KEY"`
	SecretKey     string `env:"S3_SECRET_KEY"`
	UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" env-default:"true"`
	PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

// RelayConfig is where clients reach the relay server.
type RelayConfig struct {
	URL string `env:"RELAY_URL" env-default:"http://localhost:8080"`
}

// ServerConfig configures the relay server process.
type ServerConfig struct {
	Addr      string `env:"SERVER_ADDR" env-default:":8080"`
	JWTSecret string `env:"JWT_SECRET"`
}

// ProviderConfig holds the image analysis credentials. A provider without
// credentials is not configured.
type ProviderConfig struct {
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	OpenAIModel      string `env:"OPENAI_MODEL"`
	ClothesFinderURL string `env:"CLOTHES_FINDER_URL"`
}

// CacheConfig configures the local SQLite store.
type CacheConfig struct {
	DBPath   string        `env:"CACHE_DB_PATH" env-default:"wardrobe.db"`
	Capacity int           `env:"CACHE_CAPACITY" env-default:"500"`
	TTL      time.Duration `env:"CACHE_TTL" env-default:"24h"`
	// SessionKey enables encrypted persistence of rotated session tokens.
	SessionKey string `env:"SESSION_KEY"`
}

// Load reads the configuration from the environment and applies defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings every process needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Capacity < 0 {
		errs = append(errs, errors.New("CACHE_CAPACITY must not be negative"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings the relay server cannot run without.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.Remote.URL == "" {
		errs = append(errs, errors.New("REMOTE_URL is not set"))
	}
	if c.Remote.ServiceKey == "" {
		errs = append(errs, errors.New("REMOTE_SERVICE_KEY is not set"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	return errors.Join(errs...)
}

// ValidateClient checks the settings the CLI cannot run without.
func (c *Config) ValidateClient() error {
	var errs []error
	if c.Remote.URL == "" {
		errs = append(errs, errors.New("REMOTE_URL is not set"))
	}
	if c.Remote.AnonKey == "" {
		errs = append(errs, errors.New("REMOTE_ANON_KEY is not set"))
	}
	if c.Remote.AccessToken == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN is not set"))
	}
	if c.Remote.UserID == "" {
		errs = append(errs, errors.New("USER_ID is not set"))
	}
	return errors.Join(errs...)
}

// S3Configured reports whether object storage credentials are present.
func (c *Config) S3Configured() bool {
	return c.S3.Endpoint != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}

// ObjectStore returns the object storage settings.
func (c *Config) ObjectStore() objectstore.Config {
	return objectstore.Config{
		Endpoint:      c.S3.Endpoint,
		Region:        c.S3.Region,
		Bucket:        c.S3.Bucket,
		AccessKey:     c.S3.AccessKey,
		SecretKey:     c.S3.SecretKey,
		UsePathStyle:  c.S3.UsePathStyle,
		PublicBaseURL: c.S3.PublicBaseURL,
	}
}
