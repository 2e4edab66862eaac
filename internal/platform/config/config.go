package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

const (
	defaultEnvFile         = ".env"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultContentDir      = "content"
	defaultContentCacheTTL = 5 * time.Minute
	defaultBlogTimeout     = 5 * time.Second
	defaultBlogCacheTTL    = 60 * time.Second
	defaultSessionTTL      = 30 * time.Minute
	defaultSessionCleanup  = 5 * time.Minute
	defaultSessionBatch    = 500
	defaultLocale          = "en-US"
	defaultLogLevel        = "info"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Content  ContentConfig
	Blog     BlogConfig
	Scores   ScoreConfig
	Sessions SessionConfig
	Locale   LocaleConfig
	Log      LogConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ContentConfig locates the markdown pages.
type ContentConfig struct {
	Dir      string
	CacheTTL time.Duration
	Watch    bool
}

// BlogConfig points at the external blog API. An empty APIURL disables the blog routes.
type BlogConfig struct {
	APIURL   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ScoreConfig selects the best-score store. An empty DBPath keeps scores in memory.
type ScoreConfig struct {
	DBPath string
}

// SessionConfig controls calculator session expiry.
type SessionConfig struct {
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// LocaleConfig sets the fallback locale for number formatting.
type LocaleConfig struct {
	Default language.Tag
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, .env overrides, environment
// variables and an optional explicit map, in increasing order of precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	var invalid []string
	localeRaw := stringWithDefault(lookup, "TOOLSKIT_DEFAULT_LOCALE", defaultLocale)
	locale, err := language.Parse(localeRaw)
	if err != nil {
		invalid = append(invalid, "Locale.Default")
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "TOOLSKIT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "TOOLSKIT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "TOOLSKIT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "TOOLSKIT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Content: ContentConfig{
			Dir:      stringWithDefault(lookup, "TOOLSKIT_CONTENT_DIR", defaultContentDir),
			CacheTTL: durationWithDefault(lookup, "TOOLSKIT_CONTENT_CACHE_TTL", defaultContentCacheTTL),
			Watch:    boolWithDefault(lookup, "TOOLSKIT_CONTENT_WATCH", false),
		},
		Blog: BlogConfig{
			APIURL:   strings.TrimRight(stringWithDefault(lookup, "TOOLSKIT_BLOG_API_URL", ""), "/"),
			Timeout:  durationWithDefault(lookup, "TOOLSKIT_BLOG_TIMEOUT", defaultBlogTimeout),
			CacheTTL: durationWithDefault(lookup, "TOOLSKIT_BLOG_CACHE_TTL", defaultBlogCacheTTL),
		},
		Scores: ScoreConfig{
			DBPath: stringWithDefault(lookup, "TOOLSKIT_SCORE_DB_PATH", ""),
		},
		Sessions: SessionConfig{
			TTL:              durationWithDefault(lookup, "TOOLSKIT_SESSION_TTL", defaultSessionTTL),
			CleanupInterval:  durationWithDefault(lookup, "TOOLSKIT_SESSION_CLEANUP_INTERVAL", defaultSessionCleanup),
			CleanupBatchSize: intWithDefault(lookup, "TOOLSKIT_SESSION_CLEANUP_BATCH", defaultSessionBatch),
		},
		Locale: LocaleConfig{Default: locale},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return ":" + c.Port
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.ReadTimeout <= 0 {
		missing = append(missing, "Server.ReadTimeout")
	}
	if cfg.Server.WriteTimeout <= 0 {
		missing = append(missing, "Server.WriteTimeout")
	}
	if strings.TrimSpace(cfg.Content.Dir) == "" {
		missing = append(missing, "Content.Dir")
	}
	if cfg.Content.CacheTTL < 0 {
		missing = append(missing, "Content.CacheTTL")
	}
	if cfg.Blog.APIURL != "" {
		u, err := url.Parse(cfg.Blog.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			missing = append(missing, "Blog.APIURL")
		}
	}
	if cfg.Blog.Timeout <= 0 {
		missing = append(missing, "Blog.Timeout")
	}
	if cfg.Sessions.TTL <= 0 {
		missing = append(missing, "Sessions.TTL")
	}
	if cfg.Sessions.CleanupInterval <= 0 {
		missing = append(missing, "Sessions.CleanupInterval")
	}
	if cfg.Sessions.CleanupBatchSize <= 0 {
		missing = append(missing, "Sessions.CleanupBatchSize")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		missing = append(missing, "Log.Level")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
