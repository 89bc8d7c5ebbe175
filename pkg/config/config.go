package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultJWTSecret = "secret"

	defaultDBMaxOpenConns    = 10
	defaultDBMaxIdleConns    = 10
	defaultDBConnMaxLifetime = 30 * time.Minute

	defaultHTTPReadTimeout     = 5 * time.Second
	defaultHTTPWriteTimeout    = 10 * time.Second
	defaultHTTPShutdownTimeout = 10 * time.Second

	defaultCacheTTL       = time.Hour
	defaultClickWorkers   = 4
	defaultClickQueueSize = 1024
	defaultClickTimeout   = 5 * time.Second
	defaultGeoTimeout     = 1500 * time.Millisecond
	defaultCodeLength     = 7
	defaultCodeAttempts   = 5
)

// Geo providers
const (
	GeoNone    = "none"
	GeoHTTP    = "http"
	GeoMaxMind = "maxmind"
)

type Config struct {
	Port     string
	AppEnv   string
	BaseURL  string
	LogLevel slog.Level

	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPShutdownTimeout time.Duration

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string // Empty means anyone with a Google account

	SentryDSN string

	RedisURL string // Empty disables the resolve cache
	CacheTTL time.Duration

	NATSURL      string // Empty keeps click recording in process
	ClickSubject string
	ClickStream  string

	ClickWorkers   int
	ClickQueueSize int
	ClickTimeout   time.Duration

	GeoProvider string
	GeoEndpoint string
	GeoDBPath   string
	GeoTimeout  time.Duration

	ClientIDSalt string
	AssetDir     string // Empty disables QR uploads

	CodeLength   int
	CodeAttempts int
}

// IsPostgres reports whether DatabaseURL points at PostgreSQL rather than
// SQLite/libsql.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) IsLocal() bool { return c.AppEnv == "local" || c.AppEnv == "test" }

// Load reads, in order of precedence: process env, .env, the YAML file named
// by CONFIG_FILE, then defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               src.get("PORT", "8080"),
		AppEnv:             src.get("APP_ENV", "local"),
		BaseURL:            strings.TrimRight(src.get("BASE_URL", "http://localhost:8080"), "/"),
		DatabaseURL:        src.get("DATABASE_URL", "file:db.sqlite"),
		GoogleClientID:     src.get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: src.get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  src.get("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          src.get("JWT_SECRET", defaultJWTSecret),
		FrontendURL:        src.get("FRONTEND_URL", "http://localhost:8080/dashboard"),
		AllowedEmails:      splitList(src.get("ALLOWED_EMAILS", "")),
		SentryDSN:          src.get("SENTRY_DSN", ""),
		RedisURL:           src.get("REDIS_URL", ""),
		NATSURL:            src.get("NATS_URL", ""),
		ClickSubject:       src.get("CLICK_SUBJECT", "clicks.events"),
		ClickStream:        src.get("CLICK_STREAM", "CLICKS"),
		GeoProvider:        strings.ToLower(src.get("GEO_PROVIDER", GeoNone)),
		GeoEndpoint:        src.get("GEO_ENDPOINT", "http://ip-api.com/json/"),
		GeoDBPath:          src.get("GEO_DB_PATH", ""),
		ClientIDSalt:       src.get("CLIENT_ID_SALT", ""),
		AssetDir:           src.get("ASSET_DIR", ""),
	}

	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" || (!cfg.IsLocal() && cfg.JWTSecret == defaultJWTSecret) {
		return nil, ErrJWTSecretEmpty
	}

	level, err := parseLogLevel(src.get("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	loaders := []func(source, *Config) error{
		loadHTTPServer,
		loadDBPool,
		loadClicks,
		loadGeo,
		loadCodes,
	}
	for _, load := range loaders {
		if err := load(src, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.ClientIDSalt == "" {
		cfg.ClientIDSalt = cfg.JWTSecret
	}

	return cfg, nil
}

// source resolves keys against the environment first and the config file
// second.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("%w: %s: %v", ErrConfigFile, path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("%w: %s: %v", ErrConfigFile, path, err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		src.file[strings.ToUpper(k)] = strings.TrimSpace(fmt.Sprint(v))
	}

	return src, nil
}

func (s source) get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return def
}

func (s source) duration(key string, def time.Duration) (time.Duration, error) {
	raw := s.get(key, "")
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s=%s", ErrInvalidDuration, key, d)
	}

	return d, nil
}

func (s source) integer(key string, def int) (int, error) {
	raw := s.get(key, "")
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidInt, key, raw)
	}

	return n, nil
}

type durationSpec struct {
	key string
	def time.Duration
	dst *time.Duration
}

type intSpec struct {
	key string
	def int
	dst *int
}

func loadDurations(src source, specs []durationSpec) error {
	for _, spec := range specs {
		d, err := src.duration(spec.key, spec.def)
		if err != nil {
			return err
		}
		*spec.dst = d
	}
	return nil
}

func loadInts(src source, specs []intSpec) error {
	for _, spec := range specs {
		n, err := src.integer(spec.key, spec.def)
		if err != nil {
			return err
		}
		*spec.dst = n
	}
	return nil
}

// grouped loaders

func loadHTTPServer(src source, cfg *Config) error {
	return loadDurations(src, []durationSpec{
		{key: "HTTP_READ_TIMEOUT", def: defaultHTTPReadTimeout, dst: &cfg.HTTPReadTimeout},
		{key: "HTTP_WRITE_TIMEOUT", def: defaultHTTPWriteTimeout, dst: &cfg.HTTPWriteTimeout},
		{key: "HTTP_SHUTDOWN_TIMEOUT", def: defaultHTTPShutdownTimeout, dst: &cfg.HTTPShutdownTimeout},
	})
}

func loadDBPool(src source, cfg *Config) error {
	if err := loadInts(src, []intSpec{
		{key: "DB_MAX_OPEN_CONNS", def: defaultDBMaxOpenConns, dst: &cfg.DBMaxOpenConns},
		{key: "DB_MAX_IDLE_CONNS", def: defaultDBMaxIdleConns, dst: &cfg.DBMaxIdleConns},
	}); err != nil {
		return err
	}

	if err := loadDurations(src, []durationSpec{
		{key: "DB_CONN_MAX_LIFETIME", def: defaultDBConnMaxLifetime, dst: &cfg.DBConnMaxLifetime},
	}); err != nil {
		return err
	}

	if cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
		return fmt.Errorf("%w: idle=%d > open=%d", ErrInvalidDBPool, cfg.DBMaxIdleConns, cfg.DBMaxOpenConns)
	}

	return nil
}

func loadClicks(src source, cfg *Config) error {
	if err := loadInts(src, []intSpec{
		{key: "CLICK_WORKERS", def: defaultClickWorkers, dst: &cfg.ClickWorkers},
		{key: "CLICK_QUEUE_SIZE", def: defaultClickQueueSize, dst: &cfg.ClickQueueSize},
	}); err != nil {
		return err
	}

	return loadDurations(src, []durationSpec{
		{key: "CLICK_TIMEOUT", def: defaultClickTimeout, dst: &cfg.ClickTimeout},
		{key: "CACHE_TTL", def: defaultCacheTTL, dst: &cfg.CacheTTL},
	})
}

func loadGeo(src source, cfg *Config) error {
	switch cfg.GeoProvider {
	case GeoNone, GeoHTTP:
	case GeoMaxMind:
		if cfg.GeoDBPath == "" {
			return fmt.Errorf("%w: GEO_PROVIDER=maxmind needs GEO_DB_PATH", ErrInvalidGeo)
		}
	default:
		return fmt.Errorf("%w: GEO_PROVIDER=%q", ErrInvalidGeo, cfg.GeoProvider)
	}

	return loadDurations(src, []durationSpec{
		{key: "GEO_TIMEOUT", def: defaultGeoTimeout, dst: &cfg.GeoTimeout},
	})
}

func loadCodes(src source, cfg *Config) error {
	return loadInts(src, []intSpec{
		{key: "CODE_LENGTH", def: defaultCodeLength, dst: &cfg.CodeLength},
		{key: "CODE_ATTEMPTS", def: defaultCodeAttempts, dst: &cfg.CodeAttempts},
	})
}

func validateBaseURL(v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return ErrInvalidBaseURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidBaseURL
	}
	if u.Hostname() == "" || u.RawQuery != "" || u.Fragment != "" {
		return ErrInvalidBaseURL
	}
	return nil
}

func parseLogLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, v)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
