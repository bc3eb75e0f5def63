// Package config loads zip-ingest configuration from the environment, an
// optional .env file and an optional config file.
//
// Keys are dotted (yelp.api_key) and map to upper-case environment variables
// with dots replaced by underscores (YELP_API_KEY).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/Sternrassler/zip-ingest/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Yelp      YelpConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Archive   ArchiveConfig
	Ingestion map[string]any
}

type YelpConfig struct {
	APIKey     string
	BaseURL    string
	UserAgent  string
	RateLimit  float64
	Burst      int
	MaxRetries int
	Timeout    time.Duration
	CacheTTL   time.Duration
}

type RedisConfig struct {
	URL string
}

type DatabaseConfig struct {
	URL        string
	Schema     string
	MaxConns   int
	ViaBouncer bool
}

type LoggingConfig struct {
	Level  logging.LogLevel
	Pretty bool
}

type MetricsConfig struct {
	Addr string
}

type ArchiveConfig struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// ingestionKeys are the ingestion options read from the ingestion.* keys,
// legacy names included.
var ingestionKeys = []string{
	ingest.KeyMaxAPICalls,
	ingest.KeyTargetCountPerArea,
	ingest.KeySearchRadius,
	ingest.KeyPageSize,
	ingest.KeyCategory,
	ingest.KeyTrustTotal,
	"restaurants_per_zip",
	"radius_meters",
	"batch_size",
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration. configFile is optional; environment
// variables take precedence over its values.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("yelp.api_key", "")
	v.SetDefault("yelp.base_url", "https://api.yelp.com")
	v.SetDefault("yelp.user_agent", "zip-ingest/1.0")
	v.SetDefault("yelp.rate_limit", 5.0)
	v.SetDefault("yelp.burst", 1)
	v.SetDefault("yelp.max_retries", 2)
	v.SetDefault("yelp.timeout", "30s")
	v.SetDefault("yelp.cache_ttl", "24h")
	v.SetDefault("redis.url", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_conns", 2)
	v.SetDefault("database.via_bouncer", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "zip-ingest/reports/")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	level, err := logging.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	rateLimit, err := read(v, "yelp.rate_limit", cast.ToFloat64E)
	if err != nil {
		return Config{}, err
	}
	if rateLimit < 0 {
		return Config{}, fmt.Errorf("invalid YELP_RATE_LIMIT: %v", rateLimit)
	}

	maxRetries, err := read(v, "yelp.max_retries", cast.ToIntE)
	if err != nil {
		return Config{}, err
	}
	if maxRetries < 0 {
		return Config{}, fmt.Errorf("invalid YELP_MAX_RETRIES: %d", maxRetries)
	}

	burst, err := read(v, "yelp.burst", cast.ToIntE)
	if err != nil {
		return Config{}, err
	}

	timeout, err := read(v, "yelp.timeout", cast.ToDurationE)
	if err != nil {
		return Config{}, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cacheTTL, err := read(v, "yelp.cache_ttl", cast.ToDurationE)
	if err != nil {
		return Config{}, err
	}

	maxConns, err := read(v, "database.max_conns", cast.ToIntE)
	if err != nil {
		return Config{}, err
	}
	if maxConns <= 0 {
		maxConns = 2
	}

	viaBouncer, err := read(v, "database.via_bouncer", cast.ToBoolE)
	if err != nil {
		return Config{}, err
	}
	pretty, err := read(v, "log.pretty", cast.ToBoolE)
	if err != nil {
		return Config{}, err
	}
	pathStyle, err := read(v, "s3.use_path_style", cast.ToBoolE)
	if err != nil {
		return Config{}, err
	}

	schema := strings.TrimSpace(v.GetString("database.schema"))
	if schema == "" {
		schema = "public"
	}

	cfg := Config{
		Yelp: YelpConfig{
			APIKey:     strings.TrimSpace(v.GetString("yelp.api_key")),
			BaseURL:    strings.TrimSpace(v.GetString("yelp.base_url")),
			UserAgent:  strings.TrimSpace(v.GetString("yelp.user_agent")),
			RateLimit:  rateLimit,
			Burst:      burst,
			MaxRetries: maxRetries,
			Timeout:    timeout,
			CacheTTL:   cacheTTL,
		},
		Redis: RedisConfig{
			URL: strings.TrimSpace(v.GetString("redis.url")),
		},
		Database: DatabaseConfig{
			URL:        strings.TrimSpace(v.GetString("database.url")),
			Schema:     schema,
			MaxConns:   maxConns,
			ViaBouncer: viaBouncer,
		},
		Logging: LoggingConfig{
			Level:  level,
			Pretty: pretty,
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(v.GetString("metrics.addr")),
		},
		Archive: ArchiveConfig{
			Bucket:       strings.TrimSpace(v.GetString("s3.bucket")),
			Prefix:       strings.TrimSpace(v.GetString("s3.prefix")),
			Region:       strings.TrimSpace(v.GetString("s3.region")),
			Endpoint:     strings.TrimSpace(v.GetString("s3.endpoint")),
			UsePathStyle: pathStyle,
		},
		Ingestion: map[string]any{},
	}

	for _, key := range ingestionKeys {
		if full := "ingestion." + key; v.IsSet(full) {
			cfg.Ingestion[key] = v.Get(full)
		}
	}

	return cfg, nil
}

// read converts a key with conv and names the environment variable on failure.
func read[T any](v *viper.Viper, key string, conv func(any) (T, error)) (T, error) {
	val, err := conv(v.Get(key))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("invalid %s: %w", envName(key), err)
	}
	return val, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// HasYelpKey reports whether live searches are possible.
func (c Config) HasYelpKey() bool {
	return c.Yelp.APIKey != ""
}

// ArchiveEnabled reports whether run reports should be uploaded to S3.
func (c Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != ""
}

// Settings parses the ingestion options merged with overrides.
func (c Config) Settings(overrides map[string]any) (ingest.Settings, error) {
	options := make(map[string]any, len(c.Ingestion)+len(overrides))
	for k, v := range c.Ingestion {
		options[k] = v
	}
	for k, v := range overrides {
		options[k] = v
	}
	return ingest.ParseSettings(options)
}
