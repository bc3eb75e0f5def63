package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/zip-ingest/internal/config"
	"github.com/Sternrassler/zip-ingest/pkg/client"
	"github.com/redis/go-redis/v9"
)

// openRedis connects to Redis when a URL is configured; nil otherwise.
func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func newYelpClient(cfg config.YelpConfig, rdb *redis.Client) (*client.Client, error) {
	cc := client.DefaultConfig(cfg.APIKey, cfg.UserAgent)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.Redis = rdb
	cc.RateLimit = cfg.RateLimit
	cc.Burst = cfg.Burst
	cc.MaxRetries = cfg.MaxRetries
	cc.Timeout = cfg.Timeout
	cc.CacheTTL = cfg.CacheTTL

	c, err := client.New(cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Yelp client: %w", err)
	}
	return c, nil
}

// collectZips merges positional ZIP codes with those read from a file.
func collectZips(args []string, file string) ([]string, error) {
	zips := make([]string, 0, len(args))
	for _, arg := range args {
		zips = append(zips, splitZips(arg)...)
	}
	if file == "" {
		return zips, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open zips file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		zips = append(zips, splitZips(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read zips file: %w", err)
	}
	return zips, nil
}

// splitZips splits on commas and whitespace, dropping empty fields.
func splitZips(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// maskKey hides all but the last four characters.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
