package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TableName is the restaurant table.
const TableName = "zipbusiness_restaurants"

// DefaultSchema is used when PostgresConfig.Schema is empty.
const DefaultSchema = "public"

// ErrTableMissing is returned by Verify when the restaurant table does not exist.
var ErrTableMissing = errors.New("table " + TableName + " does not exist")

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN    string
	Schema string

	// MaxConns defaults to 2; ingestion stores records sequentially.
	MaxConns int

	// ViaBouncer switches to the simple protocol for pgbouncer transaction pooling.
	ViaBouncer bool
}

// OpenPool opens and pings a pgx connection pool.
func OpenPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	poolCfg.MaxConns = int32(maxConns)
	if cfg.ViaBouncer {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Postgres stores restaurants in Postgres.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	table  string
	logger zerolog.Logger
}

// NewPostgres creates a store on an open pool.
func NewPostgres(pool *pgxpool.Pool, schema string) *Postgres {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Postgres{
		pool:   pool,
		schema: schema,
		table:  pgx.Identifier{schema, TableName}.Sanitize(),
		logger: log.With().Str("component", "store").Logger(),
	}
}

// EnsureSchema creates the restaurant table and its index if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(p.schema) {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", TableName, err)
		}
	}
	p.logger.Info().Str("schema", p.schema).Msg("Restaurant table ready")
	return nil
}

// StoreRestaurant upserts one record keyed by yelp_id.
func (p *Postgres) StoreRestaurant(ctx context.Context, r ingest.Restaurant) error {
	if strings.TrimSpace(r.YelpID) == "" {
		return fmt.Errorf("restaurant %q has no yelp id", r.Name)
	}

	_, err := p.pool.Exec(ctx, upsertSQL(p.table), restaurantArgs(r)...)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", r.YelpID, err)
	}
	return nil
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func schemaStatements(schema string) []string {
	table := pgx.Identifier{schema, TableName}.Sanitize()
	index := pgx.Identifier{TableName + "_zip_code_idx"}.Sanitize()
	return []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
		yelp_id      text PRIMARY KEY,
		name         text NOT NULL,
		address      text,
		city         text,
		state        text,
		zip_code     varchar(10) NOT NULL,
		latitude     double precision,
		longitude    double precision,
		phone        text,
		rating       numeric(2,1),
		review_count integer,
		price        varchar(8),
		categories   text[] NOT NULL DEFAULT '{}',
		image_url    text,
		url          text,
		is_closed    boolean NOT NULL DEFAULT false,
		transactions text[] NOT NULL DEFAULT '{}',
		ingested_at  timestamptz NOT NULL,
		updated_at   timestamptz NOT NULL DEFAULT now()
	)`,
		`CREATE INDEX IF NOT EXISTS ` + index + ` ON ` + table + ` (zip_code)`,
	}
}

func upsertSQL(table string) string {
	return `INSERT INTO ` + table + `
		(yelp_id, name, address, city, state, zip_code, latitude, longitude, phone,
		 rating, review_count, price, categories, image_url, url, is_closed, transactions, ingested_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (yelp_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			phone = EXCLUDED.phone,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			price = EXCLUDED.price,
			categories = EXCLUDED.categories,
			image_url = EXCLUDED.image_url,
			url = EXCLUDED.url,
			is_closed = EXCLUDED.is_closed,
			transactions = EXCLUDED.transactions,
			ingested_at = EXCLUDED.ingested_at,
			updated_at = now()`
}

// restaurantArgs returns the upsert arguments; empty optional text becomes NULL.
func restaurantArgs(r ingest.Restaurant) []any {
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	transactions := r.Transactions
	if transactions == nil {
		transactions = []string{}
	}
	return []any{
		r.YelpID,
		r.Name,
		nullIfEmpty(r.Address),
		nullIfEmpty(r.City),
		nullIfEmpty(r.State),
		r.ZipCode,
		r.Latitude,
		r.Longitude,
		nullIfEmpty(r.Phone),
		r.Rating,
		r.ReviewCount,
		nullIfEmpty(r.Price),
		categories,
		nullIfEmpty(r.ImageURL),
		nullIfEmpty(r.URL),
		r.IsClosed,
		transactions,
		r.IngestedAt,
	}
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
