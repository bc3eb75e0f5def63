package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/zip-ingest/internal/config"
	"github.com/Sternrassler/zip-ingest/pkg/cache"
	"github.com/Sternrassler/zip-ingest/pkg/ingest"
	"github.com/Sternrassler/zip-ingest/pkg/report"
	"github.com/Sternrassler/zip-ingest/pkg/service"
	"github.com/Sternrassler/zip-ingest/pkg/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type runOptions struct {
	zipsFile     string
	out          string
	metricsAddr  string
	stub         bool
	logOnly      bool
	ensureSchema bool
	refresh      bool

	maxAPICalls int
	target      int
	radius      int
	pageSize    int
	category    string
	trustTotal  bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [zip...]",
		Short: "Ingest restaurants for ZIP codes",
		Long: `Ingest restaurants for the given ZIP codes in order.

Without YELP_API_KEY (or with --stub) searches are logged and return no
results. Records are upserted into Postgres when DATABASE_URL is set and
only logged otherwise. REDIS_URL enables response caching and daily quota
tracking; --refresh drops the cached pages of the given ZIP codes first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, a, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.zipsFile, "zips-file", "", "File with ZIP codes (one per line or comma separated, # comments)")
	f.StringVar(&opts.out, "out", "", "Write the JSON run report to this file")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address during the run")
	f.BoolVar(&opts.stub, "stub", false, "Use the stub service (no API calls, nothing stored)")
	f.BoolVar(&opts.logOnly, "log-only", false, "Log records instead of writing them to Postgres")
	f.BoolVar(&opts.ensureSchema, "ensure-schema", false, "Create the restaurant table if it does not exist")
	f.BoolVar(&opts.refresh, "refresh", false, "Drop cached search pages for the given ZIP codes before the run")
	f.IntVar(&opts.maxAPICalls, "max-api-calls", ingest.DefaultMaxAPICalls, "Global search call budget for the run")
	f.IntVar(&opts.target, "target", ingest.DefaultTargetCountPerArea, "Restaurants wanted per ZIP code")
	f.IntVar(&opts.radius, "radius", ingest.DefaultSearchRadius, "Search radius in meters")
	f.IntVar(&opts.pageSize, "page-size", ingest.DefaultPageSize, "Results per search call (max 50)")
	f.StringVar(&opts.category, "category", ingest.DefaultCategory, "Search category")
	f.BoolVar(&opts.trustTotal, "trust-total", true, "Stop paging once the reported total is reached")

	return cmd
}

// overrides returns the settings given explicitly on the command line.
func (o *runOptions) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	f := cmd.Flags()
	if f.Changed("max-api-calls") {
		out[ingest.KeyMaxAPICalls] = o.maxAPICalls
	}
	if f.Changed("target") {
		out[ingest.KeyTargetCountPerArea] = o.target
	}
	if f.Changed("radius") {
		out[ingest.KeySearchRadius] = o.radius
	}
	if f.Changed("page-size") {
		out[ingest.KeyPageSize] = o.pageSize
	}
	if f.Changed("category") {
		out[ingest.KeyCategory] = o.category
	}
	if f.Changed("trust-total") {
		out[ingest.KeyTrustTotal] = o.trustTotal
	}
	return out
}

func runIngest(cmd *cobra.Command, a *app, opts *runOptions, args []string) error {
	ctx := cmd.Context()

	zips, err := collectZips(args, opts.zipsFile)
	if err != nil {
		return err
	}
	if len(zips) == 0 {
		return fmt.Errorf("no ZIP codes given")
	}

	settings, err := a.cfg.Settings(opts.overrides(cmd))
	if err != nil {
		return fmt.Errorf("invalid ingestion settings: %w", err)
	}

	svc, closeSvc, err := buildService(ctx, a.cfg, opts, zips, a.logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}
	if addr != "" {
		stop := startMetricsServer(addr, a.logger)
		defer stop()
	}

	rep := ingest.New(svc, ingest.WithLogger(a.logger)).Run(ctx, zips, settings)

	if err := report.PrintSummary(cmd.OutOrStdout(), rep); err != nil {
		return err
	}

	if opts.out != "" {
		if err := report.SaveFile(opts.out, rep); err != nil {
			return err
		}
		a.logger.Info().Str("path", opts.out).Msg("Run report saved")
	}

	if a.cfg.ArchiveEnabled() {
		archiver, err := report.NewS3Archiver(ctx, report.S3Config{
			Bucket:       a.cfg.Archive.Bucket,
			Prefix:       a.cfg.Archive.Prefix,
			Region:       a.cfg.Archive.Region,
			Endpoint:     a.cfg.Archive.Endpoint,
			UsePathStyle: a.cfg.Archive.UsePathStyle,
		})
		if err != nil {
			return err
		}
		if _, err := archiver.Archive(ctx, rep); err != nil {
			return err
		}
	}

	return nil
}

// buildService selects the stub or live service and returns a cleanup func.
func buildService(ctx context.Context, cfg config.Config, opts *runOptions, zips []string, logger zerolog.Logger) (ingest.Service, func(), error) {
	noop := func() {}

	if opts.stub || !cfg.HasYelpKey() {
		if !opts.stub {
			logger.Warn().Msg("YELP_API_KEY not set, using stub service")
		}
		return service.NewStub(logger), noop, nil
	}

	rdb, err := openRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, noop, err
	}

	yc, err := newYelpClient(cfg.Yelp, rdb)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, noop, err
	}

	closers := []func(){func() { yc.Close() }}
	if rdb != nil {
		closers = append(closers, func() { rdb.Close() })
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if opts.refresh {
		refreshCache(ctx, yc.GetCache(), zips, logger)
	}

	if opts.logOnly || cfg.Database.URL == "" {
		return service.NewLive(yc, store.NewLogStore(logger)), cleanup, nil
	}

	pool, err := store.OpenPool(ctx, store.PostgresConfig{
		DSN:        cfg.Database.URL,
		Schema:     cfg.Database.Schema,
		MaxConns:   cfg.Database.MaxConns,
		ViaBouncer: cfg.Database.ViaBouncer,
	})
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("failed to open database: %w", err)
	}
	pg := store.NewPostgres(pool, cfg.Database.Schema)
	closers = append(closers, pg.Close)

	if opts.ensureSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, noop, err
		}
	}

	return service.NewLive(yc, pg), cleanup, nil
}

// refreshCache drops cached search pages so the run fetches fresh results.
// Failures are logged; a stale cache never blocks a run.
func refreshCache(ctx context.Context, c *cache.Manager, zips []string, logger zerolog.Logger) {
	if c == nil {
		logger.Warn().Msg("--refresh has no effect without REDIS_URL")
		return
	}
	total := 0
	for _, zip := range zips {
		n, err := c.InvalidateLocation(ctx, zip)
		if err != nil {
			logger.Warn().Err(err).Str("zip_code", zip).Msg("Failed to drop cached pages")
			continue
		}
		total += n
	}
	logger.Info().Int("zip_count", len(zips)).Int("pages", total).Msg("Dropped cached search pages")
}
