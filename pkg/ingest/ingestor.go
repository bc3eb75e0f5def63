package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/pagination"
	"github.com/Sternrassler/zip-ingest/pkg/yelp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// areaStatus is the terminal state of one ZIP code within a run.
type areaStatus string

const (
	statusSucceeded       areaStatus = "succeeded"
	statusNoData          areaStatus = "no_data"
	statusAPIError        areaStatus = "api_error"
	statusProcessingError areaStatus = "processing_error"
	statusSkippedLimit    areaStatus = "skipped_limit"
)

// Ingestor drives ZIP-first ingestion against a Service.
// A single Ingestor may run many times; runs share no state.
type Ingestor struct {
	service Service
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger used for run progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(in *Ingestor) {
		in.logger = logger.With().Str("component", "ingestor").Logger()
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(in *Ingestor) {
		in.now = now
	}
}

// New creates an Ingestor backed by the given service.
func New(service Service, opts ...Option) *Ingestor {
	in := &Ingestor{
		service: service,
		logger:  log.With().Str("component", "ingestor").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// callBudget is the global search call ceiling for one run.
type callBudget struct {
	max  int
	used int
}

func (b *callBudget) exhausted() bool {
	return b.used >= b.max
}

func (b *callBudget) spend() {
	b.used++
	searchCallsTotal.Inc()
}

// pageResult is the outcome of processing one page of search results.
type pageResult struct {
	accepted int
	filtered int
	stored   int
	errors   []ErrorEntry
}

// areaResult is the outcome of processing one ZIP code.
type areaResult struct {
	status  areaStatus
	outcome AreaOutcome
	errors  []ErrorEntry
}

// Run ingests the given ZIP codes in order and returns the run report.
// Per-area failures are recorded in the report; Run itself never fails.
func (in *Ingestor) Run(ctx context.Context, zips []string, settings Settings) *RunReport {
	settings = settings.normalized()
	report := newRunReport(in.now())
	budget := &callBudget{max: settings.MaxAPICalls}

	in.logger.Info().
		Int("zip_count", len(zips)).
		Int("max_api_calls", settings.MaxAPICalls).
		Int("target_per_zip", settings.TargetCountPerArea).
		Int("radius_meters", settings.SearchRadius).
		Msg("Starting ZIP-first ingestion")

	for i, zip := range zips {
		if budget.exhausted() {
			in.logger.Warn().
				Int("max_api_calls", settings.MaxAPICalls).
				Int("zip_index", i+1).
				Int("zip_count", len(zips)).
				Msg("API call limit reached, skipping remaining ZIP codes")
			for _, remaining := range zips[i:] {
				in.applyArea(report, remaining, areaResult{
					status:  statusSkippedLimit,
					outcome: AreaOutcome{ZipCode: remaining},
					errors:  []ErrorEntry{in.newError(remaining, KindLimitExceeded, "API call limit reached")},
				})
			}
			break
		}

		in.logger.Info().
			Str("zip_code", zip).
			Int("zip_index", i+1).
			Int("zip_count", len(zips)).
			Msg("Processing ZIP code")

		in.applyArea(report, zip, in.ingestArea(ctx, zip, settings, budget))
	}

	report.IngestionEnd = in.now()
	report.APICallsMade = budget.used
	runDuration.Observe(report.Duration().Seconds())

	in.logger.Info().
		Int("successful_zips", len(report.SuccessfulZips)).
		Int("failed_zips", len(report.FailedZips)).
		Int("total_restaurants", report.TotalRestaurants).
		Int("api_calls", budget.used).
		Int("max_api_calls", settings.MaxAPICalls).
		Dur("duration", report.Duration()).
		Msg("Ingestion complete")

	return report
}

// applyArea folds one area result into the report.
func (in *Ingestor) applyArea(report *RunReport, zip string, res areaResult) {
	report.Errors = append(report.Errors, res.errors...)
	for _, e := range res.errors {
		errorsTotal.WithLabelValues(string(e.Type)).Inc()
	}
	areasTotal.WithLabelValues(string(res.status)).Inc()

	if res.status == statusSucceeded {
		report.SuccessfulZips = append(report.SuccessfulZips, res.outcome)
		report.TotalRestaurants += res.outcome.RestaurantCount
		return
	}
	report.FailedZips = append(report.FailedZips, zip)
}

// ingestArea pages through the search results for one ZIP code.
// A panic anywhere below is contained here as a processing_error.
func (in *Ingestor) ingestArea(ctx context.Context, zip string, settings Settings, budget *callBudget) (res areaResult) {
	res.outcome = AreaOutcome{ZipCode: zip}

	defer func() {
		if r := recover(); r != nil {
			in.logger.Error().
				Str("zip_code", zip).
				Interface("panic", r).
				Msg("Critical failure while processing ZIP code")
			res.status = statusProcessingError
			res.errors = append(res.errors, in.newError(zip, KindProcessingError, fmt.Sprint(r)))
		}
	}()

	// A blank code would match every business without a location.
	if strings.TrimSpace(zip) == "" {
		in.logger.Warn().Msg("Empty ZIP code, skipping search")
		res.status = statusProcessingError
		res.errors = append(res.errors, in.newError(zip, KindProcessingError, "empty ZIP code"))
		return res
	}

	cursor := pagination.NewCursor(pagination.Config{
		Target:     settings.TargetCountPerArea,
		PageSize:   settings.PageSize,
		TrustTotal: settings.TrustTotal,
	})

	apiFailed := false
	for !cursor.Done() && !budget.exhausted() {
		params := yelp.SearchParams{
			Location:   zip,
			Categories: settings.Category,
			Radius:     settings.SearchRadius,
			Limit:      cursor.NextLimit(),
			Offset:     cursor.Offset(),
		}

		budget.spend()
		res.outcome.APICalls++

		resp, err := in.service.Search(ctx, params)
		if err != nil {
			in.logger.Error().
				Err(err).
				Str("zip_code", zip).
				Int("offset", params.Offset).
				Msg("Search call failed")
			res.errors = append(res.errors, in.newError(zip, KindAPIError, err.Error()))
			apiFailed = true
			break
		}
		if resp == nil {
			resp = &yelp.SearchResponse{}
		}

		page := in.processPage(ctx, zip, resp.Businesses)
		res.outcome.RestaurantCount += page.accepted
		res.outcome.StoredCount += page.stored
		res.errors = append(res.errors, page.errors...)

		cursor.Advance(len(resp.Businesses), page.accepted, resp.Total)

		in.logger.Debug().
			Str("zip_code", zip).
			Int("offset", params.Offset).
			Int("returned", len(resp.Businesses)).
			Int("accepted", page.accepted).
			Int("filtered", page.filtered).
			Int("total", resp.Total).
			Str("stop_reason", string(cursor.Reason())).
			Msg("Processed search page")
	}

	in.logger.Info().
		Str("zip_code", zip).
		Int("restaurants", res.outcome.RestaurantCount).
		Int("stored", res.outcome.StoredCount).
		Int("api_calls", res.outcome.APICalls).
		Msg("ZIP code complete")

	switch {
	case res.outcome.RestaurantCount > 0:
		res.status = statusSucceeded
	case apiFailed:
		res.status = statusAPIError
	default:
		res.status = statusNoData
		res.errors = append(res.errors, in.newError(zip, KindNoData, "No restaurants found in ZIP code area"))
	}
	return res
}

// processPage filters, normalizes and stores the businesses of one page.
func (in *Ingestor) processPage(ctx context.Context, zip string, businesses []yelp.Business) pageResult {
	var page pageResult
	for _, b := range businesses {
		if b.ZipCode() != zip {
			page.filtered++
			recordsTotal.WithLabelValues("filtered").Inc()
			continue
		}

		record := normalizeAt(b, zip, in.now())
		page.accepted++
		recordsTotal.WithLabelValues("accepted").Inc()

		if entry := in.store(ctx, zip, record); entry != nil {
			page.errors = append(page.errors, *entry)
			recordsTotal.WithLabelValues("store_failed").Inc()
			continue
		}
		page.stored++
		recordsTotal.WithLabelValues("stored").Inc()
	}
	return page
}

// store persists one record and returns an error entry on failure.
func (in *Ingestor) store(ctx context.Context, zip string, record Restaurant) *ErrorEntry {
	if err := in.service.StoreRestaurant(ctx, record); err != nil {
		in.logger.Error().
			Err(err).
			Str("zip_code", zip).
			Str("restaurant", record.Name).
			Str("yelp_id", record.YelpID).
			Msg("Storage failed")
		entry := in.newError(zip, KindStorageError, err.Error())
		entry.Restaurant = record.Name
		entry.YelpID = record.YelpID
		return &entry
	}
	return nil
}

func (in *Ingestor) newError(zip string, kind ErrorKind, msg string) ErrorEntry {
	return ErrorEntry{
		ZipCode:   zip,
		Error:     msg,
		Type:      kind,
		Timestamp: in.now(),
	}
}
