// Package ingest implements ZIP-first batch ingestion of restaurant listings.
//
// An Ingestor walks a list of ZIP codes in order and, for each one, pages
// through a business search until the per-area target is met, the source
// runs dry, or the global call budget is spent. Every returned business is
// filtered by its reported ZIP code, normalized into a Restaurant and handed
// to a Store. The outcome of the whole run is a RunReport.
//
// # Basic Usage
//
//	svc := service.Live{Searcher: yelpClient, Store: pgStore}
//	ingestor := ingest.New(svc, ingest.WithLogger(logger))
//	report := ingestor.Run(ctx, []string{"10001", "10002"}, ingest.DefaultSettings())
//
// # Failure Containment
//
// Failures never abort a run. They are recorded as ErrorEntry values tagged
// with an ErrorKind and stay local to the smallest unit affected:
//
//   - storage_error: one record failed to persist; the page continues
//   - api_error: a search call failed; the area stops paging
//   - no_data: the area finished with zero accepted records
//   - processing_error: an unexpected failure in one area; the run continues
//   - limit_exceeded: the call budget ran out; this and all later areas are skipped
//
// The budget stop is the only early termination of a run.
package ingest
