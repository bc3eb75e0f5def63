package ingest

import "time"

// ErrorKind tags the failure class of an ErrorEntry.
type ErrorKind string

const (
	// KindLimitExceeded marks an area skipped because the call budget ran out.
	KindLimitExceeded ErrorKind = "limit_exceeded"

	// KindNoData marks an area that completed with zero accepted records.
	KindNoData ErrorKind = "no_data"

	// KindProcessingError marks an unexpected failure while handling an area.
	KindProcessingError ErrorKind = "processing_error"

	// KindStorageError marks a single record that failed to persist.
	KindStorageError ErrorKind = "storage_error"

	// KindAPIError marks a failed search call.
	KindAPIError ErrorKind = "api_error"
)

// ErrorEntry records one failure with enough context for post-hoc debugging.
type ErrorEntry struct {
	ZipCode    string    `json:"zip_code"`
	Restaurant string    `json:"restaurant,omitempty"`
	YelpID     string    `json:"yelp_id,omitempty"`
	Error      string    `json:"error"`
	Type       ErrorKind `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// AreaOutcome summarizes a successfully ingested ZIP code.
type AreaOutcome struct {
	ZipCode         string `json:"zip_code"`
	RestaurantCount int    `json:"restaurant_count"`
	APICalls        int    `json:"api_calls"`
	StoredCount     int    `json:"stored_count"`
}

// RunReport is the aggregate result of one ingestion run.
// It is owned by the run that creates it and only valid once Run returns.
type RunReport struct {
	SuccessfulZips   []AreaOutcome `json:"successful_zips"`
	FailedZips       []string      `json:"failed_zips"`
	TotalRestaurants int           `json:"total_restaurants"`
	Errors           []ErrorEntry  `json:"errors"`
	IngestionStart   time.Time     `json:"ingestion_start"`
	IngestionEnd     time.Time     `json:"ingestion_end"`
	APICallsMade     int           `json:"api_calls_made"`
}

func newRunReport(start time.Time) *RunReport {
	return &RunReport{
		SuccessfulZips: []AreaOutcome{},
		FailedZips:     []string{},
		Errors:         []ErrorEntry{},
		IngestionStart: start,
	}
}

// ErrorsFor returns the error entries recorded for a ZIP code, in order.
func (r *RunReport) ErrorsFor(zip string) []ErrorEntry {
	var out []ErrorEntry
	for _, e := range r.Errors {
		if e.ZipCode == zip {
			out = append(out, e)
		}
	}
	return out
}

// Outcome returns the successful outcome for a ZIP code, if any.
func (r *RunReport) Outcome(zip string) (AreaOutcome, bool) {
	for _, o := range r.SuccessfulZips {
		if o.ZipCode == zip {
			return o, true
		}
	}
	return AreaOutcome{}, false
}

// IsFailed reports whether a ZIP code is in the failed list.
func (r *RunReport) IsFailed(zip string) bool {
	for _, z := range r.FailedZips {
		if z == zip {
			return true
		}
	}
	return false
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.IngestionEnd.IsZero() {
		return 0
	}
	return r.IngestionEnd.Sub(r.IngestionStart)
}

// Restaurant is a normalized business record ready for storage.
// ZipCode is always the requested ZIP code, never the source's value.
type Restaurant struct {
	YelpID       string    `json:"yelp_id"`
	Name         string    `json:"name"`
	Address      string    `json:"address,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	ZipCode      string    `json:"zip_code"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	Phone        string    `json:"phone,omitempty"`
	Rating       *float64  `json:"rating"`
	ReviewCount  *int      `json:"review_count"`
	Price        string    `json:"price,omitempty"`
	Categories   []string  `json:"categories"`
	ImageURL     string    `json:"image_url,omitempty"`
	URL          string    `json:"url,omitempty"`
	IsClosed     bool      `json:"is_closed"`
	Transactions []string  `json:"transactions"`
	IngestedAt   time.Time `json:"ingested_at"`
}
