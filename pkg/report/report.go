// Package report renders, saves and archives ingestion run reports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/ingest"
)

// ToMap converts a run report into a plain map keyed like its JSON form.
// Timestamps are RFC 3339 strings in UTC.
func ToMap(r *ingest.RunReport) map[string]any {
	successful := make([]map[string]any, 0, len(r.SuccessfulZips))
	for _, o := range r.SuccessfulZips {
		successful = append(successful, map[string]any{
			"zip_code":         o.ZipCode,
			"restaurant_count": o.RestaurantCount,
			"api_calls":        o.APICalls,
			"stored_count":     o.StoredCount,
		})
	}

	errs := make([]map[string]any, 0, len(r.Errors))
	for _, e := range r.Errors {
		entry := map[string]any{
			"zip_code":  e.ZipCode,
			"error":     e.Error,
			"type":      string(e.Type),
			"timestamp": formatTime(e.Timestamp),
		}
		if e.Restaurant != "" {
			entry["restaurant"] = e.Restaurant
		}
		if e.YelpID != "" {
			entry["yelp_id"] = e.YelpID
		}
		errs = append(errs, entry)
	}

	failed := make([]string, len(r.FailedZips))
	copy(failed, r.FailedZips)

	return map[string]any{
		"successful_zips":   successful,
		"failed_zips":       failed,
		"total_restaurants": r.TotalRestaurants,
		"errors":            errs,
		"ingestion_start":   formatTime(r.IngestionStart),
		"ingestion_end":     formatTime(r.IngestionEnd),
		"api_calls_made":    r.APICallsMade,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Marshal encodes the report as indented JSON.
func Marshal(r *ingest.RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(ToMap(r), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// WriteJSON writes the indented JSON report to w.
func WriteJSON(w io.Writer, r *ingest.RunReport) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// SaveFile writes the JSON report to path.
func SaveFile(path string, r *ingest.RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
