package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Sternrassler/zip-ingest/pkg/client"
	"github.com/Sternrassler/zip-ingest/pkg/fieldpaths"
	"github.com/Sternrassler/zip-ingest/pkg/yelp"
	"github.com/spf13/cobra"
)

type sampleOptions struct {
	location   string
	categories string
	limit      int
	out        string
	quiet      bool
}

func newSampleCmd(a *app) *cobra.Command {
	opts := &sampleOptions{}

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Fetch one search page and print its field paths",
		Long: `Fetch a single business search page, print the response, every field path
in dot notation and summary statistics, and save the response as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.location, "location", "Pleasanton, CA", "Search location")
	f.StringVar(&opts.categories, "categories", "restaurants", "Category filter")
	f.IntVar(&opts.limit, "limit", 20, "Number of businesses to fetch (max 50)")
	f.StringVar(&opts.out, "out", "pleasanton_sample_response.json", "Where to save the response")
	f.BoolVar(&opts.quiet, "quiet", false, "Do not print the full response")

	return cmd
}

func runSample(cmd *cobra.Command, a *app, opts *sampleOptions) error {
	out := cmd.OutOrStdout()

	if !a.cfg.HasYelpKey() {
		return fmt.Errorf("YELP_API_KEY is not set; add it to the environment or a .env file")
	}
	if opts.limit <= 0 || opts.limit > yelp.MaxPageSize {
		return fmt.Errorf("limit must be between 1 and %d (got %d)", yelp.MaxPageSize, opts.limit)
	}

	yc, err := newYelpClient(a.cfg.Yelp, nil)
	if err != nil {
		return err
	}
	defer yc.Close()

	fmt.Fprintf(out, "API key: %s\n", maskKey(a.cfg.Yelp.APIKey))

	params := yelp.SearchParams{
		Location:   opts.location,
		Categories: opts.categories,
		Limit:      opts.limit,
	}
	a.logger.Info().
		Str("location", params.Location).
		Str("categories", params.Categories).
		Int("limit", params.Limit).
		Msg("Fetching sample")

	raw, err := yc.SearchRaw(cmd.Context(), params)
	if err != nil {
		return describeSampleError(err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}

	if !opts.quiet {
		fmt.Fprintln(out, "\nFULL JSON RESPONSE")
		fmt.Fprintln(out, pretty.String())
	}

	if err := describeStructure(out, raw); err != nil {
		return err
	}

	if err := os.WriteFile(opts.out, append(pretty.Bytes(), '\n'), 0o644); err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	fmt.Fprintf(out, "\nResponse saved to: %s\n", opts.out)
	return nil
}

// describeStructure prints every field path and summary statistics.
func describeStructure(w io.Writer, raw []byte) error {
	doc, err := fieldpaths.Decode(raw)
	if err != nil {
		return err
	}
	paths := fieldpaths.Paths(doc)

	fmt.Fprintln(w, "\nRESPONSE STRUCTURE ANALYSIS")
	fmt.Fprintf(w, "Total fields discovered: %d\n", len(paths))
	fmt.Fprintln(w, "Field paths (dot notation):")
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}

	var page yelp.SearchResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}

	fmt.Fprintln(w, "\nSUMMARY STATISTICS:")
	fmt.Fprintf(w, "  Total businesses returned: %d\n", len(page.Businesses))
	if len(page.Businesses) > 0 {
		first := page.Businesses[0]
		fmt.Fprintf(w, "  First business name: %s\n", orNA(first.Name))
		fmt.Fprintf(w, "  First business ID: %s\n", orNA(first.ID))
	}
	fmt.Fprintf(w, "  Total results available: %d\n", page.Total)
	return nil
}

func describeSampleError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("authentication failed, check YELP_API_KEY: %w", err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("API rate limit exceeded, try again later: %w", err)
		}
	}
	return fmt.Errorf("sample request failed: %w", err)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
