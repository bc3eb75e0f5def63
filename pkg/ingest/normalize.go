package ingest

import (
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/yelp"
)

// Normalize shapes a raw business into a Restaurant for the requested ZIP code.
// Missing nested fields degrade to empty values; it never fails.
func Normalize(raw yelp.Business, requestedZip string) Restaurant {
	return normalizeAt(raw, requestedZip, time.Now().UTC())
}

func normalizeAt(raw yelp.Business, requestedZip string, at time.Time) Restaurant {
	r := Restaurant{
		YelpID:       raw.ID,
		Name:         raw.Name,
		ZipCode:      requestedZip,
		Phone:        raw.Phone,
		Rating:       copyFloat(raw.Rating),
		ReviewCount:  copyInt(raw.ReviewCount),
		Price:        raw.Price,
		Categories:   categoryAliases(raw.Categories),
		ImageURL:     raw.ImageURL,
		URL:          raw.URL,
		Transactions: append([]string{}, raw.Transactions...),
		IngestedAt:   at,
	}

	if raw.IsClosed != nil {
		r.IsClosed = *raw.IsClosed
	}

	if loc := raw.Location; loc != nil {
		r.Address = loc.Address1
		r.City = loc.City
		r.State = loc.State
	}

	if coords := raw.Coordinates; coords != nil {
		r.Latitude = copyFloat(coords.Latitude)
		r.Longitude = copyFloat(coords.Longitude)
	}

	return r
}

// categoryAliases keeps the alias of each category, dropping entries without one.
func categoryAliases(categories []yelp.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if c.Alias != "" {
			out = append(out, c.Alias)
		}
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
