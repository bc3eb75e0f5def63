// Package yelp defines the wire model of the Yelp Fusion business search API.
//
// Optional nested objects are pointers so that partial or malformed
// payloads decode without error and callers can tell "absent" from "zero".
package yelp

import (
	"net/url"
	"strconv"
)

// SearchEndpoint is the business search path under the API base URL.
const SearchEndpoint = "/v3/businesses/search"

// MaxPageSize is the hard maximum of businesses returned per search call.
const MaxPageSize = 50

// SearchParams are the query parameters of a business search.
type SearchParams struct {
	// Location is a free-form location, for ingestion the ZIP code.
	Location string

	// Categories is a comma-separated category filter (e.g. "restaurants").
	Categories string

	// Term is an optional search term.
	Term string

	// Radius in meters (Yelp caps this at 40000).
	Radius int

	// Limit is the page size, at most MaxPageSize.
	Limit int

	// Offset of the first result.
	Offset int
}

// Values encodes the params as URL query values. Zero values are omitted.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	if p.Location != "" {
		v.Set("location", p.Location)
	}
	if p.Categories != "" {
		v.Set("categories", p.Categories)
	}
	if p.Term != "" {
		v.Set("term", p.Term)
	}
	if p.Radius > 0 {
		v.Set("radius", strconv.Itoa(p.Radius))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	return v
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
	Region     *Region    `json:"region,omitempty"`
}

// Region describes the center of the searched area.
type Region struct {
	Center *Coordinates `json:"center,omitempty"`
}

// Business is a raw business item as returned by the search endpoint.
type Business struct {
	ID           string       `json:"id"`
	Alias        string       `json:"alias,omitempty"`
	Name         string       `json:"name"`
	ImageURL     string       `json:"image_url,omitempty"`
	IsClosed     *bool        `json:"is_closed,omitempty"`
	URL          string       `json:"url,omitempty"`
	ReviewCount  *int         `json:"review_count,omitempty"`
	Categories   []Category   `json:"categories,omitempty"`
	Rating       *float64     `json:"rating,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Transactions []string     `json:"transactions,omitempty"`
	Price        string       `json:"price,omitempty"`
	Location     *Location    `json:"location,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	DisplayPhone string       `json:"display_phone,omitempty"`
	Distance     *float64     `json:"distance,omitempty"`
}

// ZipCode returns the ZIP code reported in the business location, or "".
func (b Business) ZipCode() string {
	if b.Location == nil {
		return ""
	}
	return b.Location.ZipCode
}

// Category is a business category entry.
type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title,omitempty"`
}

// Coordinates of a business.
type Coordinates struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Location is the postal address of a business.
type Location struct {
	Address1       string   `json:"address1,omitempty"`
	Address2       string   `json:"address2,omitempty"`
	Address3       string   `json:"address3,omitempty"`
	City           string   `json:"city,omitempty"`
	ZipCode        string   `json:"zip_code,omitempty"`
	Country        string   `json:"country,omitempty"`
	State          string   `json:"state,omitempty"`
	DisplayAddress []string `json:"display_address,omitempty"`
}

// ErrorResponse is the error envelope returned on non-2xx responses.
type ErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}
