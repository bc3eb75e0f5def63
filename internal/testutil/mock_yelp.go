// Package testutil provides testing utilities for the Yelp client and ingestion.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// SearchPath is the business search path served by MockYelp.
const SearchPath = "/v3/businesses/search"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockYelp is a configurable mock Yelp Fusion server for testing.
type MockYelp struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Queries           []string
}

// NewMockYelp creates a new mock Yelp server.
func NewMockYelp() *MockYelp {
	mock := &MockYelp{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, r.URL.RawQuery)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockYelp) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockYelp) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockYelp) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockYelp) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockYelp) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetSequence serves the responses in order; the last one repeats.
func (m *MockYelp) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		resp.write(w, r)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockYelp) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastHeader returns the headers of the most recent request.
func (m *MockYelp) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func (r MockResponse) write(w http.ResponseWriter, _ *http.Request) {
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}
	for key, value := range r.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(r.StatusCode)
	if r.Body != "" {
		w.Write([]byte(r.Body))
	}
}

// defaultHandler answers every path with an empty search page.
func (m *MockYelp) defaultHandler(w http.ResponseWriter, r *http.Request) {
	NewSearchResponse(`{"businesses": [], "total": 0}`).write(w, r)
}

// quotaHeaders returns Yelp daily quota headers with the given remaining count.
func quotaHeaders(remaining int) map[string]string {
	return map[string]string{
		"RateLimit-DailyLimit": "5000",
		"RateLimit-Remaining":  strconv.Itoa(remaining),
		"RateLimit-ResetTime":  time.Now().Add(12 * time.Hour).UTC().Format(time.RFC3339),
		"Content-Type":         "application/json",
	}
}

// NewSearchResponse creates a 200 OK response with healthy quota headers.
func NewSearchResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    quotaHeaders(4999),
	}
}

// NewQuotaResponse creates a 200 OK response reporting the given remaining quota.
func NewQuotaResponse(body string, remaining int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    quotaHeaders(remaining),
	}
}

// NewErrorResponse creates a Yelp error envelope response.
func NewErrorResponse(status int, code, description string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "description": description},
	})
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewUnauthorizedResponse creates a 401 response for an invalid API key.
func NewUnauthorizedResponse() MockResponse {
	return NewErrorResponse(http.StatusUnauthorized, "TOKEN_INVALID", "Invalid access token or authorization header.")
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, "TOO_MANY_REQUESTS_PER_SECOND", "You have exceeded the queries-per-second limit for this endpoint.")
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewErrorResponse(http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong internally, please try your request again")
}

// SearchBody builds a search response body with n businesses in the given ZIP code.
func SearchBody(zip string, n, total int) string {
	businesses := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		businesses = append(businesses, map[string]any{
			"id":           fmt.Sprintf("%s-biz-%d", zip, i),
			"name":         fmt.Sprintf("Restaurant %d", i),
			"rating":       4.0,
			"review_count": 10 + i,
			"categories":   []map[string]string{{"alias": "pizza", "title": "Pizza"}},
			"coordinates":  map[string]float64{"latitude": 37.66, "longitude": -121.87},
			"location": map[string]any{
				"address1": fmt.Sprintf("%d Main St", i+1),
				"city":     "Pleasanton",
				"state":    "CA",
				"zip_code": zip,
			},
		})
	}
	body, _ := json.Marshal(map[string]any{"businesses": businesses, "total": total})
	return string(body)
}
