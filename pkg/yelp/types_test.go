package yelp

import (
	"encoding/json"
	"testing"
)

func TestSearchParams_Values(t *testing.T) {
	tests := []struct {
		name   string
		params SearchParams
		want   string
	}{
		{
			name:   "empty params",
			params: SearchParams{},
			want:   "",
		},
		{
			name: "first page omits offset",
			params: SearchParams{
				Location:   "10001",
				Categories: "restaurants",
				Radius:     5000,
				Limit:      50,
			},
			want: "categories=restaurants&limit=50&location=10001&radius=5000",
		},
		{
			name: "later page carries offset",
			params: SearchParams{
				Location: "10001",
				Limit:    20,
				Offset:   40,
			},
			want: "limit=20&location=10001&offset=40",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Values().Encode(); got != tt.want {
				t.Errorf("Values().Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBusiness_DecodePartialPayload(t *testing.T) {
	payload := `{"id":"abc","name":"Joe's","categories":[{"alias":"pizza"},{"title":"no alias"}]}`

	var b Business
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if b.Location != nil {
		t.Error("Location should be nil when absent")
	}
	if b.Coordinates != nil {
		t.Error("Coordinates should be nil when absent")
	}
	if b.ZipCode() != "" {
		t.Errorf("ZipCode() = %q, want empty", b.ZipCode())
	}
	if len(b.Categories) != 2 {
		t.Errorf("len(Categories) = %d, want 2", len(b.Categories))
	}
}

func TestErrorResponse_Decode(t *testing.T) {
	payload := `{"error":{"code":"VALIDATION_ERROR","description":"limit too large"}}`

	var e ErrorResponse
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if e.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", e.Error.Code)
	}
}
