package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/zip-ingest/pkg/yelp"
	"github.com/rs/zerolog"
)

// fakePage is one scripted search response.
type fakePage struct {
	resp *yelp.SearchResponse
	err  error
}

// fakeService scripts search pages per ZIP code and records store calls.
type fakeService struct {
	pages    map[string][]fakePage
	calls    []yelp.SearchParams
	perZip   map[string]int
	stored   []Restaurant
	attempts []string
	storeErr func(r Restaurant) error
	panicOn  string
}

func newFakeService() *fakeService {
	return &fakeService{
		pages:  make(map[string][]fakePage),
		perZip: make(map[string]int),
	}
}

func (f *fakeService) Search(ctx context.Context, params yelp.SearchParams) (*yelp.SearchResponse, error) {
	f.calls = append(f.calls, params)
	if params.Location == f.panicOn {
		panic("unexpected payload shape")
	}

	idx := f.perZip[params.Location]
	f.perZip[params.Location]++

	seq := f.pages[params.Location]
	if idx >= len(seq) {
		return &yelp.SearchResponse{}, nil
	}
	return seq[idx].resp, seq[idx].err
}

func (f *fakeService) StoreRestaurant(ctx context.Context, r Restaurant) error {
	f.attempts = append(f.attempts, r.YelpID)
	if f.storeErr != nil {
		if err := f.storeErr(r); err != nil {
			return err
		}
	}
	f.stored = append(f.stored, r)
	return nil
}

func business(id, zip string) yelp.Business {
	return yelp.Business{
		ID:   id,
		Name: "Restaurant " + id,
		Location: &yelp.Location{
			Address1: "1 Main St",
			City:     "New York",
			State:    "NY",
			ZipCode:  zip,
		},
	}
}

func businesses(prefix, zip string, n int) []yelp.Business {
	out := make([]yelp.Business, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, business(fmt.Sprintf("%s-%d", prefix, i), zip))
	}
	return out
}

func page(total int, items ...yelp.Business) fakePage {
	return fakePage{resp: &yelp.SearchResponse{Businesses: items, Total: total}}
}

func newTestIngestor(svc Service) *Ingestor {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return New(svc, WithLogger(zerolog.Nop()), WithClock(func() time.Time { return fixed }))
}

func settingsWith(maxCalls, target int) Settings {
	s := DefaultSettings()
	s.MaxAPICalls = maxCalls
	s.TargetCountPerArea = target
	return s
}

// assertReportConsistent checks properties that hold for every run report.
func assertReportConsistent(t *testing.T, report *RunReport, zips []string, settings Settings) {
	t.Helper()

	if got := len(report.SuccessfulZips) + len(report.FailedZips); got != len(zips) {
		t.Errorf("successful+failed = %d, want %d", got, len(zips))
	}
	if report.APICallsMade > settings.MaxAPICalls {
		t.Errorf("APICallsMade = %d exceeds MaxAPICalls %d", report.APICallsMade, settings.MaxAPICalls)
	}

	sum := 0
	for _, o := range report.SuccessfulZips {
		sum += o.RestaurantCount
		if report.IsFailed(o.ZipCode) {
			t.Errorf("ZIP %s is both successful and failed", o.ZipCode)
		}
	}
	if sum != report.TotalRestaurants {
		t.Errorf("sum of restaurant counts = %d, TotalRestaurants = %d", sum, report.TotalRestaurants)
	}
	if report.IngestionEnd.IsZero() {
		t.Error("IngestionEnd not set")
	}
}

func TestRun_BudgetStopsRemainingAreas(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{page(3, businesses("a", "10001", 3)...)}

	zips := []string{"10001", "10002"}
	settings := settingsWith(1, 50)
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	outcome, ok := report.Outcome("10001")
	if !ok {
		t.Fatal("10001 should be successful")
	}
	if outcome.RestaurantCount != 3 {
		t.Errorf("RestaurantCount = %d, want 3", outcome.RestaurantCount)
	}
	if !report.IsFailed("10002") {
		t.Fatal("10002 should be failed")
	}
	errs := report.ErrorsFor("10002")
	if len(errs) != 1 || errs[0].Type != KindLimitExceeded {
		t.Errorf("10002 errors = %+v, want one limit_exceeded", errs)
	}
	if report.TotalRestaurants != 3 {
		t.Errorf("TotalRestaurants = %d, want 3", report.TotalRestaurants)
	}
	if report.APICallsMade != 1 {
		t.Errorf("APICallsMade = %d, want 1", report.APICallsMade)
	}
	if len(svc.calls) != 1 {
		t.Errorf("search calls = %d, want 1", len(svc.calls))
	}
}

func TestRun_ZeroBudgetFailsEveryArea(t *testing.T) {
	svc := newFakeService()
	zips := []string{"10001", "10002", "10003"}
	settings := settingsWith(0, 50)

	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	if len(report.FailedZips) != 3 {
		t.Fatalf("FailedZips = %v, want all three", report.FailedZips)
	}
	for i, zip := range zips {
		if report.FailedZips[i] != zip {
			t.Errorf("FailedZips[%d] = %s, want %s", i, report.FailedZips[i], zip)
		}
		errs := report.ErrorsFor(zip)
		if len(errs) != 1 || errs[0].Type != KindLimitExceeded {
			t.Errorf("%s errors = %+v, want one limit_exceeded", zip, errs)
		}
	}
	if report.TotalRestaurants != 0 {
		t.Errorf("TotalRestaurants = %d, want 0", report.TotalRestaurants)
	}
	if len(svc.calls) != 0 {
		t.Errorf("search calls = %d, want 0", len(svc.calls))
	}
}

func TestRun_EmptyFirstPageIsNoData(t *testing.T) {
	svc := newFakeService()
	svc.pages["94566"] = []fakePage{page(0)}

	zips := []string{"94566"}
	settings := DefaultSettings()
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	if !report.IsFailed("94566") {
		t.Fatal("94566 should be failed")
	}
	errs := report.ErrorsFor("94566")
	if len(errs) != 1 {
		t.Fatalf("got %d error entries, want 1", len(errs))
	}
	if errs[0].Type != KindNoData {
		t.Errorf("error type = %s, want %s", errs[0].Type, KindNoData)
	}
	if report.APICallsMade != 1 {
		t.Errorf("APICallsMade = %d, want 1", report.APICallsMade)
	}
}

func TestRun_MismatchedZipsAreFilteredToNoData(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{
		page(4, businesses("x", "10002", 2)...),
		page(4, businesses("y", "10003", 2)...),
	}

	zips := []string{"10001"}
	settings := DefaultSettings()
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	errs := report.ErrorsFor("10001")
	if len(errs) != 1 || errs[0].Type != KindNoData {
		t.Fatalf("errors = %+v, want one no_data", errs)
	}
	if len(svc.attempts) != 0 {
		t.Errorf("store attempts = %d, want 0", len(svc.attempts))
	}
	if report.APICallsMade != 2 {
		t.Errorf("APICallsMade = %d, want 2", report.APICallsMade)
	}
}

func TestRun_FilterKeepsOnlyExactZipMatches(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{page(4,
		business("keep-1", "10001"),
		business("drop-1", "10001-1234"),
		business("drop-2", " 10001"),
		business("keep-2", "10001"),
	)}

	report := newTestIngestor(svc).Run(context.Background(), []string{"10001"}, DefaultSettings())

	outcome, ok := report.Outcome("10001")
	if !ok {
		t.Fatal("10001 should be successful")
	}
	if outcome.RestaurantCount != 2 {
		t.Errorf("RestaurantCount = %d, want 2", outcome.RestaurantCount)
	}
	for _, r := range svc.stored {
		if r.YelpID != "keep-1" && r.YelpID != "keep-2" {
			t.Errorf("unexpected record stored: %s", r.YelpID)
		}
		if r.ZipCode != "10001" {
			t.Errorf("stored ZipCode = %q, want 10001", r.ZipCode)
		}
	}
}

func TestRun_StorageFailureDoesNotAbortPage(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{page(4, businesses("r", "10001", 4)...)}
	svc.storeErr = func(r Restaurant) error {
		if r.YelpID == "r-1" {
			return errors.New("connection reset")
		}
		return nil
	}

	zips := []string{"10001"}
	settings := DefaultSettings()
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	if len(svc.attempts) != 4 {
		t.Fatalf("store attempts = %v, want all four records", svc.attempts)
	}

	outcome, ok := report.Outcome("10001")
	if !ok {
		t.Fatal("10001 should be successful")
	}
	if outcome.RestaurantCount != 4 {
		t.Errorf("RestaurantCount = %d, want 4", outcome.RestaurantCount)
	}
	if outcome.StoredCount != 3 {
		t.Errorf("StoredCount = %d, want 3", outcome.StoredCount)
	}

	errs := report.ErrorsFor("10001")
	if len(errs) != 1 {
		t.Fatalf("got %d error entries, want 1", len(errs))
	}
	e := errs[0]
	if e.Type != KindStorageError {
		t.Errorf("Type = %s, want %s", e.Type, KindStorageError)
	}
	if e.YelpID != "r-1" || e.Restaurant != "Restaurant r-1" {
		t.Errorf("entry identity = (%q, %q), want (r-1, Restaurant r-1)", e.YelpID, e.Restaurant)
	}
	if e.Error != "connection reset" {
		t.Errorf("Error = %q, want %q", e.Error, "connection reset")
	}
}

func TestRun_SearchFailureRecordsAPIErrorOnly(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{{err: errors.New("status 500")}}
	svc.pages["10002"] = []fakePage{page(1, business("b", "10002"))}

	zips := []string{"10001", "10002"}
	settings := DefaultSettings()
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	errs := report.ErrorsFor("10001")
	if len(errs) != 1 || errs[0].Type != KindAPIError {
		t.Fatalf("10001 errors = %+v, want exactly one api_error", errs)
	}
	if !report.IsFailed("10001") {
		t.Error("10001 should be failed")
	}
	if _, ok := report.Outcome("10002"); !ok {
		t.Error("10002 should still be processed and succeed")
	}
	if svc.perZip["10001"] != 1 {
		t.Errorf("10001 search calls = %d, want 1 (no retry)", svc.perZip["10001"])
	}
}

func TestRun_SearchFailureAfterAcceptedPageKeepsArea(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{
		page(100, businesses("a", "10001", 5)...),
		{err: errors.New("timeout")},
	}

	settings := settingsWith(10, 20)
	settings.PageSize = 5
	report := newTestIngestor(svc).Run(context.Background(), []string{"10001"}, settings)

	outcome, ok := report.Outcome("10001")
	if !ok {
		t.Fatal("10001 should be successful with partial data")
	}
	if outcome.RestaurantCount != 5 || outcome.APICalls != 2 {
		t.Errorf("outcome = %+v, want 5 restaurants over 2 calls", outcome)
	}
	errs := report.ErrorsFor("10001")
	if len(errs) != 1 || errs[0].Type != KindAPIError {
		t.Errorf("errors = %+v, want one api_error", errs)
	}
}

func TestRun_PanicIsContainedAsProcessingError(t *testing.T) {
	svc := newFakeService()
	svc.panicOn = "10001"
	svc.pages["10002"] = []fakePage{page(1, business("b", "10002"))}

	zips := []string{"10001", "10002"}
	settings := DefaultSettings()
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	errs := report.ErrorsFor("10001")
	if len(errs) != 1 || errs[0].Type != KindProcessingError {
		t.Fatalf("10001 errors = %+v, want one processing_error", errs)
	}
	if errs[0].Error != "unexpected payload shape" {
		t.Errorf("Error = %q", errs[0].Error)
	}
	if _, ok := report.Outcome("10002"); !ok {
		t.Error("run should continue after a processing error")
	}
	if report.APICallsMade != 2 {
		t.Errorf("APICallsMade = %d, want 2", report.APICallsMade)
	}
}

func TestRun_PageSizingAndOffsets(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{
		page(500, businesses("p1", "10001", 50)...),
		page(500, businesses("p2", "10001", 10)...),
	}

	settings := settingsWith(100, 60)
	settings.PageSize = 200
	settings.SearchRadius = 3000
	report := newTestIngestor(svc).Run(context.Background(), []string{"10001"}, settings)

	if len(svc.calls) != 2 {
		t.Fatalf("search calls = %d, want 2", len(svc.calls))
	}

	first, second := svc.calls[0], svc.calls[1]
	if first.Limit != 50 || first.Offset != 0 {
		t.Errorf("first call limit/offset = %d/%d, want 50/0", first.Limit, first.Offset)
	}
	if second.Limit != 10 || second.Offset != 50 {
		t.Errorf("second call limit/offset = %d/%d, want 10/50", second.Limit, second.Offset)
	}
	if first.Categories != "restaurants" || first.Radius != 3000 || first.Location != "10001" {
		t.Errorf("first call params = %+v", first)
	}

	outcome, _ := report.Outcome("10001")
	if outcome.RestaurantCount != 60 {
		t.Errorf("RestaurantCount = %d, want 60", outcome.RestaurantCount)
	}
}

func TestRun_TrustTotalStopsEarly(t *testing.T) {
	tests := []struct {
		name       string
		trustTotal bool
		wantCalls  int
		wantCount  int
	}{
		{name: "trusted total stops after first page", trustTotal: true, wantCalls: 1, wantCount: 2},
		{name: "untrusted total pages until empty", trustTotal: false, wantCalls: 3, wantCount: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.pages["10001"] = []fakePage{
				page(2, businesses("a", "10001", 2)...),
				page(2, businesses("b", "10001", 2)...),
				page(2),
			}

			settings := DefaultSettings()
			settings.TrustTotal = tt.trustTotal
			report := newTestIngestor(svc).Run(context.Background(), []string{"10001"}, settings)

			if report.APICallsMade != tt.wantCalls {
				t.Errorf("APICallsMade = %d, want %d", report.APICallsMade, tt.wantCalls)
			}
			if report.TotalRestaurants != tt.wantCount {
				t.Errorf("TotalRestaurants = %d, want %d", report.TotalRestaurants, tt.wantCount)
			}
		})
	}
}

func TestRun_BudgetExhaustedMidArea(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{
		page(1000, businesses("a", "10001", 10)...),
		page(1000, businesses("b", "10001", 10)...),
		page(1000, businesses("c", "10001", 10)...),
	}

	zips := []string{"10001", "10002", "10003"}
	settings := settingsWith(2, 50)
	settings.PageSize = 10
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	outcome, ok := report.Outcome("10001")
	if !ok {
		t.Fatal("10001 should be successful")
	}
	if outcome.APICalls != 2 || outcome.RestaurantCount != 20 {
		t.Errorf("outcome = %+v, want 20 restaurants over 2 calls", outcome)
	}
	for _, zip := range []string{"10002", "10003"} {
		errs := report.ErrorsFor(zip)
		if len(errs) != 1 || errs[0].Type != KindLimitExceeded {
			t.Errorf("%s errors = %+v, want one limit_exceeded", zip, errs)
		}
	}
}

func TestRun_ReportIsNotSharedAcrossRuns(t *testing.T) {
	svc := newFakeService()
	svc.pages["10001"] = []fakePage{page(1, business("a", "10001")), page(1, business("a", "10001"))}
	in := newTestIngestor(svc)

	first := in.Run(context.Background(), []string{"10001"}, DefaultSettings())
	second := in.Run(context.Background(), []string{"10001"}, DefaultSettings())

	if first == second {
		t.Fatal("each run must return its own report")
	}
	if first.TotalRestaurants != 1 || second.TotalRestaurants != 1 {
		t.Errorf("totals = %d, %d, want 1, 1", first.TotalRestaurants, second.TotalRestaurants)
	}
	if first.APICallsMade != 1 || second.APICallsMade != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", first.APICallsMade, second.APICallsMade)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	report := newTestIngestor(newFakeService()).Run(context.Background(), nil, DefaultSettings())

	if len(report.SuccessfulZips) != 0 || len(report.FailedZips) != 0 || len(report.Errors) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if report.SuccessfulZips == nil || report.FailedZips == nil || report.Errors == nil {
		t.Error("report lists should be non-nil")
	}
}

func TestRun_BlankZipFailsWithoutSearch(t *testing.T) {
	svc := newFakeService()
	noLocation := yelp.Business{ID: "no-location", Name: "Food Truck"}
	svc.pages[""] = []fakePage{page(1, noLocation)}
	svc.pages["  "] = []fakePage{page(1, noLocation)}
	svc.pages["10001"] = []fakePage{page(1, business("a", "10001"))}

	zips := []string{"", "10001", "  "}
	settings := settingsWith(10, 50)
	report := newTestIngestor(svc).Run(context.Background(), zips, settings)

	assertReportConsistent(t, report, zips, settings)

	if report.TotalRestaurants != 1 {
		t.Errorf("TotalRestaurants = %d, want 1", report.TotalRestaurants)
	}
	if len(report.FailedZips) != 2 {
		t.Fatalf("FailedZips = %q, want both blank codes", report.FailedZips)
	}
	for _, zip := range []string{"", "  "} {
		errs := report.ErrorsFor(zip)
		if len(errs) != 1 || errs[0].Type != KindProcessingError {
			t.Errorf("errors for %q = %+v, want one processing_error", zip, errs)
		}
	}
	for _, call := range svc.calls {
		if strings.TrimSpace(call.Location) == "" {
			t.Errorf("searched blank location %q", call.Location)
		}
	}
	if report.APICallsMade != 1 {
		t.Errorf("APICallsMade = %d, want 1", report.APICallsMade)
	}
	for _, r := range svc.stored {
		if r.YelpID == "no-location" {
			t.Error("business without location was stored")
		}
	}
}
