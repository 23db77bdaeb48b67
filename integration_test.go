package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fundamentals/internal/alphavantage"
	"fundamentals/internal/cache"
	"fundamentals/internal/fetcher"
	"fundamentals/internal/pipeline"
	"fundamentals/internal/ratelimit"
	"fundamentals/internal/testutil"
)

// newPipeline wires the production client, disk store and pipeline against baseURL
func newPipeline(t *testing.T, baseURL string) (*pipeline.Pipeline, *cache.Store) {
	t.Helper()

	store := cache.NewDiskStore(t.TempDir())
	client := alphavantage.NewClient("test_key", baseURL, alphavantage.Options{
		Limiter: ratelimit.Unlimited(),
		Logger:  zerolog.Nop(),
	})
	p := pipeline.New(store, client, pipeline.Config{ChunkSize: 2}, zerolog.Nop())
	return p, store
}

// TestIntegration_AllKinds fetches every data kind through a mock upstream,
// then checks the second pass is served entirely from the cache
func TestIntegration_AllKinds(t *testing.T) {
	upstream := testutil.NewUpstream(t, map[string]map[string]string{
		"AAPL": {
			"EARNINGS": testutil.EarningsResponse("AAPL",
				[3]string{"2024-03-31", "1.53", "1.50"},
				[3]string{"2024-06-30", "1.40", "1.35"},
			),
			"OVERVIEW": testutil.OverviewResponse("AAPL", map[string]string{
				"Name":                 "Apple Inc",
				"MarketCapitalization": "3000000000000",
				"PERatio":              "30.1",
			}),
			"INCOME_STATEMENT": `{"annualReports": [{"fiscalDateEnding": "2023-09-30", "totalRevenue": "383285000000"}]}`,
			"CASH_FLOW": `{"annualReports": [{"fiscalDateEnding": "2023-09-30", "operatingCashflow": "110543000000"}],
				"quarterlyReports": [{"fiscalDateEnding": "2023-12-31", "operatingCashflow": "39895000000"}]}`,
		},
		"MSFT": {
			"EARNINGS": testutil.EarningsResponse("MSFT", [3]string{"2024-03-31", "2.94", "2.82"}),
			"OVERVIEW": testutil.OverviewResponse("MSFT", map[string]string{"Name": "Microsoft Corp"}),
		},
	})

	p, store := newPipeline(t, upstream.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := map[fetcher.Kind]int{
		fetcher.KindEarnings:  3,
		fetcher.KindValuation: 4,
		fetcher.KindRevenue:   1,
		fetcher.KindCashFlow:  2,
	}

	for _, kind := range fetcher.Kinds {
		result, err := p.FetchAll(ctx, kind, cache.Days(1), "AAPL", "MSFT", "BOGUS")
		if err != nil {
			t.Fatalf("FetchAll(%s) failed: %v", kind, err)
		}
		if got := result.Table.Len(); got != want[kind] {
			t.Errorf("FetchAll(%s) rows = %d, want %d", kind, got, want[kind])
		}
		if len(result.Outcomes) != 3 {
			t.Errorf("FetchAll(%s) outcomes = %d, want 3", kind, len(result.Outcomes))
		}
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 12 {
		t.Errorf("cache entries = %d, want 12", len(entries))
	}

	upstream.ResetRequests()
	for _, kind := range fetcher.Kinds {
		result, err := p.FetchAll(ctx, kind, cache.Preserve(), "AAPL", "MSFT", "BOGUS")
		if err != nil {
			t.Fatalf("FetchAll(%s) failed: %v", kind, err)
		}
		if got := result.Table.Len(); got != want[kind] {
			t.Errorf("cached FetchAll(%s) rows = %d, want %d", kind, got, want[kind])
		}
	}
	if n := upstream.Requests(""); n != 0 {
		t.Errorf("cached pass made %d upstream requests, want 0", n)
	}
}

// TestIntegration_PartialFailures checks transport failures are skipped and
// retried on the next run while successful identifiers stay cached
func TestIntegration_PartialFailures(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		symbol := q.Get("symbol") + q.Get("keywords")

		w.Header().Set("Content-Type", "application/json")
		if symbol == "FLAKY" && failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if q.Get("function") == "SYMBOL_SEARCH" {
			w.Write([]byte(`{"bestMatches": [{"1. symbol": "` + symbol + `"}]}`))
			return
		}
		w.Write([]byte(testutil.EarningsResponse(symbol, [3]string{"2024-03-31", "1.0", "0.9"})))
	}))
	defer server.Close()

	p, store := newPipeline(t, server.URL)
	ctx := context.Background()

	result, err := p.FetchAll(ctx, fetcher.KindEarnings, cache.Days(1), "TEST1", "FLAKY", "TEST2")
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if got := result.Table.Len(); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Identifier != "FLAKY" {
		t.Fatalf("Failed() = %+v, want only FLAKY", failed)
	}
	if fetcher.TypeOf(failed[0].Error) != fetcher.ErrorTypeServer {
		t.Errorf("FLAKY error type = %s, want %s", fetcher.TypeOf(failed[0].Error), fetcher.ErrorTypeServer)
	}

	lookup, err := store.GetIfFresh(cache.Key("FLAKY", fetcher.KindEarnings), cache.Preserve())
	if err != nil {
		t.Fatalf("GetIfFresh() failed: %v", err)
	}
	if lookup.State != cache.Miss {
		t.Errorf("FLAKY cache state = %s, want miss", lookup.State)
	}

	failing.Store(false)
	result, err = p.FetchAll(ctx, fetcher.KindEarnings, cache.Days(1), "TEST1", "FLAKY", "TEST2")
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if got := result.Table.Len(); got != 3 {
		t.Errorf("rows after recovery = %d, want 3", got)
	}
	for _, o := range result.Outcomes {
		want := fetcher.SourceCache
		if o.Identifier == "FLAKY" {
			want = fetcher.SourceUpstream
		}
		if o.Source != want {
			t.Errorf("%s source = %s, want %s", o.Identifier, o.Source, want)
		}
	}
}

// TestIntegration_SlowIdentifier checks a request timing out on its own only
// skips that identifier while the rest of the batch is kept
func TestIntegration_SlowIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		symbol := q.Get("symbol") + q.Get("keywords")

		if symbol == "SLOW" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if q.Get("function") == "SYMBOL_SEARCH" {
			w.Write([]byte(`{"bestMatches": [{"1. symbol": "` + symbol + `"}]}`))
			return
		}
		w.Write([]byte(testutil.EarningsResponse(symbol, [3]string{"2024-03-31", "1.0", "0.9"})))
	}))
	defer server.Close()

	store := cache.NewDiskStore(t.TempDir())
	client := alphavantage.NewClient("test_key", server.URL, alphavantage.Options{
		Limiter: ratelimit.Unlimited(),
		Timeout: 50 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})
	p := pipeline.New(store, client, pipeline.Config{}, zerolog.Nop())

	result, err := p.FetchAll(context.Background(), fetcher.KindEarnings, cache.Disabled(), "SLOW", "AAPL")
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if got := result.Table.Tickers(); len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("tickers = %v, want [AAPL]", got)
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Identifier != "SLOW" {
		t.Fatalf("Failed() = %+v, want only SLOW", failed)
	}

	lookup, err := store.GetIfFresh(cache.Key("SLOW", fetcher.KindEarnings), cache.Preserve())
	if err != nil {
		t.Fatalf("GetIfFresh() failed: %v", err)
	}
	if lookup.State != cache.Miss {
		t.Errorf("SLOW cache state = %s, want miss", lookup.State)
	}
}

// TestIntegration_ContextTimeout tests that context timeout is respected
func TestIntegration_ContextTimeout(t *testing.T) {
	// Create a server that never responds
	hangingServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer hangingServer.Close()

	p, store := newPipeline(t, hangingServer.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.FetchAll(ctx, fetcher.KindEarnings, cache.Days(1), "TEST")
	duration := time.Since(start)

	if err == nil {
		t.Fatal("FetchAll() succeeded, want a context error")
	}
	if duration > time.Second {
		t.Errorf("Context timeout not respected. Duration: %v", duration)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache entries = %d, want 0 after cancellation", len(entries))
	}
}

// TestIntegration_Throttled checks an upstream throttle notice is not cached
func TestIntegration_Throttled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	}))
	defer server.Close()

	p, store := newPipeline(t, server.URL)

	result, err := p.FetchAll(context.Background(), fetcher.KindValuation, cache.Preserve(), "IBM")
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if !result.Table.Empty() {
		t.Errorf("rows = %d, want 0", result.Table.Len())
	}
	failed := result.Failed()
	if len(failed) != 1 || fetcher.TypeOf(failed[0].Error) != fetcher.ErrorTypeRateLimit {
		t.Fatalf("Failed() = %+v, want one rate limit error", failed)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache entries = %d, want 0", len(entries))
	}
}
