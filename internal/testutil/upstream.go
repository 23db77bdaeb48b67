package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Upstream is an httptest server speaking the AlphaVantage query API.
// Symbols without a fixture are unknown to symbol search.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	fixtures map[string]map[string]string
	requests map[string]int
}

// NewUpstream starts a fake query endpoint. fixtures maps symbol to
// query function (EARNINGS, OVERVIEW, INCOME_STATEMENT) to response body.
// The server is closed when the test ends.
func NewUpstream(t *testing.T, fixtures map[string]map[string]string) *Upstream {
	t.Helper()

	u := &Upstream{
		fixtures: fixtures,
		requests: make(map[string]int),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.handle))
	t.Cleanup(u.Close)
	return u
}

func (u *Upstream) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	function := q.Get("function")

	u.mu.Lock()
	u.requests[function]++
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if q.Get("apikey") == "" {
		w.Write([]byte(`{"Error Message": "the parameter apikey is invalid or missing"}`))
		return
	}

	if function == "SYMBOL_SEARCH" {
		keywords := strings.ToUpper(q.Get("keywords"))
		if _, ok := u.fixtures[keywords]; !ok {
			w.Write([]byte(`{"bestMatches": []}`))
			return
		}
		w.Write([]byte(`{"bestMatches": [{"1. symbol": "` + keywords + `", "2. name": "` + keywords + ` Inc"}]}`))
		return
	}

	body, ok := u.fixtures[strings.ToUpper(q.Get("symbol"))][function]
	if !ok {
		w.Write([]byte(`{}`))
		return
	}
	w.Write([]byte(body))
}

// Requests returns how many requests were made for function; empty counts all
func (u *Upstream) Requests(function string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if function == "" {
		n := 0
		for _, c := range u.requests {
			n += c
		}
		return n
	}
	return u.requests[function]
}

// ResetRequests forgets the request counters
func (u *Upstream) ResetRequests() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests = make(map[string]int)
}

// OverviewResponse builds a company overview payload from field pairs
func OverviewResponse(symbol string, fields map[string]string) string {
	var b strings.Builder
	b.WriteString(`{"Symbol": "` + symbol + `"`)
	for k, v := range fields {
		b.WriteString(`, "` + k + `": "` + v + `"`)
	}
	b.WriteString("}")
	return b.String()
}
