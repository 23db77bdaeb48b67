package testutil

import (
	"context"
	"sync"

	"fundamentals/internal/fetcher"
)

// Call records one request made against a MockProvider
type Call struct {
	Method     string
	Identifier string
}

// MockProvider is a mock implementation of the fetcher.Provider interface for testing
type MockProvider struct {
	ProbeFunc func(ctx context.Context, identifier string) (bool, error)
	FetchFunc func(ctx context.Context, kind fetcher.Kind, identifier string) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

var _ fetcher.Provider = (*MockProvider)(nil)

// ProbeIdentifier implements the fetcher.Provider interface
func (m *MockProvider) ProbeIdentifier(ctx context.Context, identifier string) (bool, error) {
	m.record("probe", identifier)
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, identifier)
	}
	return true, nil
}

// FetchEarnings implements the fetcher.Provider interface
func (m *MockProvider) FetchEarnings(ctx context.Context, identifier string) ([]byte, error) {
	return m.fetch(ctx, fetcher.KindEarnings, identifier)
}

// FetchValuation implements the fetcher.Provider interface
func (m *MockProvider) FetchValuation(ctx context.Context, identifier string) ([]byte, error) {
	return m.fetch(ctx, fetcher.KindValuation, identifier)
}

// FetchRevenue implements the fetcher.Provider interface
func (m *MockProvider) FetchRevenue(ctx context.Context, identifier string) ([]byte, error) {
	return m.fetch(ctx, fetcher.KindRevenue, identifier)
}

// FetchCashFlow implements the fetcher.Provider interface
func (m *MockProvider) FetchCashFlow(ctx context.Context, identifier string) ([]byte, error) {
	return m.fetch(ctx, fetcher.KindCashFlow, identifier)
}

func (m *MockProvider) fetch(ctx context.Context, kind fetcher.Kind, identifier string) ([]byte, error) {
	m.record(string(kind), identifier)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, kind, identifier)
	}
	return []byte(`{}`), nil
}

func (m *MockProvider) record(method, identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Identifier: identifier})
}

// Calls returns a copy of every call made so far, in order
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many calls of method were made; an empty method counts all calls
func (m *MockProvider) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if method == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// NewMockProvider creates a mock that accepts every identifier and serves
// responses[identifier] for any kind, or an empty object when absent
func NewMockProvider(responses map[string]string) *MockProvider {
	return &MockProvider{
		FetchFunc: func(ctx context.Context, kind fetcher.Kind, identifier string) ([]byte, error) {
			if body, ok := responses[identifier]; ok {
				return []byte(body), nil
			}
			return []byte(`{}`), nil
		},
	}
}

// EarningsResponse builds an upstream style earnings payload holding one
// quarter per (date, actual, estimate) triple
func EarningsResponse(symbol string, quarters ...[3]string) string {
	body := `{"symbol": "` + symbol + `", "quarterlyEarnings": [`
	for i, q := range quarters {
		if i > 0 {
			body += ","
		}
		body += `{"fiscalDateEnding": "` + q[0] + `", "reportedEPS": "` + q[1] + `", "estimatedEPS": "` + q[2] + `"}`
	}
	return body + `]}`
}
